package middleware

import (
	"context"

	"github.com/huddlehq/huddle/job"
)

type ownerKey struct{}

// Owner returns middleware that injects the job's submitting user into
// the context. Handlers see the same caller identity as the original
// submission.
func Owner() Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) error {
		if j.OwnerID != "" {
			ctx = context.WithValue(ctx, ownerKey{}, j.OwnerID)
		}
		return next(ctx)
	}
}

// OwnerFromContext returns the submitting user's ID placed by [Owner].
func OwnerFromContext(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(ownerKey{}).(string)
	return ownerID, ok
}
