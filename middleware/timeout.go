package middleware

import (
	"context"
	"time"

	"github.com/huddlehq/huddle/job"
)

// Timeout returns middleware that enforces an execution deadline on
// every handler call. When the deadline is exceeded the context is
// cancelled and the handler should return context.DeadlineExceeded.
// A zero duration disables the deadline.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *job.Job, next Handler) error {
		if d > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return next(ctx)
	}
}
