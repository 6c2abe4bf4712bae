package store

import (
	"context"

	"github.com/huddlehq/huddle/job"
)

// Store is the aggregate persistence interface. A single backend
// implements the subsystem stores plus lifecycle operations.
type Store interface {
	job.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error
}
