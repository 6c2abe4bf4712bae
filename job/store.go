package job

import (
	"context"

	"github.com/huddlehq/huddle/id"
)

// ListOpts controls pagination and filtering for job list queries.
type ListOpts struct {
	// Limit is the maximum number of jobs to return. Zero means no limit.
	Limit int
	// Offset is the number of jobs to skip.
	Offset int
	// OwnerID filters by submitting user. Empty means all owners.
	OwnerID string
}

// CountOpts controls filtering for job count queries.
type CountOpts struct {
	// State filters by job state. Empty means all states.
	State State
	// OwnerID filters by submitting user. Empty means all owners.
	OwnerID string
}

// Store defines the persistence contract for job records. Queueing and
// retry scheduling live in the queue package; the store only holds
// record state.
type Store interface {
	// CreateJob persists a new job record. Returns
	// huddle.ErrJobAlreadyExists if the ID is taken.
	CreateJob(ctx context.Context, j *Job) error

	// GetJob retrieves a job by ID. Returns huddle.ErrJobNotFound if no
	// record exists.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// UpdateJob persists changes to an existing job record.
	UpdateJob(ctx context.Context, j *Job) error

	// DeleteJob removes a job record by ID.
	DeleteJob(ctx context.Context, jobID id.JobID) error

	// ListJobsByState returns jobs matching the given state, newest first.
	ListJobsByState(ctx context.Context, state State, opts ListOpts) ([]*Job, error)

	// CountJobs returns the number of jobs matching the given options.
	CountJobs(ctx context.Context, opts CountOpts) (int64, error)

	// Close releases store resources. Further calls return
	// huddle.ErrStoreClosed.
	Close() error
}
