package job

import (
	"encoding/json"
	"time"

	"github.com/huddlehq/huddle"
	"github.com/huddlehq/huddle/id"
)

// State represents the lifecycle state of a job record.
type State string

const (
	// StatePending means the job is queued and waiting for a worker. A job
	// scheduled for retry returns to pending until its delay elapses.
	StatePending State = "pending"
	// StateProcessing means a worker holds the job and its handler is running.
	StateProcessing State = "processing"
	// StateCompleted means the handler finished successfully. Terminal.
	StateCompleted State = "completed"
	// StateFailed means the job exhausted its retry budget, or failed in a
	// way that retrying cannot fix. Terminal.
	StateFailed State = "failed"
)

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// DefaultMaxRetries is the retry budget applied when a submission does
// not specify one.
const DefaultMaxRetries = 3

// Job is a persisted unit of background work submitted by a workspace
// member. Input is the handler's raw payload; Result is whatever the
// handler returned on completion.
type Job struct {
	huddle.Entity

	ID         id.JobID        `json:"id"`
	Type       string          `json:"type"`
	OwnerID    string          `json:"owner_id"`
	Input      json.RawMessage `json:"input,omitempty"`
	State      State           `json:"state"`
	Result     json.RawMessage `json:"result,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	Retries    int             `json:"retries"`
	MaxRetries int             `json:"max_retries"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// New creates a pending job record with the default retry budget.
func New(typ, ownerID string, input json.RawMessage) *Job {
	return &Job{
		Entity:     huddle.NewEntity(),
		ID:         id.NewJobID(),
		Type:       typ,
		OwnerID:    ownerID,
		Input:      input,
		State:      StatePending,
		MaxRetries: DefaultMaxRetries,
	}
}
