package queue

import (
	"context"
	"errors"
	"time"

	"github.com/huddlehq/huddle/id"
)

// ErrClosed indicates the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// ErrNotInFlight indicates an Ack or Nack for a delivery the queue does
// not consider claimed, typically because it was already settled.
var ErrNotInFlight = errors.New("queue: delivery not in flight")

// Delivery is a claimed queue item. Exactly one worker holds a delivery
// at a time; it stays claimed until the worker settles it with Ack or
// Nack.
type Delivery struct {
	// JobID identifies the job record to load and execute.
	JobID id.JobID

	// Attempt is the 1-indexed delivery count for this job, including
	// this delivery.
	Attempt int
}

// Queue hands job IDs to workers with at-least-once semantics. The
// record itself lives in a job.Store; the queue only carries IDs and
// redelivery scheduling.
type Queue interface {
	// Enqueue makes the job available for immediate dequeue.
	Enqueue(ctx context.Context, jobID id.JobID) error

	// Dequeue blocks until a job is available or ctx is done. The
	// returned delivery is exclusive: no other Dequeue returns the same
	// job until it is Nacked.
	Dequeue(ctx context.Context) (*Delivery, error)

	// Ack settles a delivery: the job is done (completed or terminally
	// failed) and will not be redelivered.
	Ack(ctx context.Context, d *Delivery) error

	// Nack schedules the delivery for redelivery after delay. The next
	// delivery of the same job carries Attempt+1.
	Nack(ctx context.Context, d *Delivery, delay time.Duration) error

	// Close releases queue resources and unblocks pending Dequeues.
	Close() error
}
