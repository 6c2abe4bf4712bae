// Package queue hands job IDs to workers with at-least-once delivery
// and delayed redelivery for retries.
//
// A [Queue] carries IDs only; the job record itself lives in a
// job.Store. A dequeued delivery is exclusive until the worker settles
// it: [Queue.Ack] retires the job, [Queue.Nack] schedules it for
// redelivery after a backoff delay with an incremented attempt count.
//
// Two implementations are provided. [Memory] is a single-process FIFO
// with an in-memory delay lane, used in tests and single-node
// deployments. [Redis] spreads one queue across processes using a List
// for ready items (BRPOP gives each item to exactly one worker), a
// Sorted Set scored by maturity time for delayed redeliveries, and a
// Hash for per-job attempt counts.
//
// # Throttling
//
// [Limiter] enforces pool-wide and per-owner rate and concurrency
// limits at execution time, using a token-bucket rate limiter
// (golang.org/x/time/rate) and an active-count gate:
//
//	l := queue.NewLimiter(queue.LimitConfig{MaxConcurrency: 10})
//	if l.Acquire(j.OwnerID) {
//	    defer l.Release(j.OwnerID)
//	    // run the handler
//	}
package queue
