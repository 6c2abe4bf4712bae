// Package worker provides the job execution engine. An Executor runs a
// single delivery through middleware and the registered handler and
// settles it with the queue; a Pool manages the concurrent worker
// goroutines that dequeue deliveries and feed them to the Executor.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/huddlehq/huddle"
	"github.com/huddlehq/huddle/backoff"
	"github.com/huddlehq/huddle/job"
	"github.com/huddlehq/huddle/middleware"
	"github.com/huddlehq/huddle/queue"
)

// Executor loads the job record for a delivery, runs it through the
// middleware chain and the registered handler, then persists the
// outcome and settles the delivery.
type Executor struct {
	registry *job.Registry
	store    job.Store
	queue    queue.Queue
	backoff  backoff.Strategy
	mw       middleware.Middleware
	logger   *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies.
func NewExecutor(
	registry *job.Registry,
	store job.Store,
	q queue.Queue,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry: registry,
		store:    store,
		queue:    q,
		backoff:  bo,
		mw:       middleware.Chain(mws...),
		logger:   logger,
	}
}

// Execute processes a single delivery end to end.
// On success: marks the job completed with its result and acks.
// Each failure consumes one retry; while the budget holds, the job goes
// back to pending and the delivery is nacked with a backoff delay.
// The failure that exhausts the budget, or a failure retrying cannot
// fix, marks it failed and acks.
func (e *Executor) Execute(ctx context.Context, d *queue.Delivery) error {
	j, err := e.store.GetJob(ctx, d.JobID)
	if err != nil {
		if errors.Is(err, huddle.ErrJobNotFound) {
			// The record is gone; redelivering cannot bring it back.
			e.logger.Warn("dropping delivery for missing job",
				slog.String("job_id", d.JobID.String()),
			)
			return e.queue.Ack(ctx, d)
		}
		if nackErr := e.queue.Nack(ctx, d, e.backoff.Delay(d.Attempt)); nackErr != nil {
			e.logger.Error("failed to nack after store error",
				slog.String("job_id", d.JobID.String()),
				slog.String("error", nackErr.Error()),
			)
		}
		return fmt.Errorf("huddle/worker: load job: %w", err)
	}

	handler, ok := e.registry.Get(j.Type)
	if !ok {
		return e.failUnknownType(ctx, d, j)
	}

	now := time.Now().UTC()
	j.State = job.StateProcessing
	j.StartedAt = &now
	j.UpdatedAt = now
	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to mark job processing",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
	}

	runCtx := ctx
	if opts, _ := e.registry.Options(j.Type); opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	// The terminal handler that calls the registered job handler and
	// captures its result.
	var result []byte
	terminal := func(ctx context.Context) error {
		out, handlerErr := handler(ctx, j.Input)
		if handlerErr != nil {
			return handlerErr
		}
		result = out
		return nil
	}

	err = e.mw(runCtx, j, terminal)
	if err != nil {
		return e.handleFailure(ctx, d, j, err)
	}
	return e.handleSuccess(ctx, d, j, result)
}

// handleSuccess marks the job completed with its result and acks the
// delivery.
func (e *Executor) handleSuccess(ctx context.Context, d *queue.Delivery, j *job.Job, result []byte) error {
	now := time.Now().UTC()
	j.State = job.StateCompleted
	j.Result = result
	j.CompletedAt = &now
	j.UpdatedAt = now

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job after success",
			slog.String("job_id", j.ID.String()),
			slog.String("job_type", j.Type),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Info("job completed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
	)
	return e.queue.Ack(ctx, d)
}

// handleFailure records the failed attempt against the retry budget.
// The failure that reaches the budget is terminal; earlier failures
// return the job to pending for redelivery.
func (e *Executor) handleFailure(ctx context.Context, d *queue.Delivery, j *job.Job, handlerErr error) error {
	j.LastError = handlerErr.Error()
	j.Retries++

	if j.Retries >= j.MaxRetries {
		return e.failTerminal(ctx, d, j, handlerErr)
	}
	return e.scheduleRetry(ctx, d, j)
}

// scheduleRetry returns the job to pending and nacks the delivery with
// a backoff delay so it is redelivered later.
func (e *Executor) scheduleRetry(ctx context.Context, d *queue.Delivery, j *job.Job) error {
	j.State = job.StatePending
	j.StartedAt = nil
	j.UpdatedAt = time.Now().UTC()

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job for retry",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	delay := e.backoff.Delay(j.Retries)
	e.logger.Info("job scheduled for retry",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Int("attempt", j.Retries),
		slog.Int("max_retries", j.MaxRetries),
		slog.Duration("delay", delay),
	)

	return e.queue.Nack(ctx, d, delay)
}

// failTerminal marks the job failed and acks the delivery so it is
// never redelivered.
func (e *Executor) failTerminal(ctx context.Context, d *queue.Delivery, j *job.Job, handlerErr error) error {
	now := time.Now().UTC()
	j.State = job.StateFailed
	j.CompletedAt = &now
	j.UpdatedAt = now

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job as failed",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Warn("job failed after exhausting retries",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.Int("retries", j.Retries),
		slog.String("error", handlerErr.Error()),
	)

	if ackErr := e.queue.Ack(ctx, d); ackErr != nil {
		return ackErr
	}
	return fmt.Errorf("huddle/worker: job %s: %w: %w", j.Type, huddle.ErrMaxRetriesExceeded, handlerErr)
}

// failUnknownType marks a job with no registered handler as failed
// without consuming any retries. Retrying cannot fix a missing handler.
func (e *Executor) failUnknownType(ctx context.Context, d *queue.Delivery, j *job.Job) error {
	typeErr := &job.UnknownTypeError{Type: j.Type}
	now := time.Now().UTC()
	j.State = job.StateFailed
	j.LastError = typeErr.Error()
	j.CompletedAt = &now
	j.UpdatedAt = now

	if updateErr := e.store.UpdateJob(ctx, j); updateErr != nil {
		e.logger.Error("failed to update job with unknown type",
			slog.String("job_id", j.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Warn("job failed",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", j.Type),
		slog.String("error", typeErr.Error()),
	)

	if ackErr := e.queue.Ack(ctx, d); ackErr != nil {
		return ackErr
	}
	return typeErr
}
