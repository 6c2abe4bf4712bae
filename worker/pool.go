package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/huddlehq/huddle/id"
	"github.com/huddlehq/huddle/job"
	"github.com/huddlehq/huddle/queue"
)

// Limiter throttles job execution pool-wide and per owner. The worker
// pool calls Acquire before executing a dequeued delivery and Release
// after it settles.
type Limiter interface {
	// Acquire checks rate limits and concurrency for the owner. Returns
	// true if the job is allowed to proceed.
	Acquire(ownerID string) bool
	// Release decrements the active count for the owner.
	Release(ownerID string)
}

// Pool manages a set of concurrent worker goroutines that dequeue
// deliveries and execute them through the Executor.
type Pool struct {
	store         job.Store
	queue         queue.Queue
	executor      *Executor
	concurrency   int
	throttleDelay time.Duration
	workerID      id.WorkerID
	logger        *slog.Logger

	// Limiter (optional).
	limiter Limiter

	stopCh     chan struct{}
	cancelDeq  context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
	activeJobs map[string]context.CancelFunc
	activeMu   sync.Mutex
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of concurrent worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) { p.concurrency = n }
}

// WithThrottleDelay sets how long a rate-limited delivery waits before
// redelivery, and how long a worker backs off after a dequeue error.
func WithThrottleDelay(d time.Duration) PoolOption {
	return func(p *Pool) { p.throttleDelay = d }
}

// WithLimiter sets the limiter for rate limiting and concurrency
// control.
func WithLimiter(l Limiter) PoolOption {
	return func(p *Pool) { p.limiter = l }
}

// NewPool creates a worker pool.
func NewPool(
	store job.Store,
	q queue.Queue,
	executor *Executor,
	logger *slog.Logger,
	opts ...PoolOption,
) *Pool {
	p := &Pool{
		store:         store,
		queue:         q,
		executor:      executor,
		concurrency:   10,
		throttleDelay: time.Second,
		workerID:      id.NewWorkerID(),
		logger:        logger,
		stopCh:        make(chan struct{}),
		activeJobs:    make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WorkerID returns the pool's unique worker identifier.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	// Stop closes stopCh, so a restarted pool needs a fresh one. Stop
	// waits for every worker goroutine, so nothing reads the old channel
	// by the time we get here.
	p.stopCh = make(chan struct{})

	deqCtx, cancel := context.WithCancel(context.Background())
	p.cancelDeq = cancel

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.dequeueLoop(deqCtx)
	}

	return nil
}

// Stop signals all workers to stop and waits for them to finish.
// If the context has a deadline, active jobs are cancelled when time runs out.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	cancel := p.cancelDeq
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))

	// Signal all workers to stop and unblock pending dequeues.
	close(p.stopCh)
	cancel()

	// Wait for completion or context deadline.
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("worker pool stopped gracefully")
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling active jobs")
		p.cancelActiveJobs()
		p.wg.Wait()
	}

	return nil
}

// dequeueLoop is run by each worker goroutine.
func (p *Pool) dequeueLoop(deqCtx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		d, err := p.queue.Dequeue(deqCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, queue.ErrClosed) {
				return
			}
			p.logger.Error("dequeue error", slog.String("error", err.Error()))
			p.sleep()
			continue
		}

		// Check owner rate limit and concurrency. The owner lookup costs
		// a store round-trip, so skip it entirely when unthrottled.
		var ownerID string
		if p.limiter != nil {
			ownerID = p.ownerOf(deqCtx, d.JobID)
			if !p.limiter.Acquire(ownerID) {
				if nackErr := p.queue.Nack(context.Background(), d, p.throttleDelay); nackErr != nil {
					p.logger.Error("failed to requeue rate-limited delivery",
						slog.String("job_id", d.JobID.String()),
						slog.String("error", nackErr.Error()),
					)
				}
				p.sleep()
				continue
			}
		}

		// Execution is detached from the dequeue context so a stopping
		// pool can still drain the job it is holding.
		ctx, cancel := context.WithCancel(context.Background())
		p.trackJob(d.JobID.String(), cancel)

		execErr := p.executor.Execute(ctx, d)
		if execErr != nil {
			p.logger.Debug("job execution failed",
				slog.String("job_id", d.JobID.String()),
				slog.String("error", execErr.Error()),
			)
		}

		p.untrackJob(d.JobID.String())
		cancel()

		// Release the owner slot.
		if p.limiter != nil {
			p.limiter.Release(ownerID)
		}
	}
}

// ownerOf resolves the submitting user for a delivery so the limiter
// can throttle per owner. Best effort: a missing record throttles at
// the pool level only, and the executor reports the miss properly.
func (p *Pool) ownerOf(ctx context.Context, jobID id.JobID) string {
	j, err := p.store.GetJob(ctx, jobID)
	if err != nil {
		return ""
	}
	return j.OwnerID
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.throttleDelay):
	case <-p.stopCh:
	}
}

func (p *Pool) trackJob(jobID string, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.activeJobs[jobID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrackJob(jobID string) {
	p.activeMu.Lock()
	delete(p.activeJobs, jobID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelActiveJobs() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for jobID, cancel := range p.activeJobs {
		p.logger.Warn("cancelling active job", slog.String("job_id", jobID))
		cancel()
	}
}
