package worker_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huddlehq/huddle/backoff"
	"github.com/huddlehq/huddle/id"
	"github.com/huddlehq/huddle/job"
	"github.com/huddlehq/huddle/middleware"
	"github.com/huddlehq/huddle/queue"
	"github.com/huddlehq/huddle/store/memory"
	"github.com/huddlehq/huddle/worker"
)

func setupTestPool(t *testing.T, concurrency int, opts ...worker.PoolOption) (
	*worker.Pool, *memory.Store, *queue.Memory, *job.Registry,
) {
	t.Helper()
	logger := testLogger()
	s := memory.New()
	q := queue.NewMemory()
	t.Cleanup(func() { _ = q.Close() })
	reg := job.NewRegistry()

	bo := backoff.NewConstant(10 * time.Millisecond)
	executor := worker.NewExecutor(
		reg, s, q, bo, logger,
		middleware.Recover(logger),
	)

	opts = append([]worker.PoolOption{
		worker.WithPoolConcurrency(concurrency),
		worker.WithThrottleDelay(10 * time.Millisecond),
	}, opts...)
	pool := worker.NewPool(s, q, executor, logger, opts...)

	return pool, s, q, reg
}

func stopPool(t *testing.T, pool *worker.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("stop error: %v", err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for condition")
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestPool_StartStop(t *testing.T) {
	pool, _, _, _ := setupTestPool(t, 2)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected start error: %v", err)
	}

	// Double start should be no-op.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("unexpected double-start error: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected stop error: %v", err)
	}

	// Double stop should be no-op.
	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("unexpected double-stop error: %v", err)
	}
}

func TestPool_ProcessesJob(t *testing.T) {
	pool, s, q, reg := setupTestPool(t, 1)

	type in struct {
		Name string `json:"name"`
	}
	type out struct {
		Greeting string `json:"greeting"`
	}
	var processed atomic.Bool
	job.RegisterDefinition(reg, job.NewDefinition("greet", func(_ context.Context, input in) (out, error) {
		if input.Name != "Alice" {
			t.Errorf("input.Name = %q, want %q", input.Name, "Alice")
		}
		processed.Store(true)
		return out{Greeting: "hello Alice"}, nil
	}))

	j := job.New("greet", "user-a", json.RawMessage(`{"name":"Alice"}`))
	submit(t, s, q, j)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, processed.Load)

	// The state update races the processed flag; wait for the terminal
	// state rather than sleeping.
	waitFor(t, func() bool {
		got, err := s.GetJob(context.Background(), j.ID)
		return err == nil && got.State == job.StateCompleted
	})
	stopPool(t, pool)

	got, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get job error: %v", err)
	}
	if got.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if string(got.Result) != `{"greeting":"hello Alice"}` {
		t.Errorf("result = %s", got.Result)
	}
}

func TestPool_RetriesUntilFailed(t *testing.T) {
	pool, s, q, reg := setupTestPool(t, 1)

	var calls atomic.Int32
	job.RegisterDefinition(reg, job.NewDefinition("doomed", func(_ context.Context, _ struct{}) (string, error) {
		calls.Add(1)
		return "", context.DeadlineExceeded
	}))

	j := job.New("doomed", "user-a", nil)
	j.MaxRetries = 2
	submit(t, s, q, j)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, func() bool {
		got, err := s.GetJob(context.Background(), j.ID)
		return err == nil && got.State == job.StateFailed
	})

	// The failed job must stay failed with no extra handler runs.
	time.Sleep(50 * time.Millisecond)
	stopPool(t, pool)

	got, err := s.GetJob(context.Background(), j.ID)
	if err != nil {
		t.Fatalf("get job error: %v", err)
	}
	if got.Retries != 2 {
		t.Errorf("retries = %d, want 2", got.Retries)
	}
	if got.LastError == "" {
		t.Error("expected LastError to be set")
	}
	if calls.Load() != 2 {
		t.Errorf("handler calls = %d, want 2", calls.Load())
	}
}

func TestPool_ConcurrentJobs(t *testing.T) {
	pool, s, q, reg := setupTestPool(t, 4)

	var done atomic.Int32
	job.RegisterDefinition(reg, job.NewDefinition("count", func(_ context.Context, _ struct{}) (string, error) {
		done.Add(1)
		return "ok", nil
	}))

	const n = 20
	for range n {
		submit(t, s, q, job.New("count", "user-a", nil))
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, func() bool { return done.Load() == n })
	stopPool(t, pool)

	count, err := s.CountJobs(context.Background(), job.CountOpts{State: job.StateCompleted})
	if err != nil {
		t.Fatalf("count error: %v", err)
	}
	if count != n {
		t.Errorf("completed jobs = %d, want %d", count, n)
	}
}

func TestPool_LimiterThrottles(t *testing.T) {
	limiter := queue.NewLimiter(queue.LimitConfig{MaxConcurrency: 1})
	pool, s, q, reg := setupTestPool(t, 4, worker.WithLimiter(limiter))

	var active, peak, done atomic.Int32
	job.RegisterDefinition(reg, job.NewDefinition("serial", func(_ context.Context, _ struct{}) (string, error) {
		cur := active.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		active.Add(-1)
		done.Add(1)
		return "ok", nil
	}))

	const n = 6
	for range n {
		submit(t, s, q, job.New("serial", "user-a", nil))
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, func() bool { return done.Load() == n })
	stopPool(t, pool)

	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestPool_Restart(t *testing.T) {
	pool, s, q, reg := setupTestPool(t, 2)

	var done atomic.Int32
	job.RegisterDefinition(reg, job.NewDefinition("ping", func(_ context.Context, _ struct{}) (string, error) {
		done.Add(1)
		return "pong", nil
	}))

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	submit(t, s, q, job.New("ping", "user-a", nil))
	waitFor(t, func() bool { return done.Load() == 1 })
	stopPool(t, pool)

	// A stopped pool must come back up and keep processing.
	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("restart error: %v", err)
	}
	submit(t, s, q, job.New("ping", "user-a", nil))
	waitFor(t, func() bool { return done.Load() == 2 })
	stopPool(t, pool)
}

// countingStore records how often job records are loaded.
type countingStore struct {
	*memory.Store
	gets atomic.Int32
}

func (c *countingStore) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	c.gets.Add(1)
	return c.Store.GetJob(ctx, jobID)
}

func TestPool_NoLimiterSkipsOwnerLookup(t *testing.T) {
	logger := testLogger()
	s := &countingStore{Store: memory.New()}
	q := queue.NewMemory()
	t.Cleanup(func() { _ = q.Close() })
	reg := job.NewRegistry()

	executor := worker.NewExecutor(reg, s, q, backoff.NewConstant(10*time.Millisecond), logger)
	pool := worker.NewPool(s, q, executor, logger,
		worker.WithPoolConcurrency(1),
		worker.WithThrottleDelay(10*time.Millisecond),
	)

	var done atomic.Bool
	job.RegisterDefinition(reg, job.NewDefinition("plain", func(_ context.Context, _ struct{}) (string, error) {
		done.Store(true)
		return "ok", nil
	}))

	j := job.New("plain", "user-a", nil)
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("create job: %v", err)
	}
	if err := q.Enqueue(context.Background(), j.ID); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}
	waitFor(t, done.Load)
	stopPool(t, pool)

	// Only the executor's load should hit the store when no limiter is
	// configured.
	if got := s.gets.Load(); got != 1 {
		t.Errorf("GetJob calls = %d, want 1", got)
	}
}

func TestPool_GracefulShutdown(t *testing.T) {
	pool, _, _, _ := setupTestPool(t, 4)

	if err := pool.Start(context.Background()); err != nil {
		t.Fatalf("start error: %v", err)
	}

	// Let workers block on their dequeues.
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := pool.Stop(ctx); err != nil {
		t.Fatalf("graceful shutdown failed: %v", err)
	}
}
