package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/huddlehq/huddle"
	"github.com/huddlehq/huddle/auth"
	"github.com/huddlehq/huddle/backoff"
	"github.com/huddlehq/huddle/bus"
	"github.com/huddlehq/huddle/handlers"
	"github.com/huddlehq/huddle/id"
	"github.com/huddlehq/huddle/job"
	mw "github.com/huddlehq/huddle/middleware"
	"github.com/huddlehq/huddle/presence"
	"github.com/huddlehq/huddle/queue"
	"github.com/huddlehq/huddle/worker"
)

// Engine is the central coordinator: it accepts job submissions,
// processes them through the worker pool, and runs the realtime
// presence layer over the event bus.
type Engine struct {
	cfg      huddle.Config
	logger   *slog.Logger
	store    job.Store
	queue    queue.Queue
	bus      bus.Bus
	authn    auth.Authenticator
	registry *job.Registry
	bo       backoff.Strategy
	mws      []mw.Middleware
	limiter  *queue.Limiter

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	pool        *worker.Pool
	coordinator *presence.Coordinator

	mu      sync.Mutex
	started bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig sets the engine configuration. Defaults come from
// huddle.DefaultConfig.
func WithConfig(cfg huddle.Config) Option {
	return func(eng *Engine) { eng.cfg = cfg }
}

// WithLogger sets the structured logger for the engine.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) { eng.logger = l }
}

// WithStore sets the job persistence backend. Required.
func WithStore(s job.Store) Option {
	return func(eng *Engine) { eng.store = s }
}

// WithQueue sets the delivery queue. Required.
func WithQueue(q queue.Queue) Option {
	return func(eng *Engine) { eng.queue = q }
}

// WithBus sets the cross-process event bus. Defaults to an in-process
// bus, which is only suitable for single-node deployments and tests.
func WithBus(b bus.Bus) Option {
	return func(eng *Engine) { eng.bus = b }
}

// WithAuthenticator sets the credential validator for realtime
// connects. Defaults to the noop authenticator, which accepts any
// token.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(eng *Engine) { eng.authn = a }
}

// WithBackoff sets the retry backoff strategy. If not set, exponential
// backoff with the configured base is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) { eng.bo = b }
}

// WithMiddleware adds middleware to the engine's chain, after the
// built-in middleware.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) { eng.mws = append(eng.mws, m) }
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) { eng.tracerProvider = tp }
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) { eng.meterProvider = mp }
}

// WithLimits configures pool-wide execution throttling.
func WithLimits(cfg queue.LimitConfig) Option {
	return func(eng *Engine) { eng.limiter = queue.NewLimiter(cfg) }
}

// WithConcurrency overrides the configured worker count.
func WithConcurrency(n int) Option {
	return func(eng *Engine) { eng.cfg.Concurrency = n }
}

// New creates an Engine. A store and a queue are required; everything
// else has a default. The built-in job definitions are registered
// before any options run, so callers may override them.
func New(opts ...Option) (*Engine, error) {
	eng := &Engine{
		cfg:      huddle.DefaultConfig(),
		logger:   slog.Default(),
		registry: job.NewRegistry(),
	}
	handlers.RegisterAll(eng.registry)

	for _, opt := range opts {
		opt(eng)
	}

	if eng.store == nil {
		return nil, huddle.ErrNoStore
	}
	if eng.queue == nil {
		return nil, huddle.ErrNoQueue
	}
	if eng.bus == nil {
		eng.bus = bus.NewMemory()
	}
	if eng.authn == nil {
		eng.authn = &auth.NoopAuthenticator{}
	}
	if eng.bo == nil {
		eng.bo = backoff.NewExponential(eng.cfg.BackoffBase, time.Minute)
	}

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer("github.com/huddlehq/huddle"))
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter("github.com/huddlehq/huddle"))
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging →
	// owner, then caller-supplied middleware.
	allMws := make([]mw.Middleware, 0, 5+len(eng.mws))
	allMws = append(allMws,
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Owner(),
	)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(eng.registry, eng.store, eng.queue, eng.bo, eng.logger, allMws...)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(eng.cfg.Concurrency),
		worker.WithThrottleDelay(eng.cfg.PollInterval),
	}
	if eng.limiter != nil {
		poolOpts = append(poolOpts, worker.WithLimiter(eng.limiter))
	}
	eng.pool = worker.NewPool(eng.store, eng.queue, executor, eng.logger, poolOpts...)

	eng.coordinator = presence.NewCoordinator(eng.bus, eng.authn,
		presence.WithChannel(eng.cfg.BusChannel),
		presence.WithLogger(eng.logger),
	)

	return eng, nil
}

// Register registers a typed job definition with the engine.
func Register[T, R any](eng *Engine, def *job.Definition[T, R]) {
	job.RegisterDefinition(eng.registry, def)
}

// Enqueue creates and enqueues a job with a typed payload, owned by the
// submitting user.
func Enqueue[T any](ctx context.Context, eng *Engine, typ, ownerID string, payload T, opts ...job.Option) (*job.Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("huddle/engine: marshal payload for job %q: %w", typ, err)
	}
	return eng.EnqueueRaw(ctx, typ, ownerID, data, opts...)
}

// EnqueueRaw enqueues a job with a pre-serialized payload. The retry
// budget defaults to the registered definition's, falling back to the
// engine configuration; explicit options override both.
func (eng *Engine) EnqueueRaw(ctx context.Context, typ, ownerID string, input []byte, opts ...job.Option) (*job.Job, error) {
	jobOpts := job.Options{MaxRetries: eng.cfg.MaxRetries}
	if regOpts, ok := eng.registry.Options(typ); ok {
		jobOpts = regOpts
	}
	for _, opt := range opts {
		opt(&jobOpts)
	}

	j := job.New(typ, ownerID, input)
	j.MaxRetries = jobOpts.MaxRetries

	if err := eng.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}
	if err := eng.queue.Enqueue(ctx, j.ID); err != nil {
		if delErr := eng.store.DeleteJob(ctx, j.ID); delErr != nil {
			eng.logger.Warn("failed to remove unqueued job record",
				slog.String("job_id", j.ID.String()),
				slog.String("error", delErr.Error()),
			)
		}
		return nil, fmt.Errorf("huddle/engine: enqueue job %q: %w", typ, err)
	}

	eng.logger.Info("job enqueued",
		slog.String("job_id", j.ID.String()),
		slog.String("job_type", typ),
		slog.String("owner_id", ownerID),
	)
	return j, nil
}

// Job returns a job record by ID.
func (eng *Engine) Job(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return eng.store.GetJob(ctx, jobID)
}

// ListJobs returns job records in the given state, newest first.
func (eng *Engine) ListJobs(ctx context.Context, state job.State, opts job.ListOpts) ([]*job.Job, error) {
	return eng.store.ListJobsByState(ctx, state, opts)
}

// Connect authenticates a realtime credential and returns a client
// bound to a new session.
func (eng *Engine) Connect(ctx context.Context, token string) (*presence.Client, error) {
	return eng.coordinator.Connect(ctx, token)
}

// Start begins job processing and bus replay. Calling Start on a
// started engine returns ErrEngineStarted.
func (eng *Engine) Start(ctx context.Context) error {
	eng.mu.Lock()
	defer eng.mu.Unlock()

	if eng.started {
		return huddle.ErrEngineStarted
	}
	if err := eng.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("huddle/engine: start presence coordinator: %w", err)
	}
	if err := eng.pool.Start(ctx); err != nil {
		return fmt.Errorf("huddle/engine: start worker pool: %w", err)
	}
	eng.started = true
	return nil
}

// Stop gracefully shuts down the engine: the worker pool drains, the
// presence coordinator detaches from the bus, and the queue and store
// are closed. If ctx has no deadline the configured shutdown timeout
// applies.
func (eng *Engine) Stop(ctx context.Context) error {
	eng.mu.Lock()
	if !eng.started {
		eng.mu.Unlock()
		return nil
	}
	eng.started = false
	eng.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && eng.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.cfg.ShutdownTimeout)
		defer cancel()
	}

	if err := eng.pool.Stop(ctx); err != nil {
		eng.logger.Error("pool stop error", slog.String("error", err.Error()))
	}
	if err := eng.coordinator.Stop(ctx); err != nil {
		eng.logger.Error("presence coordinator stop error", slog.String("error", err.Error()))
	}
	if err := eng.queue.Close(); err != nil {
		eng.logger.Error("queue close error", slog.String("error", err.Error()))
	}
	return eng.store.Close()
}

// Registry returns the job registry.
func (eng *Engine) Registry() *job.Registry { return eng.registry }

// Presence returns the presence coordinator.
func (eng *Engine) Presence() *presence.Coordinator { return eng.coordinator }

// Bus returns the event bus.
func (eng *Engine) Bus() bus.Bus { return eng.bus }

// Limiter returns the execution limiter, or nil if no limits were
// configured.
func (eng *Engine) Limiter() *queue.Limiter { return eng.limiter }
