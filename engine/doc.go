// Package engine wires the huddle subsystems together and provides the
// primary application-level API: job submission and processing on one
// side, the realtime presence layer on the other.
//
// The engine package exists to break a fundamental import cycle: the
// root huddle package defines Entity (imported by job, session, etc.)
// and therefore cannot import those packages back. Engine sits above
// all subsystem packages and below the application layer.
//
// # Building an Engine
//
//	eng, err := engine.New(
//	    engine.WithStore(memory.New()),
//	    engine.WithQueue(queue.NewMemory()),
//	    engine.WithBus(bus.NewRedis(client)),
//	    engine.WithAuthenticator(auth.NewJWTAuthenticator(key)),
//	    engine.WithConcurrency(20),
//	)
//
// # Registering and Enqueuing Work
//
//	engine.Register(eng, job.NewDefinition("summarize",
//	    func(ctx context.Context, in SummarizeInput) (SummarizeResult, error) {
//	        ...
//	    }))
//
//	j, err := engine.Enqueue(ctx, eng, "summarize", ownerID, SummarizeInput{Doc: docID})
//
// The built-in code-execution and data-processing definitions are
// registered on every engine.
//
// # Realtime
//
//	client, err := eng.Connect(ctx, bearerToken)
//	client.Join(ctx, workspaceID)
//	client.HandleEvent(ctx, stream.EventCursorUpdate, payload)
//
// # Options
//
//   - [WithStore] — set the job persistence backend (required)
//   - [WithQueue] — set the delivery queue (required)
//   - [WithBus] — set the cross-process event bus
//   - [WithAuthenticator] — set the realtime credential validator
//   - [WithBackoff] — set the retry backoff strategy
//   - [WithMiddleware] — add a middleware to the execution chain
//   - [WithLimits] — throttle execution pool-wide
//   - [WithTracerProvider] — set a custom OTel tracer provider
//   - [WithMeterProvider] — set a custom OTel meter provider
package engine
