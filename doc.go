// Package huddle is the realtime and background-execution core of a
// collaborative-workspace backend. It keeps concurrently connected clients
// synchronized on shared workspace state and runs long-lived work outside
// the request path with bounded, backed-off retries.
//
// Huddle is a library, not a service. The surrounding HTTP CRUD layer,
// schema validation, and record persistence are external collaborators;
// import huddle, configure a job store, queue, and event bus, register job
// handlers, and drive connections through the presence coordinator.
//
// # Quick Start
//
//	eng, err := engine.New(
//	    engine.WithStore(memory.New()),
//	    engine.WithQueue(queue.NewMemory()),
//	    engine.WithBus(bus.NewMemory()),
//	)
//
// # Architecture
//
// Each subsystem defines its own contract: session.Registry owns connection
// membership, stream.Broadcaster fans events out to room members, bus.Bus
// mirrors events across processes, queue.Queue owns redelivery policy, and
// worker.Pool executes handlers and reports success or failure back to the
// queue. The engine package wires them together; this root package holds
// the shared Entity base, configuration, and sentinel errors.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package huddle
