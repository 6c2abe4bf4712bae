// Package job defines the job record, its state machine, typed
// definitions, and the store interface.
//
// # Job Record
//
// A [Job] is a persisted unit of background work. It embeds
// [huddle.Entity] for timestamps, carries a JSON input, and progresses
// through a state machine:
//
//	pending → processing → completed
//	pending → processing → pending (retry, after backoff delay)
//	pending → processing → failed
//
// Retries increment the Retries counter; once it reaches MaxRetries
// (default 3) the record lands in failed with the last handler error
// preserved. completed and failed are terminal.
//
// # Defining a Job Type
//
// Use [Definition] with a typed handler. The input is JSON-deserialized
// before the handler runs and the result serialized after:
//
//	var Summarize = job.NewDefinition("summarize",
//	    func(ctx context.Context, input SummarizeInput) (SummarizeResult, error) {
//	        return summarizer.Run(ctx, input.DocumentID)
//	    },
//	)
//
// # Registry
//
// [Registry] maps job type names to type-erased [HandlerFunc] values.
// Register definitions at startup via [RegisterDefinition]; a job whose
// type has no handler fails immediately with [UnknownTypeError], without
// consuming retries.
package job
