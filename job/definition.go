package job

import "context"

// Definition is a typed job definition with a handler function.
// T is the input type and R the result type; both must be
// JSON-serializable.
type Definition[T, R any] struct {
	// Type is the unique name for this job type.
	Type string

	// Handler processes the job input and returns a result to persist on
	// the completed record.
	Handler func(ctx context.Context, input T) (R, error)

	// Opts configures the retry budget and handler timeout.
	Opts Options
}

// NewDefinition creates a typed job definition.
func NewDefinition[T, R any](typ string, handler func(ctx context.Context, input T) (R, error), opts ...Option) *Definition[T, R] {
	def := &Definition[T, R]{
		Type:    typ,
		Handler: handler,
		Opts:    DefaultOptions(),
	}
	for _, opt := range opts {
		opt(&def.Opts)
	}
	return def
}
