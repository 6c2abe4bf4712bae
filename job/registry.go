package job

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// UnknownTypeError indicates a job named a type no handler is registered
// for. It is fatal: the job fails immediately without consuming retries.
type UnknownTypeError struct {
	Type string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("Unknown job type: %s", e.Type)
}

// HandlerFunc is a type-erased job handler. It receives the job's raw
// input and returns the raw result persisted on the record. The typed
// Definition[T, R] is converted to a HandlerFunc at registration time by
// closing over JSON codec calls and the typed handler.
type HandlerFunc func(ctx context.Context, input []byte) ([]byte, error)

type registration struct {
	handler HandlerFunc
	opts    Options
}

// Registry maps job type names to type-erased handler functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]registration
}

// NewRegistry creates an empty job registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]registration),
	}
}

// Register registers a raw handler under a type name with default
// options, replacing any previous handler for that name.
func (r *Registry) Register(typ string, h HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typ] = registration{handler: h, opts: DefaultOptions()}
}

// RegisterDefinition registers a typed job definition. The generic
// handler is wrapped in a closure that JSON-unmarshals the input into T
// before the typed handler runs and JSON-marshals its R result after.
//
// This is a package-level generic function because Go does not allow
// generic methods on non-generic receiver types.
func RegisterDefinition[T, R any](r *Registry, def *Definition[T, R]) {
	handler := func(ctx context.Context, input []byte) ([]byte, error) {
		var t T
		if len(input) > 0 {
			if err := json.Unmarshal(input, &t); err != nil {
				return nil, fmt.Errorf("unmarshal input for job type %q: %w", def.Type, err)
			}
		}
		res, err := def.Handler(ctx, t)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(res)
		if err != nil {
			return nil, fmt.Errorf("marshal result for job type %q: %w", def.Type, err)
		}
		return out, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[def.Type] = registration{handler: handler, opts: def.Opts}
}

// Get returns the handler for the given job type name.
// Returns false if no handler is registered.
func (r *Registry) Get(typ string) (HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[typ]
	return reg.handler, ok
}

// Options returns the options the given job type was registered with.
// Returns false if no handler is registered.
func (r *Registry) Options(typ string) (Options, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.handlers[typ]
	return reg.opts, ok
}

// Types returns all registered job type names.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for typ := range r.handlers {
		types = append(types, typ)
	}
	return types
}
