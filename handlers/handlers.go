// Package handlers provides the built-in job definitions every engine
// registers by default: a simulated code execution runner and a
// simulated data processing pass. Both are placeholders with stable
// result shapes that downstream consumers already depend on.
package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/huddlehq/huddle/job"
)

// Built-in job type names.
const (
	TypeCodeExecution  = "code-execution"
	TypeDataProcessing = "data-processing"
)

// Default simulation delays.
const (
	DefaultCodeExecutionDelay  = 2 * time.Second
	DefaultDataProcessingDelay = 3 * time.Second
)

// CodeExecutionInput is the payload for a code-execution job.
type CodeExecutionInput struct {
	Code string `json:"code"`
}

// CodeExecutionResult is persisted as the job result.
type CodeExecutionResult struct {
	Output        string `json:"output"`
	ExecutionTime string `json:"executionTime"`
}

// CodeExecution returns the code-execution job definition. The handler
// sleeps for delay to simulate a sandboxed run, then reports the code
// it would have executed.
func CodeExecution(delay time.Duration, opts ...job.Option) *job.Definition[CodeExecutionInput, CodeExecutionResult] {
	return job.NewDefinition(TypeCodeExecution, func(ctx context.Context, input CodeExecutionInput) (CodeExecutionResult, error) {
		if err := sleep(ctx, delay); err != nil {
			return CodeExecutionResult{}, err
		}
		return CodeExecutionResult{
			Output:        "Executed: " + input.Code,
			ExecutionTime: delay.String(),
		}, nil
	}, opts...)
}

// DataProcessingInput is the payload for a data-processing job. Items
// are opaque; only their count matters.
type DataProcessingInput struct {
	Data []json.RawMessage `json:"data"`
}

// DataProcessingResult is persisted as the job result.
type DataProcessingResult struct {
	Processed int    `json:"processed"`
	Status    string `json:"status"`
}

// DataProcessing returns the data-processing job definition. The
// handler sleeps for delay to simulate the work, then reports how many
// items it saw.
func DataProcessing(delay time.Duration, opts ...job.Option) *job.Definition[DataProcessingInput, DataProcessingResult] {
	return job.NewDefinition(TypeDataProcessing, func(ctx context.Context, input DataProcessingInput) (DataProcessingResult, error) {
		if err := sleep(ctx, delay); err != nil {
			return DataProcessingResult{}, err
		}
		return DataProcessingResult{
			Processed: len(input.Data),
			Status:    "success",
		}, nil
	}, opts...)
}

// RegisterAll registers the built-in definitions with their default
// delays.
func RegisterAll(reg *job.Registry) {
	job.RegisterDefinition(reg, CodeExecution(DefaultCodeExecutionDelay))
	job.RegisterDefinition(reg, DataProcessing(DefaultDataProcessingDelay))
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
