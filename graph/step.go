// Package graph provides the workflow execution engine for ForgeFlow.
//
// A workflow is a directed graph of named steps. Each step receives the
// current workflow state, performs its work, and returns the updated state.
// The engine walks the graph from the configured entry step to the terminal
// step, following either a static successor edge or a router at each hop.
package graph

import "context"

// Step is a single unit of pipeline work operating on workflow state.
//
// The contract, which every pipeline stage and every wrapper satisfies:
//
//   - Invoke receives the current state and returns the updated state. The
//     returned value is authoritative; callers must use it even when the
//     implementation mutated the input in place.
//   - Expected failures (missing input, unreachable remote, bad LLM output)
//     are never returned as errors. They are reported through status and
//     message fields in the state, so the run can continue or branch on them.
//   - A non-nil error means an unexpected fault. The engine aborts the run
//     and surfaces the error to the caller.
//
// Type parameter S is the state type shared across the workflow.
type Step[S any] interface {
	Invoke(ctx context.Context, state S) (S, error)
}

// StepFunc adapts a plain function to the Step interface.
//
//	check := graph.StepFunc[State](func(ctx context.Context, s State) (State, error) {
//	    return s.WithStatus("repo_check", "success"), nil
//	})
type StepFunc[S any] func(ctx context.Context, state S) (S, error)

// Invoke implements Step.
func (f StepFunc[S]) Invoke(ctx context.Context, state S) (S, error) {
	return f(ctx, state)
}

// StepError wraps an unexpected fault raised by a step, recording which
// step produced it. The engine returns it from Run when a step's Invoke
// fails; the original error is available via Unwrap.
type StepError struct {
	// StepName is the registered name of the failing step.
	StepName string

	// Cause is the error returned by the step's Invoke.
	Cause error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return "step " + e.StepName + ": " + e.Cause.Error()
}

// Unwrap returns the underlying fault.
func (e *StepError) Unwrap() error {
	return e.Cause
}
