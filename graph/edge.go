package graph

import "fmt"

// Router decides the name of the next step purely from post-invocation
// state. Routers are used at branch points where the successor depends on
// the status a step produced.
//
// A router must be total over the set of status values its upstream step
// can produce. For any value outside that set it returns an
// *UnroutableStateError instead of defaulting to some branch; an
// unanticipated status aborts the run rather than silently executing the
// wrong step.
//
// Routers should be pure: deterministic and free of side effects.
type Router[S any] func(state S) (string, error)

// UnroutableStateError reports a status value a router has no mapping for.
// The engine fills in StepName (the step whose outgoing router failed)
// before aborting the run.
type UnroutableStateError struct {
	// StepName is the step whose router could not resolve a successor.
	// Empty when the error is constructed inside a router; the engine
	// sets it during Run.
	StepName string

	// Key is the state field the router inspected, e.g. "repo_check_status".
	Key string

	// Value is the offending status value.
	Value string
}

// Error implements the error interface.
func (e *UnroutableStateError) Error() string {
	if e.StepName != "" {
		return fmt.Sprintf("unroutable state after step %q: %s=%q has no mapped successor", e.StepName, e.Key, e.Value)
	}
	return fmt.Sprintf("unroutable state: %s=%q has no mapped successor", e.Key, e.Value)
}

// edge is the single outgoing transition of a step: a static successor or a
// router, never both. The engine enforces the exclusivity at construction.
type edge[S any] struct {
	to     string
	router Router[S]
}
