// Package emit provides observability events for workflow execution.
//
// The engine and the retry supervisor report what they do through an
// Emitter. Implementations range from discarding everything (NullEmitter)
// over structured log lines (LogEmitter) to OpenTelemetry spans
// (OTelEmitter).
package emit

// Emitter receives observability events from workflow execution.
//
// Implementations must be safe for concurrent use (multiple runs may share
// one emitter), must not panic, and should not block the run; a slow or
// unavailable backend is the emitter's problem, not the workflow's.
type Emitter interface {
	Emit(event Event)
}

// Event is a single observability record.
type Event struct {
	// RunID identifies the workflow execution. Empty for events emitted
	// outside a run, such as retry attempts reported by a supervisor.
	RunID string

	// Step is the 1-indexed hop number within the run, 0 for run-level
	// events.
	Step int

	// StepName is the registered name of the step involved, empty for
	// run-level events.
	StepName string

	// Msg names what happened: workflow_start, step_start, step_complete,
	// step_fault, retry_attempt, workflow_complete, workflow_cancelled,
	// workflow_aborted.
	Msg string

	// Meta carries event-specific structured data, e.g. duration_ms,
	// error, attempt, outcome.
	Meta map[string]any
}
