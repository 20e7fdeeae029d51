package graph

import (
	"context"
	"sync"
	"time"

	"github.com/forgeflow/forgeflow/graph/emit"
	"github.com/forgeflow/forgeflow/graph/store"
)

// Engine drives workflow execution from the entry step to the terminal step.
//
// The Engine:
//   - holds the step registry and the edge table
//   - executes steps strictly sequentially, one at a time
//   - persists the post-step state via the store after every hop
//   - emits observability events via the emitter
//   - checks context cancellation at every step boundary
//   - enforces the MaxSteps bound to keep cyclic graphs from running forever
//
// For a fixed initial state and deterministic steps, the path through the
// graph and the final state are fully determined by the status values the
// steps produce; the engine introduces no nondeterminism of its own.
//
// Type parameter S is the state type shared across the workflow.
//
// Example:
//
//	eng := graph.New[State](store.NewMemStore[State](), emit.NewLogEmitter(os.Stderr, false))
//	eng.Add("check", checkStep)
//	eng.Add("done", doneStep)
//	eng.Connect("check", "done")
//	eng.StartAt("check")
//	eng.FinishAt("done")
//	final, err := eng.Run(ctx, "run-001", initial)
type Engine[S any] struct {
	mu sync.RWMutex

	steps  map[string]Step[S]
	edges  map[string]edge[S]
	start  string
	finish string

	store   store.Store[S]
	emitter emit.Emitter
	metrics *Metrics
	opts    Options
}

// New creates an Engine with the given persistence store and emitter.
//
// The store is required and receives the state after every executed step.
// The emitter may be nil to disable event emission. Further behavior is
// configured through functional options:
//
//	eng := graph.New[State](st, emitter, graph.WithMaxSteps(50), graph.WithMetrics(m))
func New[S any](st store.Store[S], emitter emit.Emitter, opts ...Option) *Engine[S] {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Engine[S]{
		steps:   make(map[string]Step[S]),
		edges:   make(map[string]edge[S]),
		store:   st,
		emitter: emitter,
		metrics: cfg.metrics,
		opts:    cfg,
	}
}

// Add registers a step under a unique name.
func (e *Engine[S]) Add(name string, step Step[S]) error {
	if name == "" {
		return &EngineError{Code: CodeBadGraph, Message: "step name cannot be empty"}
	}
	if step == nil {
		return &EngineError{Code: CodeBadGraph, Message: "step cannot be nil: " + name}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.steps[name]; exists {
		return &EngineError{Code: CodeDuplicateStep, Message: "duplicate step name: " + name}
	}
	e.steps[name] = step
	return nil
}

// Connect sets the static successor of a step. A step has exactly one
// outgoing edge form: Connect and Route are mutually exclusive for the
// same source step.
func (e *Engine[S]) Connect(from, to string) error {
	if from == "" || to == "" {
		return &EngineError{Code: CodeBadGraph, Message: "edge endpoints cannot be empty"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.edges[from]; exists {
		return &EngineError{Code: CodeBadGraph, Message: "step already has an outgoing edge: " + from}
	}
	e.edges[from] = edge[S]{to: to}
	return nil
}

// Route sets a conditional edge: after the named step runs, the router
// derives the successor name from the resulting state.
func (e *Engine[S]) Route(from string, router Router[S]) error {
	if from == "" {
		return &EngineError{Code: CodeBadGraph, Message: "edge source cannot be empty"}
	}
	if router == nil {
		return &EngineError{Code: CodeBadGraph, Message: "router cannot be nil: " + from}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.edges[from]; exists {
		return &EngineError{Code: CodeBadGraph, Message: "step already has an outgoing edge: " + from}
	}
	e.edges[from] = edge[S]{router: router}
	return nil
}

// StartAt sets the entry step. The step must already be registered.
func (e *Engine[S]) StartAt(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.steps[name]; !exists {
		return &EngineError{Code: CodeStepNotFound, Message: "start step does not exist: " + name}
	}
	e.start = name
	return nil
}

// FinishAt sets the terminal step. Once it has run, execution stops and its
// resulting state is the output of the workflow.
func (e *Engine[S]) FinishAt(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.steps[name]; !exists {
		return &EngineError{Code: CodeStepNotFound, Message: "finish step does not exist: " + name}
	}
	e.finish = name
	return nil
}

// Run executes the workflow and returns the final state.
//
// Aborts, returning a zero state and an error, when:
//   - a step returns an unexpected fault (*StepError wrapping it)
//   - a router receives a status it has no mapping for (*UnroutableStateError)
//   - a non-terminal step has no outgoing edge
//   - the MaxSteps bound is exceeded
//   - the context is cancelled (checked before every step)
//
// Expected step failures do not abort: they travel through the state as
// status fields, so the caller can diagnose the first failing stage from
// the returned state of a completed run.
func (e *Engine[S]) Run(ctx context.Context, runID string, initial S) (S, error) {
	var zero S

	if e.store == nil {
		return zero, &EngineError{Code: CodeMissingStore, Message: "store is required"}
	}
	e.mu.RLock()
	start, finish := e.start, e.finish
	e.mu.RUnlock()
	if start == "" {
		return zero, &EngineError{Code: CodeNoStart, Message: "entry step not set (call StartAt before Run)"}
	}
	if finish == "" {
		return zero, &EngineError{Code: CodeNoFinish, Message: "terminal step not set (call FinishAt before Run)"}
	}

	if e.metrics != nil {
		e.metrics.runStarted()
		defer e.metrics.runEnded()
	}
	e.emit(emit.Event{RunID: runID, Msg: "workflow_start", StepName: start})

	state := initial
	current := start
	hop := 0

	for {
		hop++
		if e.opts.MaxSteps > 0 && hop > e.opts.MaxSteps {
			e.emit(emit.Event{RunID: runID, Step: hop, Msg: "workflow_aborted", Meta: map[string]any{"reason": "max steps exceeded"}})
			return zero, &EngineError{Code: CodeMaxSteps, Message: "workflow exceeded MaxSteps limit"}
		}

		// Cancellation is honored between steps, never mid-step.
		select {
		case <-ctx.Done():
			e.emit(emit.Event{RunID: runID, Step: hop, StepName: current, Msg: "workflow_cancelled"})
			return zero, ctx.Err()
		default:
		}

		e.mu.RLock()
		step, exists := e.steps[current]
		e.mu.RUnlock()
		if !exists {
			return zero, &EngineError{Code: CodeStepNotFound, Message: "step not found during execution: " + current}
		}

		e.emit(emit.Event{RunID: runID, Step: hop, StepName: current, Msg: "step_start"})
		began := time.Now()

		next, err := step.Invoke(ctx, state)
		if err != nil {
			// Unexpected fault: log and re-raise, never convert to state.
			e.observe(current, began, false)
			e.emit(emit.Event{RunID: runID, Step: hop, StepName: current, Msg: "step_fault", Meta: map[string]any{"error": err.Error()}})
			return zero, &StepError{StepName: current, Cause: err}
		}
		state = next
		e.observe(current, began, true)

		if err := e.store.SaveStep(ctx, runID, hop, current, state); err != nil {
			return zero, &EngineError{Code: CodeStoreError, Message: "failed to save step: " + err.Error()}
		}
		e.emit(emit.Event{RunID: runID, Step: hop, StepName: current, Msg: "step_complete", Meta: map[string]any{"duration_ms": time.Since(began).Milliseconds()}})

		if current == finish {
			e.emit(emit.Event{RunID: runID, Step: hop, StepName: current, Msg: "workflow_complete"})
			return state, nil
		}

		successor, err := e.resolveNext(current, state)
		if err != nil {
			e.emit(emit.Event{RunID: runID, Step: hop, StepName: current, Msg: "workflow_aborted", Meta: map[string]any{"error": err.Error()}})
			return zero, err
		}
		current = successor
	}
}

// resolveNext picks the successor of a completed step from its single
// outgoing edge, evaluating the router when the edge is conditional.
func (e *Engine[S]) resolveNext(from string, state S) (string, error) {
	e.mu.RLock()
	eg, ok := e.edges[from]
	e.mu.RUnlock()

	if !ok {
		return "", &EngineError{Code: CodeNoRoute, Message: "no outgoing edge from non-terminal step: " + from}
	}
	if eg.router == nil {
		return eg.to, nil
	}

	next, err := eg.router(state)
	if err != nil {
		var unroutable *UnroutableStateError
		if asUnroutable(err, &unroutable) && unroutable.StepName == "" {
			unroutable.StepName = from
		}
		return "", err
	}
	if next == "" {
		return "", &EngineError{Code: CodeNoRoute, Message: "router returned empty successor for step: " + from}
	}
	return next, nil
}

func (e *Engine[S]) emit(ev emit.Event) {
	if e.emitter != nil {
		e.emitter.Emit(ev)
	}
}

func (e *Engine[S]) observe(step string, began time.Time, ok bool) {
	if e.metrics != nil {
		e.metrics.observeStep(step, time.Since(began), ok)
	}
}
