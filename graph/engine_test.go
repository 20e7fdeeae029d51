package graph

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/forgeflow/forgeflow/graph/emit"
	"github.com/forgeflow/forgeflow/graph/store"
)

// testState is the workflow state used across the package tests. It keeps
// a status map plus a visit trail so tests can assert both routing and
// execution order.
type testState struct {
	Statuses map[string]string
	Trail    []string
	Counter  int
}

func (s testState) StatusValue(key string) string {
	return s.Statuses[key]
}

func (s testState) WithFailure(statusKey, retryMessage string) testState {
	next := s.withStatus(statusKey, "failed")
	next.Statuses["retry_status"] = retryMessage
	return next
}

func (s testState) withStatus(key, value string) testState {
	next := s
	next.Statuses = make(map[string]string, len(s.Statuses)+1)
	for k, v := range s.Statuses {
		next.Statuses[k] = v
	}
	next.Statuses[key] = value
	return next
}

func (s testState) visited(name string) testState {
	next := s
	next.Trail = append(append([]string(nil), s.Trail...), name)
	return next
}

// trailStep records its name on the state and applies fn when given.
func trailStep(name string, fn func(testState) testState) Step[testState] {
	return StepFunc[testState](func(_ context.Context, s testState) (testState, error) {
		s = s.visited(name)
		if fn != nil {
			s = fn(s)
		}
		return s, nil
	})
}

func linearEngine(t *testing.T, names ...string) (*Engine[testState], *emit.BufferedEmitter) {
	t.Helper()
	emitter := emit.NewBufferedEmitter()
	eng := New[testState](store.NewMemStore[testState](), emitter)
	for _, name := range names {
		if err := eng.Add(name, trailStep(name, nil)); err != nil {
			t.Fatalf("Add(%s): %v", name, err)
		}
	}
	for i := 0; i+1 < len(names); i++ {
		if err := eng.Connect(names[i], names[i+1]); err != nil {
			t.Fatalf("Connect(%s, %s): %v", names[i], names[i+1], err)
		}
	}
	if err := eng.StartAt(names[0]); err != nil {
		t.Fatalf("StartAt: %v", err)
	}
	if err := eng.FinishAt(names[len(names)-1]); err != nil {
		t.Fatalf("FinishAt: %v", err)
	}
	return eng, emitter
}

func TestEngineRunLinear(t *testing.T) {
	eng, emitter := linearEngine(t, "a", "b", "c")

	final, err := eng.Run(context.Background(), "run-linear", testState{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"a", "b", "c"}
	if len(final.Trail) != len(want) {
		t.Fatalf("trail = %v, want %v", final.Trail, want)
	}
	for i, name := range want {
		if final.Trail[i] != name {
			t.Errorf("trail[%d] = %s, want %s", i, final.Trail[i], name)
		}
	}

	var msgs []string
	for _, ev := range emitter.Events() {
		msgs = append(msgs, ev.Msg)
	}
	first, last := msgs[0], msgs[len(msgs)-1]
	if first != "workflow_start" {
		t.Errorf("first event = %s, want workflow_start", first)
	}
	if last != "workflow_complete" {
		t.Errorf("last event = %s, want workflow_complete", last)
	}
}

func TestEngineRunDeterministic(t *testing.T) {
	// Same initial state, same graph: byte-identical trails across runs.
	var trails [][]string
	for i := 0; i < 3; i++ {
		eng, _ := linearEngine(t, "a", "b", "c", "d")
		final, err := eng.Run(context.Background(), "run-det", testState{})
		if err != nil {
			t.Fatalf("Run #%d: %v", i, err)
		}
		trails = append(trails, final.Trail)
	}
	for i := 1; i < len(trails); i++ {
		if strings.Join(trails[i], ",") != strings.Join(trails[0], ",") {
			t.Errorf("run %d trail %v differs from run 0 trail %v", i, trails[i], trails[0])
		}
	}
}

func TestEngineStepFault(t *testing.T) {
	boom := errors.New("boom")
	emitter := emit.NewBufferedEmitter()
	eng2 := New[testState](store.NewMemStore[testState](), emitter)
	eng2.Add("a", trailStep("a", nil))
	eng2.Add("b", StepFunc[testState](func(context.Context, testState) (testState, error) {
		return testState{}, boom
	}))
	eng2.Add("c", trailStep("c", nil))
	eng2.Connect("a", "b")
	eng2.Connect("b", "c")
	eng2.StartAt("a")
	eng2.FinishAt("c")

	_, err := eng2.Run(context.Background(), "run-fault", testState{})
	if err == nil {
		t.Fatal("expected error from faulting step")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("error = %T, want *StepError", err)
	}
	if stepErr.StepName != "b" {
		t.Errorf("StepName = %s, want b", stepErr.StepName)
	}
	if !errors.Is(err, boom) {
		t.Error("StepError should wrap the step's cause")
	}

	faulted := false
	for _, ev := range emitter.Events() {
		if ev.Msg == "step_fault" && ev.StepName == "b" {
			faulted = true
		}
	}
	if !faulted {
		t.Error("expected a step_fault event for b")
	}
}

func TestEngineNoRoute(t *testing.T) {
	eng := New[testState](store.NewMemStore[testState](), nil)
	eng.Add("a", trailStep("a", nil))
	eng.Add("z", trailStep("z", nil))
	// a has no outgoing edge and is not the terminal step.
	eng.StartAt("a")
	eng.FinishAt("z")

	_, err := eng.Run(context.Background(), "run-noroute", testState{})
	var engErr *EngineError
	if !errors.As(err, &engErr) || engErr.Code != CodeNoRoute {
		t.Fatalf("err = %v, want EngineError with code %s", err, CodeNoRoute)
	}
}

func TestEngineMaxSteps(t *testing.T) {
	eng := New[testState](store.NewMemStore[testState](), nil, WithMaxSteps(5))
	eng.Add("loop", trailStep("loop", nil))
	eng.Add("end", trailStep("end", nil))
	eng.Connect("loop", "loop")
	eng.StartAt("loop")
	eng.FinishAt("end")

	_, err := eng.Run(context.Background(), "run-loop", testState{})
	var engErr *EngineError
	if !errors.As(err, &engErr) || engErr.Code != CodeMaxSteps {
		t.Fatalf("err = %v, want EngineError with code %s", err, CodeMaxSteps)
	}
}

func TestEngineCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	eng := New[testState](store.NewMemStore[testState](), nil)
	eng.Add("a", StepFunc[testState](func(_ context.Context, s testState) (testState, error) {
		cancel() // cancel mid-run; the engine checks at the next boundary
		return s.visited("a"), nil
	}))
	eng.Add("b", trailStep("b", nil))
	eng.Connect("a", "b")
	eng.StartAt("a")
	eng.FinishAt("b")

	_, err := eng.Run(ctx, "run-cancel", testState{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestEngineRoutedBranch(t *testing.T) {
	build := func(status string) (*Engine[testState], error) {
		eng := New[testState](store.NewMemStore[testState](), nil)
		eng.Add("gate", trailStep("gate", func(s testState) testState {
			return s.withStatus("gate_status", status)
		}))
		eng.Add("left", trailStep("left", nil))
		eng.Add("right", trailStep("right", nil))
		eng.Add("end", trailStep("end", nil))
		eng.Route("gate", func(s testState) (string, error) {
			switch s.StatusValue("gate_status") {
			case "success":
				return "left", nil
			case "failed":
				return "right", nil
			default:
				return "", &UnroutableStateError{Key: "gate_status", Value: s.StatusValue("gate_status")}
			}
		})
		eng.Connect("left", "end")
		eng.Connect("right", "end")
		eng.StartAt("gate")
		eng.FinishAt("end")
		final, err := eng.Run(context.Background(), "run-branch-"+status, testState{})
		if err != nil {
			return nil, err
		}
		visited := strings.Join(final.Trail, ",")
		switch status {
		case "success":
			if visited != "gate,left,end" {
				return nil, errors.New("success route visited " + visited)
			}
		case "failed":
			if visited != "gate,right,end" {
				return nil, errors.New("failed route visited " + visited)
			}
		}
		return eng, nil
	}

	t.Run("success routes left", func(t *testing.T) {
		if _, err := build("success"); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("failed routes right", func(t *testing.T) {
		if _, err := build("failed"); err != nil {
			t.Fatal(err)
		}
	})
	t.Run("unknown status aborts with unroutable error", func(t *testing.T) {
		_, err := build("weird")
		var unroutable *UnroutableStateError
		if !errors.As(err, &unroutable) {
			t.Fatalf("err = %v, want *UnroutableStateError", err)
		}
		if unroutable.StepName != "gate" {
			t.Errorf("StepName = %s, want gate", unroutable.StepName)
		}
		if unroutable.Value != "weird" {
			t.Errorf("Value = %s, want weird", unroutable.Value)
		}
	})
}

func TestEngineGraphValidation(t *testing.T) {
	t.Run("duplicate step name", func(t *testing.T) {
		eng := New[testState](store.NewMemStore[testState](), nil)
		if err := eng.Add("a", trailStep("a", nil)); err != nil {
			t.Fatal(err)
		}
		err := eng.Add("a", trailStep("a", nil))
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != CodeDuplicateStep {
			t.Fatalf("err = %v, want code %s", err, CodeDuplicateStep)
		}
	})

	t.Run("second edge from the same step", func(t *testing.T) {
		eng := New[testState](store.NewMemStore[testState](), nil)
		eng.Add("a", trailStep("a", nil))
		eng.Add("b", trailStep("b", nil))
		if err := eng.Connect("a", "b"); err != nil {
			t.Fatal(err)
		}
		err := eng.Route("a", func(testState) (string, error) { return "b", nil })
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != CodeBadGraph {
			t.Fatalf("err = %v, want code %s", err, CodeBadGraph)
		}
	})

	t.Run("run without start", func(t *testing.T) {
		eng := New[testState](store.NewMemStore[testState](), nil)
		eng.Add("a", trailStep("a", nil))
		eng.FinishAt("a")
		_, err := eng.Run(context.Background(), "r", testState{})
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != CodeNoStart {
			t.Fatalf("err = %v, want code %s", err, CodeNoStart)
		}
	})

	t.Run("run without store", func(t *testing.T) {
		eng := New[testState](nil, nil)
		eng.Add("a", trailStep("a", nil))
		eng.StartAt("a")
		eng.FinishAt("a")
		_, err := eng.Run(context.Background(), "r", testState{})
		var engErr *EngineError
		if !errors.As(err, &engErr) || engErr.Code != CodeMissingStore {
			t.Fatalf("err = %v, want code %s", err, CodeMissingStore)
		}
	})
}

func TestEnginePersistsEveryHop(t *testing.T) {
	st := store.NewMemStore[testState]()
	eng := New[testState](st, nil)
	eng.Add("a", trailStep("a", nil))
	eng.Add("b", trailStep("b", nil))
	eng.Connect("a", "b")
	eng.StartAt("a")
	eng.FinishAt("b")

	if _, err := eng.Run(context.Background(), "run-persist", testState{}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	records, err := st.Steps(context.Background(), "run-persist")
	if err != nil {
		t.Fatalf("Steps: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records, want 2", len(records))
	}
	if records[0].StepName != "a" || records[1].StepName != "b" {
		t.Errorf("records = %s,%s, want a,b", records[0].StepName, records[1].StepName)
	}
	if len(records[1].State.Trail) != 2 {
		t.Errorf("final record trail = %v, want both hops", records[1].State.Trail)
	}
}
