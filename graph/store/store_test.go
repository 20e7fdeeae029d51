package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

type docState struct {
	Phase string `json:"phase"`
	Count int    `json:"count"`
}

// storeContract exercises the Store behavior every backend must share.
func storeContract(t *testing.T, st Store[docState]) {
	t.Helper()
	ctx := context.Background()

	t.Run("load missing run", func(t *testing.T) {
		_, _, err := st.LoadLatest(ctx, "absent")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want ErrNotFound", err)
		}
		if _, err := st.Steps(ctx, "absent"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Steps err = %v, want ErrNotFound", err)
		}
	})

	t.Run("save and load latest", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-1", 1, "first", docState{Phase: "one", Count: 1}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
		if err := st.SaveStep(ctx, "run-1", 2, "second", docState{Phase: "two", Count: 2}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}

		state, step, err := st.LoadLatest(ctx, "run-1")
		if err != nil {
			t.Fatalf("LoadLatest: %v", err)
		}
		if step != 2 {
			t.Errorf("step = %d, want 2", step)
		}
		if state.Phase != "two" || state.Count != 2 {
			t.Errorf("state = %+v, want phase two count 2", state)
		}
	})

	t.Run("steps in order", func(t *testing.T) {
		records, err := st.Steps(ctx, "run-1")
		if err != nil {
			t.Fatalf("Steps: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("got %d records, want 2", len(records))
		}
		if records[0].Step != 1 || records[0].StepName != "first" {
			t.Errorf("record 0 = %+v", records[0])
		}
		if records[1].Step != 2 || records[1].State.Phase != "two" {
			t.Errorf("record 1 = %+v", records[1])
		}
	})

	t.Run("runs are isolated", func(t *testing.T) {
		if err := st.SaveStep(ctx, "run-2", 1, "first", docState{Phase: "other"}); err != nil {
			t.Fatalf("SaveStep: %v", err)
		}
		records, err := st.Steps(ctx, "run-1")
		if err != nil {
			t.Fatalf("Steps: %v", err)
		}
		if len(records) != 2 {
			t.Errorf("run-1 has %d records after writing run-2, want 2", len(records))
		}
	})
}

func TestMemStoreContract(t *testing.T) {
	storeContract(t, NewMemStore[docState]())
}

func TestSQLiteStoreContract(t *testing.T) {
	st, err := NewSQLiteStore[docState](filepath.Join(t.TempDir(), "runs.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer st.Close()
	storeContract(t, st)
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	st, err := NewSQLiteStore[docState](path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	if err := st.SaveStep(ctx, "run-p", 1, "first", docState{Phase: "kept"}); err != nil {
		t.Fatalf("SaveStep: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore[docState](path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	state, step, err := reopened.LoadLatest(ctx, "run-p")
	if err != nil {
		t.Fatalf("LoadLatest after reopen: %v", err)
	}
	if step != 1 || state.Phase != "kept" {
		t.Errorf("got step %d state %+v, want step 1 phase kept", step, state)
	}
}
