// Package store persists workflow run state.
//
// The engine saves the state after every executed step, so the history of
// a run, including one that failed partway, can be
// inspected after the fact. Implementations: MemStore for tests and
// throwaway runs, SQLiteStore for single-binary deployments, MySQLStore
// for shared databases.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested run ID has no recorded steps.
var ErrNotFound = errors.New("run not found")

// Store persists per-step workflow state.
//
// Type parameter S is the state type; it must be JSON-serializable for the
// SQL-backed implementations.
type Store[S any] interface {
	// SaveStep records the state after one step execution. Steps are
	// identified by runID plus the 1-indexed hop number.
	SaveStep(ctx context.Context, runID string, step int, stepName string, state S) error

	// LoadLatest returns the most recently saved state of a run and its
	// hop number. Returns ErrNotFound for an unknown run.
	LoadLatest(ctx context.Context, runID string) (state S, step int, err error)

	// Steps returns the full execution history of a run in hop order.
	// Returns ErrNotFound for an unknown run.
	Steps(ctx context.Context, runID string) ([]StepRecord[S], error)
}

// StepRecord is one entry in a run's execution history.
type StepRecord[S any] struct {
	// Step is the 1-indexed hop number.
	Step int

	// StepName is the name of the step that produced this state.
	StepName string

	// State is the workflow state after the step completed.
	State S
}
