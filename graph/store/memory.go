package store

import (
	"context"
	"sync"
)

// MemStore is an in-memory Store. It keeps every run's history until the
// process exits, which is what tests and one-shot CLI runs need.
type MemStore[S any] struct {
	mu   sync.RWMutex
	runs map[string][]StepRecord[S]
}

// NewMemStore creates an empty MemStore.
func NewMemStore[S any]() *MemStore[S] {
	return &MemStore[S]{runs: make(map[string][]StepRecord[S])}
}

// SaveStep implements Store.
func (m *MemStore[S]) SaveStep(_ context.Context, runID string, step int, stepName string, state S) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[runID] = append(m.runs[runID], StepRecord[S]{Step: step, StepName: stepName, State: state})
	return nil
}

// LoadLatest implements Store.
func (m *MemStore[S]) LoadLatest(_ context.Context, runID string) (S, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero S
	records, ok := m.runs[runID]
	if !ok || len(records) == 0 {
		return zero, 0, ErrNotFound
	}
	last := records[len(records)-1]
	return last.State, last.Step, nil
}

// Steps implements Store.
func (m *MemStore[S]) Steps(_ context.Context, runID string) ([]StepRecord[S], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records, ok := m.runs[runID]
	if !ok || len(records) == 0 {
		return nil, ErrNotFound
	}
	out := make([]StepRecord[S], len(records))
	copy(out, records)
	return out, nil
}
