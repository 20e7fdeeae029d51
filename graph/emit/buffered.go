package emit

import "sync"

// BufferedEmitter collects events in memory. It is mainly used by tests
// that assert on the sequence of events a run produced.
type BufferedEmitter struct {
	mu     sync.Mutex
	events []Event
}

// NewBufferedEmitter creates an empty buffer.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{}
}

// Emit implements Emitter.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
}

// Events returns a copy of everything emitted so far.
func (b *BufferedEmitter) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Reset discards all buffered events.
func (b *BufferedEmitter) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = nil
}
