package model

import (
	"context"
	"errors"
	"sync"
)

// MockModel is a scripted ChatModel for tests. Responses are returned in
// the order they were queued; when the queue is exhausted, Chat returns an
// error. Every received conversation is recorded for assertions.
type MockModel struct {
	mu        sync.Mutex
	responses []mockResponse
	calls     [][]Message
}

type mockResponse struct {
	out ChatOut
	err error
}

// NewMockModel creates an empty mock.
func NewMockModel() *MockModel {
	return &MockModel{}
}

// QueueText queues a successful reply.
func (m *MockModel) QueueText(text string) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{out: ChatOut{Text: text}})
	return m
}

// QueueError queues a failing call.
func (m *MockModel) QueueError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{err: err})
	return m
}

// Chat implements ChatModel.
func (m *MockModel) Chat(ctx context.Context, messages []Message) (ChatOut, error) {
	if err := ctx.Err(); err != nil {
		return ChatOut{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	recorded := make([]Message, len(messages))
	copy(recorded, messages)
	m.calls = append(m.calls, recorded)

	if len(m.responses) == 0 {
		return ChatOut{}, errors.New("mock model: no responses queued")
	}
	next := m.responses[0]
	m.responses = m.responses[1:]
	return next.out, next.err
}

// Calls returns every conversation the mock received.
func (m *MockModel) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]Message, len(m.calls))
	copy(out, m.calls)
	return out
}
