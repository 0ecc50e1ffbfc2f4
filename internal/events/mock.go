package events

import (
	"context"
	"sync"
)

// MockPublisher records events in memory for tests.
type MockPublisher struct {
	mu     sync.Mutex
	events []SessionEvent
	Err    error
}

var _ Publisher = (*MockPublisher)(nil)

// NewMockPublisher creates an empty MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

func (m *MockPublisher) Publish(_ context.Context, ev SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.Err
}

// Events returns a copy of every recorded event.
func (m *MockPublisher) Events() []SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SessionEvent(nil), m.events...)
}

// Types returns the recorded event types in order.
func (m *MockPublisher) Types() []Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Type, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.Type
	}
	return out
}

// Count returns how many events of typ were recorded.
func (m *MockPublisher) Count(typ Type) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, ev := range m.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// Clear removes all recorded events.
func (m *MockPublisher) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}
