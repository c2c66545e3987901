package history

import (
	"context"
	"sync"
)

// MemorySink keeps events in process. Used by tests and as a debug sink.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemorySink) Send(_ context.Context, e Event) error {
	m.mu.Lock()
	m.events = append(m.events, e)
	m.mu.Unlock()
	return nil
}

// Events returns a copy of everything received so far.
func (m *MemorySink) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// OfType filters Events by type.
func (m *MemorySink) OfType(t EventType) []Event {
	var out []Event
	for _, e := range m.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
