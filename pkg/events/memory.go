package events

import (
	"context"
	"sync"
)

// MemoryEventSink is a thread-safe in-memory EventSink for tests and
// single-process deployments. Appends with an idempotency key already seen
// are dropped, matching the exactly-once contract downstream consumers
// expect from durable sinks.
type MemoryEventSink struct {
	mu        sync.Mutex
	envelopes []Envelope
	seen      map[string]struct{}
}

// NewMemoryEventSink creates an empty in-memory event sink.
func NewMemoryEventSink() *MemoryEventSink {
	return &MemoryEventSink{seen: make(map[string]struct{})}
}

// Append implements EventSink.Append. Duplicate idempotency keys are no-ops.
func (m *MemoryEventSink) Append(_ context.Context, envelope Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if envelope.IdempotencyKey != "" {
		if _, dup := m.seen[envelope.IdempotencyKey]; dup {
			return nil
		}
		m.seen[envelope.IdempotencyKey] = struct{}{}
	}
	m.envelopes = append(m.envelopes, envelope)
	return nil
}

// Events returns a snapshot of all appended envelopes in emission order.
func (m *MemoryEventSink) Events() []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Envelope, len(m.envelopes))
	copy(out, m.envelopes)
	return out
}

// OfType returns the appended envelopes whose Type matches eventType,
// preserving emission order.
func (m *MemoryEventSink) OfType(eventType string) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Envelope
	for _, env := range m.envelopes {
		if env.Type == eventType {
			out = append(out, env)
		}
	}
	return out
}

// Reset clears all stored envelopes and dedup state.
func (m *MemoryEventSink) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.envelopes = nil
	m.seen = make(map[string]struct{})
}
