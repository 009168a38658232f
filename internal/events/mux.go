package events

import (
	"context"
	"fmt"
	"sync"
)

type HandlerFunc func(ctx context.Context, e Event) error

// Mux runs in-process handlers for an event type and then forwards the
// event to the next publisher. Handlers must be idempotent: a failure
// anywhere makes the relay deliver the whole event again.
type Mux struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	next     Publisher
}

func NewMux(next Publisher) *Mux {
	return &Mux{handlers: make(map[string][]HandlerFunc), next: next}
}

func (m *Mux) Handle(eventType string, h HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[eventType] = append(m.handlers[eventType], h)
}

func (m *Mux) Publish(ctx context.Context, e Event) error {
	m.mu.RLock()
	hs := m.handlers[e.Type]
	m.mu.RUnlock()

	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			return fmt.Errorf("handle %s: %w", e.Type, err)
		}
	}
	if m.next == nil {
		return nil
	}
	return m.next.Publish(ctx, e)
}
