// Package bus hands committed domain events to downstream consumers. Events
// are published after they are durably appended; the bus never decides
// whether a write happened.
package bus

import (
	"context"
	"sync"

	"tenantcore/pkg/event"
)

// Publisher delivers a batch of committed events. Events of one aggregate
// keep their order.
type Publisher interface {
	Publish(ctx context.Context, events []event.Event) error
}

// Handler receives published events.
type Handler func(ctx context.Context, e event.Event) error

// InMemoryBus delivers synchronously to subscribers and records every event.
type InMemoryBus struct {
	mu        sync.RWMutex
	handlers  []Handler
	published []event.Event
}

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{}
}

// Subscribe registers h for all subsequent events.
func (b *InMemoryBus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish stops at the first handler error; events already delivered stay
// delivered.
func (b *InMemoryBus) Publish(ctx context.Context, events []event.Event) error {
	b.mu.Lock()
	b.published = append(b.published, events...)
	handlers := append([]Handler(nil), b.handlers...)
	b.mu.Unlock()

	for _, e := range events {
		for _, h := range handlers {
			if err := h(ctx, e); err != nil {
				return err
			}
		}
	}
	return nil
}

// Published returns every event seen so far.
func (b *InMemoryBus) Published() []event.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]event.Event(nil), b.published...)
}
