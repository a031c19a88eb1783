package audit

import (
	"context"
	"sync"
)

// Store persists audit events. Implementations are append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByScope(ctx context.Context, scope string) ([]Event, error)
	ListAll(ctx context.Context) ([]Event, error)
}

// InMemoryStore keeps events indexed by the scope they concern: the target
// scope when set, the caller's scope otherwise.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]Event
	order  []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[string][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := event.TargetScope
	if key == "" {
		key = event.CallerScope
	}
	s.events[key] = append(s.events[key], event)
	s.order = append(s.order, event)
	return nil
}

func (s *InMemoryStore) ListByScope(_ context.Context, scope string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events[scope]...), nil
}

// ListAll returns every event in append order.
func (s *InMemoryStore) ListAll(_ context.Context) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.order...), nil
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[string][]Event)
	s.order = nil
}
