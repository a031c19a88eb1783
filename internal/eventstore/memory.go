package eventstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"tenantcore/pkg/domain"
	"tenantcore/pkg/event"
	"tenantcore/pkg/platform/sentinel"
)

// InMemoryStore keeps streams in process memory. Streams are keyed by the
// identity's UUID string so typed and untyped identities address the same
// stream.
type InMemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]event.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{streams: make(map[string][]event.Event)}
}

func (s *InMemoryStore) Append(_ context.Context, aggregateID *domain.Identity, expectedVersion int64, events []event.Event) error {
	if err := checkBatch(aggregateID, expectedVersion, events); err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := aggregateID.String()
	stream := s.streams[key]
	if current := int64(len(stream)); current != expectedVersion {
		return fmt.Errorf("append %s: expected version %d, stored %d: %w",
			key, expectedVersion, current, sentinel.ErrConflict)
	}
	s.streams[key] = append(stream, events...)
	return nil
}

func (s *InMemoryStore) Load(_ context.Context, aggregateID *domain.Identity, afterVersion int64) ([]event.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stream := s.streams[aggregateID.String()]
	if afterVersion < 0 {
		afterVersion = 0
	}
	if afterVersion >= int64(len(stream)) {
		return []event.Event{}, nil
	}
	// Versions start at 1 and are gapless, so version v sits at index v-1.
	return slices.Clone(stream[afterVersion:]), nil
}

// Version returns the current stream version of aggregateID.
func (s *InMemoryStore) Version(aggregateID *domain.Identity) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.streams[aggregateID.String()]))
}
