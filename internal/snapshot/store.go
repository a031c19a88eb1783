// Package snapshot stores the latest snapshot of each aggregate so loads can
// skip replaying the full stream.
package snapshot

import (
	"context"
	"fmt"
	"sync"

	"tenantcore/pkg/aggregate"
	"tenantcore/pkg/platform/sentinel"
)

// Store keeps one snapshot per aggregate.
type Store interface {
	// Save upserts snap as the latest snapshot of its aggregate. Older
	// versions never replace newer ones.
	Save(ctx context.Context, snap aggregate.Snapshot) error
	// Latest returns sentinel.ErrNotFound when the aggregate has none.
	Latest(ctx context.Context, aggregateID string) (aggregate.Snapshot, error)
}

type InMemoryStore struct {
	mu        sync.RWMutex
	snapshots map[string]aggregate.Snapshot
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{snapshots: make(map[string]aggregate.Snapshot)}
}

func (s *InMemoryStore) Save(_ context.Context, snap aggregate.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.snapshots[snap.AggregateID]; ok && current.Version > snap.Version {
		return nil
	}
	s.snapshots[snap.AggregateID] = snap
	return nil
}

func (s *InMemoryStore) Latest(_ context.Context, aggregateID string) (aggregate.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[aggregateID]
	if !ok {
		return aggregate.Snapshot{}, fmt.Errorf("snapshot %s: %w", aggregateID, sentinel.ErrNotFound)
	}
	return snap, nil
}
