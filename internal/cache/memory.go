package cache

import (
	"context"
	"strings"
	"sync"
	"time"

	"tenantcore/pkg/platform/sentinel"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryBackend is a process-local Backend for tests and single-node runs.
type InMemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewInMemoryBackend() *InMemoryBackend {
	return &InMemoryBackend{entries: make(map[string]memoryEntry), now: time.Now}
}

func (b *InMemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.entries[key]
	if !ok || (!e.expiresAt.IsZero() && !b.now().Before(e.expiresAt)) {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (b *InMemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.entries[key] = e
	return nil
}

func (b *InMemoryBackend) Delete(_ context.Context, keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.entries, k)
	}
	return nil
}

func (b *InMemoryBackend) DeletePrefix(_ context.Context, prefix string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k := range b.entries {
		if strings.HasPrefix(k, prefix) {
			delete(b.entries, k)
		}
	}
	return nil
}

// Keys returns the stored keys; for assertions in tests.
func (b *InMemoryBackend) Keys() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.entries))
	for k := range b.entries {
		keys = append(keys, k)
	}
	return keys
}
