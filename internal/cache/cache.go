// Package cache is a key-value cache partitioned by isolation scope. Every
// key is prefixed with the scope's KeyPrefix, so entries of one tenant,
// organization or department can never be read through another scope.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"tenantcore/internal/platform/metrics"
	"tenantcore/pkg/isolation"
	"tenantcore/pkg/platform/sentinel"
)

// Backend stores raw bytes under fully qualified keys.
type Backend interface {
	// Get returns sentinel.ErrNotFound on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}

// Scoped is the isolation-aware cache front end. Values are JSON encoded.
type Scoped struct {
	backend Backend
	base    string
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Scoped cache.
type Option func(*Scoped)

// WithKeyBase sets the prefix placed before every scope prefix.
func WithKeyBase(base string) Option {
	return func(c *Scoped) { c.base = base }
}

// WithTTL sets the expiry of entries written by Set and GetOrLoad. Zero means
// no expiry.
func WithTTL(ttl time.Duration) Option {
	return func(c *Scoped) { c.ttl = ttl }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Scoped) { c.metrics = m }
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Scoped) { c.logger = logger }
}

// New wraps backend.
func New(backend Backend, opts ...Option) (*Scoped, error) {
	if backend == nil {
		return nil, errors.New("cache backend is required")
	}
	c := &Scoped{
		backend: backend,
		base:    "tenantcore:",
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key returns the fully qualified key of key within scope.
func (c *Scoped) Key(scope isolation.Context, key string) string {
	return scope.KeyPrefix(c.base) + isolation.SanitizeKeySegment(key)
}

// Get decodes the entry into dest. The boolean is false on a miss.
func (c *Scoped) Get(ctx context.Context, scope isolation.Context, key string, dest any) (bool, error) {
	raw, err := c.backend.Get(ctx, c.Key(scope, key))
	if errors.Is(err, sentinel.ErrNotFound) {
		c.recordLookup(false)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache get %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	c.recordLookup(true)
	return true, nil
}

func (c *Scoped) Set(ctx context.Context, scope isolation.Context, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	if err := c.backend.Set(ctx, c.Key(scope, key), raw, c.ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (c *Scoped) Delete(ctx context.Context, scope isolation.Context, key string) error {
	if err := c.backend.Delete(ctx, c.Key(scope, key)); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// InvalidateScope removes every entry of scope and of the scopes nested
// under it. Invalidating the platform scope touches only platform entries.
func (c *Scoped) InvalidateScope(ctx context.Context, scope isolation.Context) error {
	if err := c.backend.DeletePrefix(ctx, scope.KeyPrefix(c.base)); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", scope.Identifier(), err)
	}
	return nil
}

func (c *Scoped) recordLookup(hit bool) {
	if c.metrics == nil {
		return
	}
	if hit {
		c.metrics.IncrementCacheHit()
	} else {
		c.metrics.IncrementCacheMiss()
	}
}

// GetOrLoad returns the cached value of key within scope, calling load on a
// miss and caching its result. Concurrent misses on the same full key share
// one load. A failed cache write is logged and the loaded value returned.
func GetOrLoad[T any](ctx context.Context, c *Scoped, scope isolation.Context, key string, load func(context.Context) (T, error)) (T, error) {
	var cached T
	hit, err := c.Get(ctx, scope, key, &cached)
	if err != nil {
		c.logger.WarnContext(ctx, "cache read failed", "key", key, "scope", scope.Identifier(), "error", err)
	}
	if hit {
		return cached, nil
	}

	fullKey := c.Key(scope, key)
	v, err, _ := c.group.Do(fullKey, func() (any, error) {
		loaded, err := load(ctx)
		if err != nil {
			return loaded, err
		}
		if err := c.Set(ctx, scope, key, loaded); err != nil {
			c.logger.WarnContext(ctx, "cache write failed", "key", key, "scope", scope.Identifier(), "error", err)
		}
		return loaded, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	out, _ := v.(T)
	return out, nil
}
