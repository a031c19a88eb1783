//go:build integration

package containers

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"

	"tenantcore/internal/platform/config"
	platformredis "tenantcore/internal/platform/redis"
)

// RedisContainer is a Redis server plus a client opened the same way the
// server binary opens one.
type RedisContainer struct {
	Container testcontainers.Container
	URL       string
	Client    *platformredis.Client
}

// NewRedisContainer starts Redis and connects through platformredis.New.
func NewRedisContainer(t *testing.T) *RedisContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("start redis container: %v", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("redis connection string: %v", err)
	}

	client, err := platformredis.New(ctx, config.RedisConfig{
		URL:          url,
		PoolSize:     4,
		MinIdleConns: 1,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	if err != nil {
		_ = container.Terminate(ctx)
		t.Fatalf("connect to redis: %v", err)
	}

	// Shared through the Manager, so no t.Cleanup here.
	return &RedisContainer{Container: container, URL: url, Client: client}
}

// FlushAll empties the database so suites sharing the container start clean.
func (r *RedisContainer) FlushAll(ctx context.Context) error {
	return r.Client.FlushAll(ctx).Err()
}
