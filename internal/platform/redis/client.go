// Package redis opens the Redis connection backing the scoped cache.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"tenantcore/internal/platform/config"
)

const (
	clientName    = "tenantcore"
	healthTimeout = 2 * time.Second
)

// Client is a go-redis client that also serves as a readiness check.
type Client struct {
	*redis.Client
}

// New connects to cfg.URL and pings it before returning. It returns nil, nil
// when Redis is not configured so callers can fall back to the in-memory cache.
func New(ctx context.Context, cfg config.RedisConfig) (*Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.ClientName = clientName
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout

	c := &Client{Client: redis.NewClient(opts)}
	if err := c.Health(ctx); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// Health pings the server, bounded so a hung connection cannot stall /readyz.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
