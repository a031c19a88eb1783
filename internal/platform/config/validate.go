package config

import (
	"fmt"
	"strings"
)

// Validate performs range checks on the loaded configuration.
// Load calls it automatically.
func (c *Config) Validate() error {
	if c.Snapshot.Interval <= 0 {
		return fmt.Errorf("snapshot.interval must be > 0 (got %d)", c.Snapshot.Interval)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must be >= 0 (got %s)", c.Cache.TTL)
	}
	if c.Cache.KeyBase == "" {
		return fmt.Errorf("cache.key_base is required")
	}
	if err := c.Database.validate(); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if c.Redis.UsesRedis() && c.Redis.PoolSize <= 0 {
		return fmt.Errorf("redis.pool_size must be > 0 (got %d)", c.Redis.PoolSize)
	}
	if err := c.Kafka.validate(); err != nil {
		return fmt.Errorf("kafka: %w", err)
	}
	if len(c.Session.JWTSigningKey) < 16 {
		return fmt.Errorf("session.jwt_signing_key must be at least 16 characters (got %d)", len(c.Session.JWTSigningKey))
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}
	return nil
}

func (d *DatabaseConfig) validate() error {
	if !d.UsesPostgres() {
		return nil
	}
	if d.MaxConns <= 0 {
		return fmt.Errorf("max_conns must be > 0 (got %d)", d.MaxConns)
	}
	if d.MinConns < 0 || d.MinConns > d.MaxConns {
		return fmt.Errorf("min_conns must be within [0, max_conns] (got %d)", d.MinConns)
	}
	return nil
}

func (k *KafkaConfig) validate() error {
	if !k.UsesKafka() {
		return nil
	}
	if strings.TrimSpace(k.Topic) == "" {
		return fmt.Errorf("topic is required")
	}
	if k.Partitions <= 0 {
		return fmt.Errorf("partitions must be > 0 (got %d)", k.Partitions)
	}
	if k.ReplicationFactor <= 0 {
		return fmt.Errorf("replication_factor must be > 0 (got %d)", k.ReplicationFactor)
	}
	return nil
}
