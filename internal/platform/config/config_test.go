package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
server:
  addr: ":9090"
  shutdown_timeout: "5s"

log:
  level: "debug"
  format: "text"

database:
  dsn: "postgres://u:p@localhost:5432/tenantcore"
  max_conns: 10
  min_conns: 2

redis:
  url: "redis://localhost:6379/0"
  pool_size: 4

kafka:
  brokers: ["localhost:9092"]
  topic: "events"
  partitions: 3

snapshot:
  interval: 10

cache:
  key_base: "tc:"
  ttl: "1m"
`

func TestLoad_ValidYAML(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeYAML(t, validYAML))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.True(t, cfg.Database.UsesPostgres())
	assert.Equal(t, int32(10), cfg.Database.MaxConns)
	assert.True(t, cfg.Redis.UsesRedis())
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int32(3), cfg.Kafka.Partitions)
	assert.Equal(t, int64(10), cfg.Snapshot.Interval)
	assert.Equal(t, "tc:", cfg.Cache.KeyBase)
	assert.Equal(t, time.Minute, cfg.Cache.TTL)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeYAML(t, validYAML))
	t.Setenv("SNAPSHOT_INTERVAL", "25")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(25), cfg.Snapshot.Interval)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoad_DefaultsFromEnvOnly(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, int64(50), cfg.Snapshot.Interval)
	assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
	assert.False(t, cfg.Database.UsesPostgres(), "memory stores without a DSN")
	assert.False(t, cfg.Redis.UsesRedis())
	assert.False(t, cfg.Kafka.UsesKafka())
}

func TestLoad_BrokersFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Chdir(t.TempDir())
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Log:      LogConfig{Level: "info", Format: "json"},
			Session:  SessionConfig{JWTSigningKey: "0123456789abcdef0123"},
			Snapshot: SnapshotConfig{Interval: 5},
			Cache:    CacheConfig{KeyBase: "tc:", TTL: time.Minute},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero snapshot interval", func(c *Config) { c.Snapshot.Interval = 0 }, "snapshot.interval"},
		{"negative ttl", func(c *Config) { c.Cache.TTL = -time.Second }, "cache.ttl"},
		{"empty key base", func(c *Config) { c.Cache.KeyBase = "" }, "cache.key_base"},
		{"short signing key", func(c *Config) { c.Session.JWTSigningKey = "short" }, "jwt_signing_key"},
		{"unknown log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"min conns above max", func(c *Config) {
			c.Database = DatabaseConfig{DSN: "postgres://x", MaxConns: 2, MinConns: 5}
		}, "min_conns"},
		{"kafka without topic", func(c *Config) {
			c.Kafka = KafkaConfig{Brokers: []string{"a:9092"}, Partitions: 1, ReplicationFactor: 1}
		}, "topic"},
		{"redis pool size", func(c *Config) { c.Redis = RedisConfig{URL: "redis://x"} }, "pool_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
