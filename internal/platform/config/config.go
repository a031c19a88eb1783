package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Session   SessionConfig   `yaml:"session"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Cache     CacheConfig     `yaml:"cache"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
}

// ServerConfig captures the ops HTTP listener (metrics, health).
type ServerConfig struct {
	Addr            string        `yaml:"addr"             env:"TENANTCORE_ADDR"             env-default:":8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"         env-default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"        env-default:"30s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT"     env-default:"10s"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// DatabaseConfig holds PostgreSQL settings. An empty DSN selects the
// in-memory event and snapshot stores.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"25"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
	Migrate         bool          `yaml:"migrate"            env:"DATABASE_MIGRATE"            env-default:"true"`
}

// RedisConfig holds Redis settings. An empty URL disables Redis and selects
// the in-memory cache.
type RedisConfig struct {
	URL          string        `yaml:"url"            env:"REDIS_URL"`
	PoolSize     int           `yaml:"pool_size"      env:"REDIS_POOL_SIZE"      env-default:"10"`
	MinIdleConns int           `yaml:"min_idle_conns" env:"REDIS_MIN_IDLE_CONNS" env-default:"2"`
	DialTimeout  time.Duration `yaml:"dial_timeout"   env:"REDIS_DIAL_TIMEOUT"   env-default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout"   env:"REDIS_READ_TIMEOUT"   env-default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout"  env:"REDIS_WRITE_TIMEOUT"  env-default:"3s"`
}

// KafkaConfig holds event bus settings. No brokers selects the in-memory bus.
type KafkaConfig struct {
	Brokers           []string `yaml:"brokers"            env:"KAFKA_BROKERS"            env-separator:","`
	Topic             string   `yaml:"topic"              env:"KAFKA_TOPIC"              env-default:"tenantcore.domain-events"`
	ClientID          string   `yaml:"client_id"          env:"KAFKA_CLIENT_ID"          env-default:"tenantcore"`
	Partitions        int32    `yaml:"partitions"         env:"KAFKA_PARTITIONS"         env-default:"6"`
	ReplicationFactor int16    `yaml:"replication_factor" env:"KAFKA_REPLICATION_FACTOR" env-default:"1"`
	EnsureTopic       bool     `yaml:"ensure_topic"       env:"KAFKA_ENSURE_TOPIC"       env-default:"true"`
}

// SessionConfig holds the session token verification settings.
type SessionConfig struct {
	JWTSigningKey string `yaml:"jwt_signing_key" env:"JWT_SIGNING_KEY" env-default:"dev-secret-key-change-in-production"`
	Issuer        string `yaml:"issuer"          env:"JWT_ISSUER"      env-default:"tenantcore"`
}

// SnapshotConfig controls snapshot frequency: a snapshot is taken once an
// aggregate has advanced Interval versions past its last snapshot.
type SnapshotConfig struct {
	Interval int64 `yaml:"interval" env:"SNAPSHOT_INTERVAL" env-default:"50"`
}

// CacheConfig holds the isolation-scoped cache settings.
type CacheConfig struct {
	KeyBase string        `yaml:"key_base" env:"CACHE_KEY_BASE" env-default:"tenantcore:"`
	TTL     time.Duration `yaml:"ttl"      env:"CACHE_TTL"      env-default:"5m"`
}

// BootstrapConfig seeds a first tenant on startup when TenantName is set
// and no tenant has been seeded under that name by this process.
type BootstrapConfig struct {
	TenantName string `yaml:"tenant_name" env:"BOOTSTRAP_TENANT_NAME"`
}

// UsesPostgres reports whether durable stores are configured.
func (c DatabaseConfig) UsesPostgres() bool { return c.DSN != "" }

// UsesRedis reports whether the Redis cache is configured.
func (c RedisConfig) UsesRedis() bool { return c.URL != "" }

// UsesKafka reports whether the Kafka bus is configured.
func (c KafkaConfig) UsesKafka() bool { return len(c.Brokers) > 0 }
