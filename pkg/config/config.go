package config

import "time"

// Config is the root configuration structure for warden.
type Config struct {
	// Containment configures where confined subjects are held and how they
	// are treated.
	Containment ContainmentConfig `yaml:"containment" envPrefix:"CONTAINMENT_"`

	// Store selects and configures the durable record store.
	Store StoreConfig `yaml:"store" envPrefix:"STORE_"`

	// Cache configures tombstone retention and maintenance schedules.
	Cache CacheConfig `yaml:"cache" envPrefix:"CACHE_"`

	// Scheduler configures the affinity scheduler.
	Scheduler SchedulerConfig `yaml:"scheduler" envPrefix:"SCHEDULER_"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"TELEMETRY_"`

	// Admin configures the operator HTTP surface.
	Admin AdminConfig `yaml:"admin" envPrefix:"ADMIN_"`
}

// ContainmentConfig configures the confinement area.
type ContainmentConfig struct {
	// Location is the confinement point in "world;x;y;z;yaw;pitch" form.
	// Empty means not configured: confinement requests are refused.
	Location string `yaml:"location" env:"LOCATION"`

	// Radius is how far a confined subject may stray from Location before
	// being teleported back.
	// Default: 10
	Radius float64 `yaml:"radius" env:"RADIUS"`

	// BoundaryInterval is how often the boundary of each online confined
	// subject is checked.
	// Default: 1s
	BoundaryInterval time.Duration `yaml:"boundary_interval" env:"BOUNDARY_INTERVAL"`

	// ConfinedGameMode is applied on confinement.
	// Default: "adventure"
	ConfinedGameMode string `yaml:"confined_game_mode" env:"CONFINED_GAME_MODE"`

	// ReleaseGameMode is applied on release.
	// Default: "survival"
	ReleaseGameMode string `yaml:"release_game_mode" env:"RELEASE_GAME_MODE"`

	// OfflineReason is recorded when an offline confinement has no reason.
	// Default: "jail_reason_offline"
	OfflineReason string `yaml:"offline_reason" env:"OFFLINE_REASON"`
}

// StoreConfig selects the durable store backend.
type StoreConfig struct {
	// Backend is one of "memory", "sqlite", "postgres".
	// Default: "sqlite"
	Backend string `yaml:"backend" env:"BACKEND"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite" envPrefix:"SQLITE_"`

	// Postgres configures the postgres backend.
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`

	// Retry configures retries of transient store failures.
	Retry RetryConfig `yaml:"retry" envPrefix:"RETRY_"`
}

// SQLiteConfig configures the sqlite backend.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/warden.db"
	Path string `yaml:"path" env:"PATH"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	// Default: "sqlite"
	Driver string `yaml:"driver" env:"DRIVER"`

	// BusyTimeout is how long to wait for locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout" env:"BUSY_TIMEOUT"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode" env:"WAL_MODE"`

	// CheckpointInterval is how often the WAL is checkpointed.
	// Default: 5m
	CheckpointInterval time.Duration `yaml:"checkpoint_interval" env:"CHECKPOINT_INTERVAL"`
}

// PostgresConfig configures the postgres backend.
type PostgresConfig struct {
	// DSN is the lib/pq connection string.
	DSN string `yaml:"dsn" env:"DSN"`

	// MaxOpenConns bounds the connection pool.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`

	// ConnMaxLifetime recycles pooled connections.
	// Default: 30m
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// RetryConfig configures store retries.
type RetryConfig struct {
	// Enabled wraps the backend with exponential backoff.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// MaxTries bounds attempts per operation.
	// Default: 5
	MaxTries uint `yaml:"max_tries" env:"MAX_TRIES"`

	// InitialInterval is the first backoff delay.
	// Default: 50ms
	InitialInterval time.Duration `yaml:"initial_interval" env:"INITIAL_INTERVAL"`

	// MaxInterval caps one backoff delay.
	// Default: 2s
	MaxInterval time.Duration `yaml:"max_interval" env:"MAX_INTERVAL"`

	// MaxElapsed caps the total time of one operation including retries.
	// Default: 10s
	MaxElapsed time.Duration `yaml:"max_elapsed" env:"MAX_ELAPSED"`
}

// CacheConfig configures the cache layer maintenance.
type CacheConfig struct {
	// TombstoneRetention is how long delete tombstones are kept. It must
	// exceed the longest store read, including retries.
	// Default: 5m
	TombstoneRetention time.Duration `yaml:"tombstone_retention" env:"TOMBSTONE_RETENTION"`

	// PruneSchedule is the cron spec for tombstone pruning.
	// Default: "@every 1m"
	PruneSchedule string `yaml:"prune_schedule" env:"PRUNE_SCHEDULE"`

	// SweepSchedule is the cron spec for the membership convergence sweep.
	// Default: "@every 5m"
	SweepSchedule string `yaml:"sweep_schedule" env:"SWEEP_SCHEDULE"`
}

// SchedulerConfig configures the affinity scheduler.
type SchedulerConfig struct {
	// Shards is the number of region workers. 0 means GOMAXPROCS.
	Shards int `yaml:"shards" env:"SHARDS"`

	// RegionChunks is the edge length of a region in chunks.
	// Default: 8
	RegionChunks int `yaml:"region_chunks" env:"REGION_CHUNKS"`

	// Debug panics on affinity violations instead of logging them.
	Debug bool `yaml:"debug" env:"DEBUG"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging" envPrefix:"LOGGING_"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics" envPrefix:"METRICS_"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing" envPrefix:"TRACING_"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level" env:"LEVEL"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format" env:"FORMAT"`

	// AddSource includes file and line number in log entries.
	AddSource bool `yaml:"add_source" env:"ADD_SOURCE"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Path is the HTTP path of the Prometheus endpoint on the admin server.
	// Default: "/metrics"
	Path string `yaml:"path" env:"PATH"`

	// Namespace is the metric name prefix.
	// Default: "warden"
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Example: "localhost:4317"
	Endpoint string `yaml:"endpoint" env:"ENDPOINT"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure" env:"INSECURE"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler" env:"SAMPLER"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio" env:"SAMPLE_RATIO"`

	// ServiceName is the service name in traces.
	// Default: "warden"
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// AdminConfig configures the operator HTTP server.
type AdminConfig struct {
	// Enabled starts the admin server.
	// Default: true
	Enabled bool `yaml:"enabled" env:"ENABLED"`

	// ListenAddress is the host:port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address" env:"LISTEN_ADDRESS"`

	// ReadTimeout bounds reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`

	// WriteTimeout bounds writing a response.
	// Default: 30s
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}
