package config

import "time"

// Default values for configuration fields.
const (
	// Containment defaults
	DefaultRadius           = 10.0
	DefaultBoundaryInterval = time.Second
	DefaultConfinedGameMode = "adventure"
	DefaultReleaseGameMode  = "survival"
	DefaultOfflineReason    = "jail_reason_offline"

	// Store defaults
	DefaultStoreBackend             = "sqlite"
	DefaultSQLitePath               = "data/warden.db"
	DefaultSQLiteDriver             = "sqlite"
	DefaultSQLiteBusyTimeout        = 5 * time.Second
	DefaultSQLiteWALMode            = true
	DefaultSQLiteCheckpointInterval = 5 * time.Minute
	DefaultPostgresMaxOpenConns     = 10
	DefaultPostgresConnMaxLifetime  = 30 * time.Minute
	DefaultRetryEnabled             = true
	DefaultRetryMaxTries            = uint(5)
	DefaultRetryInitialInterval     = 50 * time.Millisecond
	DefaultRetryMaxInterval         = 2 * time.Second
	DefaultRetryMaxElapsed          = 10 * time.Second

	// Cache defaults
	DefaultTombstoneRetention = 5 * time.Minute
	DefaultPruneSchedule      = "@every 1m"
	DefaultSweepSchedule      = "@every 5m"

	// Scheduler defaults
	DefaultRegionChunks = 8

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "warden"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 0.1
	DefaultTracingServiceName = "warden"

	// Admin defaults
	DefaultAdminEnabled         = true
	DefaultAdminListenAddress   = "127.0.0.1:8090"
	DefaultAdminReadTimeout     = 10 * time.Second
	DefaultAdminWriteTimeout    = 30 * time.Second
	DefaultAdminShutdownTimeout = 15 * time.Second
)

// Default returns a configuration with every default applied, including the
// boolean defaults that ApplyDefaults cannot infer from zero values.
func Default() *Config {
	cfg := &Config{}
	cfg.Store.SQLite.WALMode = DefaultSQLiteWALMode
	cfg.Store.Retry.Enabled = DefaultRetryEnabled
	cfg.Telemetry.Metrics.Enabled = DefaultMetricsEnabled
	cfg.Admin.Enabled = DefaultAdminEnabled
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields with their defaults. Boolean fields
// are left alone since false is a meaningful value; Default sets them.
func ApplyDefaults(cfg *Config) {
	applyContainmentDefaults(&cfg.Containment)
	applyStoreDefaults(&cfg.Store)
	applyCacheDefaults(&cfg.Cache)
	applySchedulerDefaults(&cfg.Scheduler)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAdminDefaults(&cfg.Admin)
}

func applyContainmentDefaults(cfg *ContainmentConfig) {
	if cfg.Radius == 0 {
		cfg.Radius = DefaultRadius
	}
	if cfg.BoundaryInterval == 0 {
		cfg.BoundaryInterval = DefaultBoundaryInterval
	}
	if cfg.ConfinedGameMode == "" {
		cfg.ConfinedGameMode = DefaultConfinedGameMode
	}
	if cfg.ReleaseGameMode == "" {
		cfg.ReleaseGameMode = DefaultReleaseGameMode
	}
	if cfg.OfflineReason == "" {
		cfg.OfflineReason = DefaultOfflineReason
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultStoreBackend
	}

	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.Driver == "" {
		cfg.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.SQLite.CheckpointInterval == 0 {
		cfg.SQLite.CheckpointInterval = DefaultSQLiteCheckpointInterval
	}

	if cfg.Postgres.MaxOpenConns == 0 {
		cfg.Postgres.MaxOpenConns = DefaultPostgresMaxOpenConns
	}
	if cfg.Postgres.ConnMaxLifetime == 0 {
		cfg.Postgres.ConnMaxLifetime = DefaultPostgresConnMaxLifetime
	}

	if cfg.Retry.MaxTries == 0 {
		cfg.Retry.MaxTries = DefaultRetryMaxTries
	}
	if cfg.Retry.InitialInterval == 0 {
		cfg.Retry.InitialInterval = DefaultRetryInitialInterval
	}
	if cfg.Retry.MaxInterval == 0 {
		cfg.Retry.MaxInterval = DefaultRetryMaxInterval
	}
	if cfg.Retry.MaxElapsed == 0 {
		cfg.Retry.MaxElapsed = DefaultRetryMaxElapsed
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.TombstoneRetention == 0 {
		cfg.TombstoneRetention = DefaultTombstoneRetention
	}
	if cfg.PruneSchedule == "" {
		cfg.PruneSchedule = DefaultPruneSchedule
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}
}

func applySchedulerDefaults(cfg *SchedulerConfig) {
	if cfg.RegionChunks == 0 {
		cfg.RegionChunks = DefaultRegionChunks
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLogFormat
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}

	if cfg.Tracing.Sampler == "" {
		cfg.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Tracing.SampleRatio == 0 && cfg.Tracing.Sampler == "ratio" {
		cfg.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultTracingServiceName
	}
}

func applyAdminDefaults(cfg *AdminConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultAdminListenAddress
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultAdminReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultAdminWriteTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultAdminShutdownTimeout
	}
}
