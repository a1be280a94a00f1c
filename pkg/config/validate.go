package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/subject"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "store.backend").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// listing every failed rule, or nil.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateContainment(&cfg.Containment)...)
	errs = append(errs, validateStore(&cfg.Store)...)
	errs = append(errs, validateCache(&cfg.Cache, &cfg.Store)...)
	errs = append(errs, validateScheduler(&cfg.Scheduler)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)
	errs = append(errs, validateAdmin(&cfg.Admin)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateContainment(cfg *ContainmentConfig) []FieldError {
	var errs []FieldError

	if cfg.Location != "" {
		if _, err := subject.ParseLocation(cfg.Location); err != nil {
			errs = append(errs, FieldError{Field: "containment.location", Message: err.Error()})
		}
	}
	if cfg.Radius <= 0 {
		errs = append(errs, FieldError{Field: "containment.radius", Message: "must be positive"})
	}
	if cfg.BoundaryInterval < 10*time.Millisecond {
		errs = append(errs, FieldError{Field: "containment.boundary_interval", Message: "must be at least 10ms"})
	}
	if _, err := session.ParseGameMode(cfg.ConfinedGameMode); err != nil {
		errs = append(errs, FieldError{Field: "containment.confined_game_mode", Message: err.Error()})
	}
	if _, err := session.ParseGameMode(cfg.ReleaseGameMode); err != nil {
		errs = append(errs, FieldError{Field: "containment.release_game_mode", Message: err.Error()})
	}

	return errs
}

func validateStore(cfg *StoreConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "store.sqlite.path", Message: "required for sqlite backend"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{Field: "store.sqlite.driver", Message: fmt.Sprintf("must be \"sqlite\" or \"sqlite3\", got %q", cfg.SQLite.Driver)})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{Field: "store.sqlite.busy_timeout", Message: "must not be negative"})
		}
	case "postgres":
		if cfg.Postgres.DSN == "" {
			errs = append(errs, FieldError{Field: "store.postgres.dsn", Message: "required for postgres backend"})
		}
		if cfg.Postgres.MaxOpenConns < 1 {
			errs = append(errs, FieldError{Field: "store.postgres.max_open_conns", Message: "must be at least 1"})
		}
	default:
		errs = append(errs, FieldError{Field: "store.backend", Message: fmt.Sprintf("must be one of memory, sqlite, postgres, got %q", cfg.Backend)})
	}

	if cfg.Retry.Enabled {
		if cfg.Retry.MaxTries < 1 {
			errs = append(errs, FieldError{Field: "store.retry.max_tries", Message: "must be at least 1"})
		}
		if cfg.Retry.MaxInterval < cfg.Retry.InitialInterval {
			errs = append(errs, FieldError{Field: "store.retry.max_interval", Message: "must not be below initial_interval"})
		}
	}

	return errs
}

func validateCache(cfg *CacheConfig, storeCfg *StoreConfig) []FieldError {
	var errs []FieldError

	if cfg.TombstoneRetention <= 0 {
		errs = append(errs, FieldError{Field: "cache.tombstone_retention", Message: "must be positive"})
	} else if storeCfg.Retry.Enabled && cfg.TombstoneRetention <= storeCfg.Retry.MaxElapsed {
		errs = append(errs, FieldError{
			Field:   "cache.tombstone_retention",
			Message: fmt.Sprintf("must exceed store.retry.max_elapsed (%s) so in-flight reads still see tombstones", storeCfg.Retry.MaxElapsed),
		})
	}

	if _, err := cron.ParseStandard(cfg.PruneSchedule); err != nil {
		errs = append(errs, FieldError{Field: "cache.prune_schedule", Message: err.Error()})
	}
	if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
		errs = append(errs, FieldError{Field: "cache.sweep_schedule", Message: err.Error()})
	}

	return errs
}

func validateScheduler(cfg *SchedulerConfig) []FieldError {
	var errs []FieldError

	if cfg.Shards < 0 {
		errs = append(errs, FieldError{Field: "scheduler.shards", Message: "must not be negative"})
	}
	if cfg.RegionChunks < 1 {
		errs = append(errs, FieldError{Field: "scheduler.region_chunks", Message: "must be at least 1"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.level", Message: fmt.Sprintf("must be one of debug, info, warn, error, got %q", cfg.Logging.Level)})
	}
	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{Field: "telemetry.logging.format", Message: fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with /"})
	}

	switch cfg.Tracing.Sampler {
	case "always", "never", "ratio":
	default:
		errs = append(errs, FieldError{Field: "telemetry.tracing.sampler", Message: fmt.Sprintf("must be always, never or ratio, got %q", cfg.Tracing.Sampler)})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{Field: "telemetry.tracing.endpoint", Message: "required when tracing is enabled"})
	}

	return errs
}

func validateAdmin(cfg *AdminConfig) []FieldError {
	var errs []FieldError
	if !cfg.Enabled {
		return errs
	}

	if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{Field: "admin.listen_address", Message: err.Error()})
	}
	if cfg.ShutdownTimeout <= 0 {
		errs = append(errs, FieldError{Field: "admin.shutdown_timeout", Message: "must be positive"})
	}

	return errs
}
