package store

import (
	"context"
	"fmt"
	"log/slog"

	"irondiscipline/warden/pkg/config"
)

// Open builds the backend selected by cfg. When retries are enabled the
// backend is wrapped in a RetryingBackend, and a non-nil observer receives
// the outcome of every operation as the caller sees it.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger, observer Observer) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var backend Backend
	switch cfg.Backend {
	case "memory":
		logger.Warn("using in-memory store, confinement records will not survive a restart")
		backend = NewMemoryBackend()
	case "sqlite", "":
		b, err := NewSQLiteBackendWithConfig(SQLiteConfig{
			Path:               cfg.SQLite.Path,
			Driver:             cfg.SQLite.Driver,
			BusyTimeout:        cfg.SQLite.BusyTimeout,
			WALMode:            cfg.SQLite.WALMode,
			CheckpointInterval: cfg.SQLite.CheckpointInterval,
			Logger:             logger,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	case "postgres":
		b, err := NewPostgresBackend(ctx, PostgresConfig{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}

	if cfg.Retry.Enabled {
		backend = NewRetryingBackend(backend, RetryConfig{
			MaxTries:        cfg.Retry.MaxTries,
			InitialInterval: cfg.Retry.InitialInterval,
			MaxInterval:     cfg.Retry.MaxInterval,
			MaxElapsed:      cfg.Retry.MaxElapsed,
			Logger:          logger,
		})
	}

	return Instrument(backend, observer), nil
}
