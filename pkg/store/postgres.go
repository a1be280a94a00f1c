package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" driver
)

// PostgresBackend implements Backend using PostgreSQL. Use it when several
// tools (the warden binary, the records CLI, reporting) share one database.
type PostgresBackend struct {
	*sqlBackend
}

// PostgresConfig configures the PostgreSQL backend.
type PostgresConfig struct {
	// DSN is the lib/pq connection string.
	DSN string

	// MaxOpenConns bounds the connection pool. Default: 10
	MaxOpenConns int

	// ConnMaxLifetime recycles connections. Default: 30 minutes
	ConnMaxLifetime time.Duration

	// Logger receives backend diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// NewPostgresBackend connects, creates the schema if needed and prepares
// statements.
func NewPostgresBackend(ctx context.Context, cfg PostgresConfig) (*PostgresBackend, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("postgres dsn cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 10
	}
	if cfg.ConnMaxLifetime == 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, NewStorageError("postgres", "open", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, NewStorageError("postgres", OpPing, err)
	}

	logger := cfg.Logger.With("component", "store.postgres")
	backend := &PostgresBackend{sqlBackend: newSQLBackend(db, postgresDialect, logger)}

	if err := backend.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := backend.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, NewStorageError("postgres", "prepare", err)
	}

	logger.Info("postgres store opened", "max_open_conns", cfg.MaxOpenConns)
	return backend, nil
}

// Close implements Backend. Close is idempotent.
func (p *PostgresBackend) Close() error {
	return p.close(nil)
}
