package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the cgo "sqlite3" driver
	_ "modernc.org/sqlite"          // registers the pure Go "sqlite" driver
)

// SQLite driver names accepted by SQLiteConfig.Driver.
const (
	DriverModernc = "sqlite"
	DriverMattn   = "sqlite3"
)

// SQLiteBackend implements Backend using SQLite for persistence.
// It is suitable for single-instance deployments where records must survive
// restarts.
//
// SQLiteBackend uses a write-ahead log (WAL) for better concurrent read
// performance and checkpoints it periodically.
type SQLiteBackend struct {
	*sqlBackend

	path               string
	checkpointInterval time.Duration
	done               chan struct{}
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path is the path to the SQLite database file.
	Path string

	// Driver selects the database/sql driver: "sqlite" (pure Go) or
	// "sqlite3" (cgo). Default: "sqlite"
	Driver string

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration

	// WALMode enables write-ahead logging.
	WALMode bool

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// Logger receives backend diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(path string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteConfig{
		Path:    path,
		WALMode: true,
	})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom
// configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteConfig) (*SQLiteBackend, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	logger := cfg.Logger.With("component", "store.sqlite", "driver", cfg.Driver)
	backend := &SQLiteBackend{
		sqlBackend:         newSQLBackend(db, sqliteDialect, logger),
		path:               cfg.Path,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	ctx := context.Background()
	if err := backend.configure(ctx, cfg); err != nil {
		db.Close()
		return nil, err
	}
	if err := backend.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := backend.prepareStatements(ctx); err != nil {
		db.Close()
		return nil, NewStorageError("sqlite", "prepare", err)
	}

	if cfg.WALMode {
		go backend.checkpointLoop()
	}

	logger.Info("sqlite store opened", "path", cfg.Path, "wal", cfg.WALMode)
	return backend, nil
}

// configure applies connection pragmas. Pragmas are set with statements
// rather than DSN parameters so both drivers behave the same.
func (s *SQLiteBackend) configure(ctx context.Context, cfg SQLiteConfig) error {
	if cfg.WALMode {
		if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			return NewStorageError("sqlite", "enable_wal", err)
		}
		if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;"); err != nil {
			return NewStorageError("sqlite", "set_synchronous", err)
		}
	}

	busy := fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())
	if _, err := s.db.ExecContext(ctx, busy); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}
	return nil
}

// Path returns the database file path.
func (s *SQLiteBackend) Path() string {
	return s.path
}

// Close implements Backend. Close is idempotent and safe to call multiple
// times.
func (s *SQLiteBackend) Close() error {
	return s.close(func(db *sql.DB) {
		close(s.done)
		_, _ = db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	})
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			if !s.closed {
				if _, err := s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)"); err != nil {
					s.logger.Warn("wal checkpoint failed", "error", err)
				}
			}
			s.mu.RUnlock()
		case <-s.done:
			return
		}
	}
}
