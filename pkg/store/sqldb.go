package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"irondiscipline/warden/pkg/subject"
)

// sqlBackend implements Backend over database/sql for a given dialect.
// SQLiteBackend and PostgresBackend embed it.
type sqlBackend struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	saveStmt   *sql.Stmt
	getStmt    *sql.Stmt
	existsStmt *sql.Stmt
	removeStmt *sql.Stmt
	listStmt   *sql.Stmt
	markStmt    *sql.Stmt
	restoreStmt *sql.Stmt
}

func newSQLBackend(db *sql.DB, d dialect, logger *slog.Logger) *sqlBackend {
	return &sqlBackend{db: db, dialect: d, logger: logger}
}

func (b *sqlBackend) storageErr(op string, err error) error {
	return NewStorageError(b.dialect.name, op, err)
}

// initSchema creates the schema, upgrades an older one and verifies its
// version.
func (b *sqlBackend) initSchema(ctx context.Context) error {
	// Zero for a fresh database, which has no schema_version table yet.
	var current int
	if err := b.db.QueryRowContext(ctx, b.dialect.getVersion).Scan(&current); err != nil {
		current = 0
	}

	if _, err := b.db.ExecContext(ctx, b.dialect.schema); err != nil {
		return b.storageErr("create_schema", err)
	}

	if current > 0 {
		for v := current + 1; v <= SchemaVersion; v++ {
			stmt, ok := b.dialect.migrations[v]
			if !ok {
				continue
			}
			if _, err := b.db.ExecContext(ctx, stmt); err != nil {
				return b.storageErr("migrate_schema", fmt.Errorf("to version %d: %w", v, err))
			}
			b.logger.Info("schema migrated", "from", v-1, "to", v)
		}
	}

	if _, err := b.db.ExecContext(ctx, b.dialect.insertVersion, SchemaVersion, toMillis(time.Now())); err != nil {
		return b.storageErr("insert_schema_version", err)
	}

	var version int
	err := b.db.QueryRowContext(ctx, b.dialect.getVersion).Scan(&version)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return b.storageErr("get_schema_version", err)
	}
	if version != SchemaVersion {
		return b.storageErr("schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	b.logger.Debug("schema version verified", "version", version)
	return nil
}

// prepareStatements prepares SQL statements for reuse.
func (b *sqlBackend) prepareStatements(ctx context.Context) error {
	stmts := []struct {
		dst   **sql.Stmt
		query string
		name  string
	}{
		{&b.saveStmt, b.dialect.save, "save"},
		{&b.getStmt, b.dialect.get, "get"},
		{&b.existsStmt, b.dialect.exists, "exists"},
		{&b.removeStmt, b.dialect.remove, "delete"},
		{&b.listStmt, b.dialect.list, "list"},
		{&b.markStmt, b.dialect.markReleasing, "mark_releasing"},
		{&b.restoreStmt, b.dialect.markRestored, "mark_restored"},
	}
	for _, s := range stmts {
		stmt, err := b.db.PrepareContext(ctx, s.query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s statement: %w", s.name, err)
		}
		*s.dst = stmt
	}
	return nil
}

// Save implements Backend.
func (b *sqlBackend) Save(ctx context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	var confinedBy sql.NullString
	if rec.ConfinedBy != nil {
		confinedBy = sql.NullString{String: rec.ConfinedBy.String(), Valid: true}
	}
	releaseAt := nullMillis(rec.ReleaseRequestedAt)
	restoredAt := nullMillis(rec.RestoredAt)

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return b.storageErr(OpSave, ErrClosed)
	}

	_, err := b.saveStmt.ExecContext(ctx,
		rec.SubjectID.String(),
		rec.DisplayName,
		rec.Reason,
		toMillis(rec.ConfinedAt),
		confinedBy,
		rec.OriginalLocation,
		nullString(rec.InventoryBackup),
		nullString(rec.ArmorBackup),
		releaseAt,
		restoredAt,
	)
	if err != nil {
		return b.storageErr(OpSave, err)
	}
	return nil
}

// Delete implements Backend.
func (b *sqlBackend) Delete(ctx context.Context, id subject.ID) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return b.storageErr(OpDelete, ErrClosed)
	}

	if _, err := b.removeStmt.ExecContext(ctx, id.String()); err != nil {
		return b.storageErr(OpDelete, err)
	}
	return nil
}

// Exists implements Backend.
func (b *sqlBackend) Exists(ctx context.Context, id subject.ID) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return false, b.storageErr(OpExists, ErrClosed)
	}

	var one int
	err := b.existsStmt.QueryRowContext(ctx, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, b.storageErr(OpExists, err)
	}
	return true, nil
}

// Get implements Backend.
func (b *sqlBackend) Get(ctx context.Context, id subject.ID) (*Record, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, b.storageErr(OpGet, ErrClosed)
	}

	var (
		rawID      string
		name       string
		reason     sql.NullString
		confinedAt int64
		confinedBy sql.NullString
		location   sql.NullString
		inventory  sql.NullString
		armor      sql.NullString
		releaseAt  sql.NullInt64
		restoredAt sql.NullInt64
	)
	err := b.getStmt.QueryRowContext(ctx, id.String()).Scan(
		&rawID, &name, &reason, &confinedAt, &confinedBy,
		&location, &inventory, &armor, &releaseAt, &restoredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, b.storageErr(OpGet, err)
	}

	rec := &Record{
		SubjectID:        id,
		DisplayName:      name,
		Reason:           reason.String,
		ConfinedAt:       fromMillis(confinedAt),
		OriginalLocation: location.String,
		InventoryBackup:  stringPtr(inventory),
		ArmorBackup:      stringPtr(armor),
	}
	if confinedBy.Valid {
		by, err := subject.ParseID(confinedBy.String)
		if err != nil {
			return nil, b.storageErr(OpGet, fmt.Errorf("confined_by: %w", err))
		}
		rec.ConfinedBy = &by
	}
	rec.ReleaseRequestedAt = timePtr(releaseAt)
	rec.RestoredAt = timePtr(restoredAt)
	return rec, nil
}

// ListConfinedIDs implements Backend.
func (b *sqlBackend) ListConfinedIDs(ctx context.Context) ([]subject.ID, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, b.storageErr(OpList, ErrClosed)
	}

	rows, err := b.listStmt.QueryContext(ctx)
	if err != nil {
		return nil, b.storageErr(OpList, err)
	}
	defer rows.Close()

	ids := []subject.ID{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, b.storageErr(OpList, fmt.Errorf("failed to scan row: %w", err))
		}
		id, err := subject.ParseID(raw)
		if err != nil {
			b.logger.Warn("skipping malformed subject id", "subject_id", raw, "error", err)
			continue
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, b.storageErr(OpList, fmt.Errorf("error iterating rows: %w", err))
	}
	return ids, nil
}

// MarkReleasing implements Backend.
func (b *sqlBackend) MarkReleasing(ctx context.Context, id subject.ID, at time.Time) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return b.storageErr(OpMarkReleasing, ErrClosed)
	}

	if _, err := b.markStmt.ExecContext(ctx, toMillis(at), id.String()); err != nil {
		return b.storageErr(OpMarkReleasing, err)
	}
	return nil
}

// MarkRestored implements Backend.
func (b *sqlBackend) MarkRestored(ctx context.Context, id subject.ID, at time.Time) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return b.storageErr(OpMarkRestored, ErrClosed)
	}

	if _, err := b.restoreStmt.ExecContext(ctx, toMillis(at), id.String()); err != nil {
		return b.storageErr(OpMarkRestored, err)
	}
	return nil
}

// Ping implements Backend.
func (b *sqlBackend) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return b.storageErr(OpPing, ErrClosed)
	}
	if err := b.db.PingContext(ctx); err != nil {
		return b.storageErr(OpPing, err)
	}
	return nil
}

// close marks the backend closed, closes statements and runs final before
// closing the database. It is idempotent.
func (b *sqlBackend) close(final func(*sql.DB)) error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		for _, stmt := range []*sql.Stmt{b.saveStmt, b.getStmt, b.existsStmt, b.removeStmt, b.listStmt, b.markStmt, b.restoreStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		if b.db != nil {
			if final != nil {
				final(b.db)
			}
			closeErr = b.db.Close()
		}
	})
	return closeErr
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromMillis(n.Int64)
	return &t
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
