// Package store provides durable persistence for confinement records.
//
// # Overview
//
// A confinement record is the ground truth for "this subject is confined".
// The Backend interface is implemented by:
//
//   - Memory: in-process map, used by tests and ephemeral deployments
//   - SQLite: single-file persistence (pure Go "sqlite" driver by default,
//     cgo "sqlite3" driver optionally)
//   - Postgres: shared database via lib/pq
//
// Retrying wraps any backend with exponential backoff, and Instrumented
// reports per-operation latency and errors.
//
// # Usage
//
//	backend, err := store.Open(cfg.Store, logger)
//	if err != nil {
//	    return err
//	}
//	defer backend.Close()
//
//	err = backend.Save(ctx, &store.Record{
//	    SubjectID:   id,
//	    DisplayName: "steve",
//	    Reason:      "griefing",
//	    ConfinedAt:  time.Now(),
//	})
//
//	rec, err := backend.Get(ctx, id) // nil, nil when not confined
//
// # Persisted shape
//
// Records live in the jailed_players table keyed by subject_id. Timestamps
// are stored as unix milliseconds. Inventory and armor backups are opaque
// text produced by the possession codec; they are NULL for subjects confined
// while offline until the first join backfills them.
//
// # Thread Safety
//
// All backends are safe for concurrent use.
package store
