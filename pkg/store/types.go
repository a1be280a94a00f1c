package store

import (
	"context"
	"time"

	"irondiscipline/warden/pkg/subject"
)

// Backend defines the interface for confinement record persistence.
// Implementations must be thread-safe and support concurrent access.
type Backend interface {
	// Save upserts the record keyed by SubjectID.
	Save(ctx context.Context, rec *Record) error

	// Delete removes the record. No-op if it doesn't exist.
	Delete(ctx context.Context, id subject.ID) error

	// Exists reports whether a record exists for the subject.
	Exists(ctx context.Context, id subject.ID) (bool, error)

	// Get returns the record for the subject.
	// Returns nil, nil if no record exists.
	Get(ctx context.Context, id subject.ID) (*Record, error)

	// ListConfinedIDs returns the IDs of every persisted record, including
	// records whose release is pending.
	ListConfinedIDs(ctx context.Context) ([]subject.ID, error)

	// MarkReleasing stamps the record with the time a release started.
	// No-op if the record doesn't exist.
	MarkReleasing(ctx context.Context, id subject.ID, at time.Time) error

	// MarkRestored stamps the record with the time the subject's
	// possessions were given back. No-op if the record doesn't exist.
	MarkRestored(ctx context.Context, id subject.ID, at time.Time) error

	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Record is the persisted state of one confined subject.
type Record struct {
	// SubjectID identifies the confined subject.
	SubjectID subject.ID

	// DisplayName is the subject's name when confined.
	DisplayName string

	// Reason is the free-text confinement reason.
	Reason string

	// ConfinedAt is when the confinement was committed.
	ConfinedAt time.Time

	// ConfinedBy is the initiating subject, nil for console or automation.
	ConfinedBy *subject.ID

	// OriginalLocation is the encoded position before confinement.
	// Empty for subjects confined while offline.
	OriginalLocation string

	// InventoryBackup is the encoded inventory, nil until captured.
	InventoryBackup *string

	// ArmorBackup is the encoded armor, nil until captured.
	ArmorBackup *string

	// ReleaseRequestedAt is set when a release started but has not yet
	// deleted the record.
	ReleaseRequestedAt *time.Time

	// RestoredAt is set once a release applied the snapshot to the live
	// subject. A record carrying it only awaits deletion.
	RestoredAt *time.Time
}

// HasSnapshot reports whether possessions were captured.
func (r *Record) HasSnapshot() bool {
	return r.InventoryBackup != nil
}

// ReleasePending reports whether a release was accepted for the record. The
// subject is no longer confined once it is set.
func (r *Record) ReleasePending() bool {
	return r.ReleaseRequestedAt != nil
}

// Restored reports whether the snapshot was already applied by a release.
func (r *Record) Restored() bool {
	return r.RestoredAt != nil
}

// Confining reports whether the record still confines its subject, that is
// no release was accepted for it.
func (r *Record) Confining() bool {
	return !r.ReleasePending() && !r.Restored()
}

// OwesRestore reports whether the record holds possessions that were never
// given back.
func (r *Record) OwesRestore() bool {
	return r.HasSnapshot() && !r.Restored()
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.ConfinedBy != nil {
		by := *r.ConfinedBy
		c.ConfinedBy = &by
	}
	if r.InventoryBackup != nil {
		inv := *r.InventoryBackup
		c.InventoryBackup = &inv
	}
	if r.ArmorBackup != nil {
		armor := *r.ArmorBackup
		c.ArmorBackup = &armor
	}
	if r.ReleaseRequestedAt != nil {
		at := *r.ReleaseRequestedAt
		c.ReleaseRequestedAt = &at
	}
	if r.RestoredAt != nil {
		at := *r.RestoredAt
		c.RestoredAt = &at
	}
	return &c
}

// Detail returns the record without its possession backups.
func (r *Record) Detail() Detail {
	d := Detail{
		SubjectID:        r.SubjectID,
		DisplayName:      r.DisplayName,
		Reason:           r.Reason,
		ConfinedAt:       r.ConfinedAt,
		OriginalLocation: r.OriginalLocation,
		HasSnapshot:      r.HasSnapshot(),
		ReleasePending:   r.ReleaseRequestedAt != nil,
	}
	if r.ConfinedBy != nil {
		by := *r.ConfinedBy
		d.ConfinedBy = &by
	}
	return d
}

// Detail is the cached, blob-free view of a record.
type Detail struct {
	SubjectID        subject.ID  `json:"subject_id"`
	DisplayName      string      `json:"display_name"`
	Reason           string      `json:"reason"`
	ConfinedAt       time.Time   `json:"confined_at"`
	ConfinedBy       *subject.ID `json:"confined_by,omitempty"`
	OriginalLocation string      `json:"original_location,omitempty"`
	HasSnapshot      bool        `json:"has_snapshot"`
	ReleasePending   bool        `json:"release_pending"`
}

// validate checks the fields every backend requires.
func (r *Record) validate() error {
	if r == nil {
		return invalidf("record cannot be nil")
	}
	if r.SubjectID == subject.Nil {
		return invalidf("subject id cannot be empty")
	}
	if r.DisplayName == "" {
		return invalidf("display name cannot be empty")
	}
	if r.ConfinedAt.IsZero() {
		return invalidf("confined at cannot be zero")
	}
	return nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms)
}
