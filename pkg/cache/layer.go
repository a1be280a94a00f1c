package cache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
)

// Cache names.
const (
	NameDetail    = "detail"
	NameLocation  = "location"
	NameInventory = "inventory"
	NameArmor     = "armor"
)

// Option configures a Layer.
type Option func(*Layer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Layer) { l.now = now }
}

// WithObserver reports hits, misses and discarded populates.
func WithObserver(o Observer) Option {
	return func(l *Layer) { l.observer = o }
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(logger *slog.Logger) Option {
	return func(l *Layer) { l.logger = logger }
}

// Layer is the membership set, the typed caches and the tombstones of
// invalidated subjects.
type Layer struct {
	// mu guards members and tombstones. Populate holds it shared across its
	// tombstone check and write; Invalidate holds it exclusively.
	mu         sync.RWMutex
	members    map[subject.ID]struct{}
	tombstones map[subject.ID]time.Time

	group singleflight.Group

	Detail    *Cache[store.Detail]
	Location  *Cache[string]
	Inventory *Cache[string]
	Armor     *Cache[string]

	now      func() time.Time
	observer Observer
	logger   *slog.Logger
}

// New creates an empty layer.
func New(opts ...Option) *Layer {
	l := &Layer{
		members:    make(map[subject.ID]struct{}),
		tombstones: make(map[subject.ID]time.Time),
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "cache.layer")

	l.Detail = newCache[store.Detail](l, NameDetail)
	l.Location = newCache[string](l, NameLocation)
	l.Inventory = newCache[string](l, NameInventory)
	l.Armor = newCache[string](l, NameArmor)
	return l
}

func (l *Layer) observe(cache, outcome string) {
	if l.observer != nil {
		l.observer.ObserveCache(cache, outcome)
	}
}

// Now returns the layer clock's current time. Callers capture it before a
// store read and pass it to Populate.
func (l *Layer) Now() time.Time {
	return l.now()
}

// IsMember reports whether id is believed confined. It never blocks on I/O.
func (l *Layer) IsMember(id subject.ID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.members[id]
	return ok
}

// AddMember marks id as confined.
func (l *Layer) AddMember(id subject.ID) {
	l.TryAddMember(id)
}

// TryAddMember marks id as confined and reports whether it was not a member
// before.
func (l *Layer) TryAddMember(id subject.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.members[id]; ok {
		return false
	}
	l.members[id] = struct{}{}
	return true
}

// RemoveMember unmarks id.
func (l *Layer) RemoveMember(id subject.ID) {
	l.TryRemoveMember(id)
}

// TryRemoveMember unmarks id and reports whether it was a member.
func (l *Layer) TryRemoveMember(id subject.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.members[id]; !ok {
		return false
	}
	delete(l.members, id)
	return true
}

// Members returns the membership set in lexical order.
func (l *Layer) Members() []subject.ID {
	l.mu.RLock()
	ids := make([]subject.ID, 0, len(l.members))
	for id := range l.members {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// MemberCount returns the size of the membership set.
func (l *Layer) MemberCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.members)
}

// Invalidate removes membership and every cached entry of id and records a
// tombstone at the current time.
func (l *Layer) Invalidate(id subject.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.members, id)
	l.Detail.remove(id)
	l.Location.remove(id)
	l.Inventory.remove(id)
	l.Armor.remove(id)
	l.tombstones[id] = l.now()
}

// Tombstone returns when id was last invalidated.
func (l *Layer) Tombstone(id subject.ID) (time.Time, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	at, ok := l.tombstones[id]
	return at, ok
}

// TombstoneCount returns the number of retained tombstones.
func (l *Layer) TombstoneCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tombstones)
}

func (l *Layer) tombstonedSinceLocked(id subject.ID, readStartedAt time.Time) bool {
	removedAt, ok := l.tombstones[id]
	return ok && !removedAt.Before(readStartedAt)
}

// PruneTombstones drops tombstones older than olderThan and returns how many
// were removed. olderThan must exceed the longest store read.
func (l *Layer) PruneTombstones(olderThan time.Duration) int {
	cutoff := l.now().Add(-olderThan)

	l.mu.Lock()
	defer l.mu.Unlock()

	pruned := 0
	for id, at := range l.tombstones {
		if at.Before(cutoff) {
			delete(l.tombstones, id)
			pruned++
		}
	}
	return pruned
}

// PopulateRecord writes the detail and snapshot caches from a record read at
// readStartedAt. Nothing is written when id was invalidated since.
func (l *Layer) PopulateRecord(rec *store.Record, readStartedAt time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.tombstonedSinceLocked(rec.SubjectID, readStartedAt) {
		l.observe(NameDetail, OutcomeDiscard)
		return false
	}
	l.putRecordLocked(rec)
	return true
}

// PutRecord writes the detail and snapshot caches from a record the caller
// just committed.
func (l *Layer) PutRecord(rec *store.Record) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	l.putRecordLocked(rec)
}

func (l *Layer) putRecordLocked(rec *store.Record) {
	id := rec.SubjectID
	l.Detail.set(id, rec.Detail())
	if rec.OriginalLocation != "" {
		l.Location.set(id, rec.OriginalLocation)
	}
	if rec.InventoryBackup != nil {
		l.Inventory.set(id, *rec.InventoryBackup)
	}
	if rec.ArmorBackup != nil {
		l.Armor.set(id, *rec.ArmorBackup)
	}
}

// Loader reads a record from the store. It returns nil, nil when the subject
// has no record.
type Loader func(ctx context.Context, id subject.ID) (*store.Record, error)

// Load returns the detail of id from the cache, or reads it with fn and
// populates the caches through the tombstone check. Concurrent loads of the
// same id share one read.
func (l *Layer) Load(ctx context.Context, id subject.ID, fn Loader) (store.Detail, bool, error) {
	if e, ok := l.Detail.Get(id); ok {
		return e.Value, true, nil
	}

	v, err, shared := l.group.Do(id.String(), func() (any, error) {
		readStartedAt := l.now()
		rec, err := fn(ctx, id)
		if err != nil || rec == nil {
			return rec, err
		}
		if !l.PopulateRecord(rec, readStartedAt) {
			l.logger.Debug("discarded stale record read", "subject_id", id, "read_started_at", readStartedAt)
		}
		return rec, nil
	})
	if err != nil {
		return store.Detail{}, false, err
	}
	if shared {
		l.logger.Debug("collapsed concurrent record load", "subject_id", id)
	}

	rec := v.(*store.Record)
	if rec == nil {
		return store.Detail{}, false, nil
	}
	return rec.Detail(), true, nil
}
