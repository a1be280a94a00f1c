package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"irondiscipline/warden/pkg/subject"
)

// Operation names used in errors, metrics and fault injection.
const (
	OpSave          = "save"
	OpDelete        = "delete"
	OpExists        = "exists"
	OpGet           = "get"
	OpList          = "list"
	OpMarkReleasing = "mark_releasing"
	OpMarkRestored  = "mark_restored"
	OpPing          = "ping"
)

// MemoryBackend implements Backend using in-memory storage.
// All data is lost when the process exits.
//
// Records are deep-copied on the way in and out, so callers can never alias
// stored state. Tests can inject failures with FailNext and observe or delay
// operations with SetHook.
type MemoryBackend struct {
	mu      sync.RWMutex
	records map[subject.ID]*Record
	closed  bool

	faultMu sync.Mutex
	faults  map[string][]error
	hook    func(op string, id subject.ID)
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		records: make(map[subject.ID]*Record),
		faults:  make(map[string][]error),
	}
}

// FailNext makes the next call of op return err. Calls queue up: FailNext
// twice fails the next two calls.
func (m *MemoryBackend) FailNext(op string, err error) {
	m.faultMu.Lock()
	m.faults[op] = append(m.faults[op], err)
	m.faultMu.Unlock()
}

// SetHook installs fn to run before every operation, outside any lock.
// Pass nil to remove it.
func (m *MemoryBackend) SetHook(fn func(op string, id subject.ID)) {
	m.faultMu.Lock()
	m.hook = fn
	m.faultMu.Unlock()
}

// Len returns the number of stored records.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// before runs the hook and pops an injected fault for op.
func (m *MemoryBackend) before(op string, id subject.ID) error {
	m.faultMu.Lock()
	hook := m.hook
	var fault error
	if q := m.faults[op]; len(q) > 0 {
		fault = q[0]
		m.faults[op] = q[1:]
	}
	m.faultMu.Unlock()

	if hook != nil {
		hook(op, id)
	}
	if fault != nil {
		return NewStorageError("memory", op, fault)
	}
	return nil
}

func (m *MemoryBackend) closedErr(op string) error {
	return NewStorageError("memory", op, ErrClosed)
}

// Save implements Backend.
func (m *MemoryBackend) Save(ctx context.Context, rec *Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	if err := m.before(OpSave, rec.SubjectID); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewStorageError("memory", OpSave, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.closedErr(OpSave)
	}
	m.records[rec.SubjectID] = rec.Clone()
	return nil
}

// Delete implements Backend.
func (m *MemoryBackend) Delete(ctx context.Context, id subject.ID) error {
	if err := m.before(OpDelete, id); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return NewStorageError("memory", OpDelete, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.closedErr(OpDelete)
	}
	delete(m.records, id)
	return nil
}

// Exists implements Backend.
func (m *MemoryBackend) Exists(ctx context.Context, id subject.ID) (bool, error) {
	if err := m.before(OpExists, id); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, m.closedErr(OpExists)
	}
	_, ok := m.records[id]
	return ok, nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, id subject.ID) (*Record, error) {
	if err := m.before(OpGet, id); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, NewStorageError("memory", OpGet, err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, m.closedErr(OpGet)
	}
	return m.records[id].Clone(), nil
}

// ListConfinedIDs implements Backend. IDs are returned in lexical order.
func (m *MemoryBackend) ListConfinedIDs(ctx context.Context) ([]subject.ID, error) {
	if err := m.before(OpList, subject.Nil); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, m.closedErr(OpList)
	}

	ids := make([]subject.ID, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids, nil
}

// MarkReleasing implements Backend.
func (m *MemoryBackend) MarkReleasing(ctx context.Context, id subject.ID, at time.Time) error {
	if err := m.before(OpMarkReleasing, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.closedErr(OpMarkReleasing)
	}
	if rec, ok := m.records[id]; ok {
		at := fromMillis(toMillis(at))
		rec.ReleaseRequestedAt = &at
	}
	return nil
}

// MarkRestored implements Backend.
func (m *MemoryBackend) MarkRestored(ctx context.Context, id subject.ID, at time.Time) error {
	if err := m.before(OpMarkRestored, id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return m.closedErr(OpMarkRestored)
	}
	if rec, ok := m.records[id]; ok {
		at := fromMillis(toMillis(at))
		rec.RestoredAt = &at
	}
	return nil
}

// Ping implements Backend.
func (m *MemoryBackend) Ping(ctx context.Context) error {
	if err := m.before(OpPing, subject.Nil); err != nil {
		return err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return m.closedErr(OpPing)
	}
	return nil
}

// Close implements Backend. Close is idempotent.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
