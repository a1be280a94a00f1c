package cache

import (
	"sync"
	"time"

	"irondiscipline/warden/pkg/subject"
)

// Outcomes reported to an Observer.
const (
	OutcomeHit     = "hit"
	OutcomeMiss    = "miss"
	OutcomeDiscard = "discard"
)

// Observer receives cache lookups and discarded populates.
type Observer interface {
	ObserveCache(cache, outcome string)
}

// Entry is a cached value and the time it was written.
type Entry[T any] struct {
	Value       T
	PopulatedAt time.Time
}

// Cache is one typed per-subject cache owned by a Layer.
type Cache[T any] struct {
	layer   *Layer
	name    string
	mu      sync.RWMutex
	entries map[subject.ID]Entry[T]
}

func newCache[T any](layer *Layer, name string) *Cache[T] {
	return &Cache[T]{
		layer:   layer,
		name:    name,
		entries: make(map[subject.ID]Entry[T]),
	}
}

// Name returns the cache name used in metrics.
func (c *Cache[T]) Name() string {
	return c.name
}

// Get returns the cached entry for id.
func (c *Cache[T]) Get(id subject.ID) (Entry[T], bool) {
	c.mu.RLock()
	e, ok := c.entries[id]
	c.mu.RUnlock()

	if ok {
		c.layer.observe(c.name, OutcomeHit)
	} else {
		c.layer.observe(c.name, OutcomeMiss)
	}
	return e, ok
}

// Populate stores value read from the store at readStartedAt. The write is
// discarded, and false returned, when id was invalidated at or after
// readStartedAt.
func (c *Cache[T]) Populate(id subject.ID, value T, readStartedAt time.Time) bool {
	c.layer.mu.RLock()
	defer c.layer.mu.RUnlock()

	if c.layer.tombstonedSinceLocked(id, readStartedAt) {
		c.layer.observe(c.name, OutcomeDiscard)
		return false
	}
	c.set(id, value)
	return true
}

// Put stores value unconditionally. Only the owner of the subject's state
// calls Put, after it committed that state to the store.
func (c *Cache[T]) Put(id subject.ID, value T) {
	c.layer.mu.RLock()
	defer c.layer.mu.RUnlock()
	c.set(id, value)
}

// Len returns the number of entries.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache[T]) set(id subject.ID, value T) {
	now := c.layer.now()
	c.mu.Lock()
	c.entries[id] = Entry[T]{Value: value, PopulatedAt: now}
	c.mu.Unlock()
}

func (c *Cache[T]) remove(id subject.ID) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}
