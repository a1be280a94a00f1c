package store

import (
	"context"
	"time"

	"irondiscipline/warden/pkg/subject"
)

// Observer receives per-operation outcomes.
type Observer interface {
	ObserveStoreOp(op string, d time.Duration, err error)
}

// InstrumentedBackend reports every operation of the wrapped backend to an
// Observer.
type InstrumentedBackend struct {
	inner    Backend
	observer Observer
}

// Instrument wraps inner. A nil observer returns inner unchanged.
func Instrument(inner Backend, observer Observer) Backend {
	if observer == nil {
		return inner
	}
	return &InstrumentedBackend{inner: inner, observer: observer}
}

func (b *InstrumentedBackend) observe(op string, start time.Time, err error) {
	b.observer.ObserveStoreOp(op, time.Since(start), err)
}

// Save implements Backend.
func (b *InstrumentedBackend) Save(ctx context.Context, rec *Record) (err error) {
	defer func(start time.Time) { b.observe(OpSave, start, err) }(time.Now())
	return b.inner.Save(ctx, rec)
}

// Delete implements Backend.
func (b *InstrumentedBackend) Delete(ctx context.Context, id subject.ID) (err error) {
	defer func(start time.Time) { b.observe(OpDelete, start, err) }(time.Now())
	return b.inner.Delete(ctx, id)
}

// Exists implements Backend.
func (b *InstrumentedBackend) Exists(ctx context.Context, id subject.ID) (ok bool, err error) {
	defer func(start time.Time) { b.observe(OpExists, start, err) }(time.Now())
	return b.inner.Exists(ctx, id)
}

// Get implements Backend.
func (b *InstrumentedBackend) Get(ctx context.Context, id subject.ID) (rec *Record, err error) {
	defer func(start time.Time) { b.observe(OpGet, start, err) }(time.Now())
	return b.inner.Get(ctx, id)
}

// ListConfinedIDs implements Backend.
func (b *InstrumentedBackend) ListConfinedIDs(ctx context.Context) (ids []subject.ID, err error) {
	defer func(start time.Time) { b.observe(OpList, start, err) }(time.Now())
	return b.inner.ListConfinedIDs(ctx)
}

// MarkReleasing implements Backend.
func (b *InstrumentedBackend) MarkReleasing(ctx context.Context, id subject.ID, at time.Time) (err error) {
	defer func(start time.Time) { b.observe(OpMarkReleasing, start, err) }(time.Now())
	return b.inner.MarkReleasing(ctx, id, at)
}

// MarkRestored implements Backend.
func (b *InstrumentedBackend) MarkRestored(ctx context.Context, id subject.ID, at time.Time) (err error) {
	defer func(start time.Time) { b.observe(OpMarkRestored, start, err) }(time.Now())
	return b.inner.MarkRestored(ctx, id, at)
}

// Ping implements Backend.
func (b *InstrumentedBackend) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { b.observe(OpPing, start, err) }(time.Now())
	return b.inner.Ping(ctx)
}

// Close implements Backend.
func (b *InstrumentedBackend) Close() error {
	return b.inner.Close()
}
