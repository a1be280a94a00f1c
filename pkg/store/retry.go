package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"irondiscipline/warden/pkg/subject"
)

// RetryConfig configures RetryingBackend.
type RetryConfig struct {
	// MaxTries bounds the attempts per operation, including the first.
	// Default: 5
	MaxTries uint

	// InitialInterval is the first backoff delay. Default: 50ms
	InitialInterval time.Duration

	// MaxInterval caps a single backoff delay. Default: 2s
	MaxInterval time.Duration

	// MaxElapsed caps the total time spent on one operation. Default: 10s
	MaxElapsed time.Duration

	// Logger receives retry diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// RetryingBackend retries transient failures of the wrapped backend with
// exponential backoff. Validation errors and context cancellation are never
// retried.
type RetryingBackend struct {
	inner  Backend
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetryingBackend wraps inner.
func NewRetryingBackend(inner Backend, cfg RetryConfig) *RetryingBackend {
	if cfg.MaxTries == 0 {
		cfg.MaxTries = 5
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 2 * time.Second
	}
	if cfg.MaxElapsed == 0 {
		cfg.MaxElapsed = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RetryingBackend{
		inner:  inner,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "store.retry"),
	}
}

// Unwrap returns the wrapped backend.
func (r *RetryingBackend) Unwrap() Backend {
	return r.inner
}

func (r *RetryingBackend) options(op string) []backoff.RetryOption {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialInterval
	b.MaxInterval = r.cfg.MaxInterval

	return []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.cfg.MaxTries),
		backoff.WithMaxElapsedTime(r.cfg.MaxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Warn("store operation failed, retrying", "operation", op, "error", err, "retry_in", next)
		}),
	}
}

// classify marks errors that must not be retried as permanent.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrInvalidRecord) || errors.Is(err, ErrClosed) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return backoff.Permanent(err)
	}
	return err
}

func retry[T any](ctx context.Context, r *RetryingBackend, op string, fn func() (T, error)) (T, error) {
	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		return v, classify(err)
	}, r.options(op)...)
}

// Save implements Backend.
func (r *RetryingBackend) Save(ctx context.Context, rec *Record) error {
	_, err := retry(ctx, r, OpSave, func() (struct{}, error) {
		return struct{}{}, r.inner.Save(ctx, rec)
	})
	return err
}

// Delete implements Backend.
func (r *RetryingBackend) Delete(ctx context.Context, id subject.ID) error {
	_, err := retry(ctx, r, OpDelete, func() (struct{}, error) {
		return struct{}{}, r.inner.Delete(ctx, id)
	})
	return err
}

// Exists implements Backend.
func (r *RetryingBackend) Exists(ctx context.Context, id subject.ID) (bool, error) {
	return retry(ctx, r, OpExists, func() (bool, error) {
		return r.inner.Exists(ctx, id)
	})
}

// Get implements Backend.
func (r *RetryingBackend) Get(ctx context.Context, id subject.ID) (*Record, error) {
	return retry(ctx, r, OpGet, func() (*Record, error) {
		return r.inner.Get(ctx, id)
	})
}

// ListConfinedIDs implements Backend.
func (r *RetryingBackend) ListConfinedIDs(ctx context.Context) ([]subject.ID, error) {
	return retry(ctx, r, OpList, func() ([]subject.ID, error) {
		return r.inner.ListConfinedIDs(ctx)
	})
}

// MarkReleasing implements Backend.
func (r *RetryingBackend) MarkReleasing(ctx context.Context, id subject.ID, at time.Time) error {
	_, err := retry(ctx, r, OpMarkReleasing, func() (struct{}, error) {
		return struct{}{}, r.inner.MarkReleasing(ctx, id, at)
	})
	return err
}

// MarkRestored implements Backend.
func (r *RetryingBackend) MarkRestored(ctx context.Context, id subject.ID, at time.Time) error {
	_, err := retry(ctx, r, OpMarkRestored, func() (struct{}, error) {
		return struct{}{}, r.inner.MarkRestored(ctx, id, at)
	})
	return err
}

// Ping implements Backend. Pings are not retried; health checks want the
// current answer.
func (r *RetryingBackend) Ping(ctx context.Context) error {
	return r.inner.Ping(ctx)
}

// Close implements Backend.
func (r *RetryingBackend) Close() error {
	return r.inner.Close()
}
