package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor runs cache maintenance jobs on cron schedules.
type Janitor struct {
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	jobs    []job
	running bool
}

type job struct {
	name string
	spec string
	fn   func(ctx context.Context)
}

// NewJanitor creates a janitor. A job still running when its next tick fires
// is skipped for that tick.
func NewJanitor(logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cache.janitor")
	return &Janitor{
		cron:   cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger}))),
		logger: logger,
	}
}

// AddJob registers fn under a standard cron spec, e.g. "@every 1m" or
// "*/5 * * * *". Jobs must be added before Start.
func (j *Janitor) AddJob(name, spec string, fn func(ctx context.Context)) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid cron schedule %q for %s: %w", spec, name, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return fmt.Errorf("janitor already running, cannot add %s", name)
	}
	j.jobs = append(j.jobs, job{name: name, spec: spec, fn: fn})
	return nil
}

// Start schedules every registered job. Jobs receive ctx, and the janitor
// stops when ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		return nil
	}
	if len(j.jobs) == 0 {
		j.logger.Info("no maintenance jobs configured, skipping janitor")
		return nil
	}

	for _, jb := range j.jobs {
		jb := jb
		if _, err := j.cron.AddFunc(jb.spec, func() { j.run(ctx, jb) }); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", jb.name, err)
		}
	}

	j.cron.Start()
	j.running = true
	j.logger.Info("cache janitor started", "jobs", len(j.jobs))

	go func() {
		<-ctx.Done()
		j.Stop()
	}()
	return nil
}

func (j *Janitor) run(ctx context.Context, jb job) {
	start := time.Now()
	jb.fn(ctx)
	j.logger.Debug("maintenance job completed", "job", jb.name, "duration", time.Since(start))
}

// Stop stops the janitor and waits for running jobs to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.running {
		<-j.cron.Stop().Done()
		j.running = false
		j.logger.Info("cache janitor stopped")
	}
}

// IsRunning returns true if the janitor is running.
func (j *Janitor) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// NextRun returns the earliest next run over all jobs, or nil when nothing
// is scheduled.
func (j *Janitor) NextRun() *time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()

	var next *time.Time
	for _, e := range j.cron.Entries() {
		if e.Next.IsZero() {
			continue
		}
		if next == nil || e.Next.Before(*next) {
			at := e.Next
			next = &at
		}
	}
	return next
}

// PruneObserver is an optional extension of Observer that receives the
// result of every prune run.
type PruneObserver interface {
	RecordTombstonePrune(pruned, remaining int)
}

// PruneJob returns a job that drops tombstones older than retention.
func PruneJob(l *Layer, retention time.Duration) func(ctx context.Context) {
	return func(context.Context) {
		n := l.PruneTombstones(retention)
		remaining := l.TombstoneCount()
		if po, ok := l.observer.(PruneObserver); ok {
			po.RecordTombstonePrune(n, remaining)
		}
		if n > 0 {
			l.logger.Debug("pruned tombstones", "count", n, "remaining", remaining)
		}
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.logger.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.logger.Error(msg, append(keysAndValues, "error", err)...)
}
