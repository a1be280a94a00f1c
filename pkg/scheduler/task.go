package scheduler

import (
	"sync"
	"sync/atomic"
	"time"
)

// Domain identifies the kind of execution context a task runs on.
type Domain int

const (
	DomainGlobal Domain = iota
	DomainEntity
	DomainRegion
)

// String returns the domain name used in logs and metrics.
func (d Domain) String() string {
	switch d {
	case DomainGlobal:
		return "global"
	case DomainEntity:
		return "entity"
	case DomainRegion:
		return "region"
	default:
		return "unknown"
	}
}

// Task is a handle to scheduled work.
type Task struct {
	domain Domain
	period time.Duration

	cancelled atomic.Bool
	done      chan struct{}
	once      sync.Once
	onDone    func(*Task)

	mu    sync.Mutex
	timer *time.Timer
	err   error
}

func newTask(d Domain, period time.Duration, onDone func(*Task)) *Task {
	return &Task{
		domain: d,
		period: period,
		done:   make(chan struct{}),
		onDone: onDone,
	}
}

// Domain returns the domain the task runs on.
func (t *Task) Domain() Domain { return t.domain }

// Periodic reports whether the task repeats.
func (t *Task) Periodic() bool { return t.period > 0 }

// Cancel stops future executions. An execution already running completes.
// Cancel is safe to call from inside the task's own callback.
func (t *Task) Cancel() {
	if !t.cancelled.CompareAndSwap(false, true) {
		return
	}
	t.stopTimer()
	t.finish(nil)
}

// Cancelled reports whether Cancel was called.
func (t *Task) Cancelled() bool { return t.cancelled.Load() }

// Done is closed when the task will not run again: after a one-shot task ran,
// or the task was cancelled, dropped or rejected.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns why the task finished without running to completion:
// ErrDropped, ErrClosed or ErrPanicked. It is nil while the task is pending,
// after normal completion and after Cancel.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Task) finished() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// arm installs the timer for the next execution.
func (t *Task) arm(tm *time.Timer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled.Load() || t.err != nil {
		tm.Stop()
		return
	}
	t.timer = tm
}

func (t *Task) stopTimer() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.mu.Unlock()
}

func (t *Task) finish(err error) {
	t.once.Do(func() {
		t.mu.Lock()
		t.err = err
		t.mu.Unlock()
		close(t.done)
		if t.onDone != nil {
			t.onDone(t)
		}
	})
}

// abort finishes the task with err and stops its timer.
func (t *Task) abort(err error) {
	t.stopTimer()
	t.finish(err)
}
