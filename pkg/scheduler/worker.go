package scheduler

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

type job struct {
	task *Task
	run  func()
}

// worker is a single goroutine draining an unbounded FIFO queue.
type worker struct {
	name   string
	logger *slog.Logger

	mu     sync.Mutex
	jobs   []job
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newWorker(name string, logger *slog.Logger) *worker {
	return &worker{
		name:   name,
		logger: logger,
		jobs:   make([]job, 0, 64),
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// enqueue appends a job. It returns false once the worker is closed.
func (w *worker) enqueue(j job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return false
	}
	w.jobs = append(w.jobs, j)

	select {
	case w.signal <- struct{}{}:
	default:
	}
	return true
}

func (w *worker) close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *worker) run() {
	defer close(w.done)
	for {
		j, ok := w.next()
		if !ok {
			return
		}
		w.exec(j)
	}
}

// next blocks for the next job. After close, pending jobs are finished with
// ErrClosed instead of being run.
func (w *worker) next() (job, bool) {
	for {
		w.mu.Lock()
		if w.closed {
			pending := w.jobs
			w.jobs = nil
			w.mu.Unlock()
			for _, j := range pending {
				j.task.finish(ErrClosed)
			}
			return job{}, false
		}
		if len(w.jobs) > 0 {
			j := w.jobs[0]
			w.jobs[0] = job{}
			w.jobs = w.jobs[1:]
			if len(w.jobs) == 0 {
				w.jobs = w.jobs[:0:0]
			}
			w.mu.Unlock()
			return j, true
		}
		w.mu.Unlock()
		<-w.signal
	}
}

func (w *worker) exec(j job) {
	if j.task.finished() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("task panicked",
				"worker", w.name,
				"domain", j.task.domain.String(),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			j.task.abort(fmt.Errorf("%w: %v", ErrPanicked, r))
		}
	}()
	j.run()
}
