package scheduler

import "errors"

var (
	// ErrDropped is reported by tasks whose subject was not attached when the
	// task was due.
	ErrDropped = errors.New("entity task dropped: subject not attached")

	// ErrClosed is reported by tasks submitted to, or pending in, a closed
	// scheduler.
	ErrClosed = errors.New("scheduler closed")

	// ErrAffinity marks use of an entity context outside its callback.
	ErrAffinity = errors.New("entity context used outside its callback")

	// ErrPanicked is reported by tasks whose callback panicked.
	ErrPanicked = errors.New("task panicked")
)
