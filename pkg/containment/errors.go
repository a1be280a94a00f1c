package containment

import (
	"errors"
	"fmt"

	"irondiscipline/warden/pkg/subject"
)

var (
	// ErrAlreadyConfined is returned when confining a confined subject.
	ErrAlreadyConfined = errors.New("subject already confined")

	// ErrNotConfined is returned when releasing a subject that is not confined.
	ErrNotConfined = errors.New("subject not confined")

	// ErrLocationNotConfigured is returned when no confinement location is set.
	ErrLocationNotConfigured = errors.New("confinement location not configured")

	// ErrSubjectOffline is returned when live state is needed but the subject
	// left.
	ErrSubjectOffline = errors.New("subject offline")

	// ErrPersistence is returned when the store rejected a write or read.
	ErrPersistence = errors.New("persistence failure")

	// ErrOrphanedRecord marks a record whose snapshot cannot be decoded.
	ErrOrphanedRecord = errors.New("orphaned confinement record")

	// ErrInFlight is returned when another transition of the same subject is
	// still running.
	ErrInFlight = errors.New("transition already in flight")

	// ErrUnknownEvent is returned by Dispatch for unsupported event types.
	ErrUnknownEvent = errors.New("unknown event")
)

// TransitionError describes a failed controller operation.
type TransitionError struct {
	SubjectID subject.ID // Subject the operation acted on
	Op        string     // Operation ("confine", "release", "reconcile", ...)
	Cause     error      // Underlying error
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.SubjectID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *TransitionError) Unwrap() error {
	return e.Cause
}

func transitionErr(op string, id subject.ID, cause error) error {
	return &TransitionError{SubjectID: id, Op: op, Cause: cause}
}

// persistenceErr wraps a store error so both ErrPersistence and the store's
// own error match with errors.Is.
func persistenceErr(op string, id subject.ID, err error) error {
	return transitionErr(op, id, fmt.Errorf("%w: %w", ErrPersistence, err))
}
