package containment

import (
	"context"
	"fmt"
	"log/slog"

	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/subject"
)

// Event is an inbound trigger for the controller.
type Event interface {
	EventName() string
}

// JoinEvent reports a subject whose session started.
type JoinEvent struct {
	Player session.Player
}

// LeaveEvent reports a subject whose session ended.
type LeaveEvent struct {
	SubjectID subject.ID
}

// MoveEvent reports a subject that moved. The live location has already
// been updated by the host.
type MoveEvent struct {
	SubjectID subject.ID
	To        subject.Location
}

// ActionEvent asks whether a subject may perform an action.
type ActionEvent struct {
	SubjectID subject.ID
	Action    Action
}

// ConfineCommand requests confinement of an online subject.
type ConfineCommand struct {
	Subject   subject.Subject
	Initiator *subject.ID
	Reason    string
}

// ConfineOfflineCommand requests confinement of a subject that may be
// offline.
type ConfineOfflineCommand struct {
	SubjectID   subject.ID
	DisplayName string
	Initiator   *subject.ID
	Reason      string
}

// ReleaseCommand requests release of a subject.
type ReleaseCommand struct {
	SubjectID subject.ID
}

func (JoinEvent) EventName() string             { return "join" }
func (LeaveEvent) EventName() string            { return "leave" }
func (MoveEvent) EventName() string             { return "move" }
func (ActionEvent) EventName() string           { return "action" }
func (ConfineCommand) EventName() string        { return "confine" }
func (ConfineOfflineCommand) EventName() string { return "confine_offline" }
func (ReleaseCommand) EventName() string        { return "release" }

// Result is the outcome of a dispatched event.
type Result struct {
	// Accepted is the boolean answer to the initiator: the command was
	// committed, the join was admitted, or the action is allowed.
	Accepted bool

	// Teleported is set when a move was corrected by boundary enforcement.
	Teleported bool
}

// Dispatcher routes each event type to exactly one controller handler.
type Dispatcher struct {
	controller *Controller
	logger     *slog.Logger
}

// NewDispatcher creates a dispatcher for c.
func NewDispatcher(c *Controller) *Dispatcher {
	return &Dispatcher{
		controller: c,
		logger:     c.logger.With("component", "containment.dispatcher"),
	}
}

// Dispatch handles ev. A join is only reported once reconciliation with the
// store finished.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) (Result, error) {
	c := d.controller

	switch e := ev.(type) {
	case JoinEvent:
		c.sched.Attach(e.Player)
		if err := c.ReconcileOnJoin(ctx, e.Player.Subject()); err != nil {
			return Result{}, err
		}
		return Result{Accepted: true}, nil

	case LeaveEvent:
		c.HandleLeave(e.SubjectID)
		return Result{Accepted: true}, nil

	case MoveEvent:
		if !c.sched.Move(e.SubjectID, e.To) {
			return Result{}, nil
		}
		moved, err := c.EnforceBoundary(ctx, e.SubjectID)
		if err != nil {
			return Result{}, err
		}
		return Result{Accepted: true, Teleported: moved}, nil

	case ActionEvent:
		return Result{Accepted: c.Allow(e.SubjectID, e.Action)}, nil

	case ConfineCommand:
		ok, err := c.Confine(ctx, e.Subject, e.Initiator, e.Reason)
		return Result{Accepted: ok}, err

	case ConfineOfflineCommand:
		ok, err := c.ConfineOffline(ctx, e.SubjectID, e.DisplayName, e.Initiator, e.Reason)
		return Result{Accepted: ok}, err

	case ReleaseCommand:
		ok, err := c.Release(ctx, e.SubjectID)
		return Result{Accepted: ok}, err

	default:
		d.logger.Warn("dropping unknown event", "type", fmt.Sprintf("%T", ev))
		return Result{}, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
}
