package containment

import (
	"time"

	"irondiscipline/warden/pkg/subject"
)

// State is the containment state of one subject.
type State int

const (
	StateFree State = iota
	StateConfining
	StateConfined
	StateReleasing
	StateReconciling
	StateSweeping
)

func (s State) String() string {
	switch s {
	case StateFree:
		return "free"
	case StateConfining:
		return "confining"
	case StateConfined:
		return "confined"
	case StateReleasing:
		return "releasing"
	case StateReconciling:
		return "reconciling"
	case StateSweeping:
		return "sweeping"
	default:
		return "unknown"
	}
}

// Operation names used in errors, logs, spans and metrics.
const (
	OpConfine        = "confine"
	OpConfineOffline = "confine_offline"
	OpRelease        = "release"
	OpReconcile      = "reconcile"
	OpBoundary       = "boundary"
	OpSweep          = "sweep"
	OpBootstrap      = "bootstrap"
)

type transition struct {
	state   State
	started time.Time
}

// begin registers an in-flight transition. It reports false if another
// transition of id is running.
func (c *Controller) begin(id subject.ID, st State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.transitions[id]; busy {
		return false
	}
	c.transitions[id] = transition{state: st, started: c.clock()}
	return true
}

func (c *Controller) end(id subject.ID) {
	c.mu.Lock()
	delete(c.transitions, id)
	c.mu.Unlock()
}

// State returns the current state of id: the in-flight transition if there
// is one, otherwise confined or free by membership.
func (c *Controller) State(id subject.ID) State {
	c.mu.Lock()
	tr, busy := c.transitions[id]
	c.mu.Unlock()
	if busy {
		return tr.state
	}
	if c.cache.IsMember(id) {
		return StateConfined
	}
	return StateFree
}

// InFlight returns the number of running transitions.
func (c *Controller) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.transitions)
}
