package scheduler

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/subject"
)

// EntityContext grants access to a subject's live state for the duration of
// one entity callback.
type EntityContext struct {
	player session.Player
	live   atomic.Bool
	debug  bool
	logger *slog.Logger
}

func newEntityContext(p session.Player, debug bool, logger *slog.Logger) *EntityContext {
	ec := &EntityContext{player: p, debug: debug, logger: logger}
	ec.live.Store(true)
	return ec
}

// ID returns the subject the context belongs to. It is always safe to call.
func (c *EntityContext) ID() subject.ID { return c.player.ID() }

// Valid reports whether the callback owning the context is still running.
func (c *EntityContext) Valid() bool { return c.live.Load() }

// Player returns the live player. Called after the callback returned it
// panics in debug mode; otherwise the violation is logged and a player that
// ignores every mutation is returned.
func (c *EntityContext) Player() session.Player {
	if c.live.Load() {
		return c.player
	}
	err := fmt.Errorf("%w: subject %s", ErrAffinity, c.player.ID())
	if c.debug {
		panic(err)
	}
	c.logger.Error("refused live state access", "subject_id", c.player.ID().String(), "error", err)
	return refused{id: c.player.ID(), name: c.player.Name()}
}

func (c *EntityContext) revoke() { c.live.Store(false) }

// refused is handed out for late accesses. Reads return zero values and
// writes are discarded.
type refused struct {
	id   subject.ID
	name string
}

func (r refused) ID() subject.ID                  { return r.id }
func (r refused) Name() string                    { return r.name }
func (r refused) Subject() subject.Subject        { return subject.Subject{ID: r.id, Name: r.name} }
func (r refused) Inventory() []*possession.Item   { return nil }
func (r refused) Armor() []*possession.Item       { return nil }
func (r refused) SetInventory([]*possession.Item) {}
func (r refused) SetArmor([]*possession.Item)     {}
func (r refused) GameMode() session.GameMode      { return "" }
func (r refused) SetGameMode(session.GameMode)    {}
func (r refused) Location() subject.Location      { return subject.Location{} }
func (r refused) Teleport(subject.Location)       {}
