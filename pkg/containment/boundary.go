package containment

import (
	"context"

	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/subject"
)

// EnforceBoundary checks a confined subject's position and teleports them
// back when they are farther than the radius from the confinement location
// or in another world. It reports whether a teleport happened.
func (c *Controller) EnforceBoundary(ctx context.Context, id subject.ID) (bool, error) {
	if !c.cache.IsMember(id) {
		return false, nil
	}

	var moved bool
	err := c.sched.RunEntityWait(ctx, id, func(ec *scheduler.EntityContext) error {
		moved = c.enforce(ec)
		return nil
	})
	if err != nil {
		return false, transitionErr(OpBoundary, id, err)
	}
	return moved, nil
}

// enforce runs on the subject's entity context.
func (c *Controller) enforce(ec *scheduler.EntityContext) bool {
	id := ec.ID()
	if !c.cache.IsMember(id) {
		return false
	}
	jail := c.location.Location()
	if jail == nil {
		return false
	}

	p := ec.Player()
	if jail.Within(p.Location(), c.location.Radius()) {
		return false
	}

	p.Teleport(*jail)
	c.sched.Move(id, *jail)
	c.metrics.RecordBoundaryTeleport()
	c.logger.Debug("teleported subject back into confinement", "subject_id", id.String())
	return true
}

// startBoundary runs enforce periodically until the subject is released or
// leaves.
func (c *Controller) startBoundary(id subject.ID) {
	interval := c.settings.BoundaryInterval

	c.mu.Lock()
	defer c.mu.Unlock()

	if old := c.boundaries[id]; old != nil {
		old.Cancel()
	}

	task := c.sched.RunEntityPeriodic(id, interval, interval, func(ec *scheduler.EntityContext, self *scheduler.Task) {
		if !c.cache.IsMember(id) {
			self.Cancel()
			c.forgetBoundary(id, self)
			return
		}
		c.enforce(ec)
	})
	c.boundaries[id] = task
}

func (c *Controller) stopBoundary(id subject.ID) {
	c.mu.Lock()
	task := c.boundaries[id]
	delete(c.boundaries, id)
	c.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
}

func (c *Controller) forgetBoundary(id subject.ID, task *scheduler.Task) {
	c.mu.Lock()
	if c.boundaries[id] == task {
		delete(c.boundaries, id)
	}
	c.mu.Unlock()
}

// BoundaryLoops returns the number of running boundary loops.
func (c *Controller) BoundaryLoops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.boundaries)
}
