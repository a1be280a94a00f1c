package containment

import (
	"context"

	"irondiscipline/warden/pkg/subject"
)

// SweepResult counts the membership corrections of one sweep.
type SweepResult struct {
	Added   int
	Removed int
	Skipped int
}

// Sweep converges the membership set with the store. Members without a
// confining record are dropped and confining records without membership are
// added. Records of a pending release never confine. Subjects with a
// transition in flight are skipped. Live state is never touched.
func (c *Controller) Sweep(ctx context.Context) (res SweepResult, err error) {
	start := c.clock()
	ctx, span := c.tracer.Start(ctx, "containment."+OpSweep)
	defer func() { c.finishOp(span, OpSweep, start, err == nil, err) }()

	ids, err := c.store.ListConfinedIDs(ctx)
	if err != nil {
		return res, persistenceErr(OpSweep, subject.Nil, err)
	}

	records := make(map[subject.ID]struct{}, len(ids))
	for _, id := range ids {
		records[id] = struct{}{}
	}
	members := make(map[subject.ID]struct{})
	for _, id := range c.cache.Members() {
		members[id] = struct{}{}
	}

	for id := range members {
		if _, ok := records[id]; ok {
			continue
		}
		changed, err := c.converge(ctx, id)
		if err != nil {
			return res, err
		}
		if changed {
			res.Removed++
		} else {
			res.Skipped++
		}
	}
	for id := range records {
		if _, ok := members[id]; ok {
			continue
		}
		changed, err := c.converge(ctx, id)
		if err != nil {
			return res, err
		}
		if changed {
			res.Added++
		} else {
			res.Skipped++
		}
	}

	if res.Added > 0 || res.Removed > 0 {
		c.logger.WarnContext(ctx, "membership diverged from store, corrected",
			"added", res.Added, "removed", res.Removed, "skipped", res.Skipped)
	}
	return res, nil
}

// converge re-checks one divergent subject against the store while holding
// its transition slot, and fixes membership. It reports whether membership
// changed.
func (c *Controller) converge(ctx context.Context, id subject.ID) (bool, error) {
	if !c.begin(id, StateSweeping) {
		return false, nil
	}
	defer c.end(id)

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return false, persistenceErr(OpSweep, id, err)
	}

	confined := rec != nil && rec.Confining()
	member := c.cache.IsMember(id)
	switch {
	case confined && !member:
		c.cache.AddMember(id)
		return true, nil
	case !confined && member:
		c.cache.Invalidate(id)
		c.stopBoundary(id)
		return true, nil
	default:
		return false, nil
	}
}

// Bootstrap seeds membership from the store at process start so IsConfined
// is correct for subjects that have not joined yet. Records of a pending
// release are left for the subject's next join.
func (c *Controller) Bootstrap(ctx context.Context) (n int, err error) {
	start := c.clock()
	ctx, span := c.tracer.Start(ctx, "containment."+OpBootstrap)
	defer func() { c.finishOp(span, OpBootstrap, start, err == nil, err) }()

	ids, err := c.store.ListConfinedIDs(ctx)
	if err != nil {
		return 0, persistenceErr(OpBootstrap, subject.Nil, err)
	}
	pending := 0
	for _, id := range ids {
		rec, err := c.store.Get(ctx, id)
		if err != nil {
			return n, persistenceErr(OpBootstrap, id, err)
		}
		if rec == nil || !rec.Confining() {
			pending++
			continue
		}
		if c.cache.TryAddMember(id) {
			n++
		}
	}

	c.logger.InfoContext(ctx, "membership bootstrapped from store", "records", len(ids), "added", n, "pending_release", pending)
	return n, nil
}
