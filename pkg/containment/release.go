package containment

import (
	"context"
	"errors"

	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
)

// Release frees a confined subject. It reports whether the release was
// accepted.
//
// The record is marked before anything is restored, stamped as restored once
// the subject got their possessions back, and deleted last. If the subject is
// offline the record stays marked and the next join finishes the release.
func (c *Controller) Release(ctx context.Context, id subject.ID) (ok bool, err error) {
	start := c.clock()
	ctx, span := c.startOp(ctx, OpRelease, id)
	defer func() { c.finishOp(span, OpRelease, start, ok, err) }()

	if !c.begin(id, StateReleasing) {
		return false, transitionErr(OpRelease, id, ErrInFlight)
	}
	defer c.end(id)

	if !c.cache.TryRemoveMember(id) {
		return false, transitionErr(OpRelease, id, ErrNotConfined)
	}
	c.stopBoundary(id)

	rec, err := c.snapshotRecord(ctx, id)
	if err != nil {
		c.cache.AddMember(id)
		return false, persistenceErr(OpRelease, id, err)
	}
	if rec == nil {
		c.logger.WarnContext(ctx, "membership had no record, dropping it")
		return false, transitionErr(OpRelease, id, ErrNotConfined)
	}

	if rec.HasSnapshot() {
		if err := c.store.MarkReleasing(ctx, id, c.clock()); err != nil {
			c.cache.AddMember(id)
			c.cache.PutRecord(rec)
			c.startBoundary(id)
			c.logger.ErrorContext(ctx, "failed to mark release, membership restored", "error", err)
			return false, persistenceErr(OpRelease, id, err)
		}
	}

	if _, err := c.finishRelease(ctx, rec, OpRelease); err != nil {
		return false, err
	}
	return true, nil
}

// finishRelease restores the subject from rec, confirms the restore, deletes
// the record and notifies the subject. The record must already be marked when
// it has a snapshot. It reports false when the subject is offline and the
// record was kept for their next join.
//
// The release is committed by the time this runs, so it ignores cancellation
// of ctx.
func (c *Controller) finishRelease(ctx context.Context, rec *store.Record, op string) (bool, error) {
	ctx = context.WithoutCancel(ctx)
	id := rec.SubjectID

	if rec.Restored() {
		// Possessions were given back already; only the record is left.
		c.deleteRecord(ctx, id)
		c.logger.InfoContext(ctx, "removed record of an already restored subject", "restored_at", rec.RestoredAt)
		return true, nil
	}

	var snap *possession.Snapshot
	if rec.HasSnapshot() {
		armor := ""
		if rec.ArmorBackup != nil {
			armor = *rec.ArmorBackup
		}
		decoded, err := c.codec.DecodeSnapshot(*rec.InventoryBackup, armor)
		if err != nil {
			c.logger.ErrorContext(ctx, "confinement record has an unreadable snapshot, releasing without restore",
				"error", errors.Join(ErrOrphanedRecord, err))
			c.metrics.RecordReconcile(ReconcileOrphaned)
		} else {
			snap = &decoded
		}
	}

	var origin *subject.Location
	if rec.OriginalLocation != "" {
		loc, err := subject.ParseLocation(rec.OriginalLocation)
		if err != nil {
			c.logger.WarnContext(ctx, "original location unreadable, subject stays in place", "location", rec.OriginalLocation, "error", err)
		} else {
			origin = &loc
		}
	}

	err := c.sched.RunEntityWait(ctx, id, func(ec *scheduler.EntityContext) error {
		p := ec.Player()
		if snap != nil {
			c.capturer.Apply(p, *snap)
		}
		p.SetGameMode(c.settings.ReleaseMode)
		if origin != nil {
			p.Teleport(*origin)
			c.sched.Move(id, *origin)
		}
		return nil
	})
	switch {
	case errors.Is(err, scheduler.ErrDropped) && snap != nil:
		// The possessions are still in the backup; the next join restores them.
		c.logger.InfoContext(ctx, "subject offline, release completes on next join")
		return false, nil
	case errors.Is(err, scheduler.ErrDropped):
		// Nothing to restore.
	case err != nil:
		c.logger.ErrorContext(ctx, "restore did not run, record kept for next join", "error", err)
		return false, transitionErr(op, id, err)
	}

	if snap != nil {
		if err := c.store.MarkRestored(ctx, id, c.clock()); err != nil {
			c.logger.ErrorContext(ctx, "failed to confirm restore, a rejoin before the record is deleted re-applies the snapshot", "error", err)
		}
	}
	c.deleteRecord(ctx, id)

	c.notify(id, notify.KeyReleased, nil)
	c.logger.InfoContext(ctx, "subject released", "restored", snap != nil)
	return true, nil
}

func (c *Controller) deleteRecord(ctx context.Context, id subject.ID) {
	if err := c.store.Delete(ctx, id); err != nil {
		c.logger.ErrorContext(ctx, "failed to delete confinement record, next join removes it", "error", err)
	}
	c.cache.Invalidate(id)
}

// snapshotRecord returns the record of id, assembled from the snapshot caches
// when they are complete and read from the store otherwise. The caches are
// invalidated either way.
func (c *Controller) snapshotRecord(ctx context.Context, id subject.ID) (*store.Record, error) {
	detail, hasDetail := c.cache.Detail.Get(id)
	inv, hasInv := c.cache.Inventory.Get(id)
	armor, hasArmor := c.cache.Armor.Get(id)
	loc, hasLoc := c.cache.Location.Get(id)
	c.cache.Invalidate(id)

	if hasDetail && hasInv && hasArmor && hasLoc {
		rec := &store.Record{
			SubjectID:        id,
			DisplayName:      detail.Value.DisplayName,
			Reason:           detail.Value.Reason,
			ConfinedAt:       detail.Value.ConfinedAt,
			ConfinedBy:       detail.Value.ConfinedBy,
			OriginalLocation: loc.Value,
			InventoryBackup:  &inv.Value,
			ArmorBackup:      &armor.Value,
		}
		return rec, nil
	}
	return c.store.Get(ctx, id)
}
