package containment

import (
	"context"
	"errors"

	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/subject"
)

// Reconcile outcomes reported to Metrics.
const (
	ReconcileNone           = "none"
	ReconcileApplied        = "applied"
	ReconcileBackfilled     = "backfilled"
	ReconcileBackfillFailed = "backfill_failed"
	ReconcileHealed         = "healed_release"
	ReconcileOrphaned       = "orphaned"
	ReconcileDeferred       = "deferred"
)

// ReconcileOnJoin brings a joining subject in line with the store. The
// subject must already be attached to the scheduler. It returns once the
// store answered and any live changes were applied.
func (c *Controller) ReconcileOnJoin(ctx context.Context, s subject.Subject) (err error) {
	start := c.clock()
	ctx, span := c.startOp(ctx, OpReconcile, s.ID)
	defer func() { c.finishOp(span, OpReconcile, start, err == nil, err) }()

	if !c.begin(s.ID, StateReconciling) {
		return transitionErr(OpReconcile, s.ID, ErrInFlight)
	}
	defer c.end(s.ID)

	readStartedAt := c.cache.Now()
	rec, err := c.store.Get(ctx, s.ID)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to read confinement record on join", "error", err)
		return persistenceErr(OpReconcile, s.ID, err)
	}

	if rec == nil {
		c.cache.Invalidate(s.ID)
		c.metrics.RecordReconcile(ReconcileNone)
		return nil
	}
	c.cache.PopulateRecord(rec, readStartedAt)

	// An earlier release was accepted but did not finish. A restored record
	// is only deleted; otherwise the snapshot is still owed.
	if rec.ReleasePending() || rec.Restored() {
		c.cache.RemoveMember(s.ID)
		c.logger.InfoContext(ctx, "finishing interrupted release",
			"requested_at", rec.ReleaseRequestedAt, "restored", rec.Restored())
		if _, err := c.finishRelease(ctx, rec, OpReconcile); err != nil {
			return err
		}
		c.metrics.RecordReconcile(ReconcileHealed)
		return nil
	}

	if rec.HasSnapshot() {
		armor := ""
		if rec.ArmorBackup != nil {
			armor = *rec.ArmorBackup
		}
		if _, err := c.codec.DecodeSnapshot(*rec.InventoryBackup, armor); err != nil {
			// finishRelease reports the orphan.
			c.cache.RemoveMember(s.ID)
			_, err := c.finishRelease(ctx, rec, OpReconcile)
			return err
		}
	}

	c.cache.AddMember(s.ID)

	jail := c.location.Location()
	if jail == nil {
		c.logger.WarnContext(ctx, "confinement location not configured, subject stays unconfined this session")
		c.metrics.RecordReconcile(ReconcileDeferred)
		return nil
	}

	// The store says confined: apply it even if the caller gives up waiting.
	if rec.HasSnapshot() {
		if err := c.applyConfinement(context.WithoutCancel(ctx), s.ID, *jail, rec.Reason); err != nil {
			return c.leftDuringReconcile(ctx, s.ID, err)
		}
		c.startBoundary(s.ID)
		c.metrics.RecordReconcile(ReconcileApplied)
		return nil
	}

	// Offline confinement: capture now, persist, and only then clear.
	var (
		snap   possession.Snapshot
		origin subject.Location
	)
	err = c.sched.RunEntityWait(ctx, s.ID, func(ec *scheduler.EntityContext) error {
		p := ec.Player()
		snap = c.capturer.Capture(p)
		origin = p.Location()
		return nil
	})
	if err != nil {
		return c.leftDuringReconcile(ctx, s.ID, err)
	}

	inv, armor, err := c.encode(ctx, snap)
	if err != nil {
		return transitionErr(OpReconcile, s.ID, err)
	}
	rec.InventoryBackup = &inv
	rec.ArmorBackup = &armor
	rec.OriginalLocation = origin.String()

	if err := c.store.Save(ctx, rec); err != nil {
		c.logger.ErrorContext(ctx, "failed to back up possessions of offline-confined subject, items left untouched", "error", err)
		c.notify(s.ID, notify.KeyBackupFailed, nil)
		c.metrics.RecordReconcile(ReconcileBackfillFailed)
		return persistenceErr(OpReconcile, s.ID, err)
	}
	c.cache.PutRecord(rec)

	// The backup is saved, so the clear must happen now.
	if err := c.applyConfinement(context.WithoutCancel(ctx), s.ID, *jail, rec.Reason); err != nil {
		return c.leftDuringReconcile(ctx, s.ID, err)
	}
	c.startBoundary(s.ID)
	c.metrics.RecordReconcile(ReconcileBackfilled)
	c.logger.InfoContext(ctx, "backfilled snapshot of offline-confined subject")
	return nil
}

func (c *Controller) leftDuringReconcile(ctx context.Context, id subject.ID, err error) error {
	if errors.Is(err, scheduler.ErrDropped) {
		c.logger.InfoContext(ctx, "subject left during reconciliation")
		return transitionErr(OpReconcile, id, ErrSubjectOffline)
	}
	return transitionErr(OpReconcile, id, err)
}

// HandleLeave detaches a departing subject. Pending entity work is dropped;
// membership is kept.
func (c *Controller) HandleLeave(id subject.ID) {
	c.stopBoundary(id)
	c.sched.Detach(id)
}
