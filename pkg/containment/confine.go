package containment

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
	"irondiscipline/warden/pkg/telemetry/logging"
	"irondiscipline/warden/pkg/telemetry/tracing"
)

// isRejection reports errors that refuse a request without anything having
// gone wrong.
func isRejection(err error) bool {
	return errors.Is(err, ErrAlreadyConfined) ||
		errors.Is(err, ErrNotConfined) ||
		errors.Is(err, ErrInFlight) ||
		errors.Is(err, ErrLocationNotConfigured) ||
		errors.Is(err, ErrSubjectOffline)
}

// Confine confines an online subject. It reports whether the confinement was
// committed.
//
// Membership is taken optimistically and rolled back if the subject cannot be
// captured or the record cannot be saved; in both cases the live inventory is
// untouched.
func (c *Controller) Confine(ctx context.Context, s subject.Subject, initiator *subject.ID, reason string) (ok bool, err error) {
	start := c.clock()
	ctx, span := c.startOp(ctx, OpConfine, s.ID)
	defer func() { c.finishOp(span, OpConfine, start, ok, err) }()
	if initiator != nil {
		ctx = logging.WithInitiator(ctx, *initiator)
		tracing.SetInitiator(span, *initiator)
	}

	jail := c.location.Location()
	if jail == nil {
		c.logger.WarnContext(ctx, "refusing confinement, no location configured")
		return false, transitionErr(OpConfine, s.ID, ErrLocationNotConfigured)
	}

	if !c.begin(s.ID, StateConfining) {
		return false, transitionErr(OpConfine, s.ID, ErrInFlight)
	}
	defer c.end(s.ID)

	if c.cache.IsMember(s.ID) {
		return false, transitionErr(OpConfine, s.ID, ErrAlreadyConfined)
	}
	if err := c.settlePrior(ctx, OpConfine, s.ID); err != nil {
		return false, err
	}
	if !c.cache.TryAddMember(s.ID) {
		return false, transitionErr(OpConfine, s.ID, ErrAlreadyConfined)
	}

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
		c.cache.RemoveMember(s.ID)
		if errors.Is(err, scheduler.ErrDropped) {
			return false, transitionErr(OpConfine, s.ID, ErrSubjectOffline)
		}
		return false, transitionErr(OpConfine, s.ID, err)
	}

	inv, armor, err := c.encode(ctx, snap)
	if err != nil {
		c.cache.RemoveMember(s.ID)
		return false, transitionErr(OpConfine, s.ID, err)
	}

	rec := &store.Record{
		SubjectID:        s.ID,
		DisplayName:      s.Name,
		Reason:           reason,
		ConfinedAt:       c.clock(),
		ConfinedBy:       initiator,
		OriginalLocation: origin.String(),
		InventoryBackup:  &inv,
		ArmorBackup:      &armor,
	}
	if err := c.store.Save(ctx, rec); err != nil {
		c.cache.RemoveMember(s.ID)
		c.logger.ErrorContext(ctx, "failed to persist confinement, membership rolled back", "error", err)
		return false, persistenceErr(OpConfine, s.ID, err)
	}
	c.cache.PutRecord(rec)

	// The record is committed: from here on the subject is confined even if
	// they leave before the live state is changed, and the next join applies
	// it.
	if err := c.applyConfinement(context.WithoutCancel(ctx), s.ID, *jail, reason); err != nil {
		c.logger.InfoContext(ctx, "subject left before confinement was applied, deferring to next join", "error", err)
		return true, nil
	}
	c.startBoundary(s.ID)

	c.logger.InfoContext(ctx, "subject confined", "reason", reason, "origin", rec.OriginalLocation)
	return true, nil
}

// ConfineOffline confines a subject that is not online. The record has no
// snapshot and no original location; both are captured on the next join. An
// online subject is confined with Confine instead.
func (c *Controller) ConfineOffline(ctx context.Context, id subject.ID, displayName string, initiator *subject.ID, reason string) (ok bool, err error) {
	if p, online := c.sessions.Get(id); online {
		return c.Confine(ctx, p.Subject(), initiator, reason)
	}

	start := c.clock()
	ctx, span := c.startOp(ctx, OpConfineOffline, id)
	defer func() { c.finishOp(span, OpConfineOffline, start, ok, err) }()
	if initiator != nil {
		ctx = logging.WithInitiator(ctx, *initiator)
		tracing.SetInitiator(span, *initiator)
	}

	if !c.begin(id, StateConfining) {
		return false, transitionErr(OpConfineOffline, id, ErrInFlight)
	}
	defer c.end(id)

	if c.cache.IsMember(id) {
		return false, transitionErr(OpConfineOffline, id, ErrAlreadyConfined)
	}
	prior, err := c.store.Get(ctx, id)
	if err != nil {
		return false, persistenceErr(OpConfineOffline, id, err)
	}
	if prior != nil && prior.Confining() {
		c.adoptRecord(ctx, prior)
		return false, transitionErr(OpConfineOffline, id, ErrAlreadyConfined)
	}
	if !c.cache.TryAddMember(id) {
		return false, transitionErr(OpConfineOffline, id, ErrAlreadyConfined)
	}

	if reason == "" {
		reason = c.settings.OfflineReason
	}
	if displayName == "" {
		displayName = id.String()
	}

	rec := &store.Record{
		SubjectID:   id,
		DisplayName: displayName,
		Reason:      reason,
		ConfinedAt:  c.clock(),
		ConfinedBy:  initiator,
	}
	if prior != nil && prior.OwesRestore() {
		// Released while offline and never given their possessions back:
		// the backup carries over to this confinement.
		rec.OriginalLocation = prior.OriginalLocation
		rec.InventoryBackup = prior.InventoryBackup
		rec.ArmorBackup = prior.ArmorBackup
	}
	if err := c.store.Save(ctx, rec); err != nil {
		c.cache.RemoveMember(id)
		c.logger.ErrorContext(ctx, "failed to persist offline confinement, membership rolled back", "error", err)
		return false, persistenceErr(OpConfineOffline, id, err)
	}
	c.cache.PutRecord(rec)

	c.logger.InfoContext(ctx, "offline subject confined", "reason", reason, "kept_backup", rec.HasSnapshot())
	return true, nil
}

// settlePrior handles a record left behind for an online subject before a
// new confinement overwrites it. An owed restore is finished first, so the
// new snapshot captures the subject's own possessions.
func (c *Controller) settlePrior(ctx context.Context, op string, id subject.ID) error {
	prior, err := c.store.Get(ctx, id)
	if err != nil {
		return persistenceErr(op, id, err)
	}
	switch {
	case prior == nil:
		return nil
	case prior.Confining():
		c.adoptRecord(ctx, prior)
		return transitionErr(op, id, ErrAlreadyConfined)
	}

	done, err := c.finishRelease(ctx, prior, op)
	if err != nil {
		return err
	}
	if !done {
		return transitionErr(op, id, ErrSubjectOffline)
	}
	return nil
}

// adoptRecord restores membership for a record the membership set missed.
func (c *Controller) adoptRecord(ctx context.Context, rec *store.Record) {
	c.cache.AddMember(rec.SubjectID)
	c.cache.PutRecord(rec)
	c.logger.WarnContext(ctx, "found confinement record without membership, membership restored")
}

// applyConfinement clears the subject, switches the game mode, moves them to
// the confinement location and tells them why. It waits for the entity task.
func (c *Controller) applyConfinement(ctx context.Context, id subject.ID, jail subject.Location, reason string) error {
	return c.sched.RunEntityWait(ctx, id, func(ec *scheduler.EntityContext) error {
		p := ec.Player()
		c.capturer.Clear(p)
		p.SetGameMode(c.settings.ConfinedMode)
		p.Teleport(jail)
		c.sched.Move(id, jail)
		c.notify(id, notify.KeyJailed, map[string]string{"reason": reason})
		return nil
	})
}

// encodeSnapshot encodes inventory and armor on separate goroutines.
func encodeSnapshot(ctx context.Context, codec *possession.Codec, snap possession.Snapshot) (inv, armor string, err error) {
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		inv, err = codec.Encode(snap.Inventory)
		return err
	})
	g.Go(func() error {
		var err error
		armor, err = codec.Encode(snap.Armor)
		return err
	})
	if err := g.Wait(); err != nil {
		return "", "", err
	}
	return inv, armor, nil
}
