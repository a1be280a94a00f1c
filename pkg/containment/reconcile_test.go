package containment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
)

func TestReconcile_NoRecord(t *testing.T) {
	h := newHarness(t)
	p := newStockedPlayer("nora")

	require.NoError(t, h.join(p))

	assert.False(t, h.ctrl.IsConfined(p.ID()))
	assert.False(t, emptied(p))
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileNone))
	assert.Zero(t, h.ctrl.InFlight())
}

func TestReconcile_RejoinReappliesConfinement(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("otto")
	require.NoError(t, h.join(p))

	_, err := h.ctrl.Confine(ctx, p.Subject(), nil, "x")
	require.NoError(t, err)
	h.leave(t, p)
	assert.Zero(t, h.ctrl.BoundaryLoops())
	assert.True(t, h.ctrl.IsConfined(p.ID()), "membership survives leaving")

	// The subject logs back in somewhere else.
	p.SetLocation(spawnLoc)
	p.SetGameMode(session.ModeSurvival)
	require.NoError(t, h.join(p))

	assert.Equal(t, jailLoc, p.Location())
	assert.Equal(t, session.ModeAdventure, p.GameMode())
	assert.Equal(t, 1, h.ctrl.BoundaryLoops())
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileApplied))

	// The stored snapshot is still the pre-confinement one.
	rec := h.record(t, p.ID())
	require.NotNil(t, rec)
	assert.Equal(t, spawnLoc.String(), rec.OriginalLocation)
}

func TestReconcile_OfflineBackfillClearsOnceAfterSave(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := subject.NewID()

	ok, err := h.ctrl.ConfineOffline(ctx, id, "pia", nil, "alt account")
	require.NoError(t, err)
	require.True(t, ok)

	p := stockedPlayer(id, "pia")
	before := snapshotOf(p)

	// The wipe must only happen once the snapshot is stored.
	h.store.SetHook(func(op string, sid subject.ID) {
		if op == store.OpSave && sid == id {
			assert.Zero(t, h.capturer.clears.Load(), "cleared before the backup was saved")
		}
	})

	require.NoError(t, h.join(p))
	h.store.SetHook(nil)

	assert.Equal(t, int32(1), h.capturer.clears.Load())
	assert.True(t, emptied(p))
	assert.Equal(t, jailLoc, p.Location())
	assert.Equal(t, 1, h.notes.Count(id, notify.KeyJailed))
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileBackfilled))

	rec := h.record(t, id)
	require.NotNil(t, rec)
	assert.True(t, rec.HasSnapshot())
	assert.Equal(t, spawnLoc.String(), rec.OriginalLocation)
	assert.Equal(t, "alt account", rec.Reason)

	ok, err = h.ctrl.Release(ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, snapshotOf(p))
	assert.Equal(t, spawnLoc, p.Location())
}

func TestReconcile_BackfillSaveFailureLeavesItems(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := subject.NewID()

	_, err := h.ctrl.ConfineOffline(ctx, id, "quinn", nil, "")
	require.NoError(t, err)

	p := stockedPlayer(id, "quinn")
	before := snapshotOf(p)

	h.store.FailNext(store.OpSave, errors.New("read-only filesystem"))

	err = h.join(p)
	assert.ErrorIs(t, err, ErrPersistence)

	assert.Zero(t, h.capturer.clears.Load())
	assert.Equal(t, before, snapshotOf(p))
	assert.Equal(t, spawnLoc, p.Location())
	assert.Equal(t, 1, h.notes.Count(id, notify.KeyBackupFailed))
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileBackfillFailed))
	assert.True(t, h.ctrl.IsConfined(id))

	rec := h.record(t, id)
	require.NotNil(t, rec)
	assert.False(t, rec.HasSnapshot())

	// The next join tries again.
	h.leave(t, p)
	require.NoError(t, h.join(p))
	assert.True(t, emptied(p))
	assert.True(t, h.record(t, id).HasSnapshot())
}

func TestReconcile_DeferredWithoutLocation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := subject.NewID()

	_, err := h.ctrl.ConfineOffline(ctx, id, "rosa", nil, "")
	require.NoError(t, err)
	h.location.set(nil)

	p := stockedPlayer(id, "rosa")

	require.NoError(t, h.join(p))

	assert.True(t, h.ctrl.IsConfined(id))
	assert.False(t, emptied(p))
	assert.Zero(t, p.Teleports())
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileDeferred))
	assert.False(t, h.record(t, id).HasSnapshot())
}

func TestReconcile_HealsInterruptedRelease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("sam")
	require.NoError(t, h.join(p))
	before := snapshotOf(p)

	_, err := h.ctrl.Confine(ctx, p.Subject(), nil, "x")
	require.NoError(t, err)

	// Simulate a crash right after the marker was written: the record is
	// marked but nothing was restored or deleted.
	require.NoError(t, h.store.MarkReleasing(ctx, p.ID(), time.Now()))
	h.leave(t, p)

	require.NoError(t, h.join(p))

	assert.False(t, h.ctrl.IsConfined(p.ID()))
	assert.Equal(t, before, snapshotOf(p))
	assert.Equal(t, spawnLoc, p.Location())
	assert.Equal(t, session.ModeSurvival, p.GameMode())
	assert.Nil(t, h.record(t, p.ID()))
	assert.Equal(t, 1, h.notes.Count(p.ID(), notify.KeyReleased))
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileHealed))
	assert.Zero(t, h.ctrl.BoundaryLoops())
}

func TestRelease_OfflineCompletesOnNextJoin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("tara")
	require.NoError(t, h.join(p))
	before := snapshotOf(p)

	_, err := h.ctrl.Confine(ctx, p.Subject(), nil, "x")
	require.NoError(t, err)
	h.leave(t, p)

	ok, err := h.ctrl.Release(ctx, p.ID())
	require.NoError(t, err)
	require.True(t, ok)

	assert.False(t, h.ctrl.IsConfined(p.ID()))
	rec := h.record(t, p.ID())
	require.NotNil(t, rec, "record is kept until possessions are back")
	assert.NotNil(t, rec.ReleaseRequestedAt)
	assert.True(t, emptied(p))

	require.NoError(t, h.join(p))

	assert.Equal(t, before, snapshotOf(p))
	assert.Nil(t, h.record(t, p.ID()))
	assert.Equal(t, 1, h.notes.Count(p.ID(), notify.KeyReleased))
}

func TestRelease_DeleteFailureHealsWithoutDuplicates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("uma")
	require.NoError(t, h.join(p))
	before := snapshotOf(p)

	_, err := h.ctrl.Confine(ctx, p.Subject(), nil, "x")
	require.NoError(t, err)

	h.store.FailNext(store.OpDelete, errors.New("timeout"))

	ok, err := h.ctrl.Release(ctx, p.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, snapshotOf(p))
	assert.False(t, h.ctrl.IsConfined(p.ID()))

	rec := h.record(t, p.ID())
	require.NotNil(t, rec)
	assert.NotNil(t, rec.ReleaseRequestedAt)
	assert.NotNil(t, rec.RestoredAt)

	// The subject moves on after the release; the stale record must not
	// bring the old possessions back.
	p.SetInventory(make([]*possession.Item, session.InventorySlots))
	p.Give(&possession.Item{Material: "dirt", Amount: 64})
	p.SetArmor(make([]*possession.Item, session.ArmorSlots))
	after := snapshotOf(p)

	h.leave(t, p)
	require.NoError(t, h.join(p))

	assert.Equal(t, after, snapshotOf(p))
	assert.Nil(t, h.record(t, p.ID()))
	assert.False(t, h.ctrl.IsConfined(p.ID()))
	assert.Equal(t, 1, h.notes.Count(p.ID(), notify.KeyReleased))
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileHealed))
}

func TestConfineOffline_KeepsBackupOwedByPendingRelease(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("ursa")
	require.NoError(t, h.join(p))
	before := snapshotOf(p)

	_, err := h.ctrl.Confine(ctx, p.Subject(), nil, "first")
	require.NoError(t, err)
	h.leave(t, p)

	ok, err := h.ctrl.Release(ctx, p.ID())
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = h.ctrl.ConfineOffline(ctx, p.ID(), "ursa", nil, "second")
	require.NoError(t, err)
	require.True(t, ok)

	rec := h.record(t, p.ID())
	require.NotNil(t, rec)
	assert.Nil(t, rec.ReleaseRequestedAt)
	assert.True(t, rec.HasSnapshot(), "the owed backup carries over")
	assert.Equal(t, spawnLoc.String(), rec.OriginalLocation)
	assert.Equal(t, "second", rec.Reason)

	// Rejoining while confined again applies the new confinement to the
	// emptied subject without backfilling over the kept backup.
	require.NoError(t, h.join(p))
	assert.True(t, h.ctrl.IsConfined(p.ID()))
	assert.True(t, emptied(p))
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileApplied))

	ok, err = h.ctrl.Release(ctx, p.ID())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before, snapshotOf(p))
	assert.Equal(t, spawnLoc, p.Location())
	assert.Nil(t, h.record(t, p.ID()))
}

func TestConfine_FinishesPendingReleaseFirst(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("vera")
	require.NoError(t, h.join(p))
	before := snapshotOf(p)

	_, err := h.ctrl.Confine(ctx, p.Subject(), nil, "first")
	require.NoError(t, err)

	// The release was accepted but never finished, and membership is gone.
	require.NoError(t, h.store.MarkReleasing(ctx, p.ID(), time.Now()))
	h.cache.Invalidate(p.ID())

	ok, err := h.ctrl.Confine(ctx, p.Subject(), nil, "second")
	require.NoError(t, err)
	require.True(t, ok)

	rec := h.record(t, p.ID())
	require.NotNil(t, rec)
	assert.Nil(t, rec.ReleaseRequestedAt)
	assert.Equal(t, "second", rec.Reason)

	snap, err := possession.NewCodec().DecodeSnapshot(*rec.InventoryBackup, *rec.ArmorBackup)
	require.NoError(t, err)
	assert.Equal(t, before, snap, "the new backup holds the restored possessions")
	assert.True(t, emptied(p))
}

func TestConfineOffline_AdoptsRecordWithoutMembership(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	id := subject.NewID()
	saveRecord(t, h.store, id)
	require.False(t, h.ctrl.IsConfined(id))

	ok, err := h.ctrl.ConfineOffline(ctx, id, "wyn", nil, "again")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrAlreadyConfined)
	assert.True(t, h.ctrl.IsConfined(id))
	assert.Equal(t, "x", h.record(t, id).Reason)
}

func TestReconcile_OrphanedRecordReleases(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := newStockedPlayer("vic")
	before := snapshotOf(p)

	garbage := "definitely not a snapshot"
	require.NoError(t, h.store.Save(ctx, &store.Record{
		SubjectID:        p.ID(),
		DisplayName:      "vic",
		Reason:           "x",
		ConfinedAt:       time.Now(),
		OriginalLocation: spawnLoc.String(),
		InventoryBackup:  &garbage,
		ArmorBackup:      &garbage,
	}))
	_, err := h.ctrl.Bootstrap(ctx)
	require.NoError(t, err)
	require.True(t, h.ctrl.IsConfined(p.ID()))

	require.NoError(t, h.join(p))

	assert.False(t, h.ctrl.IsConfined(p.ID()))
	assert.Nil(t, h.record(t, p.ID()))
	assert.Equal(t, before, snapshotOf(p), "live possessions are left alone")
	assert.Equal(t, 1, h.metrics.reconcile(ReconcileOrphaned))
	assert.Equal(t, 1, h.notes.Count(p.ID(), notify.KeyReleased))
}

func TestReconcile_StoreFailure(t *testing.T) {
	h := newHarness(t)
	p := newStockedPlayer("wes")

	h.store.FailNext(store.OpGet, errors.New("connection refused"))

	err := h.join(p)
	assert.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, 1, h.metrics.transition(OpReconcile, "failed"))
}
