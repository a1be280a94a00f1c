// Package scheduler runs work on execution contexts with affinity to a
// subject, a region of the world, or the process as a whole.
//
// # Overview
//
// Live subject state may only be mutated from the subject's own execution
// context. The Scheduler enforces that by owning a fixed set of shard workers
// (one goroutine and one FIFO queue each) plus a dedicated global worker:
//
//   - Global tasks run on the global worker.
//   - Region tasks run on the shard that owns the region containing the
//     location (world plus a square of chunks).
//   - Entity tasks run on the shard that currently owns the subject. A subject
//     is owned by the shard of the region it stands in; Move hands it off.
//
// Entity tasks for a subject that is no longer attached are dropped rather
// than queued, and a periodic entity task cancels itself when its subject
// detaches.
//
// # Entity contexts
//
// Entity callbacks receive an *EntityContext. The context is only valid while
// the callback runs; using it afterwards (for example from a goroutine that
// was started inside the callback) is refused and logged, or panics when the
// scheduler runs in debug mode.
//
// # Waiting for entity work
//
// RunEntityWait submits an entity callback and blocks until it ran, was
// dropped, or the context ended:
//
//	err := sched.RunEntityWait(ctx, id, func(ec *scheduler.EntityContext) error {
//	    snap = capturer.Capture(ec.Player())
//	    return nil
//	})
//	if errors.Is(err, scheduler.ErrDropped) {
//	    // subject left before the callback ran
//	}
//
// RunEntityWait must not be called from a scheduler worker.
package scheduler
