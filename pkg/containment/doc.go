// Package containment confines subjects, restores them on release and
// reconciles persisted confinement with live sessions.
//
// The Controller is the only writer of the membership set and the detail
// and snapshot caches. Live subject state is only touched inside entity
// callbacks of the scheduler; store calls and snapshot encoding happen on the
// calling goroutine and take a context.
//
// Ordering guarantees:
//
//   - Confine persists the record before clearing the subject's inventory.
//   - Release restores the subject before deleting the record, and marks the
//     record first so an interrupted release is finished on the next join.
//   - Reconciling an offline confinement saves the captured snapshot before
//     clearing, so the inventory is cleared exactly once.
//
// Inbound events reach the controller through a Dispatcher, which maps each
// event type to exactly one handler.
package containment
