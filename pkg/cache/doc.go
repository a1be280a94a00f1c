// Package cache holds the in-process view of confinement state: the
// membership set, typed per-subject caches and delete tombstones.
//
// The store is authoritative. Every cache entry written from a store read
// goes through Populate, which refuses the write when the subject was
// invalidated at or after the moment the read started. That check and the
// write happen under the layer lock, so an Invalidate can never slip between
// them and a delete can never be undone by a slow read.
//
// A Janitor prunes tombstones and runs the membership sweep on cron
// schedules.
package cache
