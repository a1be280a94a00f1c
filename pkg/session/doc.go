// Package session models the live side of a subject: its online status and
// the mutable state (possessions, game mode, position) that only its own
// execution context may touch.
//
// Registry is the in-process Directory used by the warden binary and by
// tests. A game host integration would provide its own Directory and Player
// implementations.
package session
