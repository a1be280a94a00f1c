package subject

import (
	"fmt"

	"github.com/google/uuid"
)

// ID uniquely identifies a subject across sessions.
type ID = uuid.UUID

// Nil is the zero ID. It never identifies a real subject.
var Nil = uuid.Nil

// ParseID parses the canonical textual form of an ID.
func ParseID(s string) (ID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("invalid subject id %q: %w", s, err)
	}
	return id, nil
}

// NewID returns a random ID. Used by tests and the in-process session registry.
func NewID() ID {
	return uuid.New()
}

// Subject is a connected player as seen by the containment subsystem.
type Subject struct {
	// ID is the stable identity of the subject.
	ID ID

	// Name is the display name at the time the subject was observed.
	Name string
}

// String returns "name (id)".
func (s Subject) String() string {
	return fmt.Sprintf("%s (%s)", s.Name, s.ID)
}
