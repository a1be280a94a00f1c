// Package subject defines the identity and position types shared by every
// containment component.
//
// # Overview
//
// A Subject is a connected player: a stable 128-bit ID plus a display name.
// Subjects are created by the session system, never by this module.
//
// A Location is a position inside a named world. Locations are persisted as
// opaque text in the form "world;x;y;z;yaw;pitch" so the store never has to
// understand their structure:
//
//	loc, err := subject.ParseLocation("world;100.5;64;-20.5;90;0")
//	if err != nil {
//	    return err
//	}
//	text := loc.String()
//
// Distance between locations in different worlds is infinite, which makes
// boundary checks treat a world change as an escape.
package subject
