package subject

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Location is a position and facing inside a named world.
type Location struct {
	World string
	X     float64
	Y     float64
	Z     float64
	Yaw   float32
	Pitch float32
}

// ParseLocation decodes the "world;x;y;z;yaw;pitch" text form.
// Yaw and pitch are optional and default to zero.
func ParseLocation(s string) (Location, error) {
	parts := strings.Split(s, ";")
	if len(parts) != 4 && len(parts) != 6 {
		return Location{}, fmt.Errorf("invalid location %q: expected 4 or 6 fields, got %d", s, len(parts))
	}
	if parts[0] == "" {
		return Location{}, fmt.Errorf("invalid location %q: world is empty", s)
	}

	loc := Location{World: parts[0]}
	coords := []*float64{&loc.X, &loc.Y, &loc.Z}
	for i, dst := range coords {
		v, err := strconv.ParseFloat(parts[i+1], 64)
		if err != nil {
			return Location{}, fmt.Errorf("invalid location %q: field %d: %w", s, i+1, err)
		}
		*dst = v
	}

	if len(parts) == 6 {
		yaw, err := strconv.ParseFloat(parts[4], 32)
		if err != nil {
			return Location{}, fmt.Errorf("invalid location %q: yaw: %w", s, err)
		}
		pitch, err := strconv.ParseFloat(parts[5], 32)
		if err != nil {
			return Location{}, fmt.Errorf("invalid location %q: pitch: %w", s, err)
		}
		loc.Yaw = float32(yaw)
		loc.Pitch = float32(pitch)
	}

	return loc, nil
}

// String encodes the location in its persisted text form.
func (l Location) String() string {
	return strings.Join([]string{
		l.World,
		strconv.FormatFloat(l.X, 'f', -1, 64),
		strconv.FormatFloat(l.Y, 'f', -1, 64),
		strconv.FormatFloat(l.Z, 'f', -1, 64),
		strconv.FormatFloat(float64(l.Yaw), 'f', -1, 32),
		strconv.FormatFloat(float64(l.Pitch), 'f', -1, 32),
	}, ";")
}

// Distance returns the Euclidean distance between two locations.
// Locations in different worlds are infinitely far apart.
func (l Location) Distance(o Location) float64 {
	if l.World != o.World {
		return math.Inf(1)
	}
	dx := l.X - o.X
	dy := l.Y - o.Y
	dz := l.Z - o.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// Within reports whether o lies no farther than radius from l.
func (l Location) Within(o Location, radius float64) bool {
	return l.Distance(o) <= radius
}

// Block returns the integer block coordinates of the location.
func (l Location) Block() (x, z int) {
	return int(math.Floor(l.X)), int(math.Floor(l.Z))
}
