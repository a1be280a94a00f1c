package config

import (
	"log/slog"
	"sync/atomic"

	"irondiscipline/warden/pkg/subject"
)

type confinementArea struct {
	loc    *subject.Location
	radius float64
}

// LocationSource publishes the current confinement location and radius.
// It is updated on configuration reload and read concurrently by the
// containment controller.
type LocationSource struct {
	area atomic.Pointer[confinementArea]
}

// NewLocationSource creates a source from the containment configuration.
// An invalid or empty location leaves the source unconfigured.
func NewLocationSource(cfg ContainmentConfig) *LocationSource {
	s := &LocationSource{}
	s.Update(cfg)
	return s
}

// Update replaces the published location and radius.
func (s *LocationSource) Update(cfg ContainmentConfig) {
	area := &confinementArea{radius: cfg.Radius}
	if cfg.Location != "" {
		loc, err := subject.ParseLocation(cfg.Location)
		if err != nil {
			slog.Default().Warn("ignoring invalid confinement location", "location", cfg.Location, "error", err)
		} else {
			area.loc = &loc
		}
	}
	s.area.Store(area)
}

// Location returns the confinement location, or nil when not configured.
func (s *LocationSource) Location() *subject.Location {
	area := s.area.Load()
	if area == nil || area.loc == nil {
		return nil
	}
	loc := *area.loc
	return &loc
}

// Radius returns the allowed distance from the confinement location.
func (s *LocationSource) Radius() float64 {
	area := s.area.Load()
	if area == nil {
		return DefaultRadius
	}
	return area.radius
}
