package health

import (
	"context"
	"errors"

	"irondiscipline/warden/pkg/subject"
)

// Pinger is satisfied by store backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreCheck reports the record store unhealthy when it cannot be reached.
func StoreCheck(p Pinger) CheckFunc {
	return p.Ping
}

// LocationSource is satisfied by the containment location provider.
type LocationSource interface {
	Location() *subject.Location
}

// LocationCheck reports unhealthy while no confinement location is
// configured, since every confinement request is refused until one is.
func LocationCheck(src LocationSource) CheckFunc {
	return func(context.Context) error {
		if src.Location() == nil {
			return errors.New("confinement location not configured")
		}
		return nil
	}
}
