// Package route plans multi-stop delivery paths and decides on traffic reroutes.
package route

import (
	"context"
	"time"

	"github.com/kilianp07/darkstore/core/geo"
)

// Leg is one segment of a directions response. DurationInTraffic is zero when
// the provider returned no traffic estimate for the leg.
type Leg struct {
	Duration          time.Duration
	DurationInTraffic time.Duration
}

// Directions is the provider answer for an origin and its waypoints.
type Directions struct {
	Polyline string
	Legs     []Leg
}

// Delay sums the extra time traffic adds across the legs. Legs without a
// traffic estimate contribute nothing.
func (d Directions) Delay() time.Duration {
	var total time.Duration
	for _, l := range d.Legs {
		if l.DurationInTraffic > 0 {
			total += l.DurationInTraffic - l.Duration
		}
	}
	return total
}

// Provider computes an optimised path from origin through every waypoint.
type Provider interface {
	Directions(ctx context.Context, origin geo.Point, waypoints []geo.Point, traffic bool) (Directions, error)
}
