package routing

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/route"
)

// LocalConfig tunes the offline provider.
type LocalConfig struct {
	// StepKm is the spacing of interpolated points along each segment.
	StepKm float64 `json:"step_km"`
	// SpeedKmh is the free-flow speed used for leg durations.
	SpeedKmh float64 `json:"speed_kmh"`
	// Congestion multiplies free-flow durations for traffic estimates; values
	// at or below 1 mean no delay.
	Congestion float64 `json:"congestion"`
}

// LocalProvider plans routes without a network: stops are visited in
// nearest-neighbour order along straight segments.
type LocalProvider struct {
	cfg LocalConfig
}

// NewLocalProvider creates a LocalProvider with defaults for unset fields.
func NewLocalProvider(cfg LocalConfig) *LocalProvider {
	if cfg.StepKm <= 0 {
		cfg.StepKm = 0.05
	}
	if cfg.SpeedKmh <= 0 {
		cfg.SpeedKmh = 20
	}
	return &LocalProvider{cfg: cfg}
}

// Directions implements route.Provider.
func (l *LocalProvider) Directions(ctx context.Context, origin geo.Point, waypoints []geo.Point, traffic bool) (route.Directions, error) {
	if err := ctx.Err(); err != nil {
		return route.Directions{}, err
	}
	if len(waypoints) == 0 {
		return route.Directions{}, errors.New("no waypoints")
	}
	path := []geo.Point{origin}
	var legs []route.Leg
	cur := origin
	for _, next := range nearestNeighbour(origin, waypoints) {
		path = append(path, geo.Interpolate(cur, next, l.cfg.StepKm)...)
		legs = append(legs, l.leg(geo.Haversine(cur, next), traffic))
		cur = next
	}
	return route.Directions{Polyline: route.Encode(path), Legs: legs}, nil
}

func (l *LocalProvider) leg(km float64, traffic bool) route.Leg {
	d := time.Duration(km / l.cfg.SpeedKmh * float64(time.Hour))
	leg := route.Leg{Duration: d}
	if traffic {
		f := l.cfg.Congestion
		if f < 1 {
			f = 1
		}
		leg.DurationInTraffic = time.Duration(float64(d) * f)
	}
	return leg
}

// nearestNeighbour orders stops greedily by distance from the current
// position. Ties keep input order.
func nearestNeighbour(from geo.Point, stops []geo.Point) []geo.Point {
	remaining := append([]geo.Point(nil), stops...)
	out := make([]geo.Point, 0, len(stops))
	cur := from
	for len(remaining) > 0 {
		best := 0
		bestDist := geo.Haversine(cur, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if d := geo.Haversine(cur, remaining[i]); d < bestDist {
				best, bestDist = i, d
			}
		}
		cur = remaining[best]
		out = append(out, cur)
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}
