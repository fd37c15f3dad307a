package route

import (
	"context"
	"fmt"
	"time"

	"github.com/twpayne/go-polyline"

	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/model"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 15 * time.Second

// DefaultThresholdMinutes is the traffic delay above which a route is replaced.
const DefaultThresholdMinutes = 5.0

// Planner turns drop-off sets into paths through a Provider.
type Planner struct {
	provider Provider
	timeout  time.Duration
	log      logger.Logger
}

// NewPlanner creates a Planner. A non-positive timeout uses DefaultTimeout.
func NewPlanner(p Provider, timeout time.Duration, log logger.Logger) *Planner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Planner{provider: p, timeout: timeout, log: log}
}

// PlanRoute returns the path from origin through the valid waypoints. With no
// valid waypoint left it returns an empty path and no error. Provider or
// decoding failures return an empty path and an error wrapping
// model.ErrRoutingProviderFailure; callers keep their previous route.
func (p *Planner) PlanRoute(ctx context.Context, origin geo.Point, waypoints []geo.Point) ([]geo.Point, error) {
	if !origin.Valid() {
		return nil, fmt.Errorf("origin %v: %w", origin, model.ErrInvalidCoordinate)
	}
	wps := validWaypoints(waypoints)
	if len(wps) == 0 {
		return nil, nil
	}
	dir, err := p.directions(ctx, origin, wps, false)
	if err != nil {
		return nil, err
	}
	return Decode(dir.Polyline)
}

// RerouteRequest describes the current trip of a busy agent.
type RerouteRequest struct {
	AgentID          string
	Origin           geo.Point
	Waypoints        []geo.Point
	Old              []geo.Point
	ThresholdMinutes float64
}

// Decision is the outcome of Reroute. Route is Old unless Changed.
type Decision struct {
	Route        []geo.Point
	Changed      bool
	DelayMinutes float64
}

// Reroute asks the provider for a traffic-aware path and replaces Old when
// the summed traffic delay exceeds req.ThresholdMinutes. The threshold is
// used as given, so zero replaces the route on any delay. On failure, or when
// the provider returns an empty path, Old is returned along with the error.
func (p *Planner) Reroute(ctx context.Context, req RerouteRequest) (Decision, error) {
	keep := Decision{Route: req.Old}
	if !req.Origin.Valid() {
		return keep, fmt.Errorf("origin %v: %w", req.Origin, model.ErrInvalidCoordinate)
	}
	wps := validWaypoints(req.Waypoints)
	if len(wps) == 0 {
		return keep, nil
	}
	dir, err := p.directions(ctx, req.Origin, wps, true)
	if err != nil {
		return keep, err
	}
	keep.DelayMinutes = dir.Delay().Minutes()
	if keep.DelayMinutes <= req.ThresholdMinutes {
		p.log.Debugf("reroute: agent %s delay %.1f min, keeping route", req.AgentID, keep.DelayMinutes)
		return keep, nil
	}
	pts, err := Decode(dir.Polyline)
	if err != nil {
		return keep, err
	}
	if len(pts) == 0 {
		return keep, fmt.Errorf("%w: empty path", model.ErrRoutingProviderFailure)
	}
	p.log.Infof("reroute: agent %s delay %.1f min, new route with %d points", req.AgentID, keep.DelayMinutes, len(pts))
	return Decision{Route: pts, Changed: true, DelayMinutes: keep.DelayMinutes}, nil
}

func (p *Planner) directions(ctx context.Context, origin geo.Point, wps []geo.Point, traffic bool) (Directions, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	dir, err := p.provider.Directions(ctx, origin, wps, traffic)
	if err != nil {
		return Directions{}, fmt.Errorf("%w: %w", model.ErrRoutingProviderFailure, err)
	}
	return dir, nil
}

func validWaypoints(in []geo.Point) []geo.Point {
	out := make([]geo.Point, 0, len(in))
	for _, w := range in {
		if w.Valid() {
			out = append(out, w)
		}
	}
	return out
}

// Decode expands an encoded polyline into points.
func Decode(s string) ([]geo.Point, error) {
	coords, _, err := polyline.DecodeCoords([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%w: decode polyline: %w", model.ErrRoutingProviderFailure, err)
	}
	out := make([]geo.Point, len(coords))
	for i, c := range coords {
		out[i] = geo.Point{Lat: c[0], Lng: c[1]}
	}
	return out, nil
}

// Encode is the inverse of Decode.
func Encode(pts []geo.Point) string {
	coords := make([][]float64, len(pts))
	for i, p := range pts {
		coords[i] = []float64{p.Lat, p.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}
