package routing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/route"
)

func TestLocalVisitsNearestFirst(t *testing.T) {
	origin := geo.Point{Lat: 0, Lng: 0}
	far := geo.Point{Lat: 0, Lng: 0.02}
	near := geo.Point{Lat: 0, Lng: 0.005}

	p := NewLocalProvider(LocalConfig{StepKm: 0.1, SpeedKmh: 30})
	dir, err := p.Directions(context.Background(), origin, []geo.Point{far, near}, false)
	require.NoError(t, err)

	pts, err := route.Decode(dir.Polyline)
	require.NoError(t, err)
	assert.Equal(t, origin, pts[0])
	last := pts[len(pts)-1]
	assert.InDelta(t, far.Lng, last.Lng, 1e-5)
	nearIdx := geo.ClosestIndex(pts, near)
	farIdx := geo.ClosestIndex(pts, far)
	assert.Less(t, nearIdx, farIdx)
	for i := 1; i < len(pts); i++ {
		assert.LessOrEqual(t, geo.Haversine(pts[i-1], pts[i]), 0.1+1e-3)
	}

	require.Len(t, dir.Legs, 2)
	assert.Zero(t, dir.Delay())
}

func TestLocalCongestionAddsDelay(t *testing.T) {
	p := NewLocalProvider(LocalConfig{SpeedKmh: 60, Congestion: 2})
	dir, err := p.Directions(context.Background(), geo.Point{}, []geo.Point{{Lat: 0, Lng: 0.1}}, true)
	require.NoError(t, err)
	require.Len(t, dir.Legs, 1)
	// ~11.1 km at 60 km/h is ~11 minutes, doubled under congestion.
	assert.InDelta(t, 11.1, dir.Legs[0].Duration.Minutes(), 0.1)
	assert.InDelta(t, dir.Legs[0].Duration.Minutes(), dir.Delay().Minutes(), 1e-6)
	assert.Greater(t, dir.Delay(), 10*time.Minute)
}

func TestLocalHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLocalProvider(LocalConfig{}).Directions(ctx, geo.Point{}, []geo.Point{{Lat: 1}}, false)
	assert.ErrorIs(t, err, context.Canceled)
}
