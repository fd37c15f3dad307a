package model

import (
	"time"

	"github.com/kilianp07/darkstore/core/geo"
)

// Route is the path an agent follows through its batch's drop-off points.
type Route struct {
	AgentID   string      `json:"agent_id"`
	Points    []geo.Point `json:"points"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Progress maps pos onto the route as a fraction in [0,1] using the index of
// the closest route point.
func (r Route) Progress(pos geo.Point) float64 {
	switch len(r.Points) {
	case 0:
		return 0
	case 1:
		return 1
	}
	i := geo.ClosestIndex(r.Points, pos)
	p := float64(i) / float64(len(r.Points)-1)
	return min(max(p, 0), 1)
}
