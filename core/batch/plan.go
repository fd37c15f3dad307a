// Package batch groups picked orders into per-agent delivery batches.
package batch

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/model"
)

// Mode selects the batching strategy.
type Mode int

const (
	// ModeGreedy builds one batch per agent around an anchor order.
	ModeGreedy Mode = iota
	// ModePartition splits the whole backlog into one cluster per agent.
	ModePartition
)

func (m Mode) String() string {
	if m == ModePartition {
		return "partition"
	}
	return "greedy"
}

// ParseMode accepts "greedy" or "partition" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "greedy", "":
		return ModeGreedy, nil
	case "partition", "kmeans":
		return ModePartition, nil
	}
	return ModeGreedy, fmt.Errorf("unknown batching mode %q", s)
}

// DefaultMaxIterations caps Lloyd iterations in partition mode.
const DefaultMaxIterations = 100

// Params tunes both strategies.
type Params struct {
	// MaxDistanceKm is the greedy attach radius around the anchor.
	MaxDistanceKm float64 `json:"max_distance_km"`
	// MaxOrders limits the greedy batch size; zero means unlimited.
	MaxOrders int `json:"max_orders"`
	// MaxIterations caps k-means refinement; zero uses DefaultMaxIterations.
	MaxIterations int `json:"max_iterations"`
}

// Batch is a transient group of orders bound to one agent.
type Batch struct {
	AgentID  string   `json:"agent_id"`
	AnchorID string   `json:"anchor_id"`
	OrderIDs []string `json:"order_ids"`
}

// Proposal is the outcome of a batching pass.
type Proposal struct {
	Batches       []Batch  `json:"batches"`
	SkippedOrders []string `json:"skipped_orders,omitempty"`
	SkippedAgents []string `json:"skipped_agents,omitempty"`
}

// Plan groups orders for agents. It performs no I/O and returns the same
// batches for the same inputs.
func Plan(orders []model.Order, agents []model.Agent, mode Mode, p Params) []Batch {
	return Propose(orders, agents, mode, p).Batches
}

// Propose is Plan that also reports orders and agents skipped for lacking a
// valid coordinate.
func Propose(orders []model.Order, agents []model.Agent, mode Mode, p Params) Proposal {
	var plan Proposal
	var validOrders []model.Order
	for _, o := range orders {
		if !geo.ValidPtr(o.DropOff) {
			plan.SkippedOrders = append(plan.SkippedOrders, o.ID)
			continue
		}
		validOrders = append(validOrders, o)
	}
	var validAgents []model.Agent
	for _, a := range agents {
		if !geo.ValidPtr(a.Location) {
			plan.SkippedAgents = append(plan.SkippedAgents, a.ID)
			continue
		}
		validAgents = append(validAgents, a)
	}
	if len(validOrders) == 0 || len(validAgents) == 0 {
		return plan
	}
	if mode == ModePartition {
		plan.Batches = partition(validOrders, validAgents, p)
	} else {
		plan.Batches = greedy(validOrders, validAgents, p)
	}
	return plan
}

// greedy takes the first unclaimed order as anchor for each agent in turn and
// attaches every unclaimed order within MaxDistanceKm of it.
func greedy(orders []model.Order, agents []model.Agent, p Params) []Batch {
	claimed := make([]bool, len(orders))
	next := 0
	var out []Batch
	for _, a := range agents {
		for next < len(orders) && claimed[next] {
			next++
		}
		if next == len(orders) {
			break
		}
		anchor := orders[next]
		claimed[next] = true
		b := Batch{AgentID: a.ID, AnchorID: anchor.ID, OrderIDs: []string{anchor.ID}}
		for i := next + 1; i < len(orders); i++ {
			if p.MaxOrders > 0 && len(b.OrderIDs) >= p.MaxOrders {
				break
			}
			if claimed[i] {
				continue
			}
			if geo.Haversine(*anchor.DropOff, *orders[i].DropOff) <= p.MaxDistanceKm {
				claimed[i] = true
				b.OrderIDs = append(b.OrderIDs, orders[i].ID)
			}
		}
		out = append(out, b)
	}
	return out
}

// partition clusters all orders into min(|agents|, |orders|) groups with
// k-means on (lat, lng). Seeding is deterministic: the first order seeds
// cluster 0 and each further seed is the order farthest from the seeds so far.
func partition(orders []model.Order, agents []model.Agent, p Params) []Batch {
	k := min(len(agents), len(orders))
	if k == 1 {
		ids := make([]string, len(orders))
		for i, o := range orders {
			ids[i] = o.ID
		}
		return []Batch{{AgentID: agents[0].ID, AnchorID: ids[0], OrderIDs: ids}}
	}
	pts := make([][]float64, len(orders))
	for i, o := range orders {
		pts[i] = []float64{o.DropOff.Lat, o.DropOff.Lng}
	}
	labels := kmeans(pts, k, p.MaxIterations)

	clusters := make([][]string, k)
	for i, l := range labels {
		clusters[l] = append(clusters[l], orders[i].ID)
	}
	var out []Batch
	for c, ids := range clusters {
		if len(ids) == 0 {
			continue
		}
		out = append(out, Batch{AgentID: agents[c].ID, AnchorID: ids[0], OrderIDs: ids})
	}
	return out
}

func kmeans(pts [][]float64, k, maxIter int) []int {
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	centroids := seed(pts, k)
	labels := make([]int, len(pts))
	for i := range labels {
		labels[i] = -1
	}
	lat := make([]float64, 0, len(pts))
	lng := make([]float64, 0, len(pts))
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, pt := range pts {
			if l := nearest(centroids, pt); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			break
		}
		for c := range centroids {
			lat, lng = lat[:0], lng[:0]
			for i, l := range labels {
				if l == c {
					lat = append(lat, pts[i][0])
					lng = append(lng, pts[i][1])
				}
			}
			if len(lat) == 0 {
				continue
			}
			centroids[c] = []float64{stat.Mean(lat, nil), stat.Mean(lng, nil)}
		}
	}
	return labels
}

// seed picks k initial centroids by farthest-point traversal.
func seed(pts [][]float64, k int) [][]float64 {
	centroids := [][]float64{append([]float64(nil), pts[0]...)}
	for len(centroids) < k {
		best, bestDist := 0, -1.0
		for i, pt := range pts {
			d := floats.Distance(pt, centroids[nearest(centroids, pt)], 2)
			if d > bestDist {
				best, bestDist = i, d
			}
		}
		centroids = append(centroids, append([]float64(nil), pts[best]...))
	}
	return centroids
}

// nearest returns the index of the closest centroid, lowest index on ties.
func nearest(centroids [][]float64, pt []float64) int {
	best, bestDist := 0, floats.Distance(pt, centroids[0], 2)
	for c := 1; c < len(centroids); c++ {
		if d := floats.Distance(pt, centroids[c], 2); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}
