package app

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/kilianp07/darkstore/config"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/pool"
)

var seedItems = []string{"milk", "bread", "eggs", "rice", "apples", "coffee", "yogurt", "pasta"}

// SeedResult counts the records written by Seed.
type SeedResult struct {
	Pickers int `json:"pickers"`
	Agents  int `json:"agents"`
	Orders  int `json:"orders"`
}

// Seed writes idle pickers, available agents at the depot and unpicked
// orders scattered around it. Existing records with the same ids are
// replaced.
func Seed(ctx context.Context, repo *pool.Repository, rc config.RosterConfig, depot geo.Point) (SeedResult, error) {
	seed := rc.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewPCG(uint64(seed), 0))
	var res SeedResult

	for i := 1; i <= rc.Pickers; i++ {
		p := model.Picker{ID: fmt.Sprintf("P%d", i), Name: fmt.Sprintf("Picker %d", i), Active: true}
		if err := repo.SavePicker(ctx, p); err != nil {
			return res, err
		}
		res.Pickers++
	}
	for i := 1; i <= rc.Agents; i++ {
		loc := depot
		a := model.Agent{
			ID:             fmt.Sprintf("DA%d", i),
			Name:           fmt.Sprintf("Agent %d", i),
			Status:         model.AgentAvailable,
			Location:       &loc,
			Vehicle:        "bike",
			AssignedOrders: []string{},
		}
		if err := repo.SaveAgent(ctx, a); err != nil {
			return res, err
		}
		res.Agents++
	}
	now := time.Now().UTC()
	for i := 1; i <= rc.Orders; i++ {
		drop := scatter(rng, depot, rc.RadiusKm)
		o := model.Order{
			ID:           fmt.Sprintf("ORD%04d", i),
			Items:        pick(rng, 1+rng.IntN(3)),
			DropOff:      &drop,
			Status:       model.StatusUnpicked,
			CustomerName: fmt.Sprintf("Customer %d", i),
			SLA:          "30m",
			CreatedAt:    now.Add(time.Duration(i) * time.Millisecond),
		}
		if err := repo.SaveOrder(ctx, o); err != nil {
			return res, err
		}
		res.Orders++
	}
	return res, nil
}

// scatter returns a uniformly distributed point within radiusKm of c.
func scatter(rng *rand.Rand, c geo.Point, radiusKm float64) geo.Point {
	r := radiusKm * math.Sqrt(rng.Float64())
	theta := 2 * math.Pi * rng.Float64()
	dLat := r * math.Cos(theta) / 111.32
	dLng := r * math.Sin(theta) / (111.32 * math.Cos(c.Lat*math.Pi/180))
	return geo.Point{Lat: c.Lat + dLat, Lng: c.Lng + dLng}
}

func pick(rng *rand.Rand, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = seedItems[rng.IntN(len(seedItems))]
	}
	return out
}
