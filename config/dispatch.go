package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/darkstore/core/batch"
	"github.com/kilianp07/darkstore/core/fleet"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/reconcile"
)

// DefaultDepot is the dark store used when none is configured.
var DefaultDepot = geo.Point{Lat: 18.5286, Lng: 73.8748}

// DispatchConfig tunes batching and the reconciliation intervals.
type DispatchConfig struct {
	// Mode is greedy or partition.
	Mode                    string     `json:"mode"`
	MaxDistanceKm           float64    `json:"max_distance_km"`
	MaxOrders               int        `json:"max_orders"`
	MaxIterations           int        `json:"max_iterations"`
	PickingIntervalSeconds  int        `json:"picking_interval_seconds"`
	DeliveryIntervalSeconds int        `json:"delivery_interval_seconds"`
	RoutingIntervalSeconds  int        `json:"routing_interval_seconds"`
	Depot                   *geo.Point `json:"depot"`
}

func (c *DispatchConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = batch.ModeGreedy.String()
	}
	if c.MaxDistanceKm <= 0 {
		c.MaxDistanceKm = 1.0
	}
	if c.PickingIntervalSeconds <= 0 {
		c.PickingIntervalSeconds = 30
	}
	if c.DeliveryIntervalSeconds <= 0 {
		c.DeliveryIntervalSeconds = 30
	}
	if c.RoutingIntervalSeconds <= 0 {
		c.RoutingIntervalSeconds = 10
	}
	if c.Depot == nil {
		d := DefaultDepot
		c.Depot = &d
	}
}

func (c DispatchConfig) Validate() error {
	if _, err := batch.ParseMode(c.Mode); err != nil {
		return err
	}
	if c.MaxOrders < 0 {
		return fmt.Errorf("max_orders must not be negative: %d", c.MaxOrders)
	}
	if c.Depot != nil && !c.Depot.Valid() {
		return errors.New("depot is not a valid coordinate")
	}
	return nil
}

// BatchMode returns the parsed batching mode.
func (c DispatchConfig) BatchMode() batch.Mode {
	m, _ := batch.ParseMode(c.Mode)
	return m
}

func (c DispatchConfig) Params() batch.Params {
	return batch.Params{MaxDistanceKm: c.MaxDistanceKm, MaxOrders: c.MaxOrders, MaxIterations: c.MaxIterations}
}

// DepotPoint returns the configured depot or DefaultDepot.
func (c DispatchConfig) DepotPoint() geo.Point {
	if c.Depot == nil {
		return DefaultDepot
	}
	return *c.Depot
}

// Loop builds the reconciliation settings.
func (c DispatchConfig) Loop(threshold float64) reconcile.Config {
	return reconcile.Config{
		PickingInterval:  time.Duration(c.PickingIntervalSeconds) * time.Second,
		DeliveryInterval: time.Duration(c.DeliveryIntervalSeconds) * time.Second,
		RoutingInterval:  time.Duration(c.RoutingIntervalSeconds) * time.Second,
		Mode:             c.BatchMode(),
		Params:           c.Params(),
		ThresholdMinutes: threshold,
	}
}

// SimulationConfig drives the fleet simulator.
type SimulationConfig struct {
	TickMS      int     `json:"tick_ms"`
	ProximityKm float64 `json:"proximity_km"`
	// AutoStart turns the simulation flag on at startup.
	AutoStart bool `json:"auto_start"`
}

func (c *SimulationConfig) SetDefaults() {
	if c.TickMS <= 0 {
		c.TickMS = int(fleet.DefaultTick / time.Millisecond)
	}
	if c.ProximityKm <= 0 {
		c.ProximityKm = fleet.DefaultProximityKm
	}
}

func (c SimulationConfig) Validate() error {
	if c.ProximityKm > 5 {
		return fmt.Errorf("proximity_km too large: %v", c.ProximityKm)
	}
	return nil
}

func (c SimulationConfig) Fleet() fleet.Config {
	return fleet.Config{Tick: time.Duration(c.TickMS) * time.Millisecond, ProximityKm: c.ProximityKm}
}

// RosterConfig sizes the demo data written by the seed command.
type RosterConfig struct {
	Pickers int `json:"pickers"`
	Agents  int `json:"agents"`
	Orders  int `json:"orders"`
	// RadiusKm bounds the drop-off spread around the depot.
	RadiusKm float64 `json:"radius_km"`
	// Seed makes generated data reproducible; zero uses the clock.
	Seed int64 `json:"seed"`
}

func (c *RosterConfig) SetDefaults() {
	if c.Pickers <= 0 {
		c.Pickers = 3
	}
	if c.Agents <= 0 {
		c.Agents = 3
	}
	if c.Orders <= 0 {
		c.Orders = 10
	}
	if c.RadiusKm <= 0 {
		c.RadiusKm = 3
	}
}

func (c RosterConfig) Validate() error {
	if c.RadiusKm > 50 {
		return fmt.Errorf("radius_km too large: %v", c.RadiusKm)
	}
	return nil
}
