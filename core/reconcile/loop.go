// Package reconcile runs the periodic picking, delivery and routing passes
// that keep the store converging toward a dispatched state.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/batch"
	"github.com/kilianp07/darkstore/core/events"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/metrics"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/monitoring"
	"github.com/kilianp07/darkstore/core/pool"
	"github.com/kilianp07/darkstore/core/route"
	"github.com/kilianp07/darkstore/core/store"
)

// Sub-loop names used in logs, metrics and monitor tags.
const (
	LoopPicking  = "picking"
	LoopDelivery = "delivery"
	LoopRouting  = "routing"
)

// Config holds tick intervals and pass parameters.
type Config struct {
	PickingInterval  time.Duration
	DeliveryInterval time.Duration
	RoutingInterval  time.Duration
	Mode             batch.Mode
	Params           batch.Params
	ThresholdMinutes float64
}

func (c *Config) setDefaults() {
	if c.PickingInterval <= 0 {
		c.PickingInterval = 30 * time.Second
	}
	if c.DeliveryInterval <= 0 {
		c.DeliveryInterval = 30 * time.Second
	}
	if c.RoutingInterval <= 0 {
		c.RoutingInterval = 10 * time.Second
	}
	if c.ThresholdMinutes <= 0 {
		c.ThresholdMinutes = route.DefaultThresholdMinutes
	}
}

// Filler assigns pending picking work.
type Filler interface {
	Fill(ctx context.Context) ([]assign.Assignment, error)
}

// BatchRunner commits delivery batches.
type BatchRunner interface {
	Run(ctx context.Context, mode batch.Mode, p batch.Params) (batch.Result, error)
}

// Router plans and revises routes.
type Router interface {
	PlanRoute(ctx context.Context, origin geo.Point, waypoints []geo.Point) ([]geo.Point, error)
	Reroute(ctx context.Context, req route.RerouteRequest) (route.Decision, error)
}

// Simulation is the part of the fleet simulator the loop drives.
type Simulation interface {
	Active() bool
	Running(agentID string) bool
	Launch(ctx context.Context, agentID string, path []geo.Point) bool
	Replace(agentID string, path []geo.Point) bool
}

// Deps groups the collaborators of a Loop. Monitor, Sink and Bus are optional.
type Deps struct {
	Pool    *pool.Pool
	Picking Filler
	Batcher BatchRunner
	Router  Router
	Sim     Simulation
	Depot   geo.Point
	Monitor monitoring.Monitor
	Sink    metrics.Sink
	Bus     events.Publisher
	Log     logger.Logger
}

// Report summarises one tick. Failures are per-item errors that will be
// retried; Aborted is set when the store became unreachable mid-tick.
type Report struct {
	Loop     string
	Actions  int
	Failures []error
	Aborted  error
}

// Loop runs the three reconciliation sub-loops.
type Loop struct {
	cfg Config
	Deps
}

// New creates a Loop.
func New(cfg Config, d Deps) *Loop {
	cfg.setDefaults()
	d.Monitor = monitoring.OrNop(d.Monitor)
	if d.Sink == nil {
		d.Sink = metrics.NopSink{}
	}
	return &Loop{cfg: cfg, Deps: d}
}

// Run ticks every sub-loop until ctx ends. A failed tick never stops a loop.
func (l *Loop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.every(ctx, LoopPicking, l.cfg.PickingInterval, l.PickingTick) })
	g.Go(func() error { return l.every(ctx, LoopDelivery, l.cfg.DeliveryInterval, l.DeliveryTick) })
	g.Go(func() error { return l.every(ctx, LoopRouting, l.cfg.RoutingInterval, l.RoutingTick) })
	return g.Wait()
}

func (l *Loop) every(ctx context.Context, name string, interval time.Duration, tick func(context.Context) Report) error {
	l.Log.Infof("reconcile: %s loop every %s", name, interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		l.observe(ctx, name, tick)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (l *Loop) observe(ctx context.Context, name string, tick func(context.Context) Report) {
	start := time.Now()
	tags := map[string]string{"loop": name}
	defer func() {
		if r := recover(); r != nil {
			l.Log.Errorf("reconcile: %s tick panicked: %v", name, r)
			l.Monitor.Recover(r, tags)
			_ = l.Sink.RecordTick(metrics.TickEvent{Loop: name, Duration: time.Since(start), Aborted: true, Time: start})
		}
	}()
	rep := tick(ctx)
	for _, err := range rep.Failures {
		l.Monitor.CaptureException(err, tags)
	}
	if rep.Aborted != nil && ctx.Err() == nil {
		l.Log.Errorf("reconcile: %s tick aborted: %v", name, rep.Aborted)
		l.Monitor.CaptureException(rep.Aborted, tags)
	}
	_ = l.Sink.RecordTick(metrics.TickEvent{
		Loop:     name,
		Duration: time.Since(start),
		Failures: len(rep.Failures),
		Aborted:  rep.Aborted != nil,
		Time:     start,
	})
}

// fail records err on rep and reports whether the tick must stop.
func (rep *Report) fail(err error) bool {
	if errors.Is(err, model.ErrStoreUnreachable) || errors.Is(err, context.Canceled) {
		rep.Aborted = err
		return true
	}
	rep.Failures = append(rep.Failures, err)
	return false
}

// PickingTick refreshes the pool and hands pending orders to idle pickers.
func (l *Loop) PickingTick(ctx context.Context) Report {
	rep := Report{Loop: LoopPicking}
	if _, err := l.Pool.Refresh(ctx); err != nil {
		rep.fail(err)
		return rep
	}
	as, err := l.Picking.Fill(ctx)
	rep.Actions = len(as)
	if err != nil {
		rep.fail(err)
	}
	return rep
}

// DeliveryTick batches picked orders, then plans and launches a route for
// every agent that received a batch.
func (l *Loop) DeliveryTick(ctx context.Context) Report {
	rep := Report{Loop: LoopDelivery}
	if _, err := l.Pool.Refresh(ctx); err != nil {
		rep.fail(err)
		return rep
	}
	res, err := l.Batcher.Run(ctx, l.cfg.Mode, l.cfg.Params)
	if err != nil {
		rep.fail(err)
		return rep
	}
	for agentID, msg := range res.Failures {
		rep.fail(fmt.Errorf("batch for agent %s: %s", agentID, msg))
	}
	if len(res.Committed) == 0 {
		return rep
	}
	snap, err := l.Pool.Refresh(ctx)
	if err != nil {
		rep.fail(err)
		return rep
	}
	for _, a := range res.Committed {
		rep.Actions++
		agent, ok := findAgent(snap, a.WorkerID)
		if !ok {
			continue
		}
		if err := l.plan(ctx, agent, dropOffs(snap, a.OrderIDs)); err != nil && rep.fail(err) {
			return rep
		}
	}
	return rep
}

// RoutingTick gives every busy agent a route and a running task, and checks
// existing routes for traffic delays.
func (l *Loop) RoutingTick(ctx context.Context) Report {
	rep := Report{Loop: LoopRouting}
	snap, err := l.Pool.Refresh(ctx)
	if err != nil {
		rep.fail(err)
		return rep
	}
	repo := l.Pool.Repository()
	for _, agent := range snap.BusyAgents() {
		wps := dropOffs(snap, agent.AssignedOrders)
		if len(wps) == 0 {
			continue
		}
		running := l.Sim.Running(agent.ID)
		stored, err := repo.Route(ctx, agent.ID)
		hasRoute := err == nil
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			if rep.fail(err) {
				return rep
			}
			continue
		}
		if !running && (!hasRoute || l.Sim.Active()) {
			if err := l.plan(ctx, agent, wps); err != nil && rep.fail(err) {
				return rep
			}
			rep.Actions++
			continue
		}
		changed, err := l.reroute(ctx, agent, wps, stored.Points, running)
		if err != nil && rep.fail(err) {
			return rep
		}
		if changed {
			rep.Actions++
		}
	}
	return rep
}

// plan computes, stores and, when the simulation is on, starts a route.
func (l *Loop) plan(ctx context.Context, agent model.Agent, wps []geo.Point) error {
	if len(wps) == 0 {
		return nil
	}
	pts, err := l.Router.PlanRoute(ctx, l.origin(agent), wps)
	if err != nil {
		return fmt.Errorf("plan route for %s: %w", agent.ID, err)
	}
	if len(pts) == 0 {
		return nil
	}
	if err := l.save(ctx, agent.ID, pts, false, 0); err != nil {
		return err
	}
	if l.Sim.Active() && l.Sim.Launch(ctx, agent.ID, pts) {
		l.Log.Infof("reconcile: launched simulation for %s", agent.ID)
	}
	return nil
}

func (l *Loop) reroute(ctx context.Context, agent model.Agent, wps, old []geo.Point, running bool) (bool, error) {
	d, err := l.Router.Reroute(ctx, route.RerouteRequest{
		AgentID:          agent.ID,
		Origin:           l.origin(agent),
		Waypoints:        wps,
		Old:              old,
		ThresholdMinutes: l.cfg.ThresholdMinutes,
	})
	if err != nil {
		return false, fmt.Errorf("reroute %s: %w", agent.ID, err)
	}
	_ = l.Sink.RecordReroute(metrics.RerouteEvent{
		AgentID: agent.ID, DelayMinutes: d.DelayMinutes, Changed: d.Changed, Time: time.Now(),
	})
	if !d.Changed {
		return false, nil
	}
	if err := l.save(ctx, agent.ID, d.Route, true, d.DelayMinutes); err != nil {
		return false, err
	}
	if running {
		l.Sim.Replace(agent.ID, d.Route)
	}
	return true, nil
}

func (l *Loop) save(ctx context.Context, agentID string, pts []geo.Point, rerouted bool, delay float64) error {
	now := time.Now()
	rt := model.Route{AgentID: agentID, Points: pts, UpdatedAt: now}
	if err := l.Pool.Repository().SaveRoute(ctx, rt); err != nil {
		return fmt.Errorf("save route for %s: %w", agentID, err)
	}
	events.Publish(l.Bus, events.RouteEvent{AgentID: agentID, Points: pts, Rerouted: rerouted, DelayMinutes: delay, Time: now})
	return nil
}

func (l *Loop) origin(a model.Agent) geo.Point {
	if geo.ValidPtr(a.Location) {
		return *a.Location
	}
	return l.Depot
}

func findAgent(snap pool.Snapshot, id string) (model.Agent, bool) {
	for _, a := range snap.Agents {
		if a.ID == id {
			return a, true
		}
	}
	return model.Agent{}, false
}

// dropOffs returns the drop-off points of the listed orders still out for
// delivery.
func dropOffs(snap pool.Snapshot, ids []string) []geo.Point {
	var out []geo.Point
	for _, id := range ids {
		o, ok := snap.Order(id)
		if ok && o.Status == model.StatusOutForDelivery && geo.ValidPtr(o.DropOff) {
			out = append(out, *o.DropOff)
		}
	}
	return out
}
