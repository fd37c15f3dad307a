// Package control exposes the dispatch operations consumed by the CLI and by
// any outer API layer. Every operation returns a Result instead of an error.
package control

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/batch"
	"github.com/kilianp07/darkstore/core/fleet"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/pool"
	"github.com/kilianp07/darkstore/core/reconcile"
)

// Result is the outcome of a control operation.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func ok(msg string, data any) Result { return Result{Success: true, Message: msg, Data: data} }

func fail(err error) Result { return Result{Message: err.Error()} }

// RoutingTicker runs one routing pass on demand.
type RoutingTicker interface {
	RoutingTick(ctx context.Context) reconcile.Report
}

// Controller wires the queues, batcher and simulator behind one surface.
type Controller struct {
	repo     *pool.Repository
	picking  *assign.Queue
	delivery *assign.Queue
	batcher  *batch.Batcher
	sim      *fleet.Simulator
	routing  RoutingTicker
	log      logger.Logger
}

// New creates a Controller. routing may be nil, in which case starting the
// simulation waits for the next routing tick to launch tasks.
func New(repo *pool.Repository, picking, delivery *assign.Queue, b *batch.Batcher, sim *fleet.Simulator, routing RoutingTicker, log logger.Logger) *Controller {
	return &Controller{repo: repo, picking: picking, delivery: delivery, batcher: b, sim: sim, routing: routing, log: log}
}

// AssignPicker gives orderID (or the oldest pending order) to pickerID (or
// the first idle picker).
func (c *Controller) AssignPicker(ctx context.Context, orderID, pickerID string) Result {
	a, err := c.picking.Assign(ctx, assign.Request{OrderID: orderID, WorkerID: pickerID})
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("order %s assigned to picker %s", a.OrderIDs[0], a.WorkerID), a)
}

// AutoAssignPickers assigns pending orders until pickers or orders run out.
func (c *Controller) AutoAssignPickers(ctx context.Context) Result {
	as, err := c.picking.Fill(ctx)
	if err != nil {
		return Result{Message: err.Error(), Data: as}
	}
	if len(as) == 0 {
		return Result{Message: "nothing to assign"}
	}
	return ok(fmt.Sprintf("assigned %d orders to pickers", len(as)), as)
}

// UpdateProgress records picking progress; 100 completes the order.
func (c *Controller) UpdateProgress(ctx context.Context, pickerID string, pct int) Result {
	got, done, err := c.picking.SetProgress(ctx, pickerID, pct)
	if err != nil {
		return fail(err)
	}
	if done != nil {
		return ok(fmt.Sprintf("picker %s completed %v", pickerID, done.OrderIDs), done)
	}
	return ok(fmt.Sprintf("picker %s at %d%%", pickerID, got), map[string]int{"progress": got})
}

// CompletePicking marks the order of pickerID as picked.
func (c *Controller) CompletePicking(ctx context.Context, pickerID string) Result {
	done, err := c.picking.Complete(ctx, pickerID)
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("picker %s completed %v", pickerID, done.OrderIDs), done)
}

// ResetPickers frees all pickers and reverts their orders.
func (c *Controller) ResetPickers(ctx context.Context) Result {
	res, err := c.picking.Reset(ctx)
	if err != nil {
		return Result{Message: err.Error(), Data: res}
	}
	return ok(fmt.Sprintf("reset %d pickers", len(res.Workers)), res)
}

// PickingQueue reports the picking backlog against picker availability.
func (c *Controller) PickingQueue(ctx context.Context) Result {
	st, err := c.picking.Status(ctx)
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("%d orders pending", st.Pending), st)
}

// BatchDeliveries groups picked orders onto available agents.
func (c *Controller) BatchDeliveries(ctx context.Context, mode batch.Mode, p batch.Params) Result {
	res, err := c.batcher.Run(ctx, mode, p)
	if err != nil {
		return Result{Message: err.Error(), Data: res}
	}
	return ok(fmt.Sprintf("committed %d batches", len(res.Committed)), res)
}

// AssignSingleDelivery gives one picked order to one agent.
func (c *Controller) AssignSingleDelivery(ctx context.Context, orderID, agentID string) Result {
	a, err := c.delivery.Assign(ctx, assign.Request{OrderID: orderID, WorkerID: agentID})
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("order %s out for delivery with %s", a.OrderIDs[0], a.WorkerID), a)
}

// CompleteDelivery marks one order of agentID as delivered.
func (c *Controller) CompleteDelivery(ctx context.Context, agentID, orderID string) Result {
	done, err := c.delivery.CompleteOrder(ctx, agentID, orderID)
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("order %s delivered by %s", orderID, agentID), done)
}

// ResetDeliveries stops every simulation task, frees all agents and returns
// their orders to Picked.
func (c *Controller) ResetDeliveries(ctx context.Context) Result {
	c.sim.CancelAll()
	res, err := c.delivery.Reset(ctx)
	if err != nil {
		return Result{Message: err.Error(), Data: res}
	}
	return ok(fmt.Sprintf("reset %d agents", len(res.Workers)), res)
}

// UpdateOrderStatus moves an order along its lifecycle. Changes to an order
// held by a worker go through that worker's queue so the worker is updated.
// Reverts are left to ResetPickers and ResetDeliveries.
func (c *Controller) UpdateOrderStatus(ctx context.Context, orderID, status string) Result {
	to, err := model.ParseStatus(status)
	if err != nil {
		return fail(err)
	}
	o, err := c.repo.Order(ctx, orderID)
	if err != nil {
		return fail(err)
	}
	if o.Status.Reverts(to) {
		return fail(fmt.Errorf("order %s: %s to %s is only done by a reset: %w", orderID, o.Status, to, model.ErrInvalidTransition))
	}
	switch {
	case o.Status == model.StatusPicking && o.PickerID != "":
		switch to {
		case model.StatusPicked:
			done, err := c.picking.CompleteOrder(ctx, o.PickerID, orderID)
			if err != nil {
				return fail(err)
			}
			return ok(fmt.Sprintf("picker %s completed %v", o.PickerID, done.OrderIDs), done)
		case model.StatusFailed:
			return c.failHeld(ctx, c.picking, o.PickerID, orderID)
		}
	case o.Status == model.StatusOutForDelivery && o.AgentID != "":
		switch to {
		case model.StatusDelivered:
			return c.CompleteDelivery(ctx, o.AgentID, orderID)
		case model.StatusFailed:
			res := c.failHeld(ctx, c.delivery, o.AgentID, orderID)
			if res.Success && res.Data.(assign.Completion).Freed {
				c.sim.Cancel(o.AgentID)
			}
			return res
		}
	}
	fields, err := o.Transition(to, time.Now())
	if err != nil {
		return fail(err)
	}
	if err := c.repo.MergeOrder(ctx, orderID, fields); err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("order %s is now %s", orderID, to), fields)
}

func (c *Controller) failHeld(ctx context.Context, q *assign.Queue, workerID, orderID string) Result {
	done, err := q.FailOrder(ctx, workerID, orderID)
	if err != nil {
		return fail(err)
	}
	return ok(fmt.Sprintf("order %s failed, released from %s", orderID, workerID), done)
}

// StartSimulation enables agent movement and launches tasks for busy agents.
func (c *Controller) StartSimulation(ctx context.Context) Result {
	if !c.sim.Start() {
		return Result{Message: "simulation already running"}
	}
	if c.routing != nil {
		rep := c.routing.RoutingTick(context.WithoutCancel(ctx))
		if rep.Aborted != nil {
			c.log.Warnf("control: initial routing pass aborted: %v", rep.Aborted)
		}
	}
	return ok("route simulation started", map[string]any{"agents": c.sim.Agents()})
}

// StopSimulation disables agent movement. Agents keep their last position.
func (c *Controller) StopSimulation(context.Context) Result {
	if !c.sim.Stop() {
		return Result{Message: "simulation not running"}
	}
	return ok("route simulation stopped", nil)
}

// AgentTrack is the live view of one busy agent.
type AgentTrack struct {
	AgentID   string      `json:"agent_id"`
	Name      string      `json:"name"`
	Location  *geo.Point  `json:"location,omitempty"`
	Orders    []string    `json:"orders"`
	Route     []geo.Point `json:"route,omitempty"`
	Progress  float64     `json:"progress"`
	Simulated bool        `json:"simulated"`
}

// Tracking is the live tracking snapshot.
type Tracking struct {
	Active bool         `json:"simulation_active"`
	Agents []AgentTrack `json:"agents"`
}

// GetLiveTracking lists busy agents with their position and route progress.
func (c *Controller) GetLiveTracking(ctx context.Context) Result {
	agents, err := c.repo.Agents(ctx)
	if err != nil {
		return fail(err)
	}
	routes, err := c.repo.Routes(ctx)
	if err != nil {
		return fail(err)
	}
	byAgent := make(map[string]model.Route, len(routes))
	for _, r := range routes {
		byAgent[r.AgentID] = r
	}
	tr := Tracking{Active: c.sim.Active(), Agents: []AgentTrack{}}
	for _, a := range agents {
		if !a.Busy() {
			continue
		}
		t := AgentTrack{
			AgentID:   a.ID,
			Name:      a.Name,
			Location:  a.Location,
			Orders:    a.AssignedOrders,
			Simulated: c.sim.Running(a.ID),
		}
		if r, ok := byAgent[a.ID]; ok {
			t.Route = r.Points
			if a.Location != nil {
				t.Progress = r.Progress(*a.Location)
			}
		}
		tr.Agents = append(tr.Agents, t)
	}
	return ok(fmt.Sprintf("%d agents on the road", len(tr.Agents)), tr)
}

// AgentStats summarises one delivery agent.
type AgentStats struct {
	AgentID   string  `json:"agent_id"`
	Name      string  `json:"name"`
	Status    string  `json:"status"`
	Active    int     `json:"active_orders"`
	Completed int     `json:"completed_orders"`
	Rating    float64 `json:"rating"`
}

// AgentPerformance lists delivery counters per agent.
func (c *Controller) AgentPerformance(ctx context.Context) Result {
	agents, err := c.repo.Agents(ctx)
	if err != nil {
		return fail(err)
	}
	out := make([]AgentStats, 0, len(agents))
	total := 0
	for _, a := range agents {
		out = append(out, AgentStats{
			AgentID:   a.ID,
			Name:      a.Name,
			Status:    a.Status.String(),
			Active:    len(a.AssignedOrders),
			Completed: a.CompletedOrders,
			Rating:    a.Rating,
		})
		total += a.CompletedOrders
	}
	return ok(fmt.Sprintf("%d deliveries by %d agents", total, len(out)), out)
}

// Dashboard is the combined overview.
type Dashboard struct {
	Timestamp      time.Time          `json:"timestamp"`
	Picking        assign.QueueStatus `json:"picking"`
	Delivery       assign.QueueStatus `json:"delivery"`
	TotalOrders    int                `json:"total_orders"`
	OrdersByStatus map[string]int     `json:"orders_by_status"`
	Simulation     bool               `json:"simulation_active"`
}

// Dashboard reports queue states and order counts by status.
func (c *Controller) Dashboard(ctx context.Context) Result {
	d := Dashboard{Timestamp: time.Now().UTC(), OrdersByStatus: map[string]int{}, Simulation: c.sim.Active()}
	var err error
	if d.Picking, err = c.picking.Status(ctx); err != nil {
		return fail(err)
	}
	if d.Delivery, err = c.delivery.Status(ctx); err != nil {
		return fail(err)
	}
	orders, err := c.repo.Orders(ctx)
	if err != nil {
		return fail(err)
	}
	d.TotalOrders = len(orders)
	for _, o := range orders {
		d.OrdersByStatus[o.Status.String()]++
	}
	return ok("dashboard", d)
}
