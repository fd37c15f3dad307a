// Package fleet simulates delivery agents moving along their routes.
package fleet

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/events"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/store"
)

const (
	// DefaultTick is the pause between two movement steps.
	DefaultTick = 3 * time.Second
	// DefaultProximityKm is the distance under which an order counts as delivered.
	DefaultProximityKm = 0.05
)

// Config tunes the simulator.
type Config struct {
	Tick        time.Duration
	ProximityKm float64
}

// Agents is the store access the simulator needs.
type Agents interface {
	Agent(ctx context.Context, id string) (model.Agent, error)
	Order(ctx context.Context, id string) (model.Order, error)
	MergeAgent(ctx context.Context, id string, fields store.Record) error
}

// Deliverer completes one order of an agent. The delivery queue frees the
// agent once its batch is empty.
type Deliverer interface {
	CompleteOrder(ctx context.Context, workerID, orderID string) (assign.Completion, error)
}

// Simulator runs one movement task per busy agent while active.
type Simulator struct {
	cfg     Config
	agents  Agents
	deliver Deliverer
	bus     events.Publisher
	log     logger.Logger
	now     func() time.Time

	active atomic.Bool
	mu     sync.Mutex
	tasks  map[string]*task
	wg     sync.WaitGroup
}

type task struct {
	cancel  context.CancelFunc
	replace chan []geo.Point
}

// New creates an inactive simulator. bus may be nil.
func New(cfg Config, agents Agents, deliver Deliverer, bus events.Publisher, log logger.Logger) *Simulator {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.ProximityKm <= 0 {
		cfg.ProximityKm = DefaultProximityKm
	}
	return &Simulator{
		cfg:     cfg,
		agents:  agents,
		deliver: deliver,
		bus:     bus,
		log:     log,
		now:     time.Now,
		tasks:   make(map[string]*task),
	}
}

// Start enables the simulation. It reports false if it was already active.
func (s *Simulator) Start() bool { return s.active.CompareAndSwap(false, true) }

// Stop disables the simulation. Running tasks exit at their next tick and
// leave agents and routes as last written.
func (s *Simulator) Stop() bool { return s.active.CompareAndSwap(true, false) }

// Active reports whether the simulation is enabled.
func (s *Simulator) Active() bool { return s.active.Load() }

// Launch starts moving agentID along path. It refuses while inactive, for an
// empty path and when the agent already has a task.
func (s *Simulator) Launch(ctx context.Context, agentID string, path []geo.Point) bool {
	if !s.active.Load() || len(path) == 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[agentID]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, replace: make(chan []geo.Point, 1)}
	s.tasks[agentID] = t
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.remove(agentID, t)
		s.run(ctx, agentID, path, t)
	}()
	return true
}

// Replace hands a new path to the running task of agentID, which restarts
// from its head. It reports false when no task runs.
func (s *Simulator) Replace(agentID string, path []geo.Point) bool {
	if len(path) == 0 {
		return false
	}
	s.mu.Lock()
	t, ok := s.tasks[agentID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	// Keep only the latest path.
	select {
	case <-t.replace:
	default:
	}
	t.replace <- path
	return true
}

// Cancel stops the task of agentID.
func (s *Simulator) Cancel(agentID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[agentID]
	s.mu.Unlock()
	if ok {
		t.cancel()
	}
	return ok
}

// CancelAll stops every task.
func (s *Simulator) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		t.cancel()
	}
}

// Running reports whether agentID has a task.
func (s *Simulator) Running(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tasks[agentID]
	return ok
}

// Agents returns the ids of agents with a running task, sorted.
func (s *Simulator) Agents() []string {
	s.mu.Lock()
	ids := make([]string, 0, len(s.tasks))
	for id := range s.tasks {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// Wait blocks until every task has exited.
func (s *Simulator) Wait() { s.wg.Wait() }

func (s *Simulator) remove(agentID string, t *task) {
	s.mu.Lock()
	if s.tasks[agentID] == t {
		delete(s.tasks, agentID)
	}
	s.mu.Unlock()
	t.cancel()
}

func (s *Simulator) run(ctx context.Context, agentID string, path []geo.Point, t *task) {
	log := s.log.With("agent", agentID)
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()
	log.Infof("simulation: moving along %d points", len(path))
	for i := 0; ; {
		if !s.active.Load() {
			log.Infof("simulation: stopped at point %d/%d", i, len(path))
			return
		}
		if i >= len(path) {
			log.Infof("simulation: route exhausted")
			return
		}
		done, err := s.step(ctx, agentID, path, i)
		switch {
		case err != nil && errors.Is(err, context.Canceled):
			return
		case err != nil:
			log.Warnf("simulation: step %d: %v", i, err)
		case done:
			log.Infof("simulation: all orders delivered")
			return
		default:
			i++
		}
		select {
		case <-ctx.Done():
			return
		case p := <-t.replace:
			log.Infof("simulation: rerouted onto %d points", len(p))
			path, i = p, 0
		case <-ticker.C:
		}
	}
}

// step moves the agent to path[i] and delivers every order within proximity.
// It reports true once the agent holds no more orders.
func (s *Simulator) step(ctx context.Context, agentID string, path []geo.Point, i int) (bool, error) {
	pos := path[i]
	if err := s.agents.MergeAgent(ctx, agentID, store.Record{model.FieldLocation: pos}); err != nil {
		return false, err
	}
	now := s.now()
	events.Publish(s.bus, events.PositionEvent{
		AgentID:  agentID,
		Position: pos,
		Progress: model.Route{Points: path}.Progress(pos),
		Time:     now,
	})

	agent, err := s.agents.Agent(ctx, agentID)
	if err != nil {
		return false, err
	}
	if !agent.Busy() {
		return true, nil
	}
	for _, id := range agent.AssignedOrders {
		o, err := s.agents.Order(ctx, id)
		if err != nil {
			s.log.Warnf("simulation: agent %s order %s: %v", agentID, id, err)
			continue
		}
		if o.Status != model.StatusOutForDelivery || !geo.ValidPtr(o.DropOff) {
			continue
		}
		if !geo.Within(pos, *o.DropOff, s.cfg.ProximityKm) {
			continue
		}
		c, err := s.deliver.CompleteOrder(ctx, agentID, id)
		if err != nil {
			return false, err
		}
		s.log.Infof("simulation: order %s delivered by %s", id, agentID)
		events.Publish(s.bus, events.DeliveryEvent{AgentID: agentID, OrderID: id, At: pos, Time: now})
		if c.Freed {
			return true, nil
		}
	}
	return false, nil
}
