package pool

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/darkstore/core/model"
)

// Snapshot is a point-in-time copy of orders and workers.
type Snapshot struct {
	Orders  []model.Order
	Pickers []model.Picker
	Agents  []model.Agent
	Taken   time.Time
}

// OrdersIn returns the orders currently in status s.
func (s Snapshot) OrdersIn(st model.Status) []model.Order {
	var out []model.Order
	for _, o := range s.Orders {
		if o.Status == st {
			out = append(out, o)
		}
	}
	return out
}

// Order looks up an order by id.
func (s Snapshot) Order(id string) (model.Order, bool) {
	for _, o := range s.Orders {
		if o.ID == id {
			return o, true
		}
	}
	return model.Order{}, false
}

// AvailableAgents returns agents that are neither offline nor holding orders.
func (s Snapshot) AvailableAgents() []model.Agent {
	var out []model.Agent
	for _, a := range s.Agents {
		if a.Status != model.AgentOffline && !a.Busy() {
			out = append(out, a)
		}
	}
	return out
}

// BusyAgents returns agents holding at least one order.
func (s Snapshot) BusyAgents() []model.Agent {
	var out []model.Agent
	for _, a := range s.Agents {
		if a.Busy() {
			out = append(out, a)
		}
	}
	return out
}

// Pool keeps the latest snapshot. It is a short-lived mirror; decisions that
// commit state re-read the store.
type Pool struct {
	repo *Repository
	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Pool reading through repo.
func New(repo *Repository) *Pool { return &Pool{repo: repo} }

// Repository returns the repository backing the pool.
func (p *Pool) Repository() *Repository { return p.repo }

// Refresh reloads every collection and stores the result.
func (p *Pool) Refresh(ctx context.Context) (Snapshot, error) {
	orders, err := p.repo.Orders(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	pickers, err := p.repo.Pickers(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	agents, err := p.repo.Agents(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Orders: orders, Pickers: pickers, Agents: agents, Taken: time.Now()}
	p.mu.Lock()
	p.snap = snap
	p.mu.Unlock()
	return snap, nil
}

// Snapshot returns the last refreshed snapshot.
func (p *Pool) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}
