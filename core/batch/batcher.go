package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/model"
)

// Source provides the candidates for a batching pass.
type Source interface {
	Orders(ctx context.Context) ([]model.Order, error)
	Agents(ctx context.Context) ([]model.Agent, error)
}

// Claimer commits a batch for one agent.
type Claimer interface {
	ClaimBatch(ctx context.Context, workerID string, orderIDs []string, batchID string) (assign.Assignment, error)
}

// Result reports what a Run committed.
type Result struct {
	Mode      string              `json:"mode"`
	Committed []assign.Assignment `json:"committed"`
	Skipped   []string            `json:"skipped_orders,omitempty"`
	Failures  map[string]string   `json:"failures,omitempty"`
}

// Batcher loads candidates, plans and commits batches through the delivery queue.
type Batcher struct {
	src   Source
	queue Claimer
	log   logger.Logger
	newID func() string
}

// NewBatcher creates a Batcher.
func NewBatcher(src Source, queue Claimer, log logger.Logger) *Batcher {
	return &Batcher{src: src, queue: queue, log: log, newID: uuid.NewString}
}

// Run batches every picked, unassigned order onto the available agents.
// Per-agent commit failures are collected; an unreachable store aborts.
func (b *Batcher) Run(ctx context.Context, mode Mode, p Params) (Result, error) {
	res := Result{Mode: mode.String()}
	orders, err := b.src.Orders(ctx)
	if err != nil {
		return res, fmt.Errorf("load orders: %w", err)
	}
	agents, err := b.src.Agents(ctx)
	if err != nil {
		return res, fmt.Errorf("load agents: %w", err)
	}
	held := make(map[string]struct{})
	var available []model.Agent
	for _, a := range agents {
		for _, id := range a.AssignedOrders {
			held[id] = struct{}{}
		}
		if a.Status != model.AgentOffline && !a.Busy() {
			available = append(available, a)
		}
	}
	var candidates []model.Order
	for _, o := range orders {
		if _, ok := held[o.ID]; ok {
			continue
		}
		if o.Status == model.StatusPicked && o.AgentID == "" {
			candidates = append(candidates, o)
		}
	}

	prop := Propose(candidates, available, mode, p)
	res.Skipped = prop.SkippedOrders
	for _, id := range prop.SkippedOrders {
		b.log.Warnf("batch: order %s has no valid drop-off, left pending", id)
	}
	for _, id := range prop.SkippedAgents {
		b.log.Warnf("batch: agent %s has no valid location, skipped", id)
	}

	for _, bt := range prop.Batches {
		a, err := b.queue.ClaimBatch(ctx, bt.AgentID, bt.OrderIDs, b.newID())
		if err != nil {
			if errors.Is(err, model.ErrStoreUnreachable) {
				return res, err
			}
			if res.Failures == nil {
				res.Failures = make(map[string]string)
			}
			res.Failures[bt.AgentID] = err.Error()
			b.log.Warnf("batch: commit for agent %s failed: %v", bt.AgentID, err)
			continue
		}
		res.Committed = append(res.Committed, a)
	}
	b.log.Infof("batch: %s mode committed %d batches from %d candidates", mode, len(res.Committed), len(candidates))
	return res, nil
}
