package pool

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/kilianp07/darkstore/core/assign"
	"github.com/kilianp07/darkstore/core/geo"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/store"
)

// PickerRoster exposes pickers to the picking queue.
type PickerRoster struct {
	repo *Repository
}

// NewPickerRoster wraps repo.
func NewPickerRoster(repo *Repository) *PickerRoster { return &PickerRoster{repo: repo} }

func (r *PickerRoster) Load(ctx context.Context) ([]assign.Worker, error) {
	pickers, err := r.repo.Pickers(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]assign.Worker, 0, len(pickers))
	for _, p := range pickers {
		w := assign.Worker{ID: p.ID, Name: p.Name, Progress: p.Progress}
		if p.OrderID != "" {
			w.Orders = []string{p.OrderID}
		}
		out = append(out, w)
	}
	return out, nil
}

func (r *PickerRoster) Claim(ctx context.Context, w assign.Worker, orderIDs []string) error {
	if len(orderIDs) != 1 {
		return fmt.Errorf("picker %s: cannot hold %d orders", w.ID, len(orderIDs))
	}
	return r.repo.MergePicker(ctx, w.ID, store.Record{
		model.FieldActive:   true,
		model.FieldOrderID:  orderIDs[0],
		model.FieldProgress: 0,
	})
}

func (r *PickerRoster) Finish(ctx context.Context, w assign.Worker, _ []string) error {
	return r.Release(ctx, w)
}

func (r *PickerRoster) Release(ctx context.Context, w assign.Worker) error {
	return r.repo.MergePicker(ctx, w.ID, store.Record{
		model.FieldActive:   false,
		model.FieldOrderID:  nil,
		model.FieldProgress: 0,
	})
}

func (r *PickerRoster) SetProgress(ctx context.Context, w assign.Worker, pct int) error {
	return r.repo.MergePicker(ctx, w.ID, store.Record{model.FieldProgress: pct})
}

// AgentRoster exposes delivery agents to the delivery queue. Freed agents
// return to the depot and lose their route.
type AgentRoster struct {
	repo  *Repository
	depot geo.Point
}

// NewAgentRoster wraps repo.
func NewAgentRoster(repo *Repository, depot geo.Point) *AgentRoster {
	return &AgentRoster{repo: repo, depot: depot}
}

func (r *AgentRoster) Load(ctx context.Context) ([]assign.Worker, error) {
	agents, err := r.repo.Agents(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]assign.Worker, 0, len(agents))
	for _, a := range agents {
		out = append(out, assign.Worker{
			ID:        a.ID,
			Name:      a.Name,
			Orders:    a.AssignedOrders,
			Completed: a.CompletedOrders,
			Offline:   a.Status == model.AgentOffline,
		})
	}
	return out, nil
}

func (r *AgentRoster) Claim(ctx context.Context, w assign.Worker, orderIDs []string) error {
	return r.repo.MergeAgent(ctx, w.ID, store.Record{
		model.FieldAgentStatus:    model.AgentBusy.String(),
		model.FieldAssignedOrders: orderIDs,
	})
}

func (r *AgentRoster) Finish(ctx context.Context, w assign.Worker, orderIDs []string) error {
	remaining := slices.DeleteFunc(slices.Clone(w.Orders), func(id string) bool {
		return slices.Contains(orderIDs, id)
	})
	completed := w.Completed + len(orderIDs)
	if len(remaining) > 0 {
		return r.repo.MergeAgent(ctx, w.ID, store.Record{
			model.FieldAssignedOrders:  remaining,
			model.FieldCompletedOrders: completed,
		})
	}
	return r.free(ctx, w, store.Record{model.FieldCompletedOrders: completed})
}

func (r *AgentRoster) Release(ctx context.Context, w assign.Worker) error {
	return r.free(ctx, w, nil)
}

func (r *AgentRoster) free(ctx context.Context, w assign.Worker, extra store.Record) error {
	fields := store.Record{
		model.FieldAgentStatus:    model.AgentAvailable.String(),
		model.FieldAssignedOrders: []string{},
		model.FieldLocation:       r.depot,
	}
	for k, v := range extra {
		fields[k] = v
	}
	if err := r.repo.MergeAgent(ctx, w.ID, fields); err != nil {
		return err
	}
	if err := r.repo.DeleteRoute(ctx, w.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}
