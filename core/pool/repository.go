// Package pool mirrors workers and orders from the external store and exposes
// them to the assignment queues.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/store"
)

// DefaultTimeout bounds every store call when no timeout is configured.
const DefaultTimeout = 10 * time.Second

// Repository provides typed access to the store collections. Every call is
// bounded by the configured timeout.
type Repository struct {
	store   store.Store
	timeout time.Duration
	log     logger.Logger
}

// NewRepository wraps s.
func NewRepository(s store.Store, timeout time.Duration, log logger.Logger) *Repository {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Repository{store: s, timeout: timeout, log: log}
}

// Store returns the underlying store.
func (r *Repository) Store() store.Store { return r.store }

func (r *Repository) bounded(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.timeout)
}

// list decodes every record of collection into T. Records that fail to decode
// are logged and skipped; a bad document must not block the whole roster.
func list[T any](ctx context.Context, r *Repository, collection, idField string, setID func(*T, string)) ([]T, error) {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	recs, err := r.store.List(ctx, collection)
	if err != nil {
		return nil, wrapTimeout(err)
	}
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		var v T
		if err := store.Decode(rec, &v); err != nil {
			r.log.Warnf("skip %s record %v: %v", collection, rec[store.IDField], err)
			continue
		}
		fillID(rec, idField, &v, setID)
		out = append(out, v)
	}
	return out, nil
}

func get[T any](ctx context.Context, r *Repository, collection, id, idField string, setID func(*T, string)) (T, error) {
	var v T
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	rec, err := r.store.Get(ctx, collection, id)
	if err != nil {
		return v, fmt.Errorf("%s/%s: %w", collection, id, wrapTimeout(err))
	}
	if err := store.Decode(rec, &v); err != nil {
		return v, err
	}
	fillID(rec, idField, &v, setID)
	return v, nil
}

// fillID falls back to the document key when the record lacks its id field.
func fillID[T any](rec store.Record, idField string, v *T, setID func(*T, string)) {
	if id, _ := rec[idField].(string); id != "" {
		return
	}
	if id, _ := rec[store.IDField].(string); id != "" {
		setID(v, id)
	}
}

func (r *Repository) merge(ctx context.Context, collection, id string, fields store.Record) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	if err := r.store.Merge(ctx, collection, id, fields); err != nil {
		return fmt.Errorf("%s/%s: %w", collection, id, wrapTimeout(err))
	}
	return nil
}

func (r *Repository) set(ctx context.Context, collection, id string, v any) error {
	rec, err := store.Encode(v)
	if err != nil {
		return err
	}
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	if err := r.store.Set(ctx, collection, id, rec); err != nil {
		return fmt.Errorf("%s/%s: %w", collection, id, wrapTimeout(err))
	}
	return nil
}

// Orders returns all orders sorted by creation time, then id.
func (r *Repository) Orders(ctx context.Context) ([]model.Order, error) {
	orders, err := list(ctx, r, model.CollectionOrders, "order_id", func(o *model.Order, id string) { o.ID = id })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.Before(orders[j].CreatedAt)
		}
		return orders[i].ID < orders[j].ID
	})
	return orders, nil
}

// Order returns one order.
func (r *Repository) Order(ctx context.Context, id string) (model.Order, error) {
	return get(ctx, r, model.CollectionOrders, id, "order_id", func(o *model.Order, id string) { o.ID = id })
}

// MergeOrder updates fields of an order.
func (r *Repository) MergeOrder(ctx context.Context, id string, fields store.Record) error {
	return r.merge(ctx, model.CollectionOrders, id, fields)
}

// SaveOrder writes a full order.
func (r *Repository) SaveOrder(ctx context.Context, o model.Order) error {
	return r.set(ctx, model.CollectionOrders, o.ID, o)
}

// Pickers returns all pickers sorted by id.
func (r *Repository) Pickers(ctx context.Context) ([]model.Picker, error) {
	return list(ctx, r, model.CollectionPickers, "id", func(p *model.Picker, id string) { p.ID = id })
}

// Picker returns one picker.
func (r *Repository) Picker(ctx context.Context, id string) (model.Picker, error) {
	return get(ctx, r, model.CollectionPickers, id, "id", func(p *model.Picker, id string) { p.ID = id })
}

// MergePicker updates fields of a picker.
func (r *Repository) MergePicker(ctx context.Context, id string, fields store.Record) error {
	return r.merge(ctx, model.CollectionPickers, id, fields)
}

// SavePicker writes a full picker.
func (r *Repository) SavePicker(ctx context.Context, p model.Picker) error {
	return r.set(ctx, model.CollectionPickers, p.ID, p)
}

// Agents returns all delivery agents sorted by id.
func (r *Repository) Agents(ctx context.Context) ([]model.Agent, error) {
	return list(ctx, r, model.CollectionAgents, "delivery_agent_id", func(a *model.Agent, id string) { a.ID = id })
}

// Agent returns one delivery agent.
func (r *Repository) Agent(ctx context.Context, id string) (model.Agent, error) {
	return get(ctx, r, model.CollectionAgents, id, "delivery_agent_id", func(a *model.Agent, id string) { a.ID = id })
}

// MergeAgent updates fields of an agent.
func (r *Repository) MergeAgent(ctx context.Context, id string, fields store.Record) error {
	return r.merge(ctx, model.CollectionAgents, id, fields)
}

// SaveAgent writes a full agent.
func (r *Repository) SaveAgent(ctx context.Context, a model.Agent) error {
	return r.set(ctx, model.CollectionAgents, a.ID, a)
}

// Route returns the stored route of agentID or store.ErrNotFound.
func (r *Repository) Route(ctx context.Context, agentID string) (model.Route, error) {
	return get(ctx, r, model.CollectionRoutes, agentID, "agent_id", func(rt *model.Route, id string) { rt.AgentID = id })
}

// Routes returns every stored route.
func (r *Repository) Routes(ctx context.Context) ([]model.Route, error) {
	return list(ctx, r, model.CollectionRoutes, "agent_id", func(rt *model.Route, id string) { rt.AgentID = id })
}

// SaveRoute replaces the route of rt.AgentID.
func (r *Repository) SaveRoute(ctx context.Context, rt model.Route) error {
	return r.set(ctx, model.CollectionRoutes, rt.AgentID, rt)
}

// DeleteRoute discards the route of agentID.
func (r *Repository) DeleteRoute(ctx context.Context, agentID string) error {
	ctx, cancel := r.bounded(ctx)
	defer cancel()
	if err := r.store.Delete(ctx, model.CollectionRoutes, agentID); err != nil {
		return fmt.Errorf("%s/%s: %w", model.CollectionRoutes, agentID, wrapTimeout(err))
	}
	return nil
}

// wrapTimeout reports an expired store call as an unreachable store.
func wrapTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, model.ErrStoreUnreachable) {
		return fmt.Errorf("%w: %w", model.ErrStoreUnreachable, err)
	}
	return err
}
