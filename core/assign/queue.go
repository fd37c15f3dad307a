package assign

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kilianp07/darkstore/core/events"
	"github.com/kilianp07/darkstore/core/logger"
	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/store"
)

// Request selects what to assign. Empty fields mean "first available".
type Request struct {
	OrderID  string
	WorkerID string
}

// Assignment describes a committed claim.
type Assignment struct {
	Stage    string    `json:"stage"`
	WorkerID string    `json:"worker_id"`
	OrderIDs []string  `json:"order_ids"`
	BatchID  string    `json:"batch_id,omitempty"`
	Chained  bool      `json:"chained"`
	At       time.Time `json:"at"`
}

// Completion is the outcome of Complete, CompleteOrder and FailOrder.
// OrderIDs lists only the orders that reached the stage's done status.
type Completion struct {
	WorkerID string      `json:"worker_id"`
	OrderIDs []string    `json:"order_ids"`
	Freed    bool        `json:"freed"`
	Next     *Assignment `json:"next,omitempty"`
}

// ResetResult lists what Reset released and reverted.
type ResetResult struct {
	Workers []string `json:"workers"`
	Orders  []string `json:"orders"`
}

// QueueStatus summarises a stage.
type QueueStatus struct {
	Stage          string              `json:"stage"`
	Pending        int                 `json:"pending"`
	IdleWorkers    int                 `json:"idle_workers"`
	ActiveWorkers  int                 `json:"active_workers"`
	OrdersWaiting  int                 `json:"orders_waiting"`
	NextAssignable int                 `json:"next_assignable"`
	Assignments    map[string][]string `json:"assignments"`
}

// Queue assigns orders of one stage to the workers of a roster. Calls within
// the process are serialised; across processes exclusivity relies on the
// re-read performed right before each commit and remains best effort.
type Queue struct {
	stage  Stage
	roster Roster
	orders OrderBook
	bus    events.Publisher
	log    logger.Logger
	now    func() time.Time
	mu     sync.Mutex
}

// Option customises a Queue.
type Option func(*Queue)

// WithClock overrides the time source used for status stamps.
func WithClock(now func() time.Time) Option { return func(q *Queue) { q.now = now } }

// WithPublisher sets the bus receiving assignment and completion events.
func WithPublisher(p events.Publisher) Option { return func(q *Queue) { q.bus = p } }

// NewQueue builds a queue for stage.
func NewQueue(stage Stage, roster Roster, orders OrderBook, log logger.Logger, opts ...Option) *Queue {
	q := &Queue{stage: stage, roster: roster, orders: orders, log: log, now: time.Now}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Stage returns the stage served by q.
func (q *Queue) Stage() Stage { return q.stage }

// Assign claims one pending order for one idle worker.
func (q *Queue) Assign(ctx context.Context, req Request) (Assignment, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.assign(ctx, req, false)
}

func (q *Queue) assign(ctx context.Context, req Request, chained bool) (Assignment, error) {
	workers, orders, err := q.load(ctx)
	if err != nil {
		return Assignment{}, err
	}
	w, err := selectWorker(workers, req.WorkerID)
	if err != nil {
		return Assignment{}, err
	}
	pending := q.pending(orders, workers)
	o, err := selectOrder(pending, req.OrderID)
	if err != nil {
		return Assignment{}, err
	}
	return q.commit(ctx, w.ID, []string{o.ID}, "", chained)
}

// ClaimBatch assigns several orders to one idle worker. Orders lost to a
// concurrent claim are dropped; if none remain ErrAlreadyAssigned is returned.
func (q *Queue) ClaimBatch(ctx context.Context, workerID string, orderIDs []string, batchID string) (Assignment, error) {
	if len(orderIDs) == 0 {
		return Assignment{}, model.ErrOrderUnavailable
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.commit(ctx, workerID, orderIDs, batchID, false)
}

// commit re-reads both sides, drops orders that are no longer claimable and
// writes the worker claim before the order transitions.
func (q *Queue) commit(ctx context.Context, workerID string, orderIDs []string, batchID string, chained bool) (Assignment, error) {
	workers, orders, err := q.load(ctx)
	if err != nil {
		return Assignment{}, err
	}
	w, ok := findWorker(workers, workerID)
	if !ok || !w.Idle() {
		return Assignment{}, fmt.Errorf("worker %s: %w", workerID, model.ErrWorkerUnavailable)
	}
	claimed := q.claimedSet(workers, orders)
	byID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	var win []model.Order
	for _, id := range orderIDs {
		o, ok := byID[id]
		if !ok || o.Status != q.stage.Source {
			q.log.Debugf("%s: order %s no longer pending", q.stage.Name, id)
			continue
		}
		if _, taken := claimed[id]; taken {
			q.log.Debugf("%s: order %s already claimed", q.stage.Name, id)
			continue
		}
		win = append(win, o)
	}
	if len(win) == 0 {
		return Assignment{}, fmt.Errorf("orders %v: %w", orderIDs, model.ErrAlreadyAssigned)
	}
	ids := make([]string, len(win))
	for i, o := range win {
		ids[i] = o.ID
	}

	if err := q.roster.Claim(ctx, w, ids); err != nil {
		return Assignment{}, fmt.Errorf("claim worker %s: %w", w.ID, err)
	}
	now := q.now()
	var written []model.Order
	for _, o := range win {
		fields, err := o.Transition(q.stage.Active, now)
		if err == nil {
			fields[q.stage.AssigneeField] = w.ID
			if batchID != "" {
				fields[model.FieldBatchID] = batchID
			}
			err = q.orders.MergeOrder(ctx, o.ID, fields)
		}
		if err != nil {
			q.rollback(ctx, w, written)
			return Assignment{}, fmt.Errorf("update order %s: %w", o.ID, err)
		}
		written = append(written, o)
	}

	a := Assignment{Stage: q.stage.Name, WorkerID: w.ID, OrderIDs: ids, BatchID: batchID, Chained: chained, At: now}
	q.log.Infof("%s: assigned %v to %s", q.stage.Name, ids, w.ID)
	events.Publish(q.bus, events.AssignmentEvent{
		Stage: a.Stage, WorkerID: a.WorkerID, OrderIDs: a.OrderIDs, BatchID: batchID, Chained: chained, Time: now,
	})
	return a, nil
}

// rollback undoes a partially written claim.
func (q *Queue) rollback(ctx context.Context, w Worker, written []model.Order) {
	for _, o := range written {
		fields := store.Record{
			model.FieldStatus:                q.stage.Source.String(),
			q.stage.AssigneeField:            nil,
			model.FieldBatchID:               nil,
			model.StampField(q.stage.Active): nil,
		}
		if err := q.orders.MergeOrder(ctx, o.ID, fields); err != nil {
			q.log.Errorf("%s: rollback order %s: %v", q.stage.Name, o.ID, err)
		}
	}
	if err := q.roster.Release(ctx, w); err != nil {
		q.log.Errorf("%s: rollback worker %s: %v", q.stage.Name, w.ID, err)
	}
}

// Complete finishes every order held by workerID, frees the worker and
// immediately tries to give it the next pending order.
func (q *Queue) Complete(ctx context.Context, workerID string) (Completion, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, err := q.activeWorker(ctx, workerID)
	if err != nil {
		return Completion{}, err
	}
	return q.finish(ctx, w, w.Orders)
}

// CompleteOrder finishes one order of workerID. The worker is freed and
// chained only once its set is empty.
func (q *Queue) CompleteOrder(ctx context.Context, workerID, orderID string) (Completion, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, err := q.activeWorker(ctx, workerID)
	if err != nil {
		return Completion{}, err
	}
	if !w.Holds(orderID) {
		return Completion{}, fmt.Errorf("order %s not held by %s: %w", orderID, workerID, model.ErrOrderUnavailable)
	}
	return q.finish(ctx, w, []string{orderID})
}

func (q *Queue) finish(ctx context.Context, w Worker, orderIDs []string) (Completion, error) {
	orders, err := q.orders.Orders(ctx)
	if err != nil {
		return Completion{}, fmt.Errorf("load orders: %w", err)
	}
	byID := make(map[string]model.Order, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	now := q.now()
	held := w
	held.Orders = slices.Clone(w.Orders)
	var done []string
	var rejected error
	for _, id := range orderIDs {
		o, ok := byID[id]
		if !ok {
			q.log.Warnf("%s: order %s held by %s is missing", q.stage.Name, id, w.ID)
			held.Orders = without(held.Orders, id)
			if rejected == nil {
				rejected = fmt.Errorf("order %s: %w", id, model.ErrOrderUnavailable)
			}
			continue
		}
		fields, err := o.Transition(q.stage.Done, now)
		if err != nil {
			// The order left the stage behind the queue's back; drop it
			// from the worker without counting it.
			q.log.Warnf("%s: %v", q.stage.Name, err)
			held.Orders = without(held.Orders, id)
			if rejected == nil {
				rejected = err
			}
			continue
		}
		if !q.stage.KeepAssignee {
			fields[q.stage.AssigneeField] = nil
		}
		if err := q.orders.MergeOrder(ctx, id, fields); err != nil {
			return Completion{}, fmt.Errorf("complete order %s: %w", id, err)
		}
		done = append(done, id)
	}
	if err := q.roster.Finish(ctx, held, done); err != nil {
		return Completion{}, fmt.Errorf("release worker %s: %w", w.ID, err)
	}
	c := Completion{WorkerID: w.ID, OrderIDs: done, Freed: len(done) >= len(held.Orders)}
	if len(done) == 0 {
		return c, rejected
	}
	q.log.Infof("%s: %s completed %v", q.stage.Name, w.ID, done)
	events.Publish(q.bus, events.CompletionEvent{Stage: q.stage.Name, WorkerID: w.ID, OrderIDs: done, Time: now})
	if c.Freed {
		c.Next = q.chain(ctx, w.ID)
	}
	return c, nil
}

// FailOrder marks one order held by workerID as Failed and takes it off the
// worker without counting a completion. A worker left with nothing is freed
// and chained like after Complete.
func (q *Queue) FailOrder(ctx context.Context, workerID, orderID string) (Completion, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	w, err := q.activeWorker(ctx, workerID)
	if err != nil {
		return Completion{}, err
	}
	if !w.Holds(orderID) {
		return Completion{}, fmt.Errorf("order %s not held by %s: %w", orderID, workerID, model.ErrOrderUnavailable)
	}
	orders, err := q.orders.Orders(ctx)
	if err != nil {
		return Completion{}, fmt.Errorf("load orders: %w", err)
	}
	i := slices.IndexFunc(orders, func(o model.Order) bool { return o.ID == orderID })
	if i < 0 {
		return Completion{}, fmt.Errorf("order %s: %w", orderID, model.ErrOrderUnavailable)
	}
	fields, err := orders[i].Transition(model.StatusFailed, q.now())
	if err != nil {
		return Completion{}, err
	}
	if !q.stage.KeepAssignee {
		fields[q.stage.AssigneeField] = nil
	}
	if err := q.orders.MergeOrder(ctx, orderID, fields); err != nil {
		return Completion{}, fmt.Errorf("fail order %s: %w", orderID, err)
	}
	remaining := without(w.Orders, orderID)
	if len(remaining) > 0 {
		err = q.roster.Claim(ctx, w, remaining)
	} else {
		err = q.roster.Release(ctx, w)
	}
	if err != nil {
		return Completion{}, fmt.Errorf("release worker %s: %w", w.ID, err)
	}
	q.log.Warnf("%s: order %s failed while held by %s", q.stage.Name, orderID, w.ID)
	c := Completion{WorkerID: w.ID, Freed: len(remaining) == 0}
	if c.Freed {
		c.Next = q.chain(ctx, w.ID)
	}
	return c, nil
}

// chain gives a freshly freed worker its next pending order, if any.
func (q *Queue) chain(ctx context.Context, workerID string) *Assignment {
	next, err := q.assign(ctx, Request{WorkerID: workerID}, true)
	if err != nil {
		q.log.Debugf("%s: no chained assignment for %s: %v", q.stage.Name, workerID, err)
		return nil
	}
	return &next
}

func without(ids []string, id string) []string {
	return slices.DeleteFunc(slices.Clone(ids), func(x string) bool { return x == id })
}

// SetProgress records picking progress. Values are clamped to [0,100] and
// never move backwards while the worker is active; 100 completes the order.
func (q *Queue) SetProgress(ctx context.Context, workerID string, pct int) (int, *Completion, error) {
	pr, ok := q.roster.(ProgressRoster)
	if !ok {
		return 0, nil, fmt.Errorf("%s stage does not track progress", q.stage.Name)
	}
	pct = min(max(pct, 0), 100)
	q.mu.Lock()
	defer q.mu.Unlock()
	w, err := q.activeWorker(ctx, workerID)
	if err != nil {
		return 0, nil, err
	}
	pct = max(pct, w.Progress)
	if pct == 100 {
		c, err := q.finish(ctx, w, w.Orders)
		if err != nil {
			return 0, nil, err
		}
		return pct, &c, nil
	}
	if err := pr.SetProgress(ctx, w, pct); err != nil {
		return 0, nil, err
	}
	return pct, nil, nil
}

// Reset reverts every claimed order of the stage and frees all workers. No
// chained assignment follows.
func (q *Queue) Reset(ctx context.Context) (ResetResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	workers, orders, err := q.load(ctx)
	if err != nil {
		return ResetResult{}, err
	}
	var res ResetResult
	var errs []error
	for _, o := range orders {
		if o.Status != q.stage.Active {
			continue
		}
		fields, err := o.Transition(q.stage.Revert, q.now())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields[q.stage.AssigneeField] = nil
		fields[model.StampField(q.stage.Active)] = nil
		if q.stage.Active == model.StatusOutForDelivery {
			fields[model.FieldBatchID] = nil
		}
		if err := q.orders.MergeOrder(ctx, o.ID, fields); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Orders = append(res.Orders, o.ID)
	}
	for _, w := range workers {
		if !w.Active() {
			continue
		}
		if err := q.roster.Release(ctx, w); err != nil {
			errs = append(errs, err)
			continue
		}
		res.Workers = append(res.Workers, w.ID)
	}
	q.log.Infof("%s: reset %d workers, reverted %d orders", q.stage.Name, len(res.Workers), len(res.Orders))
	return res, errors.Join(errs...)
}

// Status reports queue depth against worker availability.
func (q *Queue) Status(ctx context.Context) (QueueStatus, error) {
	workers, orders, err := q.load(ctx)
	if err != nil {
		return QueueStatus{}, err
	}
	st := QueueStatus{
		Stage:       q.stage.Name,
		Pending:     len(q.pending(orders, workers)),
		Assignments: make(map[string][]string),
	}
	for _, w := range workers {
		switch {
		case w.Active():
			st.ActiveWorkers++
			st.Assignments[w.ID] = append([]string(nil), w.Orders...)
		case w.Idle():
			st.IdleWorkers++
		}
	}
	st.OrdersWaiting = max(0, st.Pending-st.IdleWorkers)
	st.NextAssignable = min(st.Pending, st.IdleWorkers)
	return st, nil
}

// Fill assigns pending orders to idle workers until one side runs out.
func (q *Queue) Fill(ctx context.Context) ([]Assignment, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Assignment
	for {
		a, err := q.assign(ctx, Request{}, false)
		switch {
		case err == nil:
			out = append(out, a)
		case errors.Is(err, model.ErrWorkerUnavailable), errors.Is(err, model.ErrOrderUnavailable):
			return out, nil
		default:
			return out, err
		}
	}
}

func (q *Queue) load(ctx context.Context) ([]Worker, []model.Order, error) {
	workers, err := q.roster.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s roster: %w", q.stage.Name, err)
	}
	orders, err := q.orders.Orders(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load orders: %w", err)
	}
	return workers, orders, nil
}

func (q *Queue) activeWorker(ctx context.Context, id string) (Worker, error) {
	workers, err := q.roster.Load(ctx)
	if err != nil {
		return Worker{}, fmt.Errorf("load %s roster: %w", q.stage.Name, err)
	}
	w, ok := findWorker(workers, id)
	if !ok || !w.Active() {
		return Worker{}, fmt.Errorf("worker %s: %w", id, model.ErrWorkerNotActive)
	}
	return w, nil
}

// pending returns the unclaimed orders in the stage's source status,
// preserving snapshot order.
func (q *Queue) pending(orders []model.Order, workers []Worker) []model.Order {
	claimed := q.claimedSet(workers, orders)
	var out []model.Order
	for _, o := range orders {
		if o.Status != q.stage.Source {
			continue
		}
		if _, ok := claimed[o.ID]; ok {
			continue
		}
		out = append(out, o)
	}
	return out
}

// claimedSet holds every order referenced by a worker or stamped with an
// assignee of this stage.
func (q *Queue) claimedSet(workers []Worker, orders []model.Order) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range workers {
		for _, id := range w.Orders {
			set[id] = struct{}{}
		}
	}
	for _, o := range orders {
		if q.stage.assignee(o) != "" {
			set[o.ID] = struct{}{}
		}
	}
	return set
}

func selectWorker(workers []Worker, id string) (Worker, error) {
	if id != "" {
		w, ok := findWorker(workers, id)
		if !ok || !w.Idle() {
			return Worker{}, fmt.Errorf("worker %s: %w", id, model.ErrWorkerUnavailable)
		}
		return w, nil
	}
	for _, w := range workers {
		if w.Idle() {
			return w, nil
		}
	}
	return Worker{}, fmt.Errorf("no idle worker: %w", model.ErrWorkerUnavailable)
}

func selectOrder(pending []model.Order, id string) (model.Order, error) {
	if id != "" {
		for _, o := range pending {
			if o.ID == id {
				return o, nil
			}
		}
		return model.Order{}, fmt.Errorf("order %s: %w", id, model.ErrOrderUnavailable)
	}
	if len(pending) == 0 {
		return model.Order{}, fmt.Errorf("no pending order: %w", model.ErrOrderUnavailable)
	}
	return pending[0], nil
}
