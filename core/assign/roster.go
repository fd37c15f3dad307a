package assign

import (
	"context"
	"slices"

	"github.com/kilianp07/darkstore/core/model"
	"github.com/kilianp07/darkstore/core/store"
)

// Worker is the stage-independent view of a picker or delivery agent.
type Worker struct {
	ID        string
	Name      string
	Orders    []string
	Progress  int
	Completed int
	Offline   bool
}

// Idle reports whether the worker can take new orders.
func (w Worker) Idle() bool { return !w.Offline && len(w.Orders) == 0 }

// Active reports whether the worker holds at least one order.
func (w Worker) Active() bool { return len(w.Orders) > 0 }

// Holds reports whether orderID is in the worker's set.
func (w Worker) Holds(orderID string) bool { return slices.Contains(w.Orders, orderID) }

// Roster is the worker side of a stage.
type Roster interface {
	// Load returns every worker in stable roster order.
	Load(ctx context.Context) ([]Worker, error)
	// Claim marks w as holding orderIDs.
	Claim(ctx context.Context, w Worker, orderIDs []string) error
	// Finish records orderIDs as completed by w and removes them from its set.
	// The worker becomes idle when nothing is left.
	Finish(ctx context.Context, w Worker, orderIDs []string) error
	// Release frees w without counting any completion.
	Release(ctx context.Context, w Worker) error
}

// ProgressRoster is implemented by rosters that track per-worker progress.
type ProgressRoster interface {
	Roster
	SetProgress(ctx context.Context, w Worker, pct int) error
}

// OrderBook is the order side of a stage.
type OrderBook interface {
	// Orders returns all orders sorted by creation time then id.
	Orders(ctx context.Context) ([]model.Order, error)
	MergeOrder(ctx context.Context, id string, fields store.Record) error
}

func findWorker(workers []Worker, id string) (Worker, bool) {
	for _, w := range workers {
		if w.ID == id {
			return w, true
		}
	}
	return Worker{}, false
}
