package events

import (
	"time"

	"github.com/kilianp07/darkstore/core/geo"
)

// Event is any value published on the dispatch bus.
type Event interface {
	EventTime() time.Time
}

// AssignmentEvent is published when a worker claims one or more orders.
type AssignmentEvent struct {
	Stage    string
	WorkerID string
	OrderIDs []string
	BatchID  string
	Chained  bool
	Time     time.Time
}

// CompletionEvent is published when a worker finishes orders for a stage.
type CompletionEvent struct {
	Stage    string
	WorkerID string
	OrderIDs []string
	Time     time.Time
}

// DeliveryEvent is published for each delivered order.
type DeliveryEvent struct {
	AgentID string
	OrderID string
	At      geo.Point
	Time    time.Time
}

// PositionEvent is published each time a simulated agent moves.
type PositionEvent struct {
	AgentID  string
	Position geo.Point
	Progress float64
	Time     time.Time
}

// RouteEvent is published when a route is stored for an agent.
type RouteEvent struct {
	AgentID      string
	Points       []geo.Point
	Rerouted     bool
	DelayMinutes float64
	Time         time.Time
}

func (e AssignmentEvent) EventTime() time.Time { return e.Time }
func (e CompletionEvent) EventTime() time.Time { return e.Time }
func (e DeliveryEvent) EventTime() time.Time   { return e.Time }
func (e PositionEvent) EventTime() time.Time   { return e.Time }
func (e RouteEvent) EventTime() time.Time      { return e.Time }

// Publisher accepts events. A nil Publisher is valid and drops everything.
type Publisher interface {
	Publish(Event)
}

// Publish sends e to p when p is set.
func Publish(p Publisher, e Event) {
	if p != nil {
		p.Publish(e)
	}
}
