package metrics

import (
	"context"

	"github.com/kilianp07/darkstore/core/events"
	coremetrics "github.com/kilianp07/darkstore/core/metrics"
	"github.com/kilianp07/darkstore/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.Sink) {
	if bus == nil || sink == nil {
		return
	}
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				record(sink, ev)
			}
		}
	}()
}

func record(sink coremetrics.Sink, ev events.Event) {
	switch e := ev.(type) {
	case events.AssignmentEvent:
		_ = sink.RecordAssignment(coremetrics.AssignmentEvent{
			Stage:    e.Stage,
			WorkerID: e.WorkerID,
			Orders:   len(e.OrderIDs),
			Chained:  e.Chained,
			Time:     e.Time,
		})
	case events.DeliveryEvent:
		_ = sink.RecordDelivery(coremetrics.DeliveryEvent{AgentID: e.AgentID, OrderID: e.OrderID, Time: e.Time})
	}
}
