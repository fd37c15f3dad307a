package eventbus

import (
	"testing"
	"time"

	"github.com/kilianp07/darkstore/core/events"
)

func TestTypedBusFanOut(t *testing.T) {
	bus := NewTyped[events.Event]()
	metricsSub := bus.Subscribe()
	trackingSub := bus.Subscribe()
	ev := events.DeliveryEvent{AgentID: "DA1", OrderID: "ORD1", Time: time.Unix(1, 0)}
	bus.Publish(ev)
	for i, ch := range []<-chan events.Event{metricsSub, trackingSub} {
		got, ok := (<-ch).(events.DeliveryEvent)
		if !ok || got.OrderID != "ORD1" {
			t.Fatalf("subscriber %d got %v", i, got)
		}
	}
	bus.Unsubscribe(metricsSub)
	bus.Publish(events.PositionEvent{AgentID: "DA1"})
	if _, ok := (<-trackingSub).(events.PositionEvent); !ok {
		t.Fatalf("remaining subscriber missed position event")
	}
}

func TestTypedBusCloseEndsSubscribers(t *testing.T) {
	bus := NewTyped[events.Event]()
	ch := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch; ok {
		t.Fatalf("expected subscriber closed")
	}
	// publishing and unsubscribing after close must not panic
	bus.Publish(events.AssignmentEvent{WorkerID: "P1"})
	bus.Unsubscribe(ch)
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTypedBuffered[events.Event](1)
	ch := bus.Subscribe()
	bus.Publish(events.PositionEvent{AgentID: "first"})
	bus.Publish(events.PositionEvent{AgentID: "second"})
	if got := (<-ch).(events.PositionEvent); got.AgentID != "first" {
		t.Fatalf("expected first event, got %s", got.AgentID)
	}
	if bus.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", bus.Dropped())
	}
}
