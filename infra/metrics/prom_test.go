package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/darkstore/core/events"
	coremetrics "github.com/kilianp07/darkstore/core/metrics"
	"github.com/kilianp07/darkstore/internal/eventbus"
)

func TestPromSink_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	if err := sink.RecordAssignment(coremetrics.AssignmentEvent{Stage: "delivery", Orders: 3}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	_ = sink.RecordReroute(coremetrics.RerouteEvent{DelayMinutes: 6, Changed: true})
	_ = sink.RecordTick(coremetrics.TickEvent{Loop: "picking", Duration: time.Second, Failures: 1})

	expected := `
# HELP darkstore_assignments_total Orders claimed by workers
# TYPE darkstore_assignments_total counter
darkstore_assignments_total{chained="false",stage="delivery"} 3
`
	if err := testutil.CollectAndCompare(sink.assignments, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if v := testutil.ToFloat64(sink.failures.WithLabelValues("picking")); v != 1 {
		t.Errorf("expected 1 failure, got %v", v)
	}
	if c := testutil.CollectAndCount(sink.delay); c == 0 {
		t.Errorf("delay not recorded")
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	_ = second.RecordDelivery(coremetrics.DeliveryEvent{})
	if v := testutil.ToFloat64(first.deliveries); v != 1 {
		t.Fatalf("expected shared counter, got %v", v)
	}
}

func TestEventCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	bus := eventbus.NewTyped[events.Event]()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	StartEventCollector(ctx, bus, sink)

	// The subscription is registered synchronously, so publishing right away is safe.
	bus.Publish(events.DeliveryEvent{AgentID: "a1", OrderID: "o1", Time: time.Now()})
	bus.Publish(events.AssignmentEvent{Stage: "picking", OrderIDs: []string{"o2"}, Chained: true})

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if testutil.ToFloat64(sink.deliveries) == 1 &&
			testutil.ToFloat64(sink.assignments.WithLabelValues("picking", "true")) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("collector did not record events")
}
