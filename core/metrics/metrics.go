package metrics

import "time"

// AssignmentEvent records orders claimed by a worker.
type AssignmentEvent struct {
	Stage    string
	WorkerID string
	Orders   int
	Chained  bool
	Time     time.Time
}

// DeliveryEvent records one delivered order.
type DeliveryEvent struct {
	AgentID string
	OrderID string
	Time    time.Time
}

// RerouteEvent records the outcome of a reroute decision.
type RerouteEvent struct {
	AgentID      string
	DelayMinutes float64
	Changed      bool
	Time         time.Time
}

// TickEvent records one reconciliation sub-loop tick.
type TickEvent struct {
	Loop     string
	Duration time.Duration
	Failures int
	Aborted  bool
	Time     time.Time
}

// Sink records dispatch metrics.
type Sink interface {
	RecordAssignment(ev AssignmentEvent) error
	RecordDelivery(ev DeliveryEvent) error
	RecordReroute(ev RerouteEvent) error
	RecordTick(ev TickEvent) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error { return nil }
func (NopSink) RecordDelivery(DeliveryEvent) error     { return nil }
func (NopSink) RecordReroute(RerouteEvent) error       { return nil }
func (NopSink) RecordTick(TickEvent) error             { return nil }
