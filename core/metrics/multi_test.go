package metrics

import (
	"errors"
	"testing"
)

type recordSink struct {
	count int
	err   error
}

func (r *recordSink) RecordAssignment(AssignmentEvent) error { r.count++; return r.err }
func (r *recordSink) RecordDelivery(DeliveryEvent) error     { r.count++; return r.err }
func (r *recordSink) RecordReroute(RerouteEvent) error       { r.count++; return r.err }
func (r *recordSink) RecordTick(TickEvent) error             { r.count++; return r.err }

// TestMultiSink ensures events are forwarded to all sinks even when one fails.
func TestMultiSink(t *testing.T) {
	s1 := &recordSink{err: errors.New("down")}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordAssignment(AssignmentEvent{}); err == nil {
		t.Fatalf("expected joined error")
	}
	if err := m.RecordTick(TickEvent{}); err == nil {
		t.Fatalf("expected joined error")
	}
	_ = m.RecordDelivery(DeliveryEvent{})
	_ = m.RecordReroute(RerouteEvent{})
	if s1.count != 4 || s2.count != 4 {
		t.Fatalf("records not forwarded: %d %d", s1.count, s2.count)
	}
}
