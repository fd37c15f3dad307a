package metrics

import "errors"

// MultiSink fans out every record to several sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// each calls f for every sink and joins the errors so one failing backend
// does not starve the others.
func (m *MultiSink) each(f func(Sink) error) error {
	var errs []error
	for _, s := range m.Sinks {
		if err := f(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) RecordAssignment(ev AssignmentEvent) error {
	return m.each(func(s Sink) error { return s.RecordAssignment(ev) })
}

func (m *MultiSink) RecordDelivery(ev DeliveryEvent) error {
	return m.each(func(s Sink) error { return s.RecordDelivery(ev) })
}

func (m *MultiSink) RecordReroute(ev RerouteEvent) error {
	return m.each(func(s Sink) error { return s.RecordReroute(ev) })
}

func (m *MultiSink) RecordTick(ev TickEvent) error {
	return m.each(func(s Sink) error { return s.RecordTick(ev) })
}
