package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/darkstore/core/metrics"
)

// PromSink records dispatch events in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	deliveries  prometheus.Counter
	reroutes    *prometheus.CounterVec
	delay       prometheus.Histogram
	ticks       *prometheus.HistogramVec
	failures    *prometheus.CounterVec
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The Prometheus server should be started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "darkstore_assignments_total",
			Help: "Orders claimed by workers",
		}, []string{"stage", "chained"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "darkstore_deliveries_total",
			Help: "Orders delivered by simulated agents",
		}),
		reroutes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "darkstore_reroute_decisions_total",
			Help: "Reroute decisions by outcome",
		}, []string{"changed"}),
		delay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "darkstore_traffic_delay_minutes",
			Help:    "Observed traffic delay per reroute check",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 40},
		}),
		ticks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "darkstore_tick_duration_seconds",
			Help:    "Reconciliation tick duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"loop"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "darkstore_tick_failures_total",
			Help: "Per item failures during reconciliation ticks",
		}, []string{"loop"}),
	}
	var err error
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.deliveries, err = register(reg, s.deliveries); err != nil {
		return nil, err
	}
	if s.reroutes, err = register(reg, s.reroutes); err != nil {
		return nil, err
	}
	if s.delay, err = register(reg, s.delay); err != nil {
		return nil, err
	}
	if s.ticks, err = register(reg, s.ticks); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, s.failures); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an identical collector that is already there.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(ev.Stage, strconv.FormatBool(ev.Chained)).Add(float64(ev.Orders))
	return nil
}

func (s *PromSink) RecordDelivery(coremetrics.DeliveryEvent) error {
	s.deliveries.Inc()
	return nil
}

func (s *PromSink) RecordReroute(ev coremetrics.RerouteEvent) error {
	s.reroutes.WithLabelValues(strconv.FormatBool(ev.Changed)).Inc()
	s.delay.Observe(ev.DelayMinutes)
	return nil
}

func (s *PromSink) RecordTick(ev coremetrics.TickEvent) error {
	s.ticks.WithLabelValues(ev.Loop).Observe(ev.Duration.Seconds())
	if ev.Failures > 0 {
		s.failures.WithLabelValues(ev.Loop).Add(float64(ev.Failures))
	}
	return nil
}
