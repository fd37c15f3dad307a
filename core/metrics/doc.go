// Package metrics defines the sink interface for dispatch metrics. Sinks like
// PromSink and InfluxSink record assignments, deliveries, reroutes and loop
// ticks and can be combined with NewMultiSink. The factory helpers return a
// MultiSink automatically when multiple sinks are configured.
package metrics
