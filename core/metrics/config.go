package metrics

import "github.com/kilianp07/darkstore/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort exposes /metrics when non-zero.
	PrometheusPort int `json:"prometheus_port"`
}
