package metrics_test

import (
	"encoding/json"
	"testing"

	"github.com/kilianp07/darkstore/core/factory"
	metrics "github.com/kilianp07/darkstore/core/metrics"
	_ "github.com/kilianp07/darkstore/infra/metrics"
)

/*
TestSinkFactory_Builtins verifies registration via infra/metrics/factory.go.

	Cases:
	- instantiate builtin nop sink
	- unknown type returns error
*/
func TestSinkFactory_Builtins(t *testing.T) {
	s, err := metrics.NewSink([]factory.ModuleConfig{{Type: "nop"}})
	if err != nil {
		t.Fatalf("create nop: %v", err)
	}
	if s == nil {
		t.Fatal("expected sink instance")
	}
	if _, err := metrics.NewSink([]factory.ModuleConfig{{Type: "missing"}}); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

/*
TestNewSink_Multi validates NewSink behavior with zero, one, and multiple configs.
Cases:
  - no config -> NopSink
  - two configs decoded from JSON -> MultiSink with two sub-sinks
*/
func TestNewSink_Multi(t *testing.T) {
	s, err := metrics.NewSink(nil)
	if err != nil {
		t.Fatalf("create nop default: %v", err)
	}
	if _, ok := s.(metrics.NopSink); !ok {
		t.Fatalf("expected NopSink, got %T", s)
	}

	var cfg metrics.Config
	if err := json.Unmarshal([]byte(`{"sinks":[{"type":"nop"},{"type":"nop"}],"prometheus_port":9100}`), &cfg); err != nil {
		t.Fatalf("json unmarshal: %v", err)
	}
	s, err = metrics.NewSink(cfg.Sinks)
	if err != nil {
		t.Fatalf("create multi: %v", err)
	}
	m, ok := s.(*metrics.MultiSink)
	if !ok {
		t.Fatalf("expected MultiSink, got %T", s)
	}
	if len(m.Sinks) != 2 {
		t.Fatalf("expected 2 sinks, got %d", len(m.Sinks))
	}
}
