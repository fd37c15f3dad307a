// Package monitoring defines the error reporting port used by long running
// loops. Implementations are injected; there is no process-wide instance.
package monitoring

import (
	"fmt"
	"sync"
	"time"
)

// Monitor defines methods used for error reporting.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	// Recover reports a value returned by recover(). It does not re-panic.
	Recover(r any, tags map[string]string)
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover(any, map[string]string)            {}
func (NopMonitor) Flush(time.Duration)                       {}

// Captured is one error seen by a Recorder.
type Captured struct {
	Err  error
	Tags map[string]string
}

// Recorder keeps captured errors in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Captured
}

func (r *Recorder) CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, Captured{Err: err, Tags: tags})
	r.mu.Unlock()
}

// Recover records a panic value as an error.
func (r *Recorder) Recover(v any, tags map[string]string) {
	if v == nil {
		return
	}
	r.CaptureException(fmt.Errorf("panic: %v", v), tags)
}

func (r *Recorder) Flush(time.Duration) {}

// Events returns a copy of everything captured so far.
func (r *Recorder) Events() []Captured {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Captured(nil), r.events...)
}

// OrNop returns m, or a NopMonitor when m is nil.
func OrNop(m Monitor) Monitor {
	if m == nil {
		return NopMonitor{}
	}
	return m
}
