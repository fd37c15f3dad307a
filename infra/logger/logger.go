package logger

import corelogger "github.com/kilianp07/darkstore/core/logger"

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}
func (n NopLogger) With(string, any) Logger     { return n }

// New returns a Logger for the given component using the process-wide
// output settings installed by Configure.
func New(component string) Logger {
	return NewZerologLogger(component)
}
