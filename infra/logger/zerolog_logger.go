package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls where and how verbosely logs are written.
type Options struct {
	// Level is a zerolog level name; empty keeps info.
	Level string
	// File enables rotating JSON output in addition to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	outMu  sync.RWMutex
	output io.Writer
	level  = zerolog.InfoLevel
)

// Configure installs the output used by loggers created afterwards. It
// returns a closer for the rotating file, if any.
func Configure(opts Options) (io.Closer, error) {
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, err
		}
		lvl = l
	}
	var w io.Writer = stdout()
	var closer io.Closer = nopCloser{}
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
		}
		w = zerolog.MultiLevelWriter(w, lj)
		closer = lj
	}
	outMu.Lock()
	output, level = w, lvl
	outMu.Unlock()
	return closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// stdout selects a console writer when APP_ENV=dev.
func stdout() io.Writer {
	if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
		return zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return os.Stdout
}

// ZerologLogger implements Logger using rs/zerolog.
type ZerologLogger struct {
	log zerolog.Logger
}

// NewZerologLogger creates a ZerologLogger. All logs include the provided
// component field.
func NewZerologLogger(component string) Logger {
	outMu.RLock()
	w, lvl := output, level
	outMu.RUnlock()
	if w == nil {
		w = stdout()
	}
	return NewWithWriter(w, component, lvl)
}

// NewWithWriter builds a logger on an explicit writer; tests use it to
// inspect output.
func NewWithWriter(w io.Writer, component string, lvl zerolog.Level) *ZerologLogger {
	z := zerolog.New(w).Level(lvl).With().Timestamp().Str("component", component).Logger()
	return &ZerologLogger{log: z}
}

func (l *ZerologLogger) Debugf(format string, args ...any) {
	l.log.Debug().Msgf(format, args...)
}

func (l *ZerologLogger) Debugw(msg string, fields map[string]any) {
	ev := l.log.Debug()
	for k, v := range fields {
		ev = ev.Interface(k, v)
	}
	ev.Msg(msg)
}

func (l *ZerologLogger) Infof(format string, args ...any) {
	l.log.Info().Msgf(format, args...)
}

func (l *ZerologLogger) Warnf(format string, args ...any) {
	l.log.Warn().Msgf(format, args...)
}

func (l *ZerologLogger) Errorf(format string, args ...any) {
	l.log.Error().Msgf(format, args...)
}

func (l *ZerologLogger) With(key string, value any) Logger {
	return &ZerologLogger{log: l.log.With().Interface(key, value).Logger()}
}
