package monitoring

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/config"
	coremon "github.com/kilianp07/darkstore/core/monitoring"
)

func TestNewSentryMonitorWithoutDSN(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{})
	require.NoError(t, err)
	assert.IsType(t, coremon.NopMonitor{}, m)
}

func TestNewSentryMonitorInvalidDSN(t *testing.T) {
	_, err := NewSentryMonitor(config.SentryConfig{DSN: "::not a dsn"})
	assert.Error(t, err)
}

func TestSentryMonitorCapture(t *testing.T) {
	m, err := NewSentryMonitor(config.SentryConfig{DSN: "https://public@127.0.0.1/1", Environment: "test"})
	require.NoError(t, err)
	m.CaptureException(errors.New("tick failed"), map[string]string{"loop": "routing"})
	m.CaptureException(nil, nil)
	m.Flush(10 * time.Millisecond)
}
