package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZerologLoggerMethods(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	l := NewZerologLogger("test")
	if l == nil {
		t.Fatalf("nil logger")
	}
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
}

func TestZerologLoggerFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "queue", zerolog.InfoLevel)
	l.Debugf("hidden")
	l.With("agent_id", "a1").Infof("assigned %s", "o1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "queue", entry["component"])
	assert.Equal(t, "a1", entry["agent_id"])
	assert.Equal(t, "assigned o1", entry["message"])
}

func TestConfigureRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "darkstore.log")
	closer, err := Configure(Options{Level: "debug", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	defer func() {
		_, _ = Configure(Options{})
	}()

	New("fleet").Debugf("tick")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"fleet"`)

	_, err = Configure(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.With("k", "v").Infof("nothing")
}
