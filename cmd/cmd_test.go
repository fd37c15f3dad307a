package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestSeedThenList(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := "store:\n  backend: sqlite\n  url: " + filepath.Join(dir, "ds.db") + "\nroster:\n  pickers: 2\n  agents: 1\n  orders: 3\n  seed: 7\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	out := execute(t, "seed", "-c", path)
	assert.Contains(t, out, "seeded 2 pickers, 1 agents, 3 orders")

	out = execute(t, "pickers", "ls", "-c", path)
	assert.Contains(t, out, "P1")
	assert.Contains(t, out, "P2")

	out = execute(t, "agents", "ls", "-c", path)
	assert.Contains(t, out, "DA1")
	assert.Contains(t, out, "available")

	out = execute(t, "reset", "--what", "pickers", "-c", path)
	assert.Contains(t, out, `"success": true`)
}
