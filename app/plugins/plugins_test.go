package plugins

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/darkstore/config"
	"github.com/kilianp07/darkstore/infra/routing"
)

func TestOpenStoreBuiltins(t *testing.T) {
	ctx := context.Background()

	s, err := OpenStore(ctx, config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenStore(ctx, config.StoreConfig{Backend: "sqlite", URL: filepath.Join(t.TempDir(), "ds.db")})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	mr := miniredis.RunT(t)
	s, err = OpenStore(ctx, config.StoreConfig{Backend: "redis", URL: "redis://" + mr.Addr(), Prefix: "t"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = OpenStore(ctx, config.StoreConfig{Backend: "mongo"})
	assert.ErrorContains(t, err, "unknown store backend")
}

func TestNewProviderBuiltins(t *testing.T) {
	p, err := NewProvider(config.RoutingConfig{Provider: "local"})
	require.NoError(t, err)
	assert.IsType(t, &routing.LocalProvider{}, p)

	p, err = NewProvider(config.RoutingConfig{Provider: "google", Google: routing.GoogleConfig{APIKey: "k"}})
	require.NoError(t, err)
	assert.IsType(t, &routing.GoogleProvider{}, p)

	_, err = NewProvider(config.RoutingConfig{Provider: "google"})
	assert.Error(t, err)

	_, err = NewProvider(config.RoutingConfig{Provider: "osrm"})
	assert.ErrorContains(t, err, "unknown routing provider")
}
