// Package plugins maps configuration names to store backends and routing
// providers.
package plugins

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/darkstore/config"
	"github.com/kilianp07/darkstore/core/route"
	"github.com/kilianp07/darkstore/core/store"
)

// StoreFactory opens a store backend.
type StoreFactory func(ctx context.Context, cfg config.StoreConfig) (store.Store, error)

// ProviderFactory builds a directions provider.
type ProviderFactory func(cfg config.RoutingConfig) (route.Provider, error)

var (
	Stores    = map[string]StoreFactory{}
	Providers = map[string]ProviderFactory{}
)

func RegisterStore(name string, f StoreFactory)       { Stores[name] = f }
func RegisterProvider(name string, f ProviderFactory) { Providers[name] = f }

// OpenStore opens the backend named by cfg.Backend.
func OpenStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	f, ok := Stores[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q (have %v)", cfg.Backend, names(Stores))
	}
	return f(ctx, cfg)
}

// NewProvider builds the provider named by cfg.Provider.
func NewProvider(cfg config.RoutingConfig) (route.Provider, error) {
	f, ok := Providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown routing provider %q (have %v)", cfg.Provider, names(Providers))
	}
	return f(cfg)
}

func names[F any](m map[string]F) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
