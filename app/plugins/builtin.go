package plugins

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kilianp07/darkstore/config"
	"github.com/kilianp07/darkstore/core/route"
	"github.com/kilianp07/darkstore/core/store"
	"github.com/kilianp07/darkstore/infra/routing"
	infrastore "github.com/kilianp07/darkstore/infra/store"
)

func init() {
	RegisterStore("memory", func(context.Context, config.StoreConfig) (store.Store, error) {
		return store.NewMemory(), nil
	})
	RegisterStore("sqlite", func(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
		return infrastore.NewSQLite(ctx, cfg.URL)
	})
	RegisterStore("postgres", func(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
		return infrastore.NewPostgres(ctx, cfg.URL)
	})
	RegisterStore("redis", func(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		return infrastore.NewRedis(ctx, opts, cfg.Prefix)
	})

	RegisterProvider("local", func(cfg config.RoutingConfig) (route.Provider, error) {
		return routing.NewLocalProvider(cfg.Local), nil
	})
	RegisterProvider("google", func(cfg config.RoutingConfig) (route.Provider, error) {
		return routing.NewGoogleProvider(cfg.Google, nil)
	})
}
