package config

import (
	"fmt"
	"time"
)

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is one of memory, sqlite, postgres or redis.
	Backend string `json:"backend"`
	// URL is the DSN, file path or redis URL of the backend.
	URL string `json:"url"`
	// Prefix namespaces redis keys.
	Prefix         string `json:"prefix"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.Backend == "sqlite" && c.URL == "" {
		c.URL = "darkstore.db"
	}
	if c.Prefix == "" {
		c.Prefix = "darkstore"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 5
	}
}

func (c StoreConfig) Validate() error {
	switch c.Backend {
	case "memory", "sqlite":
	case "postgres", "redis":
		if c.URL == "" {
			return fmt.Errorf("url is required for %s", c.Backend)
		}
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	return nil
}

// Timeout bounds each store call.
func (c StoreConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
