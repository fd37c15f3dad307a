package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/darkstore/core/route"
	"github.com/kilianp07/darkstore/infra/routing"
)

// RoutingConfig selects the directions provider.
type RoutingConfig struct {
	// Provider is google or local.
	Provider         string               `json:"provider"`
	Google           routing.GoogleConfig `json:"google"`
	Local            routing.LocalConfig  `json:"local"`
	TimeoutSeconds   int                  `json:"timeout_seconds"`
	ThresholdMinutes float64              `json:"threshold_minutes"`
}

func (c *RoutingConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "local"
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = int(route.DefaultTimeout / time.Second)
	}
	if c.ThresholdMinutes <= 0 {
		c.ThresholdMinutes = route.DefaultThresholdMinutes
	}
}

func (c RoutingConfig) Validate() error {
	switch c.Provider {
	case "local":
	case "google":
		if c.Google.APIKey == "" {
			return errors.New("google.api_key is required")
		}
	default:
		return fmt.Errorf("unknown provider %s", c.Provider)
	}
	return nil
}

// Timeout bounds one provider call.
func (c RoutingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
