package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/darkstore/core/metrics"
	"github.com/kilianp07/darkstore/infra/mqtt"
)

// EnvPrefix marks environment overrides, e.g. DS_STORE__BACKEND=redis.
const EnvPrefix = "DS_"

type Config struct {
	Store      StoreConfig      `json:"store"`
	Routing    RoutingConfig    `json:"routing"`
	Dispatch   DispatchConfig   `json:"dispatch"`
	Simulation SimulationConfig `json:"simulation"`
	Metrics    metrics.Config   `json:"metrics"`
	MQTT       mqtt.Config      `json:"mqtt"`
	Logging    LoggingConfig    `json:"logging"`
	Sentry     SentryConfig     `json:"sentry"`
	Roster     RosterConfig     `json:"roster"`
}

// Load reads the file at path, applies environment overrides and validates
// the result. An empty path or a missing file falls back to defaults plus
// the environment.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	k := koanf.New(".")
	if path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".json":
		return json.Parser(), nil
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
}

// loadDotEnv exports the variables of an optional dotenv file. Variables
// already set in the process win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Routing.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Simulation.SetDefaults()
	c.Logging.SetDefaults()
	c.Roster.SetDefaults()
	if c.Metrics.PrometheusPort == 0 {
		c.Metrics.PrometheusPort = 2112
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = mqtt.DefaultTopicPrefix
	}
}

// Validate checks every section and reports the first failure.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"store", c.Store.Validate},
		{"routing", c.Routing.Validate},
		{"dispatch", c.Dispatch.Validate},
		{"simulation", c.Simulation.Validate},
		{"logging", c.Logging.Validate},
		{"roster", c.Roster.Validate},
		{"mqtt", c.validateMQTT},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}

func (c Config) validateMQTT() error {
	if !c.MQTT.Enabled {
		return nil
	}
	if c.MQTT.Broker == "" {
		return errors.New("broker is required when enabled")
	}
	if c.MQTT.QoS > 2 {
		return fmt.Errorf("invalid qos %d", c.MQTT.QoS)
	}
	return nil
}
