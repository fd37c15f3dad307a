package config

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kilianp07/darkstore/infra/logger"
)

// LoggingConfig defines log verbosity and optional file rotation.
type LoggingConfig struct {
	// Level is a zerolog level name.
	Level string `json:"level"`
	// File enables rotating JSON output when set.
	File string `json:"file"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File != "" && c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 50
	}
}

// Validate checks the level name.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("unknown level %s", c.Level)
	}
	return nil
}

// Options converts the section for logger.Configure.
func (c LoggingConfig) Options() logger.Options {
	return logger.Options{
		Level:      c.Level,
		File:       c.File,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
	}
}
