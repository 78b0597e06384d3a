package config

import "htbnerd/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"`           // Master toggle - false = no logging
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// Options converts the config section into logging options.
func (c LoggingConfig) Options() logging.Options {
	return logging.Options{
		DebugMode:  c.DebugMode,
		Level:      c.Level,
		Categories: c.Categories,
	}
}
