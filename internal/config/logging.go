package config

import "payloadforge/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level"`                // debug, info, warn, error
	JSON       bool            `yaml:"json"`                 // JSON lines instead of console text
	Categories map[string]bool `yaml:"categories,omitempty"` // Per-category toggles
}

// Options combines the file config with the runtime debugMode setting,
// which is the master logging switch.
func (c *LoggingConfig) Options(debugMode bool) logging.Options {
	return logging.Options{
		DebugMode:  debugMode,
		Level:      c.Level,
		JSONFormat: c.JSON,
		Categories: c.Categories,
	}
}
