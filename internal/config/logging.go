package config

import "townhall/internal/logging"

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" mapstructure:"level"`           // debug, info, warn, error
	Format     string          `yaml:"format" mapstructure:"format"`         // json, text
	Categories map[string]bool `yaml:"categories" mapstructure:"categories"` // Per-category toggles
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Categories that are not listed are enabled.
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if c.Categories == nil {
		return true
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true
	}
	return enabled
}

// Options converts the config section into logger build options.
// verbose forces debug level.
func (c *LoggingConfig) Options(verbose bool) logging.Options {
	level := c.Level
	if verbose {
		level = "debug"
	}
	return logging.Options{
		Level:      level,
		JSONFormat: c.Format == "json",
		Categories: c.Categories,
	}
}
