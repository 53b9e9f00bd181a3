package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Bootstrap holds the settings needed before the YAML files can be read.
// Values are loaded from environment variables with the prefix "CORSGW".
// Example: CORSGW_CONFIG=/etc/cors-gateway/config.yaml, CORSGW_LOG_LEVEL=debug
type Bootstrap struct {
	// ConfigPath is the main configuration file (default: configs/config.yaml)
	ConfigPath string `envconfig:"CONFIG" default:"configs/config.yaml"`

	// RoutesPath is the route file (default: configs/routes.yaml)
	RoutesPath string `envconfig:"ROUTES" default:"configs/routes.yaml"`

	// LogLevel overrides logging.level when set
	LogLevel string `envconfig:"LOG_LEVEL"`

	// LogFormat overrides logging.format when set
	LogFormat string `envconfig:"LOG_FORMAT"`

	// Env and Version are attached to every log entry
	Env     string `envconfig:"ENV" default:"development"`
	Version string `envconfig:"VERSION" default:"dev"`
}

// LoadBootstrap reads the bootstrap settings from the environment
func LoadBootstrap() (*Bootstrap, error) {
	var b Bootstrap
	if err := envconfig.Process("CORSGW", &b); err != nil {
		return nil, fmt.Errorf("failed to load bootstrap config: %w", err)
	}
	return &b, nil
}

// ApplyTo copies the logging overrides onto cfg
func (b *Bootstrap) ApplyTo(cfg *Config) {
	if b.LogLevel != "" {
		cfg.Logging.Level = b.LogLevel
	}
	if b.LogFormat != "" {
		cfg.Logging.Format = b.LogFormat
	}
}
