package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Supported router engines
const (
	EngineMux = "mux"
	EngineGin = "gin"
)

// Config contains all configuration for the application
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Cors    CorsConfig    `yaml:"cors"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig contains server configuration
type ServerConfig struct {
	Address        string `yaml:"address"`
	Engine         string `yaml:"engine"`
	ReadTimeout    int    `yaml:"read_timeout"`
	WriteTimeout   int    `yaml:"write_timeout"`
	IdleTimeout    int    `yaml:"idle_timeout"`
	MaxHeaderBytes int    `yaml:"max_header_bytes"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableAccess bool   `yaml:"enable_access_log"`
	// GeoIPDatabase is an optional IP2Location BIN file used to add the
	// client country to access log entries
	GeoIPDatabase string `yaml:"geoip_database"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Provider    string  `yaml:"provider"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"service_name"`
	SampleRate  float64 `yaml:"sample_rate"`
}

// LoadConfig loads configuration from a YAML file. A relative path that does
// not exist is also looked up under configs/.
func LoadConfig(path string) (*Config, error) {
	data, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	// Replace environment variables in the format ${VAR_NAME}
	data = replaceEnvVars(data)

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	setConfigDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks values that have no sensible default
func (c *Config) Validate() error {
	switch c.Server.Engine {
	case EngineMux, EngineGin:
	default:
		return fmt.Errorf("unsupported server engine %q", c.Server.Engine)
	}
	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing sample_rate must be within [0, 1], got %v", c.Tracing.SampleRate)
	}
	if _, err := c.Cors.Config(); err != nil {
		return fmt.Errorf("invalid cors section: %w", err)
	}
	return nil
}

func readConfigFile(path string) ([]byte, error) {
	configFile, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) && !filepath.IsAbs(path) {
		configFile, err = os.Open(filepath.Join("configs", path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer configFile.Close()

	data, err := io.ReadAll(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return data, nil
}

// setConfigDefaults sets default values for the configuration
func setConfigDefaults(config *Config) {
	// Server defaults
	if config.Server.Address == "" {
		config.Server.Address = ":8080"
	}
	if config.Server.Engine == "" {
		config.Server.Engine = EngineMux
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 30 // Default read timeout of 30 seconds
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30 // Default write timeout of 30 seconds
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 120 // Default idle timeout of 120 seconds
	}
	if config.Server.MaxHeaderBytes == 0 {
		config.Server.MaxHeaderBytes = 1 << 20 // Default max header bytes (1MB)
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}
	if config.Logging.Output == "" {
		config.Logging.Output = "stdout"
	}

	// Metrics defaults
	if config.Metrics.Endpoint == "" {
		config.Metrics.Endpoint = "/metrics"
	}

	// Tracing defaults
	if config.Tracing.Provider == "" {
		config.Tracing.Provider = "jaeger"
	}
	if config.Tracing.ServiceName == "" {
		config.Tracing.ServiceName = "cors-gateway"
	}
	if config.Tracing.SampleRate == 0 {
		config.Tracing.SampleRate = 0.1 // Default sample rate of 10%
	}
}

// replaceEnvVars replaces environment variables in the format ${VAR_NAME} with their values
func replaceEnvVars(data []byte) []byte {
	content := string(data)
	for _, env := range os.Environ() {
		pair := strings.SplitN(env, "=", 2)
		if len(pair) != 2 {
			continue
		}
		varName, varValue := pair[0], pair[1]
		placeholder := fmt.Sprintf("${%s}", varName)
		content = strings.ReplaceAll(content, placeholder, varValue)
	}
	return []byte(content)
}
