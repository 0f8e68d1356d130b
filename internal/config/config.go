// Package config provides unified configuration loading for ecotwin.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ecotwin/ecotwin/internal/constants"
	"gopkg.in/yaml.v3"
)

// Config contains all ecotwin configuration settings.
type Config struct {
	// Store selects and configures the graph backend.
	Store StoreConfig `json:"store" yaml:"store"`

	// Propagation contains the default traversal bounds.
	Propagation PropagationConfig `json:"propagation" yaml:"propagation"`

	// Logging contains settings for operational and event logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`

	// Telemetry configures metrics and trace export.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`
}

// StoreConfig configures the graph store.
type StoreConfig struct {
	// Backend is "memory", "sqlite" (default) or "neo4j".
	Backend string `json:"backend" yaml:"backend"`

	// Neo4j is used when Backend is "neo4j".
	Neo4j Neo4jConfig `json:"neo4j" yaml:"neo4j"`
}

// Neo4jConfig holds connection settings for the Neo4j backend.
type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	Username string `json:"username" yaml:"username"`

	// Password supports ${VAR} syntax for env vars.
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	Database string `json:"database" yaml:"database"`
}

// RedactedPassword returns "(set)" when a password is configured.
func (c Neo4jConfig) RedactedPassword() string {
	if c.Password == "" {
		return ""
	}
	return "(set)"
}

// String implements fmt.Stringer to prevent accidental password logging.
func (c Neo4jConfig) String() string {
	return fmt.Sprintf("Neo4jConfig{URI:%s, Username:%s, Password:%s, Database:%s}",
		c.URI, c.Username, c.RedactedPassword(), c.Database)
}

// PropagationConfig holds the default bounds of impact propagation.
type PropagationConfig struct {
	MaxDepth       int     `json:"max_depth" yaml:"max_depth"`
	MagnitudeFloor float64 `json:"magnitude_floor" yaml:"magnitude_floor"`
	// MaxVisits bounds edges examined per call; 0 disables the bound.
	MaxVisits int `json:"max_visits" yaml:"max_visits"`
}

// LoggingConfig configures ecotwin's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables event logging to .ecotwin/events.jsonl.
	// "trace" additionally logs every propagation hop.
	Level string `json:"level" yaml:"level"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	// Metrics is "prometheus", "stdout" or "none" (default).
	Metrics string `json:"metrics" yaml:"metrics"`

	// MetricsAddr is the listen address for the Prometheus /metrics endpoint.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`

	// Traces is "stdout" or "none" (default).
	Traces string `json:"traces" yaml:"traces"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: constants.BackendSQLite,
			Neo4j: Neo4jConfig{
				URI:      "neo4j://localhost:7687",
				Username: "neo4j",
				Database: "neo4j",
			},
		},
		Propagation: PropagationConfig{
			MaxDepth:       constants.DefaultMaxDepth,
			MagnitudeFloor: constants.DefaultMagnitudeFloor,
			MaxVisits:      constants.DefaultMaxVisits,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Metrics:     constants.ExporterNone,
			MetricsAddr: constants.DefaultMetricsAddr,
			Traces:      constants.ExporterNone,
		},
	}
}

// DefaultPath returns ~/.ecotwin/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, constants.StateDirName, "config.yaml"), nil
}

// Load loads configuration from the default locations and environment variables.
// Order: defaults -> ~/.ecotwin/config.yaml -> environment variables
func Load() (*Config, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Neo4j.Password = expandEnvVars(config.Store.Neo4j.Password)
	config.Store.Neo4j.URI = expandEnvVars(config.Store.Neo4j.URI)

	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	validBackends := map[string]bool{constants.BackendMemory: true, constants.BackendSQLite: true, constants.BackendNeo4j: true}
	if !validBackends[c.Store.Backend] {
		return fmt.Errorf("invalid store backend: %s (valid: memory, sqlite, neo4j)", c.Store.Backend)
	}
	if c.Store.Backend == constants.BackendNeo4j && c.Store.Neo4j.URI == "" {
		return fmt.Errorf("store.neo4j.uri is required for the neo4j backend")
	}

	if c.Propagation.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be non-negative, got %d", c.Propagation.MaxDepth)
	}
	if c.Propagation.MagnitudeFloor < 0 {
		return fmt.Errorf("magnitude_floor must be non-negative, got %g", c.Propagation.MagnitudeFloor)
	}
	if c.Propagation.MaxVisits < 0 {
		return fmt.Errorf("max_visits must be non-negative, got %d", c.Propagation.MaxVisits)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	validMetrics := map[string]bool{"": true, constants.ExporterNone: true, constants.ExporterPrometheus: true, constants.ExporterStdout: true}
	if !validMetrics[c.Telemetry.Metrics] {
		return fmt.Errorf("invalid metrics exporter: %s (valid: prometheus, stdout, none)", c.Telemetry.Metrics)
	}
	validTraces := map[string]bool{"": true, constants.ExporterNone: true, constants.ExporterStdout: true}
	if !validTraces[c.Telemetry.Traces] {
		return fmt.Errorf("invalid trace exporter: %s (valid: stdout, none)", c.Telemetry.Traces)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("ECOTWIN_STORE"); v != "" {
		config.Store.Backend = v
	}

	if v := os.Getenv("ECOTWIN_NEO4J_URI"); v != "" {
		config.Store.Neo4j.URI = v
	}
	if v := os.Getenv("ECOTWIN_NEO4J_USER"); v != "" {
		config.Store.Neo4j.Username = v
	}
	if v := os.Getenv("ECOTWIN_NEO4J_PASSWORD"); v != "" {
		config.Store.Neo4j.Password = v
	}
	if v := os.Getenv("ECOTWIN_NEO4J_DATABASE"); v != "" {
		config.Store.Neo4j.Database = v
	}

	if v := os.Getenv("ECOTWIN_MAX_DEPTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Propagation.MaxDepth = n
		}
	}
	if v := os.Getenv("ECOTWIN_MAGNITUDE_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Propagation.MagnitudeFloor = f
		}
	}
	if v := os.Getenv("ECOTWIN_MAX_VISITS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Propagation.MaxVisits = n
		}
	}

	if v := os.Getenv("ECOTWIN_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}

	if v := os.Getenv("ECOTWIN_METRICS"); v != "" {
		config.Telemetry.Metrics = v
	}
	if v := os.Getenv("ECOTWIN_METRICS_ADDR"); v != "" {
		config.Telemetry.MetricsAddr = v
	}
	if v := os.Getenv("ECOTWIN_TRACES"); v != "" {
		config.Telemetry.Traces = v
	}
}

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return os.Expand(s, os.Getenv)
}
