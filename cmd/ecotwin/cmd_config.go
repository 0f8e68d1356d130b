package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ecotwin/ecotwin/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage ecotwin configuration",
		Long: `View and modify ecotwin configuration settings.

Configuration is stored in ~/.ecotwin/config.yaml. ECOTWIN_* environment
variables override it at load time.

Examples:
  ecotwin config list                               # Show all settings
  ecotwin config get store.backend                  # Get a specific setting
  ecotwin config set store.neo4j.uri bolt://localhost:7687
  ecotwin config set store.backend neo4j
  ecotwin config set store.neo4j.password '${NEO4J_PASSWORD}'`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				redacted := *cfg
				redacted.Store.Neo4j.Password = cfg.Store.Neo4j.RedactedPassword()
				return json.NewEncoder(out).Encode(redacted)
			}

			fmt.Fprintln(out, "Configuration (~/.ecotwin/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Store:")
			fmt.Fprintf(out, "  store.backend:                %s\n", cfg.Store.Backend)
			fmt.Fprintf(out, "  store.neo4j.uri:              %s\n", valueOrDefault(cfg.Store.Neo4j.URI, "(not set)"))
			fmt.Fprintf(out, "  store.neo4j.username:         %s\n", valueOrDefault(cfg.Store.Neo4j.Username, "(not set)"))
			fmt.Fprintf(out, "  store.neo4j.password:         %s\n", valueOrDefault(cfg.Store.Neo4j.RedactedPassword(), "(not set)"))
			fmt.Fprintf(out, "  store.neo4j.database:         %s\n", valueOrDefault(cfg.Store.Neo4j.Database, "(default)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Propagation:")
			fmt.Fprintf(out, "  propagation.max_depth:        %d\n", cfg.Propagation.MaxDepth)
			fmt.Fprintf(out, "  propagation.magnitude_floor:  %g\n", cfg.Propagation.MagnitudeFloor)
			fmt.Fprintf(out, "  propagation.max_visits:       %d\n", cfg.Propagation.MaxVisits)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging and telemetry:")
			fmt.Fprintf(out, "  logging.level:                %s\n", cfg.Logging.Level)
			fmt.Fprintf(out, "  telemetry.metrics:            %s\n", cfg.Telemetry.Metrics)
			fmt.Fprintf(out, "  telemetry.metrics_addr:       %s\n", cfg.Telemetry.MetricsAddr)
			fmt.Fprintf(out, "  telemetry.traces:             %s\n", cfg.Telemetry.Traces)
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := args[0]

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonFlag(cmd) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]

			cfg, err := loadConfigFile()
			if err != nil {
				return err
			}
			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("refusing to save: %w", err)
			}
			if err := saveConfig(cfg); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonFlag(cmd) {
				shown, _ := getConfigValue(cfg, key)
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "updated",
					"key":    key,
					"value":  shown,
				})
			}
			shown, _ := getConfigValue(cfg, key)
			fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, shown)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (any, bool) {
	switch key {
	case "store.backend":
		return cfg.Store.Backend, true
	case "store.neo4j.uri":
		return cfg.Store.Neo4j.URI, true
	case "store.neo4j.username":
		return cfg.Store.Neo4j.Username, true
	case "store.neo4j.password":
		return cfg.Store.Neo4j.RedactedPassword(), true
	case "store.neo4j.database":
		return cfg.Store.Neo4j.Database, true
	case "propagation.max_depth":
		return cfg.Propagation.MaxDepth, true
	case "propagation.magnitude_floor":
		return cfg.Propagation.MagnitudeFloor, true
	case "propagation.max_visits":
		return cfg.Propagation.MaxVisits, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "telemetry.metrics":
		return cfg.Telemetry.Metrics, true
	case "telemetry.metrics_addr":
		return cfg.Telemetry.MetricsAddr, true
	case "telemetry.traces":
		return cfg.Telemetry.Traces, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
// Range checks are left to Config.Validate.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch key {
	case "store.backend":
		cfg.Store.Backend = value
	case "store.neo4j.uri":
		cfg.Store.Neo4j.URI = value
	case "store.neo4j.username":
		cfg.Store.Neo4j.Username = value
	case "store.neo4j.password":
		cfg.Store.Neo4j.Password = value
	case "store.neo4j.database":
		cfg.Store.Neo4j.Database = value
	case "propagation.max_depth":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max_depth: %s (must be an integer)", value)
		}
		cfg.Propagation.MaxDepth = n
	case "propagation.magnitude_floor":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid magnitude_floor: %s (must be a number)", value)
		}
		cfg.Propagation.MagnitudeFloor = f
	case "propagation.max_visits":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid max_visits: %s (must be an integer)", value)
		}
		cfg.Propagation.MaxVisits = n
	case "logging.level":
		cfg.Logging.Level = value
	case "telemetry.metrics":
		cfg.Telemetry.Metrics = value
	case "telemetry.metrics_addr":
		cfg.Telemetry.MetricsAddr = value
	case "telemetry.traces":
		cfg.Telemetry.Traces = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// loadConfigFile reads config.yaml as written, without environment
// overrides or ${VAR} expansion, so saving it back keeps references intact.
func loadConfigFile() (*config.Config, error) {
	cfg := config.Default()
	path, err := config.DefaultPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// saveConfig writes the configuration to ~/.ecotwin/config.yaml.
func saveConfig(cfg *config.Config) error {
	path, err := config.DefaultPath()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
