package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ecotwin/ecotwin/internal/config"
	"github.com/ecotwin/ecotwin/internal/constants"
	"github.com/ecotwin/ecotwin/internal/logging"
	"github.com/ecotwin/ecotwin/internal/propagation"
	"github.com/ecotwin/ecotwin/internal/store"
	"github.com/ecotwin/ecotwin/internal/telemetry"
	"github.com/ecotwin/ecotwin/internal/twin"
)

// app holds everything a command needs to talk to one twin.
type app struct {
	cfg       *config.Config
	scope     constants.Scope
	root      string
	stateDir  string
	logger    *slog.Logger
	events    *logging.EventLogger
	telemetry *telemetry.Provider
	service   *twin.Service
}

// resolveScope maps the --global flag onto a scope.
func resolveScope(cmd *cobra.Command) constants.Scope {
	global, _ := cmd.Flags().GetBool("global")
	if global {
		return constants.ScopeGlobal
	}
	return constants.ScopeLocal
}

// resolveRoot returns the directory whose .ecotwin holds the state for scope.
// The global scope lives under the user's home directory.
func resolveRoot(cmd *cobra.Command, scope constants.Scope) (string, error) {
	if scope == constants.ScopeGlobal {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		return home, nil
	}
	root, _ := cmd.Flags().GetString("root")
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("failed to resolve root %q: %w", root, err)
	}
	return abs, nil
}

// loadConfig reads ~/.ecotwin/config.yaml plus environment overrides and
// validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openApp loads config, opens the configured graph backend and builds the
// twin service on top of it. Callers must Close the returned app.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	scope := resolveScope(cmd)
	root, err := resolveRoot(cmd, scope)
	if err != nil {
		return nil, err
	}
	stateDir, err := store.EnsureStateDir(root)
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(cfg.Logging.Level, cmd.ErrOrStderr())
	events := logging.NewEventLogger(stateDir, cfg.Logging.Level)

	tcfg := telemetry.FromConfig(cfg.Telemetry, version)
	tcfg.Output = cmd.ErrOrStderr()
	provider, err := telemetry.Init(ctx, tcfg)
	if err != nil {
		events.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	graph, err := openGraph(ctx, cfg, root)
	if err != nil {
		_ = provider.Shutdown(ctx)
		events.Close()
		return nil, err
	}

	service, err := twin.New(ctx, graph, twin.Options{
		StateDir: stateDir,
		Propagation: propagation.Config{
			MaxDepth:       cfg.Propagation.MaxDepth,
			MagnitudeFloor: cfg.Propagation.MagnitudeFloor,
			MaxVisits:      cfg.Propagation.MaxVisits,
		},
		Logger: logger,
		Events: events,
	})
	if err != nil {
		graph.Close()
		_ = provider.Shutdown(ctx)
		events.Close()
		return nil, fmt.Errorf("failed to open twin: %w", err)
	}

	logger.Debug("twin opened",
		"scope", scope.String(),
		"backend", cfg.Store.Backend,
		"state_dir", stateDir)

	return &app{
		cfg:       cfg,
		scope:     scope,
		root:      root,
		stateDir:  stateDir,
		logger:    logger,
		events:    events,
		telemetry: provider,
		service:   service,
	}, nil
}

// openGraph opens the graph store selected by cfg.Store.Backend.
func openGraph(ctx context.Context, cfg *config.Config, root string) (store.GraphStore, error) {
	switch cfg.Store.Backend {
	case constants.BackendMemory:
		return store.NewInMemoryGraphStore(), nil
	case constants.BackendSQLite, "":
		s, err := store.NewSQLiteGraphStore(root)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return s, nil
	case constants.BackendNeo4j:
		n := cfg.Store.Neo4j
		s, err := store.OpenNeo4jGraphStore(ctx, n.URI, n.Username, n.Password, n.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to neo4j at %s: %w", n.URI, err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// Close persists state and releases the store, event log and telemetry.
func (a *app) Close(ctx context.Context) error {
	err := a.service.Close(ctx)
	if shutdownErr := a.telemetry.Shutdown(ctx); shutdownErr != nil && err == nil {
		err = fmt.Errorf("failed to shut down telemetry: %w", shutdownErr)
	}
	a.events.Close()
	return err
}

// withApp opens the app, runs fn and closes the app, keeping fn's error
// ahead of any close error.
func withApp(cmd *cobra.Command, fn func(a *app) error) (retErr error) {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer func() {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		// State must still be written when the command context was cancelled.
		if closeErr := a.Close(context.WithoutCancel(ctx)); closeErr != nil && retErr == nil {
			retErr = closeErr
		}
	}()
	return fn(a)
}

// jsonFlag reports whether --json was passed.
func jsonFlag(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}
