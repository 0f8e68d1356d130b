package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ecotwin/ecotwin/internal/mcp"
	"github.com/ecotwin/ecotwin/internal/telemetry"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve the twin over MCP (stdio)",
		Long: `Run a Model Context Protocol server on stdin/stdout so agents can
upsert nodes, link sessions, share resources and run simulations.

When metrics are exported to Prometheus, /metrics is served on
--metrics-addr (default from config) for the lifetime of the server.

Examples:
  ecotwin mcp-server
  ECOTWIN_METRICS=prometheus ecotwin mcp-server --metrics-addr 127.0.0.1:9464`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(a *app) error {
				ctx, cancel := context.WithCancel(cmd.Context())
				defer cancel()

				if handler := a.telemetry.MetricsHandler(); handler != nil {
					addr := a.cfg.Telemetry.MetricsAddr
					if cmd.Flags().Changed("metrics-addr") {
						addr, _ = cmd.Flags().GetString("metrics-addr")
					}
					bound, errc, err := telemetry.ServeMetrics(ctx, addr, handler)
					if err != nil {
						return fmt.Errorf("failed to serve metrics: %w", err)
					}
					a.logger.Info("serving metrics", "addr", bound.String())
					go func() {
						if err := <-errc; err != nil {
							a.logger.Error("metrics server failed", "error", err)
						}
					}()
				}

				server, err := mcp.NewServer(&mcp.Config{
					Name:     "ecotwin",
					Version:  version,
					Service:  a.service,
					StateDir: a.stateDir,
					Logger:   a.logger,
				})
				if err != nil {
					return fmt.Errorf("failed to create MCP server: %w", err)
				}
				defer server.Close()

				a.logger.Info("mcp server starting", "scope", a.scope.String(), "backend", a.cfg.Store.Backend)
				return server.Run(ctx)
			})
		},
	}
	cmd.Flags().String("metrics-addr", "", "Listen address for /metrics when Prometheus export is enabled")
	return cmd
}
