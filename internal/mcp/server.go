// Package mcp provides an MCP (Model Context Protocol) server for ecotwin.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"os"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ecotwin/ecotwin/internal/logging"
	"github.com/ecotwin/ecotwin/internal/ratelimit"
	"github.com/ecotwin/ecotwin/internal/twin"
)

// Server wraps the MCP SDK server and exposes the twin operations as tools.
type Server struct {
	server       *sdk.Server
	service      *twin.Service
	logger       *slog.Logger
	auditLogger  *AuditLogger
	toolLimiters ratelimit.ToolLimiters
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "ecotwin")
	Version string // Server version

	// Service runs the tool calls. The caller owns it and closes it.
	Service *twin.Service

	// StateDir receives audit.jsonl. Empty disables auditing.
	StateDir string

	Logger *slog.Logger
}

// NewServer creates a new MCP server with ecotwin tools.
func NewServer(cfg *Config) (*Server, error) {
	if cfg == nil || cfg.Service == nil {
		return nil, errors.New("mcp server requires a twin service")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, &sdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, req *sdk.InitializedRequest) {
			logger.Debug("mcp client initialized")
		},
	})

	s := &Server{
		server:       mcpServer,
		service:      cfg.Service,
		logger:       logger,
		toolLimiters: ratelimit.NewToolLimiters(),
	}
	if cfg.StateDir != "" {
		s.auditLogger = NewAuditLogger(cfg.StateDir, logger)
	}

	s.registerTools()
	s.registerResources()

	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		select {
		case <-sigChan:
			s.logger.Info("mcp server shutting down on signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	return s.server.Run(ctx, &sdk.StdioTransport{})
}

// Close releases the audit log. The twin service is closed by its owner.
func (s *Server) Close() error {
	return s.auditLogger.Close()
}
