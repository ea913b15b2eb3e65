// Package server exposes the dashboard's remote operations to MCP clients,
// so an assistant can watch the swarm and triage dossiers.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with its logger and lifecycle.
type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// Instructions tell the assistant how the tool set fits together.
const Instructions = `Infomly operates a research swarm that files intelligence dossiers.
Use swarm_status before launch_swarm or stop_swarm; only one run can be active.
list_findings returns summaries; fetch the full dossier with get_finding.
approve_finding publishes a dossier and kill_finding deletes it. Both accept
only dossiers in pending or review status and cannot be undone.`

// New creates an MCP server advertising version.
func New(version string, logger *slog.Logger) *Server {
	impl := &mcp.Implementation{
		Name:    "infomly",
		Title:   "Infomly Intelligence",
		Version: version,
	}

	return &Server{
		mcp:    mcp.NewServer(impl, &mcp.ServerOptions{Instructions: Instructions}),
		logger: logger,
	}
}

// Run serves on stdio and blocks until the client disconnects or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Setup installs request logging.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
}
