// Package mcp bridges the daemon's method surface to an MCP server
// over stdio. Every canonical method becomes one tool; results and
// classified errors are returned as JSON text content.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/fgp-dev/fgp-neon/pkg/fgp"
)

// Server wraps an mcp-go MCPServer built from a daemon service.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer builds the MCP server and registers one tool per
// advertised method.
func NewServer(svc fgp.Service, logger *zap.Logger) *Server {
	log := logger.Named("mcp")
	calls := newCallLogger(log)

	mcpServer := server.NewMCPServer(
		"fgp-neon",
		svc.Version(),
		server.WithToolCapabilities(true),
		server.WithHooks(calls.Hooks()),
	)

	s := &Server{
		mcp:    mcpServer,
		logger: log,
	}
	for _, m := range svc.Methods() {
		s.mcp.AddTool(buildTool(m), s.toolHandler(svc, m.Name))
	}
	return s
}

// MCP returns the underlying MCPServer.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio runs the server on stdin/stdout until EOF.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio")
	return server.ServeStdio(s.mcp)
}
