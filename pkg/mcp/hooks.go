package mcp

import (
	"context"
	"sync"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/fgp-dev/fgp-neon/pkg/logging"
)

// callLogger records tool invocations with their duration. Parameter
// values are never logged; project and branch identifiers arrive in
// them alongside free-form SQL.
type callLogger struct {
	logger *zap.Logger

	// startTimes tracks when tool calls begin, keyed by request ID.
	startTimes sync.Map
}

func newCallLogger(logger *zap.Logger) *callLogger {
	return &callLogger{logger: logger}
}

// Hooks returns mcp-go hooks wired to this logger.
func (c *callLogger) Hooks() *server.Hooks {
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(c.beforeCallTool)
	hooks.AddAfterCallTool(c.afterCallTool)
	hooks.AddOnError(c.onError)
	return hooks
}

func (c *callLogger) beforeCallTool(_ context.Context, id any, _ *mcplib.CallToolRequest) {
	c.startTimes.Store(id, time.Now())
}

func (c *callLogger) afterCallTool(_ context.Context, id any, req *mcplib.CallToolRequest, result *mcplib.CallToolResult) {
	fields := []zap.Field{
		zap.String("tool", req.Params.Name),
		zap.Duration("duration", c.sinceStart(id)),
	}
	if result != nil && result.IsError {
		c.logger.Warn("tool call failed", fields...)
		return
	}
	c.logger.Debug("tool call completed", fields...)
}

func (c *callLogger) onError(_ context.Context, id any, method mcplib.MCPMethod, _ any, err error) {
	if method != mcplib.MethodToolsCall {
		return
	}
	c.logger.Warn("tool call errored",
		zap.Duration("duration", c.sinceStart(id)),
		zap.String("error", logging.SanitizeError(err)))
}

func (c *callLogger) sinceStart(id any) time.Duration {
	v, ok := c.startTimes.LoadAndDelete(id)
	if !ok {
		return 0
	}
	return time.Since(v.(time.Time))
}
