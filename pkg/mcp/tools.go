package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
	"github.com/fgp-dev/fgp-neon/pkg/fgp"
	"github.com/fgp-dev/fgp-neon/pkg/logging"
)

// toolName maps a method name to an MCP tool name. Tool names may not
// contain dots.
func toolName(method string) string {
	return strings.ReplaceAll(method, ".", "_")
}

// buildTool converts one method description into a tool definition.
func buildTool(m fgp.MethodInfo) mcplib.Tool {
	opts := []mcplib.ToolOption{
		mcplib.WithDescription(m.Description),
		mcplib.WithReadOnlyHintAnnotation(readOnlyMethod(m.Name)),
	}
	for _, p := range m.Params {
		opts = append(opts, paramOption(p))
	}
	return mcplib.NewTool(toolName(m.Name), opts...)
}

// readOnlyMethod reports whether a method only reads remote state.
// neon.sql is not read-only: arbitrary statements go through it.
func readOnlyMethod(name string) bool {
	switch name {
	case "neon.create_branch", "neon.delete_branch", "neon.sql":
		return false
	}
	return true
}

func paramOption(p fgp.ParamInfo) mcplib.ToolOption {
	desc := paramDescription(p)

	var popts []mcplib.PropertyOption
	if p.Required {
		popts = append(popts, mcplib.Required())
	}
	popts = append(popts, mcplib.Description(desc))

	switch p.Type {
	case "integer":
		return mcplib.WithNumber(p.Name, popts...)
	case "boolean":
		return mcplib.WithBoolean(p.Name, popts...)
	default:
		return mcplib.WithString(p.Name, popts...)
	}
}

func paramDescription(p fgp.ParamInfo) string {
	if p.Required {
		return fmt.Sprintf("Required %s parameter", p.Type)
	}
	if p.Default != nil {
		return fmt.Sprintf("Optional - defaults to %v", p.Default)
	}
	return "Optional"
}

// toolHandler forwards a tool call to the service dispatcher.
func (s *Server) toolHandler(svc fgp.Service, method string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
		params, _ := req.Params.Arguments.(map[string]any)

		result, err := svc.Dispatch(ctx, method, params)
		if err != nil {
			return errorResult(err), nil
		}

		data, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s result: %w", method, err)
		}
		return mcplib.NewToolResultText(string(data)), nil
	}
}

// errorResponse is the structured error payload returned inside a tool
// result, so callers see what went wrong instead of a bare failure.
type errorResponse struct {
	Error   bool   `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// errorResult renders a dispatch error as a failed tool result.
func errorResult(err error) *mcplib.CallToolResult {
	resp := errorResponse{
		Error:   true,
		Code:    apperrors.CodeOf(err),
		Message: logging.Redact(err.Error()),
	}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		resp.Message = appErr.Message
		if appErr.Status != 0 {
			resp.Details = map[string]any{
				"status": appErr.Status,
				"body":   appErr.Body,
			}
		}
	}

	data, _ := json.Marshal(resp)
	result := mcplib.NewToolResultText(string(data))
	result.IsError = true
	return result
}
