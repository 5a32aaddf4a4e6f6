// Package fgp implements the local daemon framework: a Unix-socket
// server speaking a line-delimited JSON protocol, a dialing client,
// and the PID-file and detach helpers the daemon lifecycle needs.
//
// One request per line, one response per line. A request is
// {"id", "v", "method", "params"}; a response is {"id", "ok",
// "result"} or {"id", "ok": false, "error": {"code", "message"}}.
package fgp

import (
	"context"
	"errors"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
	"github.com/fgp-dev/fgp-neon/pkg/logging"
)

// ProtocolVersion is the only protocol version the server accepts.
const ProtocolVersion = 1

// MaxLineBytes caps one request line. A connection sending a longer
// line is dropped.
const MaxLineBytes = 1 << 20

// Reserved framework methods, handled before service dispatch.
const (
	MethodPing    = "fgp.ping"
	MethodMethods = "fgp.methods"
	MethodStop    = "fgp.stop"
)

// Request is one client request line.
type Request struct {
	ID     string         `json:"id"`
	V      int            `json:"v"`
	Method string         `json:"method"`
	Params map[string]any `json:"params"`
}

// Response is one server response line.
type Response struct {
	ID     string     `json:"id"`
	OK     bool       `json:"ok"`
	Result any        `json:"result,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody is the error payload of a failed response. Status and Body
// are populated for remote errors so clients see what the upstream API
// said.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status,omitempty"`
	Body    string `json:"body,omitempty"`
}

// MethodInfo describes one method for introspection.
type MethodInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamInfo `json:"params"`
}

// ParamInfo describes one parameter of a method. Type is one of
// "string", "integer" or "boolean".
type ParamInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
	Default  any    `json:"default,omitempty"`
}

// HealthStatus reports the health of one dependency.
type HealthStatus struct {
	Healthy   bool     `json:"healthy"`
	LatencyMS *float64 `json:"latency_ms,omitempty"`
	Reason    string   `json:"reason,omitempty"`
}

// HealthyWithLatency builds a healthy status with a measured latency.
func HealthyWithLatency(ms float64) HealthStatus {
	return HealthStatus{Healthy: true, LatencyMS: &ms}
}

// Unhealthy builds an unhealthy status with a reason.
func Unhealthy(reason string) HealthStatus {
	return HealthStatus{Healthy: false, Reason: reason}
}

// Service is the contract the hosting daemon invokes. Dispatch
// receives every non-framework method; OnStart runs once before the
// listener accepts; HealthCheck backs the service's health reporting.
type Service interface {
	Name() string
	Version() string
	Dispatch(ctx context.Context, method string, params map[string]any) (any, error)
	Methods() []MethodInfo
	OnStart(ctx context.Context) error
	HealthCheck(ctx context.Context) map[string]HealthStatus
}

// okResponse builds a success response.
func okResponse(id string, result any) Response {
	return Response{ID: id, OK: true, Result: result}
}

// errResponse converts an error into a failed response. Classified
// errors keep their code and remote context; anything else surfaces as
// internal with a sanitized message.
func errResponse(id string, err error) Response {
	body := &ErrorBody{Code: string(apperrors.KindInternal)}

	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		body.Code = string(appErr.Kind)
		body.Message = appErr.Message
		body.Status = appErr.Status
		body.Body = appErr.Body
	} else {
		body.Message = logging.Redact(err.Error())
	}
	return Response{ID: id, OK: false, Error: body}
}
