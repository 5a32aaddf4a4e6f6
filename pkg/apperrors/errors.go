// Package apperrors defines the error taxonomy shared by the daemon,
// the Neon API adapter, and the socket protocol layer. Every error that
// crosses a package boundary is an *Error carrying a Kind; the Kind
// string doubles as the wire error code.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies an error. The string value is the code written into
// protocol error responses.
type Kind string

const (
	KindBadRequest    Kind = "bad_request"
	KindUnknownMethod Kind = "unknown_method"
	KindRemote        Kind = "remote_error"
	KindTimeout       Kind = "timeout"
	KindTransport     Kind = "transport_error"
	KindDecode        Kind = "decode_error"
	KindNotFound      Kind = "not_found"
	KindConfig        Kind = "config_error"
	KindInternal      Kind = "internal"
)

// Error is a classified error with optional remote context.
type Error struct {
	Kind    Kind   // Classification; also the wire code
	Message string // Human-readable message
	Status  int    // HTTP status code if the remote answered
	Body    string // Verbatim remote response body if applicable
	Cause   error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// BadRequest reports invalid client input, such as a missing or
// wrongly typed parameter.
func BadRequest(message string) *Error {
	return &Error{Kind: KindBadRequest, Message: message}
}

// MissingParam reports a required parameter that is absent or of the
// wrong JSON kind. The message format is part of the client contract.
func MissingParam(name string) *Error {
	return &Error{Kind: KindBadRequest, Message: "Missing required parameter: " + name}
}

// UnknownMethod reports a method name the registry does not know.
func UnknownMethod(name string) *Error {
	return &Error{Kind: KindUnknownMethod, Message: "Unknown method: " + name}
}

// Remote reports a non-2xx response from the Neon API. The status and
// the verbatim body are preserved for the client.
func Remote(status int, body string) *Error {
	return &Error{
		Kind:    KindRemote,
		Message: fmt.Sprintf("Neon API returned status %d", status),
		Status:  status,
		Body:    body,
	}
}

// Timeout reports an outbound request that exceeded its deadline.
func Timeout(cause error) *Error {
	return &Error{Kind: KindTimeout, Message: "request to Neon API timed out", Cause: cause}
}

// Transport reports a connection-level failure before any HTTP
// response was received.
func Transport(cause error) *Error {
	return &Error{Kind: KindTransport, Message: "failed to reach Neon API", Cause: cause}
}

// Decode reports a 2xx response whose body did not match the expected
// shape.
func Decode(message string, cause error) *Error {
	return &Error{Kind: KindDecode, Message: message, Cause: cause}
}

// NotFoundf reports a referenced entity that does not exist.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Config reports invalid or incomplete startup configuration.
func Config(message string) *Error {
	return &Error{Kind: KindConfig, Message: message}
}

// Internal wraps an unexpected failure inside the daemon.
func Internal(cause error) *Error {
	return &Error{Kind: KindInternal, Message: "internal error", Cause: cause}
}

// KindOf returns the Kind of err, or KindInternal for errors that do
// not carry one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the wire error code for err.
func CodeOf(err error) string {
	return string(KindOf(err))
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// IsBadRequest reports whether err is a client input error.
func IsBadRequest(err error) bool { return Is(err, KindBadRequest) }

// IsUnknownMethod reports whether err names an unregistered method.
func IsUnknownMethod(err error) bool { return Is(err, KindUnknownMethod) }

// IsNotFound reports whether err is a missing-entity error.
func IsNotFound(err error) bool { return Is(err, KindNotFound) }

// IsTimeout reports whether err is an outbound deadline expiry.
func IsTimeout(err error) bool { return Is(err, KindTimeout) }

// IsRemote reports whether the remote was involved in the failure.
// Timeouts count: the request was sent, an answer never arrived.
func IsRemote(err error) bool {
	return Is(err, KindRemote) || Is(err, KindTimeout)
}

// IsConfig reports whether err is a startup configuration error.
func IsConfig(err error) bool { return Is(err, KindConfig) }

// IsInputError reports whether err was caused by the client rather
// than the daemon or the remote. Input errors log at debug level.
func IsInputError(err error) bool {
	switch KindOf(err) {
	case KindBadRequest, KindUnknownMethod, KindNotFound:
		return true
	}
	return false
}

// ClassifyTransport converts an outbound HTTP error into a Timeout or
// Transport error. Errors that already carry a Kind pass through.
func ClassifyTransport(err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return Timeout(err)
	}
	return Transport(err)
}
