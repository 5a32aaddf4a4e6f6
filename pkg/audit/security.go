// Package audit emits security-relevant daemon events as structured
// log records. Events carry a stable event_type and a generated
// event_id so they can be filtered out of the log stream and
// correlated by SIEM tooling.
package audit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventType categorizes security-relevant events.
type EventType string

const (
	// EventSQLInjectionAttempt is recorded when libinjection flags a
	// table name before it is interpolated into a catalog query.
	EventSQLInjectionAttempt EventType = "sql_injection_attempt"

	// EventStaleSocketTakeover is recorded when startup removes a
	// socket file whose daemon no longer answers.
	EventStaleSocketTakeover EventType = "stale_socket_takeover"
)

// InjectionDetails describes a flagged parameter value.
type InjectionDetails struct {
	Param       string `json:"param"`
	Value       string `json:"value"`
	Fingerprint string `json:"fingerprint"`
	ProjectID   string `json:"project_id,omitempty"`
	BranchID    string `json:"branch_id,omitempty"`
}

// Auditor writes security events through a dedicated logger namespace.
type Auditor struct {
	logger *zap.Logger
}

// New creates an Auditor. Its records appear under the
// "security_audit" logger name for easy filtering.
func New(logger *zap.Logger) *Auditor {
	return &Auditor{logger: logger.Named("security_audit")}
}

// InjectionAttempt records a flagged value at error level. Detection
// is advisory: the caller still sends the query, so the record is the
// only trace.
func (a *Auditor) InjectionAttempt(details InjectionDetails) {
	a.logger.Error("SQL injection pattern detected",
		a.eventFields(EventSQLInjectionAttempt, "critical",
			zap.String("param", details.Param),
			zap.String("value", details.Value),
			zap.String("fingerprint", details.Fingerprint),
			zap.String("project_id", details.ProjectID),
			zap.String("branch_id", details.BranchID),
		)...)
}

// StaleSocketTakeover records the removal of a dead socket file.
func (a *Auditor) StaleSocketTakeover(socketPath string) {
	a.logger.Warn("replaced stale daemon socket",
		a.eventFields(EventStaleSocketTakeover, "warning",
			zap.String("socket", socketPath),
		)...)
}

func (a *Auditor) eventFields(eventType EventType, severity string, extra ...zap.Field) []zap.Field {
	fields := []zap.Field{
		zap.String("event_id", uuid.NewString()),
		zap.String("event_type", string(eventType)),
		zap.String("severity", severity),
		zap.Time("event_time", time.Now().UTC()),
	}
	return append(fields, extra...)
}
