package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInjectionAttempt(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auditor := New(zap.New(core))

	auditor.InjectionAttempt(InjectionDetails{
		Param:       "table",
		Value:       "'; DROP TABLE users--",
		Fingerprint: "s&1c",
		ProjectID:   "p1",
		BranchID:    "br-1",
	})

	entries := logs.All()
	require.Len(t, entries, 1)
	entry := entries[0]
	assert.Equal(t, zap.ErrorLevel, entry.Level)
	assert.Equal(t, "security_audit", entry.LoggerName)

	fields := entry.ContextMap()
	assert.Equal(t, "sql_injection_attempt", fields["event_type"])
	assert.Equal(t, "critical", fields["severity"])
	assert.Equal(t, "s&1c", fields["fingerprint"])
	assert.Equal(t, "table", fields["param"])
	assert.Equal(t, "p1", fields["project_id"])
	assert.NotEmpty(t, fields["event_id"])
}

func TestInjectionAttemptEventIDsDiffer(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auditor := New(zap.New(core))

	auditor.InjectionAttempt(InjectionDetails{Param: "table", Value: "x", Fingerprint: "f"})
	auditor.InjectionAttempt(InjectionDetails{Param: "table", Value: "x", Fingerprint: "f"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.NotEqual(t, entries[0].ContextMap()["event_id"], entries[1].ContextMap()["event_id"])
}

func TestStaleSocketTakeover(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	auditor := New(zap.New(core))

	auditor.StaleSocketTakeover("/tmp/x/daemon.sock")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "stale_socket_takeover", fields["event_type"])
	assert.Equal(t, "warning", fields["severity"])
	assert.Equal(t, "/tmp/x/daemon.sock", fields["socket"])
}
