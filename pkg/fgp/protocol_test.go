package fgp

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fgp-dev/fgp-neon/pkg/apperrors"
)

func TestErrResponseKeepsClassifiedCode(t *testing.T) {
	resp := errResponse("r1", apperrors.BadRequest("Missing required parameter: project_id"))

	assert.Equal(t, "r1", resp.ID)
	assert.False(t, resp.OK)
	assert.Equal(t, "bad_request", resp.Error.Code)
	assert.Equal(t, "Missing required parameter: project_id", resp.Error.Message)
	assert.Zero(t, resp.Error.Status)
	assert.Empty(t, resp.Error.Body)
}

func TestErrResponseKeepsWrappedKind(t *testing.T) {
	wrapped := fmt.Errorf("listing projects: %w", apperrors.Remote(403, `{"message": "forbidden"}`))

	resp := errResponse("r2", wrapped)
	assert.Equal(t, "remote_error", resp.Error.Code)
	assert.Equal(t, 403, resp.Error.Status)
	assert.Equal(t, `{"message": "forbidden"}`, resp.Error.Body)
}

func TestErrResponseRedactsUnclassified(t *testing.T) {
	resp := errResponse("r3", errors.New("dial failed: Bearer abc123secret rejected"))

	assert.Equal(t, "internal", resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "abc123secret")
	assert.Contains(t, resp.Error.Message, "dial failed")
}

func TestErrorBodyOmitsEmptyRemoteFields(t *testing.T) {
	resp := errResponse("r4", apperrors.UnknownMethod("neon.nope"))

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"status"`)
	assert.NotContains(t, string(raw), `"body"`)
	assert.NotContains(t, string(raw), `"result"`)
}

func TestHealthStatusShapes(t *testing.T) {
	raw, err := json.Marshal(HealthyWithLatency(12.5))
	require.NoError(t, err)
	assert.JSONEq(t, `{"healthy": true, "latency_ms": 12.5}`, string(raw))

	raw, err = json.Marshal(Unhealthy("timeout"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"healthy": false, "reason": "timeout"}`, string(raw))
}
