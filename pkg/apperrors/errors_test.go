package apperrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingParamMessage(t *testing.T) {
	err := MissingParam("project_id")
	assert.Equal(t, KindBadRequest, err.Kind)
	assert.Equal(t, "Missing required parameter: project_id", err.Message)
}

func TestUnknownMethodMessage(t *testing.T) {
	err := UnknownMethod("neon.nope")
	assert.Equal(t, KindUnknownMethod, err.Kind)
	assert.Equal(t, "Unknown method: neon.nope", err.Message)
}

func TestRemotePreservesStatusAndBody(t *testing.T) {
	err := Remote(502, `{"code":"bad_gateway"}`)
	assert.Equal(t, 502, err.Status)
	assert.Equal(t, `{"code":"bad_gateway"}`, err.Body)
	assert.Contains(t, err.Error(), "HTTP 502")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transport(cause)
	assert.True(t, errors.Is(err, cause))
}

func TestKindSurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("running query: %w", NotFoundf("no endpoint for branch %s", "br-x"))
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, IsNotFound(wrapped))
	assert.Equal(t, "not_found", CodeOf(wrapped))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, "internal", CodeOf(errors.New("boom")))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return false }

func TestClassifyTransport(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("Get \"https://x\": %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{}, KindTimeout},
		{"connection refused", errors.New("dial tcp: connection refused"), KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := ClassifyTransport(tt.err)
			require.Error(t, classified)
			assert.Equal(t, tt.want, KindOf(classified))
		})
	}
}

func TestClassifyTransportPassthrough(t *testing.T) {
	orig := Remote(400, "bad")
	assert.Same(t, orig, ClassifyTransport(orig))
	assert.NoError(t, ClassifyTransport(nil))
}

func TestIsRemoteCoversTimeout(t *testing.T) {
	assert.True(t, IsRemote(Remote(500, "")))
	assert.True(t, IsRemote(Timeout(context.DeadlineExceeded)))
	assert.False(t, IsRemote(Transport(errors.New("refused"))))
}

func TestIsInputError(t *testing.T) {
	assert.True(t, IsInputError(MissingParam("x")))
	assert.True(t, IsInputError(UnknownMethod("x")))
	assert.True(t, IsInputError(NotFoundf("gone")))
	assert.False(t, IsInputError(Remote(500, "")))
	assert.False(t, IsInputError(errors.New("boom")))
}
