package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/platinummonkey/workspaces/pkg/contextkeys"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	t.Run("debug not logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Debug("debug message")
		assert.Zero(t, buf.Len())
	})

	t.Run("info logged at info level", func(t *testing.T) {
		buf.Reset()
		logger.Info("info message")

		var entry LogEntry
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, "INFO", entry.Level)
		assert.Equal(t, "info message", entry.Message)
	})

	t.Run("formatted warn", func(t *testing.T) {
		buf.Reset()
		logger.Warnf("pending %d", 3)
		assert.Equal(t, "pending 3", decodeLine(t, &buf)["msg"])
	})
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.WithWorkspace("ws-1").
		WithFields(map[string]interface{}{"b": 2, "a": "x"}).
		WithError(errors.New("boom")).
		Error("failed")

	entry := decodeLine(t, &buf)
	assert.Equal(t, "ws-1", entry["workspace_id"])
	assert.Equal(t, "x", entry["a"])
	assert.Equal(t, float64(2), entry["b"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "ERROR", entry["level"])
}

func TestLogger_WithErrorNil(t *testing.T) {
	logger := NewNopLogger()
	assert.Same(t, logger, logger.WithError(nil))
	assert.Same(t, logger, logger.WithWorkspace(""))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLogLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLogLevel("warning"))
	assert.Equal(t, ErrorLevel, ParseLogLevel(" error "))
	assert.Equal(t, InfoLevel, ParseLogLevel("verbose"))
	assert.Equal(t, "WARN", WarnLevel.String())
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), base)
	ctx = contextkeys.WithRequestID(ctx, "req-9")
	ctx = contextkeys.WithActor(ctx, contextkeys.Actor{UserID: "u-7"})

	FromContext(ctx, nil).Info("hello")

	line := buf.String()
	assert.True(t, strings.Contains(line, `"request_id":"req-9"`), line)
	assert.True(t, strings.Contains(line, `"user_id":"u-7"`), line)
}

func TestGetLogger_Fallback(t *testing.T) {
	fallback := NewNopLogger()
	assert.Same(t, fallback, GetLogger(context.Background(), fallback))
	assert.NotNil(t, GetLogger(context.Background(), nil))
}
