package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}

	return out
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{"": LogLevelInfo, "DEBUG": LogLevelDebug, "warning": LogLevelWarn, " error ": LogLevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestStructuredLogger_ScopedAttrs(t *testing.T) {
	var buf bytes.Buffer
	base := NewLogger(&LoggerConfig{Level: LogLevelDebug, Output: &buf})

	l := base.WithComponent("engine").WithSession("s-1").With("model", "mock")
	l.Debug("resolved", "reuse", true)
	base.Info("plain")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "resolved", lines[0]["msg"])
	assert.Equal(t, "engine", lines[0]["component"])
	assert.Equal(t, "s-1", lines[0]["session_id"])
	assert.Equal(t, "mock", lines[0]["model"])
	assert.Equal(t, true, lines[0]["reuse"])

	assert.NotContains(t, lines[1], "component")
	assert.NotContains(t, lines[1], "model")
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Level: LogLevelWarn, Output: &buf})

	l.Debug("d")
	l.Info("i")
	l.Warn("w")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "w", lines[0]["msg"])
}

func TestLogToolCall(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&LoggerConfig{Output: &buf})

	LogToolCall(l, "lookup", time.Millisecond, nil)
	LogToolCall(l, "lookup", time.Millisecond, errors.New("boom"))

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "INFO", lines[0]["level"])
	assert.Equal(t, true, lines[0]["success"])
	assert.Equal(t, "ERROR", lines[1]["level"])
	assert.Equal(t, "boom", lines[1]["error"])
	assert.Equal(t, "lookup", lines[1]["tool_name"])
}

func TestHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogModelCall(nil, "m", 0, nil)
		LogStream(nil, "m", "deltas", 3, true, 0, nil)
	})
	assert.IsType(t, NoOpLogger{}, OrNoOp(nil))
}
