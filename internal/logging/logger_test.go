package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
		wantErr  bool
	}{
		{input: "debug", expected: LevelDebug},
		{input: "INFO", expected: LevelInfo},
		{input: "", expected: LevelInfo},
		{input: "warning", expected: LevelWarn},
		{input: "error", expected: LevelError},
		{input: "chatty", expected: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := ParseLevel(tt.input)
			assert.Equal(t, tt.expected, level)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSlogLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "json", Output: &buf})

	ctx := ContextWithRequestID(context.Background(), "req-1")
	logger.WithComponent("server").With("root", "/srv").Error(ctx, errors.New("boom"), "request failed", "status", 500)

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, "request failed", record["msg"])
	assert.Equal(t, "ERROR", record["level"])
	assert.Equal(t, "server", record["component"])
	assert.Equal(t, "req-1", record["request_id"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "/srv", record["root"])
	assert.Equal(t, float64(500), record["status"])
}

func TestSlogLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Format: "text", Output: &buf})

	logger.Debug(context.Background(), "debug message")
	logger.Info(context.Background(), "info message")
	assert.Empty(t, buf.String())

	logger.Warn(context.Background(), nil, "warn message")
	assert.Contains(t, buf.String(), "warn message")
}

func TestSlogLogger_WithDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(&LoggerConfig{Level: LevelInfo, Format: "text", Output: &buf})
	_ = parent.With("child", true)

	parent.Info(context.Background(), "parent message")
	assert.NotContains(t, buf.String(), "child=true")
}

func TestNew_UnknownLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("loud", "json", &buf)
	assert.Error(t, err)
	require.NotNil(t, logger)

	logger.Info(context.Background(), "still logs at info")
	assert.Contains(t, buf.String(), "still logs at info")
}

func TestSanitizeForLog(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "normal text", input: "/docs/button", expected: "/docs/button"},
		{name: "line breaks", input: "/a\nINFO forged", expected: "/a\\nINFO forged"},
		{name: "long text truncation", input: strings.Repeat("a", 1500), expected: strings.Repeat("a", 1000) + "...[TRUNCATED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeForLog(tt.input))
		})
	}
}
