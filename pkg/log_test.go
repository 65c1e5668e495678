package pkg

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureLogs routes the default logger into a buffer at debug level for
// the duration of the test.
func captureLogs(t *testing.T, format LogFormat) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	originalLogger := DefaultLogger
	originalLevel := GetLogLevel()
	t.Cleanup(func() {
		SetLogger(originalLogger)
		SetLogLevel(originalLevel)
	})
	SetLogLevel(slog.LevelDebug)
	SetLogOutput(&buf, format)
	return &buf
}

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			assert.Equal(t, tt.level, GetLogLevel())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{" warn ", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLogFormat(t *testing.T) {
	f, err := ParseLogFormat("json")
	require.NoError(t, err)
	assert.Equal(t, LogFormatJSON, f)
	assert.Equal(t, "json", f.String())

	f, err = ParseLogFormat("")
	require.NoError(t, err)
	assert.Equal(t, LogFormatText, f)
	assert.Equal(t, "text", f.String())

	_, err = ParseLogFormat("xml")
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	require.NotNil(t, logger)

	logger.Info("test message")
	assert.Contains(t, buf.String(), "test message")
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	require.NotNil(t, logger)

	logger.Info("test message")
	assert.Contains(t, buf.String(), `"msg":"test message"`)
}

func TestLogHelpers(t *testing.T) {
	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
		level     string
	}{
		{"debug", LogDebug, ComponentDAQ, "level=DEBUG"},
		{"info", LogInfo, ComponentTMC, "level=INFO"},
		{"warn", LogWarn, ComponentStack, "level=WARN"},
		{"error", LogError, ComponentHAL, "level=ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := captureLogs(t, LogFormatText)
			tt.log(tt.component, tt.name+" message", "key", "value")
			out := buf.String()
			assert.Contains(t, out, tt.name+" message")
			assert.Contains(t, out, "component="+string(tt.component))
			assert.Contains(t, out, "key=value")
			assert.Contains(t, out, tt.level)
		})
	}
}

func TestSetLogOutputJSON(t *testing.T) {
	buf := captureLogs(t, LogFormatJSON)
	LogInfo(ComponentCommand, "dispatched", "command", "ADD")
	out := buf.String()
	assert.Contains(t, out, `"component":"command"`)
	assert.Contains(t, out, `"command":"ADD"`)
}

func TestLogLevelFilters(t *testing.T) {
	buf := captureLogs(t, LogFormatText)
	SetLogLevel(slog.LevelWarn)
	LogDebug(ComponentDAQ, "hidden")
	LogInfo(ComponentDAQ, "hidden too")
	assert.Empty(t, buf.String())
}
