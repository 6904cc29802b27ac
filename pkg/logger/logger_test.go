package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("Should return logger from context when present", func(t *testing.T) {
		expected := NewLogger(DefaultConfig())
		ctx := ContextWithLogger(t.Context(), expected)
		assert.Equal(t, expected, FromContext(ctx))
	})
	t.Run("Should return default logger when no logger in context", func(t *testing.T) {
		log := FromContext(t.Context())
		require.NotNil(t, log)
	})
	t.Run("Should return default logger for a nil context", func(t *testing.T) {
		require.NotNil(t, FromContext(nil)) //nolint:staticcheck // nil context fallback is the point
	})
}

func TestNewLogger(t *testing.T) {
	t.Run("Should write through the configured output", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})
		log.Info("test message")
		assert.Contains(t, buf.String(), "test message")
	})
	t.Run("Should fall back to defaults when config is nil", func(t *testing.T) {
		require.NotNil(t, NewLogger(nil))
	})
	t.Run("Should respect log level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewLogger(&Config{Level: WarnLevel, Output: &buf, TimeFormat: "15:04:05"})
		log.Debug("debug message")
		log.Info("info message")
		log.Warn("warn message")
		log.Error("error message")
		output := buf.String()
		assert.NotContains(t, output, "debug message")
		assert.NotContains(t, output, "info message")
		assert.Contains(t, output, "warn message")
		assert.Contains(t, output, "error message")
	})
}

func TestLogger_With(t *testing.T) {
	t.Run("Should carry additional context fields", func(t *testing.T) {
		var buf bytes.Buffer
		base := NewLogger(&Config{Level: InfoLevel, Output: &buf, TimeFormat: "15:04:05"})
		base.With("component", "callback").Info("operation completed")
		output := buf.String()
		assert.Contains(t, output, "component")
		assert.Contains(t, output, "callback")
		assert.Contains(t, output, "operation completed")
	})
}
