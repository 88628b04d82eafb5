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
		input string
		want  LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{"Error", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestZapAdapter_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Format: JSONFormat, Output: &buf})
	require.NoError(t, err)

	logger.WithFields(Field{"component", "dispatcher"}).
		Error("handler failed", errors.New("boom"), Field{"event_id", "WH-1"}, Field{"attempt", 2})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "handler failed", entry["msg"])
	assert.Equal(t, "dispatcher", entry["component"])
	assert.Equal(t, "WH-1", entry["event_id"])
	assert.Equal(t, float64(2), entry["attempt"])
	assert.Equal(t, "boom", entry["error"])
}

func TestZapAdapter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("hidden too")
	logger.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
}

func TestZapAdapter_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Format: JSONFormat, Output: &buf})
	require.NoError(t, err)

	assert.Same(t, logger, logger.WithContext(context.Background()))

	ctx := ContextWithRequestID(context.Background(), "req-42")
	logger.WithContext(ctx).Info("hello")
	assert.True(t, strings.Contains(buf.String(), `"request_id":"req-42"`))
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
	require.NoError(t, err)
	SetGlobalLogger(logger)

	Component("registrar").Info("registered")
	assert.Contains(t, buf.String(), "registered")
	assert.Contains(t, buf.String(), "registrar")
}
