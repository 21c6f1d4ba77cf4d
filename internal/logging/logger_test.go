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
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanvasLogger_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Format: "json", Output: &buf})

	logger.WithComponent("renderer").With("tab", 2).Warn(context.Background(), errors.New("boom"), "render failed", "type", "diagram")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "render failed", record["msg"])
	assert.Equal(t, "renderer", record["component"])
	assert.Equal(t, "boom", record["error"])
	assert.Equal(t, "diagram", record["type"])
	assert.EqualValues(t, 2, record["tab"])
}

func TestCanvasLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelWarn, Output: &buf})

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden too")
	assert.Empty(t, buf.String())

	logger.Error(context.Background(), nil, "visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestSanitizeForLog(t *testing.T) {
	assert.Equal(t, "[REDACTED]", SanitizeForLog("https://x.test/?token=abc"))
	assert.Equal(t, "https://evil.com/", SanitizeForLog("https://evil.com/"))

	long := strings.Repeat("a", 600)
	assert.True(t, strings.HasSuffix(SanitizeForLog(long), "[TRUNCATED]"))
}

func TestLogSecurityEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&LoggerConfig{Level: LevelDebug, Output: &buf})

	LogSecurityEvent(context.Background(), logger, "embed_blocked", map[string]interface{}{
		"host": "evil.com",
	})

	out := buf.String()
	assert.Contains(t, out, "event=embed_blocked")
	assert.Contains(t, out, "host=evil.com")
	assert.Contains(t, out, "event_type=security")
}
