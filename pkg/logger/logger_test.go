package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_MasksSensitiveKeys(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"password", "password"},
		{"api key", "api_key"},
		{"uppercase key", "API_KEY"},
		{"partial match", "platform_api_key"},
		{"dsn", "dsn"},
		{"token", "token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			log := New(Config{Level: "info", Format: "json", Output: &buf})

			log.Info("connecting", tt.key, "super-secret-value")

			entry := logLine(t, &buf)
			assert.Equal(t, "[REDACTED]", entry[tt.key])
			assert.NotContains(t, buf.String(), "super-secret-value")
		})
	}
}

func TestLogger_PassesThroughNormalKeys(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.Info("batch complete", "analysis_type", "battery_health", "processed", 3)

	entry := logLine(t, &buf)
	assert.Equal(t, "battery_health", entry["analysis_type"])
	assert.EqualValues(t, 3, entry["processed"])
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Output: &buf})

	log.Info("should be dropped")
	assert.Empty(t, buf.String())

	log.Warn("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

func TestLogger_WithPreservesMasking(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Format: "json", Output: &buf})

	log.With("component", "worker").Info("started", "db_password", "hunter2")

	entry := logLine(t, &buf)
	assert.Equal(t, "worker", entry["component"])
	assert.Equal(t, "[REDACTED]", entry["db_password"])
	assert.NotContains(t, buf.String(), "hunter2")
}
