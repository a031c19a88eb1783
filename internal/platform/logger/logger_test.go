package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tenantcore/internal/platform/config"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel(" warn "))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
}

func TestHandlerFormat(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(newHandler(&buf, config.LogConfig{Level: "info", Format: "json"}))
		log.Info("appended", "aggregate_id", "a1", "version", 3)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "appended", line["msg"])
		assert.Equal(t, "a1", line["aggregate_id"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		log := slog.New(newHandler(&buf, config.LogConfig{Level: "error", Format: "text"}))
		log.Info("dropped")
		assert.Empty(t, buf.String())
	})
}
