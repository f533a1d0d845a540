package logging_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/aretw0/mosaic/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON_RenamesErrorKey(t *testing.T) {
	var buf bytes.Buffer
	logging.NewJSON(&buf, slog.LevelInfo).Error("handler failed", "error", "boom", "handler", "gini")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "boom", rec["err"])
	assert.NotContains(t, rec, "error")
	assert.Equal(t, "gini", rec["handler"])
}

func TestFanout(t *testing.T) {
	var text, js bytes.Buffer
	logger := logging.Fanout(
		logging.NewTextHandler(&text, slog.LevelDebug),
		logging.NewJSONHandler(&js, slog.LevelWarn),
	)
	logger.Debug("pass started")
	logger.Warn("stale result discarded")

	assert.Equal(t, 2, strings.Count(text.String(), "\n"))
	assert.Equal(t, 1, strings.Count(js.String(), "\n"), "each handler applies its own level")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := logging.ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewNop(t *testing.T) {
	logging.NewNop().Error("ignored")
}
