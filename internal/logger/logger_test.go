package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/dlrshim/internal/env"
	"github.com/ekisa-team/dlrshim/internal/envvar"
)

func TestNew_Production(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithWriter(&buf), WithLevel(slog.LevelInfo))

	log.Debug("Hidden")
	log.Info("Model loaded", "model_id", "resnet")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "Model loaded", rec["msg"])
	assert.Equal(t, "resnet", rec["model_id"])
}

func TestNew_Development(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Test, WithWriter(&buf), WithLevel(slog.LevelDebug))

	log.Debug("Graph storage planned", "buffers", 3)

	out := buf.String()
	assert.Contains(t, out, "Graph storage planned")
	assert.Contains(t, out, "buffers=3")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_LogToFile(t *testing.T) {
	var buf bytes.Buffer
	file := filepath.Join(t.TempDir(), "logs", "dlrshim.log")

	log := New(env.Test,
		WithWriter(&buf),
		WithLevel(slog.LevelInfo),
		WithLogToFile(true),
		WithLogFile(file),
	)
	log.With("model_id", "m1").Warn("Model version is not a semantic version")

	assert.Contains(t, buf.String(), "Model version is not a semantic version")

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, "m1", rec["model_id"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
	assert.Equal(t, slog.LevelInfo, ParseLevel("loud"))

	t.Setenv(envvar.DlrshimLogLevel, "error")
	assert.Equal(t, slog.LevelError, LevelFromEnv())
}
