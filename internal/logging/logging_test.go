package logging_test

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layerforge/layerforge/internal/logging"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := logging.ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := logging.ParseLevel("trace")
	assert.Error(t, err)
}

func TestNew_FileAndStderr(t *testing.T) {
	root := t.TempDir()
	var stderr bytes.Buffer
	logger, closer, err := logging.New(logging.Options{
		Level:  "debug",
		File:   ".layerforge/logs/layerforge.log",
		Root:   root,
		Stderr: &stderr,
	})
	require.NoError(t, err)

	logger.Debug("layer finished", "layer", "dto")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(filepath.Join(root, ".layerforge", "logs", "layerforge.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `msg="layer finished" layer=dto`)
	assert.Contains(t, stderr.String(), "layer=dto")
}

func TestNew_LevelFilters(t *testing.T) {
	var stderr bytes.Buffer
	logger, _, err := logging.New(logging.Options{Level: "warn", Stderr: &stderr})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "shown")
}

func TestNew_NoOutputsDiscards(t *testing.T) {
	logger, closer, err := logging.New(logging.Options{})
	require.NoError(t, err)
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
	assert.NoError(t, closer.Close())
}

func TestNew_BadLevel(t *testing.T) {
	_, _, err := logging.New(logging.Options{Level: "loud"})
	assert.Error(t, err)
}
