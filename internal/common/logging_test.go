package common

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerFromConfig_WarnsWhenLogDirUnusable(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	var stderr bytes.Buffer
	logger := newLoggerFromConfig(LoggingConfig{
		Level:    "info",
		Format:   "json",
		Outputs:  []string{"file"},
		FilePath: filepath.Join(blocker, "logs", "tickercal.log"),
	}, &stderr)
	require.NotNil(t, logger)

	assert.Contains(t, stderr.String(), "File logging disabled")
	assert.Contains(t, stderr.String(), "tickercal.log")

	// falls back to the console writer
	logger.Info().Msg("still logging")
	assert.Contains(t, stderr.String(), "still logging")
}

func TestNewLoggerFromConfig_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tickercal.log")

	var stderr bytes.Buffer
	logger := newLoggerFromConfig(LoggingConfig{
		Level:    "info",
		Format:   "json",
		Outputs:  []string{"console", "file"},
		FilePath: path,
	}, &stderr)
	logger.Info().Msg("hello")

	assert.NotContains(t, stderr.String(), "File logging disabled")
	assert.Contains(t, stderr.String(), "hello")
	_, err := os.Stat(path)
	assert.NoError(t, err)
}
