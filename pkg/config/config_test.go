package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHasSaneValues(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.JSONLogs)
}

func TestLoadOverridesDefaultsFromPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinatord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\njsonLogs: true\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.JSONLogs)
	assert.Equal(t, Default().DataDir, cfg.DataDir)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsEmptyDataDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coordinatord.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dataDir: \"\"\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
