package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("DASHLOOM_GOOGLE_API_KEY", "gk")
	t.Setenv("DASHLOOM_PREVIEW_ROWS", "7")

	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "openrouter", c.DefaultProvider)
	assert.Equal(t, "A1:Z5000", c.SheetRange)
	assert.Equal(t, "gk", c.GoogleAPIKey)
	assert.Equal(t, 7, c.PreviewRows)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".dashloom", "projects"), c.ProjectsDir)
}

func TestSaveAndLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	c := &Global{DefaultModel: "m", ProjectsDir: "/tmp/p", LogLevel: "debug"}
	require.NoError(t, Save(c, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "m", got.DefaultModel)
	assert.Equal(t, "/tmp/p", got.ProjectsDir)
	assert.Equal(t, "debug", got.LogLevel)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSet(t *testing.T) {
	c := &Global{}
	require.NoError(t, c.Set("default_provider", "Google"))
	assert.Equal(t, "gemini", c.DefaultProvider)
	require.NoError(t, c.Set("preview_rows", "15"))
	assert.Equal(t, 15, c.PreviewRows)
	require.NoError(t, c.Set("log_format", "JSON"))
	assert.Equal(t, "json", c.LogFormat)

	assert.Error(t, c.Set("preview_rows", "-1"))
	assert.Error(t, c.Set("temperature", "hot"))
	assert.Error(t, c.Set("log_level", "loud"))
	assert.Error(t, c.Set("nope", "x"))
	for _, k := range Keys {
		if k == "default_provider" || k == "log_level" || k == "log_format" || k == "temperature" {
			continue
		}
		assert.NoError(t, c.Set(k, "1"), k)
	}
}
