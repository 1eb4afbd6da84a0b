package config

import (
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "revpipyload", cfg.Package)
	assert.Equal(t, "requirements.txt", cfg.Requirements)
	assert.Equal(t, "build", cfg.BuildDir)
	assert.Equal(t, "dist", cfg.DistDir)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel())
}

func TestVenvPath(t *testing.T) {
	cfg := &Config{Package: "revpipyload"}
	assert.Equal(t, "venv", cfg.VenvPath())

	cfg.VenvRoot = "/opt/venvs"
	assert.Equal(t, filepath.Join("/opt/venvs", "revpipyload"), cfg.VenvPath())
}

func TestEntry(t *testing.T) {
	cfg := &Config{Package: "demo"}
	assert.Equal(t, filepath.Join("src", "demo"), cfg.Entry())

	cfg.EntryPoint = "demo.py"
	assert.Equal(t, "demo.py", cfg.Entry())
}

func TestValidate(t *testing.T) {
	cfg := &Config{Package: "demo", BuildDir: "build", DistDir: "dist"}
	cfg.Log.Level = "debug"
	require.NoError(t, cfg.Validate())

	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())

	cfg.Log.Level = "info"
	cfg.Package = ""
	assert.Error(t, cfg.Validate())
}
