package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileFallsBackToDefault(t *testing.T) {
	cfg, err := Load("demo", filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, "demo", cfg.AppName)
	assert.Equal(t, uint8(2), cfg.Renderer.FramesInFlight)
	assert.True(t, cfg.Window.VSync)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
app_name = "custom"

[window]
width = 1920
height = 1080
vsync = false

[renderer]
frames_in_flight = 3
enable_validation = true
enable_ray_tracing = true
`)
	cfg, err := Load("demo", path)
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.AppName)
	assert.Equal(t, uint32(1920), cfg.Window.Width)
	assert.False(t, cfg.Window.VSync)
	assert.Equal(t, uint8(3), cfg.Renderer.FramesInFlight)
	assert.True(t, cfg.Renderer.EnableValidation)
	assert.True(t, cfg.Renderer.EnableRayTracing)
}

func TestLoadBrokenFileIsAnError(t *testing.T) {
	path := writeConfig(t, "not [valid toml")
	_, err := Load("demo", path)
	assert.Error(t, err)
}

func TestValidateRejectsBadFramesInFlight(t *testing.T) {
	path := writeConfig(t, `
[renderer]
frames_in_flight = 7
`)
	_, err := Load("demo", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frames_in_flight")
}

func TestValidateRejectsZeroWindow(t *testing.T) {
	path := writeConfig(t, `
[window]
width = 0
height = 600
`)
	_, err := Load("demo", path)
	assert.Error(t, err)
}
