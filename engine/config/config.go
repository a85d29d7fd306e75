package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"

	"github.com/vergegfx/verge/engine/core"
)

// Config carries the startup knobs shared by every example: window geometry,
// the frames-in-flight count and the debug/validation toggles. Everything
// else the substrate needs is queried from the device at runtime.
type Config struct {
	AppName string `toml:"app_name"`

	Window struct {
		Width  uint32 `toml:"width"`
		Height uint32 `toml:"height"`
		VSync  bool   `toml:"vsync"`
	} `toml:"window"`

	Renderer struct {
		FramesInFlight   uint8 `toml:"frames_in_flight"`
		EnableValidation bool  `toml:"enable_validation"`
		EnableRayTracing bool  `toml:"enable_ray_tracing"`
	} `toml:"renderer"`

	LogLevel core.LogLevel `toml:"log_level"`
}

// Default returns the uniform policy used when no config file is present.
func Default(appName string) *Config {
	cfg := &Config{
		AppName:  appName,
		LogLevel: core.LogLevelInfo,
	}
	cfg.Window.Width = 1024
	cfg.Window.Height = 576
	cfg.Window.VSync = true
	cfg.Renderer.FramesInFlight = 2
	cfg.Renderer.EnableValidation = false
	return cfg
}

// Load reads a TOML config file, falling back to Default when the file does
// not exist. A present-but-broken file is an error, not a silent default.
func Load(appName, path string) (*Config, error) {
	cfg := Default(appName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, errors.Wrapf(err, "reading config %q", path)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing config %q", path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the fixed-capacity constraints the renderer relies on.
func (c *Config) Validate() error {
	if c.Renderer.FramesInFlight < 2 || c.Renderer.FramesInFlight > 3 {
		return errors.Newf("frames_in_flight must be 2 or 3, got %d", c.Renderer.FramesInFlight)
	}
	if c.Window.Width == 0 || c.Window.Height == 0 {
		return errors.Newf("window dimensions must be non-zero, got %dx%d", c.Window.Width, c.Window.Height)
	}
	return nil
}
