package engine

import (
	"github.com/vergegfx/verge/engine/config"
	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/platform"
	"github.com/vergegfx/verge/engine/renderer"
)

// Application wires the window, the renderer and the main loop together. The
// examples provide a Setup to build their scene resources and a Frame callback
// to record each frame's commands.
type Application struct {
	Config   *config.Config
	Platform *platform.Platform
	Renderer *renderer.Renderer

	isRunning bool
	// Suspended while the window is minimized; frames are skipped but events
	// keep pumping.
	isSuspended bool
}

func New(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	core.SetLogLevel(cfg.LogLevel)

	p, err := platform.New()
	if err != nil {
		return nil, err
	}

	return &Application{
		Config:   cfg,
		Platform: p,
		Renderer: renderer.New(p, cfg),
	}, nil
}

func (a *Application) Initialize() error {
	if err := a.Platform.Startup(a.Config.AppName, a.Config.Window.Width, a.Config.Window.Height); err != nil {
		return err
	}

	// The drawable size can differ from the requested window size on HiDPI
	// displays; the swapchain is built against the former.
	fbWidth, fbHeight := a.Platform.FramebufferSize()
	if err := a.Renderer.Initialize(a.Config.AppName, fbWidth, fbHeight); err != nil {
		return err
	}

	a.isRunning = true
	return nil
}

// Run drives the loop until the window closes or the frame callback fails.
func (a *Application) Run(frame func(fc *renderer.FrameContext) error) error {
	for a.isRunning && !a.Platform.ShouldClose() {
		a.Platform.PumpMessages()

		if resize, ok := a.Platform.PollResize(); ok {
			if resize.Width == 0 || resize.Height == 0 {
				if !a.isSuspended {
					core.LogInfo("Window minimized, suspending rendering.")
					a.isSuspended = true
				}
			} else {
				if a.isSuspended {
					core.LogInfo("Window restored, resuming rendering.")
					a.isSuspended = false
				}
				a.Renderer.OnResize(resize.Width, resize.Height)
			}
		}

		if a.isSuspended {
			continue
		}

		if err := a.Renderer.DrawFrame(frame); err != nil {
			core.LogError("Frame failed, shutting down: %s", err)
			a.isRunning = false
			return err
		}
	}
	return nil
}

func (a *Application) Quit() {
	a.isRunning = false
}

func (a *Application) Shutdown() error {
	if err := a.Renderer.Shutdown(); err != nil {
		return err
	}
	return a.Platform.Shutdown()
}
