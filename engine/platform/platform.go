package platform

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/vergegfx/verge/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// Resize is the windowing collaborator's surface-size change notification.
type Resize struct {
	Width  uint32
	Height uint32
}

type Platform struct {
	Window *glfw.Window

	resizes chan Resize
}

func New() (*Platform, error) {
	return &Platform{
		resizes: make(chan Resize, 8),
	}, nil
}

func (p *Platform) Startup(applicationName string, width uint32, height uint32) error {
	if err := glfw.Init(); err != nil {
		core.LogError("failed to initialize glfw: %s", err)
		return err
	}

	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		core.LogError("failed to create window: %s", err)
		return err
	}
	p.Window = window

	p.Window.SetFramebufferSizeCallback(func(w *glfw.Window, width, height int) {
		select {
		case p.resizes <- Resize{Width: uint32(width), Height: uint32(height)}:
		default:
			// The renderer only cares about the latest size; drop stale ones.
			select {
			case <-p.resizes:
			default:
			}
			p.resizes <- Resize{Width: uint32(width), Height: uint32(height)}
		}
	})

	return nil
}

func (p *Platform) Shutdown() error {
	glfw.Terminate()
	return nil
}

// PumpMessages processes pending window events.
func (p *Platform) PumpMessages() {
	glfw.PollEvents()
}

// PollResize returns the most recent surface-size change, if any arrived
// since the last poll.
func (p *Platform) PollResize() (Resize, bool) {
	var r Resize
	got := false
	for {
		select {
		case r = <-p.resizes:
			got = true
		default:
			return r, got
		}
	}
}

// ShouldClose reports whether the window received a close request.
func (p *Platform) ShouldClose() bool {
	return p.Window.ShouldClose()
}

// GetRequiredExtensionNames returns the instance extensions the windowing
// layer needs for surface creation.
func (p *Platform) GetRequiredExtensionNames() []string {
	return p.Window.GetRequiredInstanceExtensions()
}

// FramebufferSize returns the current drawable size in pixels.
func (p *Platform) FramebufferSize() (uint32, uint32) {
	w, h := p.Window.GetFramebufferSize()
	return uint32(w), uint32(h)
}
