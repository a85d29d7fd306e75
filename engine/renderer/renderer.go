package renderer

import (
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/config"
	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/platform"
	"github.com/vergegfx/verge/engine/renderer/metadata"
	"github.com/vergegfx/verge/engine/renderer/vulkan"
)

// FrameContext is what a frame callback gets to record with: the open command
// buffer for this frame slot and the swapchain image it will land in.
type FrameContext struct {
	CommandBuffer *vulkan.VulkanCommandBuffer
	ImageIndex    uint32
	Slot          *vulkan.FrameSlot
	DeltaTime     float64
}

// Renderer is the front door of the rendering substrate: it owns the Vulkan
// backend and runs the acquire/record/submit/present cycle around a caller
// supplied recording callback.
type Renderer struct {
	backend *vulkan.VulkanRenderer
	clock   *core.Clock

	lastTime float64
}

func New(p *platform.Platform, cfg *config.Config) *Renderer {
	core.MetricsInitialize()
	return &Renderer{
		backend: vulkan.New(p, cfg),
		clock:   core.NewClock(),
	}
}

func (r *Renderer) Initialize(appName string, width, height uint32) error {
	if err := r.backend.Initialize(appName, width, height); err != nil {
		return err
	}
	r.clock.Start()
	r.clock.Update()
	r.lastTime = r.clock.Elapsed()
	return nil
}

func (r *Renderer) Shutdown() error {
	return r.backend.Shutdown()
}

func (r *Renderer) OnResize(width, height uint32) {
	r.backend.Resized(width, height)
}

// Backend exposes the Vulkan layer for collaborators that allocate resources
// or build acceleration structures directly.
func (r *Renderer) Backend() *vulkan.VulkanRenderer {
	return r.backend
}

// Context is a shorthand for the backend's device context.
func (r *Renderer) Context() *vulkan.VulkanContext {
	return r.backend.Context()
}

// BlasRegistry returns the scene's live bottom-level structure registry.
func (r *Renderer) BlasRegistry() *metadata.BlasRegistry {
	return r.backend.BlasRegistry
}

// DrawFrame runs one full frame: claim a slot, let the callback record, then
// submit and present. A frame skipped for a swapchain rebuild returns nil
// without invoking the callback.
func (r *Renderer) DrawFrame(record func(frame *FrameContext) error) error {
	r.clock.Update()
	currentTime := r.clock.Elapsed()
	delta := currentTime - r.lastTime
	r.lastTime = currentTime

	slot, imageIndex, err := r.backend.BeginFrame()
	if err != nil {
		return err
	}
	if slot == nil {
		// Mid-rebuild or minimized; nothing recorded this frame.
		return nil
	}

	frame := &FrameContext{
		CommandBuffer: slot.CommandBuffer,
		ImageIndex:    imageIndex,
		Slot:          slot,
		DeltaTime:     delta,
	}
	if err := record(frame); err != nil {
		return err
	}

	if err := r.backend.EndFrame(); err != nil {
		return err
	}

	core.MetricsUpdate(delta)
	return nil
}

// FPS reports the rolling frames-per-second average.
func (r *Renderer) FPS() float64 {
	return core.MetricsFPS()
}

// FrameNumber reports how many frames have been submitted.
func (r *Renderer) FrameNumber() uint64 {
	return r.Context().Frames.Sequencer.FrameNumber()
}

// Extent is the current swapchain extent.
func (r *Renderer) Extent() (uint32, uint32) {
	sc := r.Context().Swapchain
	return sc.Extent.Width, sc.Extent.Height
}

// SwapchainImage returns the handle of a swapchain image, used by ray-traced
// examples that copy their storage image into it.
func (r *Renderer) SwapchainImage(index uint32) vk.Image {
	return r.Context().Swapchain.Images[index]
}
