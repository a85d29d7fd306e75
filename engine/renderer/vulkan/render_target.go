package vulkan

import (
	vk "github.com/goki/vulkan"
)

// VulkanRenderTarget bundles the main renderpass with one framebuffer per
// swapchain image and follows the swapchain across rebuilds.
type VulkanRenderTarget struct {
	Renderpass   *VulkanRenderpass
	Framebuffers []*VulkanFramebuffer

	swapchainGeneration uint64
}

func RenderTargetCreate(context *VulkanContext, r, g, b, a float32) (*VulkanRenderTarget, error) {
	renderpass, err := RenderpassCreate(context, r, g, b, a, 1.0, 0)
	if err != nil {
		return nil, err
	}
	target := &VulkanRenderTarget{Renderpass: renderpass}
	if err := target.regenerate(context); err != nil {
		target.Destroy(context)
		return nil, err
	}
	return target, nil
}

// EnsureCurrent rebuilds the framebuffers when the swapchain has been
// recreated since the last frame.
func (rt *VulkanRenderTarget) EnsureCurrent(context *VulkanContext) error {
	if rt.swapchainGeneration == context.Swapchain.Generation {
		return nil
	}
	rt.destroyFramebuffers(context)
	return rt.regenerate(context)
}

func (rt *VulkanRenderTarget) regenerate(context *VulkanContext) error {
	sc := context.Swapchain
	rt.Framebuffers = make([]*VulkanFramebuffer, sc.ImageCount)
	for i := 0; i < int(sc.ImageCount); i++ {
		attachments := []vk.ImageView{sc.Views[i], sc.DepthAttachment.View}
		fb, err := FramebufferCreate(context, rt.Renderpass, sc.Extent.Width, sc.Extent.Height, attachments)
		if err != nil {
			return err
		}
		rt.Framebuffers[i] = fb
	}
	rt.swapchainGeneration = sc.Generation
	return nil
}

// Begin opens the renderpass on the framebuffer for the acquired image and
// sets the dynamic viewport and scissor to the full extent.
func (rt *VulkanRenderTarget) Begin(context *VulkanContext, cb *VulkanCommandBuffer, imageIndex uint32) {
	extent := context.Swapchain.Extent

	viewport := vk.Viewport{
		X:        0,
		Y:        float32(extent.Height),
		Width:    float32(extent.Width),
		Height:   -float32(extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: 0, Y: 0},
		Extent: extent,
	}
	vk.CmdSetViewport(cb.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cb.Handle, 0, 1, []vk.Rect2D{scissor})

	rt.Renderpass.RenderpassBegin(cb, rt.Framebuffers[imageIndex].Handle, extent.Width, extent.Height)
}

func (rt *VulkanRenderTarget) End(cb *VulkanCommandBuffer) {
	rt.Renderpass.RenderpassEnd(cb)
}

func (rt *VulkanRenderTarget) destroyFramebuffers(context *VulkanContext) {
	for _, fb := range rt.Framebuffers {
		if fb != nil {
			fb.Destroy(context)
		}
	}
	rt.Framebuffers = nil
}

func (rt *VulkanRenderTarget) Destroy(context *VulkanContext) {
	rt.destroyFramebuffers(context)
	if rt.Renderpass != nil {
		rt.Renderpass.RenderpassDestroy(context)
		rt.Renderpass = nil
	}
}
