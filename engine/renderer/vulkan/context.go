package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/renderer/metadata"
)

type VulkanContext struct {
	// The framebuffer's current width.
	FramebufferWidth uint32
	// The framebuffer's current height.
	FramebufferHeight uint32
	// Current generation of framebuffer size. If it does not match
	// FramebufferSizeLastGeneration, the swapchain should be rebuilt.
	FramebufferSizeGeneration     uint64
	FramebufferSizeLastGeneration uint64

	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	debugMessenger vk.DebugReportCallback

	Device *VulkanDevice

	// Tracker is the process-wide memory budget and, in debug builds, the
	// destroyed-while-in-flight detector. Every buffer/image created through
	// this context registers here.
	Tracker *metadata.ResourceTracker

	Swapchain *VulkanSwapchain
	Frames    *FrameController

	RayTracingEnabled bool
}

func (vc *VulkanContext) FindMemoryIndex(typeFilter, propertyFlags uint32) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(vc.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		// Check each memory type to see if its bit is set to 1.
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (uint32(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	core.LogWarn("Unable to find suitable memory type!")
	return -1
}

// ExecuteOneTimeCommands records commands into a transient command buffer,
// submits it to the graphics queue and blocks on a one-time fence until the
// GPU finishes. Acceleration structure builds and image layout transitions go
// through here.
func (vc *VulkanContext) ExecuteOneTimeCommands(record func(cb *VulkanCommandBuffer) error) error {
	cb, err := AllocateAndBeginSingleUse(vc, vc.Device.GraphicsCommandPool)
	if err != nil {
		return err
	}
	if err := record(cb); err != nil {
		cb.Free(vc, vc.Device.GraphicsCommandPool)
		return err
	}
	return cb.EndSingleUse(vc, vc.Device.GraphicsCommandPool, vc.Device.GraphicsQueue)
}
