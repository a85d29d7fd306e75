package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/renderer/metadata"
)

type VulkanBuffer struct {
	Handle     vk.Buffer
	Memory     vk.DeviceMemory
	TotalSize  uint64
	Usage      vk.BufferUsageFlags
	IsLocked   bool
	ResourceID metadata.ResourceID

	memoryIndex         int32
	memoryPropertyFlags uint32
	hasDeviceAddress    bool
}

// BufferCreate allocates a buffer and binds memory for it. Buffers created
// with a device-address usage bit get the matching allocation flag so their
// address can be fed to acceleration structure builds.
func BufferCreate(context *VulkanContext, name string, size uint64, usage vk.BufferUsageFlags, memoryPropertyFlags uint32, bindOnCreate bool) (*VulkanBuffer, error) {
	buffer := &VulkanBuffer{
		TotalSize:           size,
		Usage:               usage,
		memoryPropertyFlags: memoryPropertyFlags,
		hasDeviceAddress:    usage&vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit) != 0,
	}

	bufferInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}

	var handle vk.Buffer
	if res := vk.CreateBuffer(context.Device.LogicalDevice, &bufferInfo, context.Allocator, &handle); res != vk.Success {
		return nil, errors.Wrapf(core.ErrAllocation, "failed to create buffer: %s", VulkanResultString(res))
	}
	buffer.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(context.Device.LogicalDevice, buffer.Handle, &requirements)
	requirements.Deref()

	buffer.memoryIndex = context.FindMemoryIndex(requirements.MemoryTypeBits, memoryPropertyFlags)
	if buffer.memoryIndex == -1 {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		return nil, errors.Wrap(core.ErrAllocation, "required memory type not found")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(buffer.memoryIndex),
	}
	if buffer.hasDeviceAddress {
		allocateInfo.PNext = unsafe.Pointer(&vk.MemoryAllocateFlagsInfo{
			SType: vk.StructureTypeMemoryAllocateFlagsInfo,
			Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
		})
	}

	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyBuffer(context.Device.LogicalDevice, buffer.Handle, context.Allocator)
		return nil, errors.Wrapf(core.ErrAllocation, "failed to allocate buffer memory: %s", VulkanResultString(res))
	}
	buffer.Memory = memory

	// Registered before the bind so the failure path below releases through
	// the tracker like any other destroy.
	buffer.ResourceID = context.Tracker.Register(metadata.RESOURCE_KIND_BUFFER, name, uint64(requirements.Size))

	if bindOnCreate {
		if err := buffer.Bind(context, 0); err != nil {
			if destroyErr := buffer.BufferDestroy(context); destroyErr != nil {
				core.LogError("Failed to release buffer after bind failure: %s", destroyErr)
			}
			return nil, err
		}
	}

	return buffer, nil
}

func (vb *VulkanBuffer) Bind(context *VulkanContext, offset uint64) error {
	if res := vk.BindBufferMemory(context.Device.LogicalDevice, vb.Handle, vb.Memory, vk.DeviceSize(offset)); res != vk.Success {
		return errors.Wrapf(core.ErrAllocation, "failed to bind buffer memory: %s", VulkanResultString(res))
	}
	return nil
}

func (vb *VulkanBuffer) BufferDestroy(context *VulkanContext) error {
	if err := context.Tracker.Destroy(vb.ResourceID); err != nil {
		return err
	}
	// Handle first, then the memory backing it.
	if vb.Handle != vk.NullBuffer {
		vk.DestroyBuffer(context.Device.LogicalDevice, vb.Handle, context.Allocator)
		vb.Handle = vk.NullBuffer
	}
	if vb.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vb.Memory, context.Allocator)
		vb.Memory = vk.NullDeviceMemory
	}
	vb.TotalSize = 0
	vb.IsLocked = false
	return nil
}

func (vb *VulkanBuffer) LockMemory(context *VulkanContext, offset, size uint64, flags uint32) (unsafe.Pointer, error) {
	var data unsafe.Pointer
	if res := vk.MapMemory(context.Device.LogicalDevice, vb.Memory, vk.DeviceSize(offset), vk.DeviceSize(size), vk.MemoryMapFlags(flags), &data); res != vk.Success {
		return nil, errors.Wrapf(core.ErrAllocation, "failed to map buffer memory: %s", VulkanResultString(res))
	}
	vb.IsLocked = true
	return data, nil
}

func (vb *VulkanBuffer) UnlockMemory(context *VulkanContext) {
	vk.UnmapMemory(context.Device.LogicalDevice, vb.Memory)
	vb.IsLocked = false
}

// LoadData maps the buffer, copies data into it and unmaps. The buffer must
// be host visible.
func (vb *VulkanBuffer) LoadData(context *VulkanContext, offset uint64, flags uint32, data []byte) error {
	ptr, err := vb.LockMemory(context, offset, uint64(len(data)), flags)
	if err != nil {
		return err
	}
	n := vk.Memcopy(ptr, data)
	vb.UnlockMemory(context)
	if n != len(data) {
		return errors.Wrapf(core.ErrAllocation, "short buffer copy: %d of %d bytes", n, len(data))
	}
	return nil
}

// DeviceAddress returns the GPU virtual address of the buffer. The buffer
// must have been created with the shader-device-address usage bit.
func (vb *VulkanBuffer) DeviceAddress(context *VulkanContext) vk.DeviceAddress {
	info := vk.BufferDeviceAddressInfo{
		SType:  vk.StructureTypeBufferDeviceAddressInfo,
		Buffer: vb.Handle,
	}
	return vk.GetBufferDeviceAddress(context.Device.LogicalDevice, &info)
}

// CopyTo records a buffer-to-buffer copy through a one-time command buffer
// and blocks until the transfer completes.
func (vb *VulkanBuffer) CopyTo(context *VulkanContext, srcOffset uint64, dest *VulkanBuffer, destOffset, size uint64) error {
	return context.ExecuteOneTimeCommands(func(cb *VulkanCommandBuffer) error {
		copyRegion := vk.BufferCopy{
			SrcOffset: vk.DeviceSize(srcOffset),
			DstOffset: vk.DeviceSize(destOffset),
			Size:      vk.DeviceSize(size),
		}
		vk.CmdCopyBuffer(cb.Handle, vb.Handle, dest.Handle, 1, []vk.BufferCopy{copyRegion})
		return nil
	})
}
