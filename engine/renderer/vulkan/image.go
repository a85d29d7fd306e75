package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/renderer/metadata"
)

type VulkanImage struct {
	Handle     vk.Image
	Memory     vk.DeviceMemory
	View       vk.ImageView
	Width      uint32
	Height     uint32
	Format     vk.Format
	ResourceID metadata.ResourceID
}

func ImageCreate(
	context *VulkanContext,
	name string,
	imageType vk.ImageType,
	width uint32,
	height uint32,
	format vk.Format,
	tiling vk.ImageTiling,
	usage vk.ImageUsageFlags,
	memoryFlags vk.MemoryPropertyFlags,
	createView bool,
	viewAspectFlags vk.ImageAspectFlags,
) (*VulkanImage, error) {
	image := &VulkanImage{
		Width:  width,
		Height: height,
		Format: format,
	}

	imageCreateInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imageType,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}

	var handle vk.Image
	if res := vk.CreateImage(context.Device.LogicalDevice, &imageCreateInfo, context.Allocator, &handle); res != vk.Success {
		return nil, errors.Wrapf(core.ErrAllocation, "failed to create image: %s", VulkanResultString(res))
	}
	image.Handle = handle

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(context.Device.LogicalDevice, image.Handle, &requirements)
	requirements.Deref()

	memoryIndex := context.FindMemoryIndex(requirements.MemoryTypeBits, uint32(memoryFlags))
	if memoryIndex == -1 {
		vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
		return nil, errors.Wrap(core.ErrAllocation, "required memory type not found for image")
	}

	allocateInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryIndex),
	}
	var memory vk.DeviceMemory
	if res := vk.AllocateMemory(context.Device.LogicalDevice, &allocateInfo, context.Allocator, &memory); res != vk.Success {
		vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
		return nil, errors.Wrapf(core.ErrAllocation, "failed to allocate image memory: %s", VulkanResultString(res))
	}
	image.Memory = memory

	if res := vk.BindImageMemory(context.Device.LogicalDevice, image.Handle, image.Memory, 0); res != vk.Success {
		vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
		vk.FreeMemory(context.Device.LogicalDevice, image.Memory, context.Allocator)
		return nil, errors.Wrapf(core.ErrAllocation, "failed to bind image memory: %s", VulkanResultString(res))
	}

	if createView {
		if err := image.ImageViewCreate(context, format, viewAspectFlags); err != nil {
			vk.DestroyImage(context.Device.LogicalDevice, image.Handle, context.Allocator)
			vk.FreeMemory(context.Device.LogicalDevice, image.Memory, context.Allocator)
			return nil, err
		}
	}

	image.ResourceID = context.Tracker.Register(metadata.RESOURCE_KIND_IMAGE, name, uint64(requirements.Size))

	return image, nil
}

func (vi *VulkanImage) ImageViewCreate(context *VulkanContext, format vk.Format, aspectFlags vk.ImageAspectFlags) error {
	viewCreateInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    vi.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspectFlags,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if res := vk.CreateImageView(context.Device.LogicalDevice, &viewCreateInfo, context.Allocator, &view); res != vk.Success {
		return errors.Newf("failed to create image view: %s", VulkanResultString(res))
	}
	vi.View = view
	return nil
}

func (vi *VulkanImage) ImageDestroy(context *VulkanContext) error {
	if err := context.Tracker.Destroy(vi.ResourceID); err != nil {
		return err
	}
	if vi.View != vk.NullImageView {
		vk.DestroyImageView(context.Device.LogicalDevice, vi.View, context.Allocator)
		vi.View = vk.NullImageView
	}
	// Handle first, then the memory backing it.
	if vi.Handle != vk.NullImage {
		vk.DestroyImage(context.Device.LogicalDevice, vi.Handle, context.Allocator)
		vi.Handle = vk.NullImage
	}
	if vi.Memory != vk.NullDeviceMemory {
		vk.FreeMemory(context.Device.LogicalDevice, vi.Memory, context.Allocator)
		vi.Memory = vk.NullDeviceMemory
	}
	return nil
}

// ImageTransitionLayout records a pipeline barrier moving the image between
// layouts. Only the transitions this renderer performs are handled.
func ImageTransitionLayout(cb *VulkanCommandBuffer, image vk.Image, aspect vk.ImageAspectFlags, oldLayout, newLayout vk.ImageLayout) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags

	switch {
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutGeneral:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	case oldLayout == vk.ImageLayoutUndefined && newLayout == vk.ImageLayoutPresentSrc:
		barrier.SrcAccessMask = 0
		barrier.DstAccessMask = 0
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	case oldLayout == vk.ImageLayoutGeneral && newLayout == vk.ImageLayoutTransferSrcOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessShaderWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	case oldLayout == vk.ImageLayoutTransferSrcOptimal && newLayout == vk.ImageLayoutGeneral:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderWriteBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageAllCommandsBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutPresentSrc:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = 0
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit)
	case oldLayout == vk.ImageLayoutTransferDstOptimal && newLayout == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		srcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	default:
		return errors.Newf("unsupported layout transition %d -> %d", oldLayout, newLayout)
	}

	vk.CmdPipelineBarrier(cb.Handle, srcStage, dstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
	return nil
}

// ImageCopyFromBuffer records a full-image copy from a staging buffer.
func ImageCopyFromBuffer(cb *VulkanCommandBuffer, image *VulkanImage, buffer vk.Buffer) {
	region := vk.BufferImageCopy{
		BufferOffset:      0,
		BufferRowLength:   0,
		BufferImageHeight: 0,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{
			Width:  image.Width,
			Height: image.Height,
			Depth:  1,
		},
	}
	vk.CmdCopyBufferToImage(cb.Handle, buffer, image.Handle,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// ImageCopyToImage records a same-size color copy between two images. Used to
// blit the ray-tracing storage image into the acquired swapchain image.
func ImageCopyToImage(cb *VulkanCommandBuffer, src, dst vk.Image, width, height uint32) {
	layers := vk.ImageSubresourceLayers{
		AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		MipLevel:       0,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
	region := vk.ImageCopy{
		SrcSubresource: layers,
		DstSubresource: layers,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
	}
	vk.CmdCopyImage(cb.Handle,
		src, vk.ImageLayoutTransferSrcOptimal,
		dst, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageCopy{region})
}
