package vulkan

import (
	"math"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/renderer/metadata"
)

type VulkanSwapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	Extent      vk.Extent2D
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView

	DepthAttachment *VulkanImage

	// Generation increments on every successful build so dependents
	// (framebuffers, storage images) know to rebuild.
	Generation uint64

	// Lifecycle carries the Valid/OutOfDate/Destroyed state and the
	// rebuild-retry budget. The frame controller consults it; this type only
	// reports device statuses into it.
	Lifecycle *metadata.SwapchainLifecycle

	driver chainDriver
	vsync  bool
}

type VulkanSwapchainSupportInfo struct {
	Capabilities     vk.SurfaceCapabilities
	FormatCount      uint32
	Formats          []vk.SurfaceFormat
	PresentModeCount uint32
	PresentModes     []vk.PresentMode
}

// chainDriver is the loader surface the swapchain manager touches. Tests
// substitute a fake to drive the acquire/rebuild path without a device.
type chainDriver interface {
	querySupport(context *VulkanContext) error
	createChain(context *VulkanContext, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result)
	chainImages(context *VulkanContext, chain vk.Swapchain) ([]vk.Image, vk.Result)
	createView(context *VulkanContext, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result)
	destroyView(context *VulkanContext, view vk.ImageView)
	destroyChain(context *VulkanContext, chain vk.Swapchain)
	createDepthAttachment(context *VulkanContext, width, height uint32) (*VulkanImage, error)
	destroyDepthAttachment(context *VulkanContext, image *VulkanImage) error
	acquire(context *VulkanContext, chain vk.Swapchain, timeoutNS uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result)
	present(context *VulkanContext, queue vk.Queue, info *vk.PresentInfo) vk.Result
	waitIdle(context *VulkanContext)
}

func SwapchainCreate(context *VulkanContext, width, height uint32, vsync bool) (*VulkanSwapchain, error) {
	swapchain := &VulkanSwapchain{
		Lifecycle: metadata.NewSwapchainLifecycle(),
		driver:    vkChainDriver{},
		vsync:     vsync,
	}
	if err := swapchain.build(context, width, height); err != nil {
		return nil, err
	}
	return swapchain, nil
}

// SwapchainRecreate tears down the chain's resources and builds a new chain
// against fresh surface capabilities. The image count and extent math is
// deterministic, so recreating at an unchanged size yields an equivalent
// chain.
func (vs *VulkanSwapchain) SwapchainRecreate(context *VulkanContext, width, height uint32) error {
	if err := vs.Lifecycle.BeginRebuild(); err != nil {
		return err
	}
	if err := vs.teardown(context); err != nil {
		return err
	}
	if err := vs.driver.querySupport(context); err != nil {
		return errors.Wrap(core.ErrSwapchainFatal, err.Error())
	}
	if err := vs.build(context, width, height); err != nil {
		return err
	}
	vs.Lifecycle.CompleteRebuild()
	return nil
}

func (vs *VulkanSwapchain) SwapchainDestroy(context *VulkanContext) error {
	if err := vs.teardown(context); err != nil {
		return err
	}
	vs.Lifecycle.Destroy()
	return nil
}

// SwapchainAcquireNextImageIndex asks the driver for the next presentable
// image. OutOfDate is reported as a status for the frame controller to act
// on; this method never recreates the chain itself.
func (vs *VulkanSwapchain) SwapchainAcquireNextImageIndex(context *VulkanContext, timeoutNS uint64, imageAvailableSemaphore vk.Semaphore, fence vk.Fence) (uint32, metadata.AcquireStatus) {
	imageIndex, result := vs.driver.acquire(context, vs.Handle, timeoutNS, imageAvailableSemaphore, fence)

	switch result {
	case vk.Success, vk.Suboptimal:
		return imageIndex, metadata.ACQUIRE_STATUS_SUCCESS
	case vk.ErrorOutOfDate:
		vs.Lifecycle.ObserveStatus(metadata.ACQUIRE_STATUS_OUT_OF_DATE)
		return 0, metadata.ACQUIRE_STATUS_OUT_OF_DATE
	default:
		core.LogError("Failed to acquire swapchain image: %s", VulkanResultString(result))
		return 0, metadata.ACQUIRE_STATUS_FATAL
	}
}

// SwapchainPresent returns the image to the driver for presentation and
// reports the resulting status.
func (vs *VulkanSwapchain) SwapchainPresent(context *VulkanContext, presentQueue vk.Queue, renderCompleteSemaphore vk.Semaphore, presentImageIndex uint32) metadata.AcquireStatus {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderCompleteSemaphore},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{vs.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}

	result := vs.driver.present(context, presentQueue, &presentInfo)
	switch result {
	case vk.Success:
		vs.Lifecycle.ObservePresented()
		return metadata.ACQUIRE_STATUS_SUCCESS
	case vk.ErrorOutOfDate, vk.Suboptimal:
		vs.Lifecycle.ObserveStatus(metadata.ACQUIRE_STATUS_OUT_OF_DATE)
		return metadata.ACQUIRE_STATUS_OUT_OF_DATE
	default:
		core.LogError("Failed to present swapchain image: %s", VulkanResultString(result))
		return metadata.ACQUIRE_STATUS_FATAL
	}
}

func (vs *VulkanSwapchain) build(context *VulkanContext, width, height uint32) error {
	support := &context.Device.SwapchainSupport
	support.Capabilities.Deref()
	support.Capabilities.CurrentExtent.Deref()
	support.Capabilities.MinImageExtent.Deref()
	support.Capabilities.MaxImageExtent.Deref()

	// Preferred format, falling back to whatever the surface offers first.
	found := false
	for i := 0; i < int(support.FormatCount); i++ {
		format := support.Formats[i]
		if format.Format == vk.FormatB8g8r8a8Unorm && format.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			vs.ImageFormat = format
			found = true
			break
		}
	}
	if !found {
		vs.ImageFormat = support.Formats[0]
	}

	// FIFO is always available and is the vsync mode. Mailbox when tearing
	// avoidance without throttling is wanted.
	presentMode := vk.PresentModeFifo
	if !vs.vsync {
		for i := 0; i < int(support.PresentModeCount); i++ {
			if support.PresentModes[i] == vk.PresentModeMailbox {
				presentMode = vk.PresentModeMailbox
				break
			}
		}
	}

	caps := metadata.SurfaceCaps{
		MinImageCount: support.Capabilities.MinImageCount,
		MaxImageCount: support.Capabilities.MaxImageCount,
		CurrentWidth:  support.Capabilities.CurrentExtent.Width,
		CurrentHeight: support.Capabilities.CurrentExtent.Height,
		MinWidth:      support.Capabilities.MinImageExtent.Width,
		MinHeight:     support.Capabilities.MinImageExtent.Height,
		MaxWidth:      support.Capabilities.MaxImageExtent.Width,
		MaxHeight:     support.Capabilities.MaxImageExtent.Height,
	}
	extentWidth, extentHeight := metadata.ClampExtent(caps, width, height)
	vs.Extent = vk.Extent2D{Width: extentWidth, Height: extentHeight}
	imageCount := metadata.SelectImageCount(caps)

	imageUsage := vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)
	if context.RayTracingEnabled {
		// Ray-traced output lands in a storage image and is copied into the
		// swapchain image each frame.
		imageUsage |= vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)
	}

	swapchainCreateInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          context.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      vs.ImageFormat.Format,
		ImageColorSpace:  vs.ImageFormat.ColorSpace,
		ImageExtent:      vs.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       imageUsage,
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      presentMode,
		Clipped:          vk.True,
		OldSwapchain:     nil,
	}

	if context.Device.GraphicsQueueIndex != context.Device.PresentQueueIndex {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeConcurrent
		swapchainCreateInfo.QueueFamilyIndexCount = 2
		swapchainCreateInfo.PQueueFamilyIndices = []uint32{
			uint32(context.Device.GraphicsQueueIndex),
			uint32(context.Device.PresentQueueIndex),
		}
	} else {
		swapchainCreateInfo.ImageSharingMode = vk.SharingModeExclusive
	}

	handle, res := vs.driver.createChain(context, &swapchainCreateInfo)
	if res != vk.Success {
		return errors.Wrapf(core.ErrSwapchainFatal, "failed to create swapchain: %s", VulkanResultString(res))
	}
	vs.Handle = handle

	images, res := vs.driver.chainImages(context, vs.Handle)
	if res != vk.Success {
		return errors.Wrapf(core.ErrSwapchainFatal, "failed to get swapchain images: %s", VulkanResultString(res))
	}
	vs.Images = images
	vs.ImageCount = uint32(len(images))
	vs.Views = make([]vk.ImageView, vs.ImageCount)

	for i := 0; i < int(vs.ImageCount); i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    vs.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   vs.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		view, res := vs.driver.createView(context, &viewInfo)
		if res != vk.Success {
			return errors.Wrapf(core.ErrSwapchainFatal, "failed to create swapchain image view: %s", VulkanResultString(res))
		}
		vs.Views[i] = view
	}

	depthAttachment, err := vs.driver.createDepthAttachment(context, vs.Extent.Width, vs.Extent.Height)
	if err != nil {
		return err
	}
	vs.DepthAttachment = depthAttachment

	vs.Generation++

	core.LogInfo("Swapchain created: %dx%d, %d images.", vs.Extent.Width, vs.Extent.Height, vs.ImageCount)
	return nil
}

func (vs *VulkanSwapchain) teardown(context *VulkanContext) error {
	vs.driver.waitIdle(context)

	if vs.DepthAttachment != nil {
		if err := vs.driver.destroyDepthAttachment(context, vs.DepthAttachment); err != nil {
			return err
		}
		vs.DepthAttachment = nil
	}

	// Only the views are destroyed. The images belong to the swapchain and go
	// with it.
	for i := 0; i < int(vs.ImageCount); i++ {
		vs.driver.destroyView(context, vs.Views[i])
	}
	vs.Views = nil
	vs.Images = nil
	vs.ImageCount = 0

	vs.driver.destroyChain(context, vs.Handle)
	vs.Handle = nil
	return nil
}

// vkChainDriver forwards to the Vulkan loader.
type vkChainDriver struct{}

func (vkChainDriver) querySupport(context *VulkanContext) error {
	return DeviceQuerySwapchainSupport(context.Device.PhysicalDevice, context.Surface, &context.Device.SwapchainSupport)
}

func (vkChainDriver) createChain(context *VulkanContext, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	var handle vk.Swapchain
	res := vk.CreateSwapchain(context.Device.LogicalDevice, info, context.Allocator, &handle)
	return handle, res
}

func (vkChainDriver) chainImages(context *VulkanContext, chain vk.Swapchain) ([]vk.Image, vk.Result) {
	var count uint32
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, chain, &count, nil); res != vk.Success {
		return nil, res
	}
	images := make([]vk.Image, count)
	if res := vk.GetSwapchainImages(context.Device.LogicalDevice, chain, &count, images); res != vk.Success {
		return nil, res
	}
	return images, vk.Success
}

func (vkChainDriver) createView(context *VulkanContext, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	var view vk.ImageView
	res := vk.CreateImageView(context.Device.LogicalDevice, info, context.Allocator, &view)
	return view, res
}

func (vkChainDriver) destroyView(context *VulkanContext, view vk.ImageView) {
	vk.DestroyImageView(context.Device.LogicalDevice, view, context.Allocator)
}

func (vkChainDriver) destroyChain(context *VulkanContext, chain vk.Swapchain) {
	vk.DestroySwapchain(context.Device.LogicalDevice, chain, context.Allocator)
}

func (vkChainDriver) createDepthAttachment(context *VulkanContext, width, height uint32) (*VulkanImage, error) {
	if !DeviceDetectDepthFormat(context.Device) {
		context.Device.DepthFormat = vk.FormatUndefined
		return nil, errors.Wrap(core.ErrSwapchainFatal, "no supported depth format found")
	}
	return ImageCreate(
		context,
		"swapchain depth attachment",
		vk.ImageType2d,
		width,
		height,
		context.Device.DepthFormat,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit))
}

func (vkChainDriver) destroyDepthAttachment(context *VulkanContext, image *VulkanImage) error {
	return image.ImageDestroy(context)
}

func (vkChainDriver) acquire(context *VulkanContext, chain vk.Swapchain, timeoutNS uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(context.Device.LogicalDevice, chain, timeoutNS, semaphore, fence, &imageIndex)
	return imageIndex, res
}

func (vkChainDriver) present(context *VulkanContext, queue vk.Queue, info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(queue, info)
}

func (vkChainDriver) waitIdle(context *VulkanContext) {
	vk.DeviceWaitIdle(context.Device.LogicalDevice)
}

// MaxAcquireTimeout blocks acquire indefinitely. Used by the frame controller,
// which already bounds latency through the fence wait.
const MaxAcquireTimeout uint64 = math.MaxUint64
