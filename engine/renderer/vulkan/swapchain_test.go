package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergegfx/verge/engine/renderer/metadata"
)

// fakeChainDriver stands in for the loader so the acquire/rebuild path runs
// without a device. The surface size it reports is mutable, mimicking a
// window resize between support queries.
type fakeChainDriver struct {
	surfaceWidth  uint32
	surfaceHeight uint32

	// Results popped by successive acquire/present calls. Empty means Success.
	acquireResults []vk.Result
	presentResults []vk.Result

	requestedImages uint32
	chainsCreated   int
	chainsDestroyed int
	viewsAlive      int
}

func (d *fakeChainDriver) querySupport(context *VulkanContext) error {
	context.Device.SwapchainSupport = VulkanSwapchainSupportInfo{
		Capabilities: vk.SurfaceCapabilities{
			MinImageCount:  2,
			MaxImageCount:  8,
			CurrentExtent:  vk.Extent2D{Width: d.surfaceWidth, Height: d.surfaceHeight},
			MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
			MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
		},
		FormatCount: 1,
		Formats: []vk.SurfaceFormat{
			{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
		},
		PresentModeCount: 1,
		PresentModes:     []vk.PresentMode{vk.PresentModeFifo},
	}
	return nil
}

func (d *fakeChainDriver) createChain(context *VulkanContext, info *vk.SwapchainCreateInfo) (vk.Swapchain, vk.Result) {
	d.chainsCreated++
	d.requestedImages = info.MinImageCount
	return nil, vk.Success
}

func (d *fakeChainDriver) chainImages(context *VulkanContext, chain vk.Swapchain) ([]vk.Image, vk.Result) {
	return make([]vk.Image, d.requestedImages), vk.Success
}

func (d *fakeChainDriver) createView(context *VulkanContext, info *vk.ImageViewCreateInfo) (vk.ImageView, vk.Result) {
	d.viewsAlive++
	return vk.NullImageView, vk.Success
}

func (d *fakeChainDriver) destroyView(context *VulkanContext, view vk.ImageView) {
	d.viewsAlive--
}

func (d *fakeChainDriver) destroyChain(context *VulkanContext, chain vk.Swapchain) {
	d.chainsDestroyed++
}

func (d *fakeChainDriver) createDepthAttachment(context *VulkanContext, width, height uint32) (*VulkanImage, error) {
	return nil, nil
}

func (d *fakeChainDriver) destroyDepthAttachment(context *VulkanContext, image *VulkanImage) error {
	return nil
}

func (d *fakeChainDriver) acquire(context *VulkanContext, chain vk.Swapchain, timeoutNS uint64, semaphore vk.Semaphore, fence vk.Fence) (uint32, vk.Result) {
	if len(d.acquireResults) > 0 {
		res := d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
		if res != vk.Success {
			return 0, res
		}
	}
	return d.requestedImages - 1, vk.Success
}

func (d *fakeChainDriver) present(context *VulkanContext, queue vk.Queue, info *vk.PresentInfo) vk.Result {
	if len(d.presentResults) > 0 {
		res := d.presentResults[0]
		d.presentResults = d.presentResults[1:]
		return res
	}
	return vk.Success
}

func (d *fakeChainDriver) waitIdle(context *VulkanContext) {}

func fakeSwapchain(t *testing.T, driver *fakeChainDriver, width, height uint32) (*VulkanContext, *VulkanSwapchain) {
	t.Helper()
	ctx := &VulkanContext{Device: &VulkanDevice{}}
	require.NoError(t, driver.querySupport(ctx))

	sc := &VulkanSwapchain{
		Lifecycle: metadata.NewSwapchainLifecycle(),
		driver:    driver,
		vsync:     true,
	}
	require.NoError(t, sc.build(ctx, width, height))
	return ctx, sc
}

func TestSwapchainResizeOutOfDateThenRebuild(t *testing.T) {
	driver := &fakeChainDriver{surfaceWidth: 800, surfaceHeight: 600}
	ctx, sc := fakeSwapchain(t, driver, 800, 600)

	assert.EqualValues(t, 3, sc.ImageCount)
	assert.EqualValues(t, 1, sc.Generation)
	assert.EqualValues(t, 800, sc.Extent.Width)
	assert.EqualValues(t, 600, sc.Extent.Height)

	// The window grows; the next acquire comes back out of date.
	driver.surfaceWidth, driver.surfaceHeight = 1280, 720
	sc.Lifecycle.NotifyResized()
	driver.acquireResults = []vk.Result{vk.ErrorOutOfDate}

	_, status := sc.SwapchainAcquireNextImageIndex(ctx, MaxAcquireTimeout, vk.NullSemaphore, vk.NullFence)
	require.Equal(t, metadata.ACQUIRE_STATUS_OUT_OF_DATE, status)
	require.Equal(t, metadata.SWAPCHAIN_STATE_OUT_OF_DATE, sc.Lifecycle.State())

	require.NoError(t, sc.SwapchainRecreate(ctx, 1280, 720))
	assert.Equal(t, metadata.SWAPCHAIN_STATE_VALID, sc.Lifecycle.State())
	assert.EqualValues(t, 2, sc.Generation)
	assert.EqualValues(t, 1280, sc.Extent.Width)
	assert.EqualValues(t, 720, sc.Extent.Height)

	idx, status := sc.SwapchainAcquireNextImageIndex(ctx, MaxAcquireTimeout, vk.NullSemaphore, vk.NullFence)
	require.Equal(t, metadata.ACQUIRE_STATUS_SUCCESS, status)
	assert.Less(t, idx, sc.ImageCount)
}

func TestSwapchainRecreateSameSizeIsEquivalent(t *testing.T) {
	driver := &fakeChainDriver{surfaceWidth: 800, surfaceHeight: 600}
	ctx, sc := fakeSwapchain(t, driver, 800, 600)

	firstCount := sc.ImageCount
	firstFormat := sc.ImageFormat.Format
	firstExtent := sc.Extent

	require.NoError(t, sc.SwapchainRecreate(ctx, 800, 600))
	require.NoError(t, sc.SwapchainRecreate(ctx, 800, 600))

	assert.Equal(t, firstCount, sc.ImageCount)
	assert.Equal(t, firstFormat, sc.ImageFormat.Format)
	assert.Equal(t, firstExtent, sc.Extent)
	assert.EqualValues(t, 3, sc.Generation)
}

func TestSwapchainPresentOutOfDateFoldsIntoLifecycle(t *testing.T) {
	driver := &fakeChainDriver{surfaceWidth: 800, surfaceHeight: 600}
	ctx, sc := fakeSwapchain(t, driver, 800, 600)

	driver.presentResults = []vk.Result{vk.ErrorOutOfDate}
	status := sc.SwapchainPresent(ctx, nil, vk.NullSemaphore, 0)
	assert.Equal(t, metadata.ACQUIRE_STATUS_OUT_OF_DATE, status)
	assert.Equal(t, metadata.SWAPCHAIN_STATE_OUT_OF_DATE, sc.Lifecycle.State())

	require.NoError(t, sc.SwapchainRecreate(ctx, 800, 600))
	status = sc.SwapchainPresent(ctx, nil, vk.NullSemaphore, 0)
	assert.Equal(t, metadata.ACQUIRE_STATUS_SUCCESS, status)
}

func TestSwapchainTeardownReleasesEverything(t *testing.T) {
	driver := &fakeChainDriver{surfaceWidth: 800, surfaceHeight: 600}
	ctx, sc := fakeSwapchain(t, driver, 800, 600)

	require.NoError(t, sc.SwapchainRecreate(ctx, 800, 600))
	require.NoError(t, sc.SwapchainDestroy(ctx))

	assert.Equal(t, driver.chainsCreated, driver.chainsDestroyed)
	assert.Zero(t, driver.viewsAlive)
	assert.Equal(t, metadata.SWAPCHAIN_STATE_DESTROYED, sc.Lifecycle.State())
}
