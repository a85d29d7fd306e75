package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/config"
	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/platform"
	"github.com/vergegfx/verge/engine/renderer/metadata"
)

// VulkanRenderer owns the device context and drives the per-frame loop. All
// methods run on the thread that created it.
type VulkanRenderer struct {
	platform *platform.Platform
	context  *VulkanContext
	cfg      *config.Config

	cachedFramebufferWidth  uint32
	cachedFramebufferHeight uint32

	// Scene-facing registry of live bottom-level acceleration structures.
	BlasRegistry *metadata.BlasRegistry

	debug bool
}

func New(p *platform.Platform, cfg *config.Config) *VulkanRenderer {
	return &VulkanRenderer{
		platform: p,
		cfg:      cfg,
		context: &VulkanContext{
			Tracker:           metadata.NewResourceTracker(cfg.Renderer.EnableValidation),
			RayTracingEnabled: cfg.Renderer.EnableRayTracing,
		},
		BlasRegistry: metadata.NewBlasRegistry(),
		debug:        cfg.Renderer.EnableValidation,
	}
}

// Context exposes the device context to collaborators that allocate buffers
// or build acceleration structures.
func (vr *VulkanRenderer) Context() *VulkanContext {
	return vr.context
}

func (vr *VulkanRenderer) Initialize(appName string, appWidth, appHeight uint32) error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)

	if err := vk.Init(); err != nil {
		return errors.Wrap(err, "initializing vulkan")
	}

	vr.context.Allocator = nil
	vr.context.FramebufferWidth = appWidth
	vr.context.FramebufferHeight = appHeight

	apiVersion := uint32(vk.MakeVersion(1, 2, 0))

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         apiVersion,
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   VulkanSafeString(appName),
		PEngineName:        VulkanSafeString("Verge"),
	}

	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	requiredExtensions := []string{"VK_KHR_surface"}
	requiredExtensions = append(requiredExtensions, vr.platform.GetRequiredExtensionNames()...)
	if runtime.GOOS == "darwin" {
		requiredExtensions = append(requiredExtensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
	}
	if vr.debug {
		requiredExtensions = append(requiredExtensions, vk.ExtDebugReportExtensionName)
	}

	createInfo.EnabledExtensionCount = uint32(len(requiredExtensions))
	createInfo.PpEnabledExtensionNames = VulkanSafeStrings(requiredExtensions)

	var validationLayers []string
	if vr.debug {
		validationLayers = []string{"VK_LAYER_KHRONOS_validation"}
		if runtime.GOOS == "darwin" {
			createInfo.Flags |= 1
		}
		if err := verifyValidationLayers(validationLayers); err != nil {
			return err
		}
	}
	createInfo.EnabledLayerCount = uint32(len(validationLayers))
	createInfo.PpEnabledLayerNames = VulkanSafeStrings(validationLayers)

	if res := vk.CreateInstance(&createInfo, vr.context.Allocator, &vr.context.Instance); res != vk.Success {
		return errors.Newf("failed to create instance: %s", VulkanResultString(res))
	}
	if err := vk.InitInstance(vr.context.Instance); err != nil {
		return errors.Wrap(err, "initializing instance")
	}
	core.LogInfo("Vulkan instance created.")

	if vr.debug {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit),
			PfnCallback: dbgCallbackFunc,
		}
		var dbg vk.DebugReportCallback
		if res := vk.CreateDebugReportCallback(vr.context.Instance, &debugCreateInfo, nil, &dbg); res != vk.Success {
			return errors.Newf("failed to create debug callback: %s", VulkanResultString(res))
		}
		vr.context.debugMessenger = dbg
	}

	surface, err := vr.platform.Window.CreateWindowSurface(vr.context.Instance, nil)
	if err != nil {
		return errors.Wrap(err, "creating window surface")
	}
	vr.context.Surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	vr.context.Device = &VulkanDevice{
		GraphicsQueueIndex: -1,
		PresentQueueIndex:  -1,
	}
	if err := DeviceCreate(vr.context, vr.cfg.Renderer.EnableRayTracing); err != nil {
		return err
	}

	sc, err := SwapchainCreate(vr.context, vr.context.FramebufferWidth, vr.context.FramebufferHeight, vr.cfg.Window.VSync)
	if err != nil {
		return err
	}
	vr.context.Swapchain = sc

	fc, err := FrameControllerCreate(vr.context, vr.cfg.Renderer.FramesInFlight)
	if err != nil {
		return err
	}
	vr.context.Frames = fc

	core.LogInfo("Vulkan renderer initialized.")
	return nil
}

// Shutdown drains outstanding GPU work, tears everything down in reverse
// creation order and reports tracked resources that were never destroyed.
func (vr *VulkanRenderer) Shutdown() error {
	if err := vr.context.Frames.Drain(vr.context); err != nil {
		return err
	}
	vk.DeviceWaitIdle(vr.context.Device.LogicalDevice)

	vr.context.Frames.FrameControllerDestroy(vr.context)

	if err := vr.context.Swapchain.SwapchainDestroy(vr.context); err != nil {
		return err
	}

	for _, name := range vr.context.Tracker.Leaked() {
		core.LogWarn("Resource leaked at shutdown: %s", name)
	}

	core.LogDebug("Destroying Vulkan device...")
	DeviceDestroy(vr.context)

	core.LogDebug("Destroying Vulkan surface...")
	if vr.context.Surface != vk.NullSurface {
		vk.DestroySurface(vr.context.Instance, vr.context.Surface, vr.context.Allocator)
		vr.context.Surface = vk.NullSurface
	}

	if vr.debug && vr.context.debugMessenger != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(vr.context.Instance, vr.context.debugMessenger, vr.context.Allocator)
	}

	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(vr.context.Instance, vr.context.Allocator)
	return nil
}

// Resized records the new framebuffer size and flags the swapchain out of
// date. The actual rebuild happens at the next frame boundary.
func (vr *VulkanRenderer) Resized(width, height uint32) {
	vr.cachedFramebufferWidth = width
	vr.cachedFramebufferHeight = height
	vr.context.FramebufferSizeGeneration++
	vr.context.Swapchain.Lifecycle.NotifyResized()
	core.LogDebug("Renderer resized: %dx%d (generation %d).", width, height, vr.context.FramebufferSizeGeneration)
}

// BeginFrame rebuilds the swapchain when it is flagged out of date, then
// claims a frame slot and opens its command buffer. A nil slot with nil error
// means this frame should be skipped (mid-rebuild or minimized window).
func (vr *VulkanRenderer) BeginFrame() (*FrameSlot, uint32, error) {
	if vr.context.Swapchain.Lifecycle.State() == metadata.SWAPCHAIN_STATE_OUT_OF_DATE ||
		vr.context.FramebufferSizeGeneration != vr.context.FramebufferSizeLastGeneration {
		if err := vr.recreateSwapchain(); err != nil {
			return nil, 0, err
		}
		return nil, 0, nil
	}

	slot, imageIndex, err := vr.context.Frames.BeginFrame(vr.context)
	if err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			// Rebuild next frame; the lifecycle already observed the status.
			return nil, 0, nil
		}
		return nil, 0, err
	}
	return slot, imageIndex, nil
}

// EndFrame submits and presents. An out-of-date present is downgraded to a
// skipped-frame signal since the submitted work still completed.
func (vr *VulkanRenderer) EndFrame() error {
	if err := vr.context.Frames.EndFrame(vr.context); err != nil {
		if errors.Is(err, core.ErrSwapchainOutOfDate) {
			return nil
		}
		return err
	}
	return nil
}

func (vr *VulkanRenderer) recreateSwapchain() error {
	width := vr.cachedFramebufferWidth
	height := vr.cachedFramebufferHeight
	if width == 0 {
		width = vr.context.FramebufferWidth
	}
	if height == 0 {
		height = vr.context.FramebufferHeight
	}

	// A minimized window has a zero-area framebuffer; keep the chain flagged
	// and wait for a real size.
	if width == 0 || height == 0 {
		core.LogDebug("Swapchain rebuild deferred: zero-area framebuffer.")
		return nil
	}

	if err := vr.context.Frames.Drain(vr.context); err != nil {
		return err
	}

	if err := vr.context.Swapchain.SwapchainRecreate(vr.context, width, height); err != nil {
		return err
	}

	vr.context.FramebufferWidth = vr.context.Swapchain.Extent.Width
	vr.context.FramebufferHeight = vr.context.Swapchain.Extent.Height
	vr.context.FramebufferSizeLastGeneration = vr.context.FramebufferSizeGeneration
	vr.cachedFramebufferWidth = 0
	vr.cachedFramebufferHeight = 0

	core.LogInfo("Swapchain recreated at %dx%d.", vr.context.FramebufferWidth, vr.context.FramebufferHeight)
	return nil
}

func verifyValidationLayers(required []string) error {
	var availableCount uint32
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, nil); res != vk.Success {
		return errors.Newf("failed to enumerate instance layers: %s", VulkanResultString(res))
	}
	available := make([]vk.LayerProperties, availableCount)
	if res := vk.EnumerateInstanceLayerProperties(&availableCount, available); res != vk.Success {
		return errors.Newf("failed to enumerate instance layers: %s", VulkanResultString(res))
	}
	for _, name := range required {
		found := false
		for i := range available {
			available[i].Deref()
			if name == VulkanTrimString(available[i].LayerName[:]) {
				found = true
				break
			}
		}
		if !found {
			return errors.Newf("required validation layer is missing: %s", name)
		}
	}
	core.LogInfo("All required validation layers are present.")
	return nil
}

func dbgCallbackFunc(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogInfo("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
