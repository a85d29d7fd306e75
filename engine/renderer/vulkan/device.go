package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
)

type VulkanDevice struct {
	PhysicalDevice     vk.PhysicalDevice
	LogicalDevice      vk.Device
	SwapchainSupport   VulkanSwapchainSupportInfo
	GraphicsQueueIndex int32
	PresentQueueIndex  int32

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue

	GraphicsCommandPool vk.CommandPool

	Properties vk.PhysicalDeviceProperties
	Features   vk.PhysicalDeviceFeatures
	Memory     vk.PhysicalDeviceMemoryProperties

	DepthFormat vk.Format

	SupportsRayTracing bool
}

type VulkanPhysicalDeviceRequirements struct {
	Graphics             bool
	Present              bool
	DeviceExtensionNames []string
	DiscreteGPU          bool
	RayTracing           bool
}

type VulkanPhysicalDeviceQueueFamilyInfo struct {
	GraphicsFamilyIndex int32
	PresentFamilyIndex  int32
}

// Device extensions required when hardware ray tracing is requested.
var rayTracingExtensionNames = []string{
	"VK_KHR_acceleration_structure",
	"VK_KHR_ray_tracing_pipeline",
	"VK_KHR_deferred_host_operations",
}

func DeviceCreate(context *VulkanContext, enableRayTracing bool) error {
	requirements := VulkanPhysicalDeviceRequirements{
		Graphics:             true,
		Present:              true,
		DiscreteGPU:          true,
		DeviceExtensionNames: []string{vk.KhrSwapchainExtensionName},
		RayTracing:           enableRayTracing,
	}
	if runtime.GOOS == "darwin" {
		requirements.DiscreteGPU = false
	}
	if enableRayTracing {
		requirements.DeviceExtensionNames = append(requirements.DeviceExtensionNames, rayTracingExtensionNames...)
	}

	if err := selectPhysicalDevice(context, &requirements); err != nil {
		return err
	}

	core.LogInfo("Creating logical device...")

	// NOTE: Do not create additional queues for shared indices.
	presentSharesGraphicsQueue := context.Device.GraphicsQueueIndex == context.Device.PresentQueueIndex

	indices := []uint32{uint32(context.Device.GraphicsQueueIndex)}
	if !presentSharesGraphicsQueue {
		indices = append(indices, uint32(context.Device.PresentQueueIndex))
	}

	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(indices))
	for i := range indices {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: indices[i],
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	deviceFeatures := vk.PhysicalDeviceFeatures{}
	deviceFeatures.SamplerAnisotropy = vk.True

	extensionNames := append([]string{}, requirements.DeviceExtensionNames...)
	if deviceSupportsExtension(context.Device.PhysicalDevice, "VK_KHR_portability_subset") {
		core.LogInfo("Adding required extension 'VK_KHR_portability_subset'.")
		extensionNames = append(extensionNames, "VK_KHR_portability_subset")
	}

	deviceCreateInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{deviceFeatures},
		EnabledExtensionCount:   uint32(len(extensionNames)),
		PpEnabledExtensionNames: VulkanSafeStrings(extensionNames),
	}

	if enableRayTracing {
		// The acceleration structure extension requires these features to be
		// enabled explicitly, chained through PNext.
		rayTracingPipelineFeatures := vk.PhysicalDeviceRayTracingPipelineFeatures{
			SType:              vk.StructureTypePhysicalDeviceRayTracingPipelineFeatures,
			RayTracingPipeline: vk.True,
		}
		accelerationStructureFeatures := vk.PhysicalDeviceAccelerationStructureFeatures{
			SType:                 vk.StructureTypePhysicalDeviceAccelerationStructureFeatures,
			AccelerationStructure: vk.True,
			PNext:                 unsafe.Pointer(&rayTracingPipelineFeatures),
		}
		deviceCreateInfo.PNext = unsafe.Pointer(&vk.PhysicalDeviceVulkan12Features{
			SType:               vk.StructureTypePhysicalDeviceVulkan12Features,
			BufferDeviceAddress: vk.True,
			DescriptorIndexing:  vk.True,
			PNext:               unsafe.Pointer(&accelerationStructureFeatures),
		})
	}

	if res := vk.CreateDevice(
		context.Device.PhysicalDevice,
		&deviceCreateInfo,
		context.Allocator,
		&context.Device.LogicalDevice); res != vk.Success {
		return errors.Newf("failed to create logical device: %s", VulkanResultString(res))
	}

	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(
		context.Device.LogicalDevice,
		uint32(context.Device.GraphicsQueueIndex),
		0,
		&context.Device.GraphicsQueue)

	vk.GetDeviceQueue(
		context.Device.LogicalDevice,
		uint32(context.Device.PresentQueueIndex),
		0,
		&context.Device.PresentQueue)
	core.LogInfo("Queues obtained.")

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: uint32(context.Device.GraphicsQueueIndex),
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vk.CreateCommandPool(
		context.Device.LogicalDevice,
		&poolCreateInfo,
		context.Allocator,
		&context.Device.GraphicsCommandPool); res != vk.Success {
		return errors.Newf("failed to create graphics command pool: %s", VulkanResultString(res))
	}
	core.LogInfo("Graphics command pool created.")

	context.Device.SupportsRayTracing = enableRayTracing

	return nil
}

func DeviceDestroy(context *VulkanContext) {
	context.Device.GraphicsQueue = nil
	context.Device.PresentQueue = nil

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(
		context.Device.LogicalDevice,
		context.Device.GraphicsCommandPool,
		context.Allocator)

	core.LogInfo("Destroying logical device...")
	if context.Device.LogicalDevice != nil {
		vk.DestroyDevice(context.Device.LogicalDevice, context.Allocator)
		context.Device.LogicalDevice = nil
	}

	// Physical devices are not destroyed.
	context.Device.PhysicalDevice = nil
	context.Device.SwapchainSupport = VulkanSwapchainSupportInfo{}
	context.Device.GraphicsQueueIndex = -1
	context.Device.PresentQueueIndex = -1
}

func DeviceQuerySwapchainSupport(physicalDevice vk.PhysicalDevice, surface vk.Surface, supportInfo *VulkanSwapchainSupportInfo) error {
	if res := vk.GetPhysicalDeviceSurfaceCapabilities(physicalDevice, surface, &supportInfo.Capabilities); res != vk.Success {
		return errors.Newf("failed to get surface capabilities: %s", VulkanResultString(res))
	}
	supportInfo.Capabilities.Deref()

	if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, nil); res != vk.Success {
		return errors.Newf("failed to get surface format count: %s", VulkanResultString(res))
	}
	if supportInfo.FormatCount != 0 {
		supportInfo.Formats = make([]vk.SurfaceFormat, supportInfo.FormatCount)
		if res := vk.GetPhysicalDeviceSurfaceFormats(physicalDevice, surface, &supportInfo.FormatCount, supportInfo.Formats); res != vk.Success {
			return errors.Newf("failed to get surface formats: %s", VulkanResultString(res))
		}
		for i := range supportInfo.Formats {
			supportInfo.Formats[i].Deref()
		}
	}

	if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, nil); res != vk.Success {
		return errors.Newf("failed to get present mode count: %s", VulkanResultString(res))
	}
	if supportInfo.PresentModeCount != 0 {
		supportInfo.PresentModes = make([]vk.PresentMode, supportInfo.PresentModeCount)
		if res := vk.GetPhysicalDeviceSurfacePresentModes(physicalDevice, surface, &supportInfo.PresentModeCount, supportInfo.PresentModes); res != vk.Success {
			return errors.Newf("failed to get present modes: %s", VulkanResultString(res))
		}
	}
	return nil
}

func DeviceDetectDepthFormat(device *VulkanDevice) bool {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureDepthStencilAttachmentBit
	for _, candidate := range candidates {
		var properties vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(device.PhysicalDevice, candidate, &properties)
		properties.Deref()
		if (vk.FormatFeatureFlagBits(properties.LinearTilingFeatures)&flags) == flags ||
			(vk.FormatFeatureFlagBits(properties.OptimalTilingFeatures)&flags) == flags {
			device.DepthFormat = candidate
			return true
		}
	}
	return false
}

func selectPhysicalDevice(context *VulkanContext, requirements *VulkanPhysicalDeviceRequirements) error {
	var physicalDeviceCount uint32
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, nil); res != vk.Success {
		return errors.Newf("failed to enumerate physical devices: %s", VulkanResultString(res))
	}
	if physicalDeviceCount == 0 {
		return errors.New("no devices which support Vulkan were found")
	}

	physicalDevices := make([]vk.PhysicalDevice, physicalDeviceCount)
	if res := vk.EnumeratePhysicalDevices(context.Instance, &physicalDeviceCount, physicalDevices); res != vk.Success {
		return errors.Newf("failed to enumerate physical devices: %s", VulkanResultString(res))
	}

	for _, candidate := range physicalDevices {
		properties := vk.PhysicalDeviceProperties{}
		vk.GetPhysicalDeviceProperties(candidate, &properties)
		properties.Deref()

		features := vk.PhysicalDeviceFeatures{}
		vk.GetPhysicalDeviceFeatures(candidate, &features)
		features.Deref()

		memory := vk.PhysicalDeviceMemoryProperties{}
		vk.GetPhysicalDeviceMemoryProperties(candidate, &memory)
		memory.Deref()

		queueInfo := VulkanPhysicalDeviceQueueFamilyInfo{}
		if !physicalDeviceMeetsRequirements(candidate, context.Surface, &properties, requirements, &queueInfo, &context.Device.SwapchainSupport) {
			continue
		}

		core.LogInfo("Selected device: '%s'.", VulkanTrimString(properties.DeviceName[:]))
		core.LogInfo(
			"Vulkan API version: %d.%d.%d",
			vk.Version(properties.ApiVersion).Major(),
			vk.Version(properties.ApiVersion).Minor(),
			vk.Version(properties.ApiVersion).Patch(),
		)

		context.Device.PhysicalDevice = candidate
		context.Device.GraphicsQueueIndex = queueInfo.GraphicsFamilyIndex
		context.Device.PresentQueueIndex = queueInfo.PresentFamilyIndex
		context.Device.Properties = properties
		context.Device.Features = features
		context.Device.Memory = memory
		break
	}

	if context.Device.PhysicalDevice == nil {
		return errors.New("no physical device meets the requirements")
	}

	core.LogInfo("Physical device selected.")
	return nil
}

func physicalDeviceMeetsRequirements(
	device vk.PhysicalDevice,
	surface vk.Surface,
	properties *vk.PhysicalDeviceProperties,
	requirements *VulkanPhysicalDeviceRequirements,
	outQueueInfo *VulkanPhysicalDeviceQueueFamilyInfo,
	outSwapchainSupport *VulkanSwapchainSupportInfo,
) bool {
	outQueueInfo.GraphicsFamilyIndex = -1
	outQueueInfo.PresentFamilyIndex = -1

	if requirements.DiscreteGPU && properties.DeviceType != vk.PhysicalDeviceTypeDiscreteGpu {
		core.LogInfo("Device is not a discrete GPU, and one is required. Skipping.")
		return false
	}

	var queueFamilyCount uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, nil)
	queueFamilies := make([]vk.QueueFamilyProperties, queueFamilyCount)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &queueFamilyCount, queueFamilies)

	for i := uint32(0); i < queueFamilyCount; i++ {
		queueFamilies[i].Deref()

		if outQueueInfo.GraphicsFamilyIndex == -1 &&
			vk.QueueFlagBits(queueFamilies[i].QueueFlags)&vk.QueueGraphicsBit > 0 {
			outQueueInfo.GraphicsFamilyIndex = int32(i)
		}

		var supportsPresent vk.Bool32 = vk.False
		if res := vk.GetPhysicalDeviceSurfaceSupport(device, i, surface, &supportsPresent); res != vk.Success {
			return false
		}
		if outQueueInfo.PresentFamilyIndex == -1 && supportsPresent == vk.True {
			outQueueInfo.PresentFamilyIndex = int32(i)
		}
	}

	if (requirements.Graphics && outQueueInfo.GraphicsFamilyIndex == -1) ||
		(requirements.Present && outQueueInfo.PresentFamilyIndex == -1) {
		return false
	}

	if err := DeviceQuerySwapchainSupport(device, surface, outSwapchainSupport); err != nil {
		return false
	}
	if outSwapchainSupport.FormatCount < 1 || outSwapchainSupport.PresentModeCount < 1 {
		core.LogInfo("Required swapchain support not present, skipping device.")
		return false
	}

	for _, required := range requirements.DeviceExtensionNames {
		if !deviceSupportsExtension(device, required) {
			core.LogInfo("Required extension not found: '%s', skipping device.", required)
			return false
		}
	}

	return true
}

func deviceSupportsExtension(device vk.PhysicalDevice, name string) bool {
	var availableExtensionCount uint32
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, nil); res != vk.Success {
		return false
	}
	if availableExtensionCount == 0 {
		return false
	}
	availableExtensions := make([]vk.ExtensionProperties, availableExtensionCount)
	if res := vk.EnumerateDeviceExtensionProperties(device, "", &availableExtensionCount, availableExtensions); res != vk.Success {
		return false
	}
	for i := range availableExtensions {
		availableExtensions[i].Deref()
		if name == VulkanTrimString(availableExtensions[i].ExtensionName[:]) {
			return true
		}
	}
	return false
}
