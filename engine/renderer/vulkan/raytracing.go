package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/math"
)

// RayTracingShaders are the three stages the pipeline is built from, in SPIR-V.
type RayTracingShaders struct {
	Raygen     *VulkanShaderStage
	Miss       *VulkanShaderStage
	ClosestHit *VulkanShaderStage
}

// VulkanRayTracingPipeline is a ray tracing pipeline plus its shader binding
// table: one raygen, one miss and one triangles hit group.
type VulkanRayTracingPipeline struct {
	Handle         vk.Pipeline
	PipelineLayout vk.PipelineLayout

	SBTBuffer    *VulkanBuffer
	RaygenRegion vk.StridedDeviceAddressRegion
	MissRegion   vk.StridedDeviceAddressRegion
	HitRegion    vk.StridedDeviceAddressRegion
}

const rayTracingShaderGroupCount = 3

func NewRayTracingPipeline(context *VulkanContext, shaders RayTracingShaders, setLayouts []vk.DescriptorSetLayout) (*VulkanRayTracingPipeline, error) {
	pipeline := &VulkanRayTracingPipeline{}

	layoutCreateInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(context.Device.LogicalDevice, &layoutCreateInfo, context.Allocator, &layout); res != vk.Success {
		return nil, errors.Newf("failed to create ray tracing pipeline layout: %s", VulkanResultString(res))
	}
	pipeline.PipelineLayout = layout

	stages := []vk.PipelineShaderStageCreateInfo{
		stageWithFlag(shaders.Raygen, vk.ShaderStageRaygenBit),
		stageWithFlag(shaders.Miss, vk.ShaderStageMissBit),
		stageWithFlag(shaders.ClosestHit, vk.ShaderStageClosestHitBit),
	}

	groups := []vk.RayTracingShaderGroupCreateInfo{
		{
			SType:              vk.StructureTypeRayTracingShaderGroupCreateInfo,
			Type:               vk.RayTracingShaderGroupTypeGeneral,
			GeneralShader:      0,
			ClosestHitShader:   vk.ShaderUnused,
			AnyHitShader:       vk.ShaderUnused,
			IntersectionShader: vk.ShaderUnused,
		},
		{
			SType:              vk.StructureTypeRayTracingShaderGroupCreateInfo,
			Type:               vk.RayTracingShaderGroupTypeGeneral,
			GeneralShader:      1,
			ClosestHitShader:   vk.ShaderUnused,
			AnyHitShader:       vk.ShaderUnused,
			IntersectionShader: vk.ShaderUnused,
		},
		{
			SType:              vk.StructureTypeRayTracingShaderGroupCreateInfo,
			Type:               vk.RayTracingShaderGroupTypeTrianglesHitGroup,
			GeneralShader:      vk.ShaderUnused,
			ClosestHitShader:   2,
			AnyHitShader:       vk.ShaderUnused,
			IntersectionShader: vk.ShaderUnused,
		},
	}

	createInfo := vk.RayTracingPipelineCreateInfo{
		SType:                        vk.StructureTypeRayTracingPipelineCreateInfo,
		StageCount:                   uint32(len(stages)),
		PStages:                      stages,
		GroupCount:                   uint32(len(groups)),
		PGroups:                      groups,
		MaxPipelineRayRecursionDepth: 1,
		Layout:                       pipeline.PipelineLayout,
	}

	handles := make([]vk.Pipeline, 1)
	if res := vk.CreateRayTracingPipelines(
		context.Device.LogicalDevice,
		vk.NullDeferredOperation,
		vk.NullPipelineCache,
		1,
		[]vk.RayTracingPipelineCreateInfo{createInfo},
		context.Allocator,
		handles); res != vk.Success {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, pipeline.PipelineLayout, context.Allocator)
		return nil, errors.Newf("failed to create ray tracing pipeline: %s", VulkanResultString(res))
	}
	pipeline.Handle = handles[0]

	if err := pipeline.buildShaderBindingTable(context); err != nil {
		pipeline.Destroy(context)
		return nil, err
	}

	core.LogDebug("Ray tracing pipeline created.")
	return pipeline, nil
}

func stageWithFlag(stage *VulkanShaderStage, flag vk.ShaderStageFlagBits) vk.PipelineShaderStageCreateInfo {
	info := stage.ShaderStageCreateInfo
	info.Stage = flag
	return info
}

// buildShaderBindingTable queries the group handles and lays them out at the
// device's required alignments: one aligned region per group kind.
func (p *VulkanRayTracingPipeline) buildShaderBindingTable(context *VulkanContext) error {
	props := rayTracingProperties(context)

	handleSize := uint64(props.ShaderGroupHandleSize)
	handleAligned := math.AlignUp(handleSize, uint64(props.ShaderGroupHandleAlignment))
	baseAligned := math.AlignUp(handleAligned, uint64(props.ShaderGroupBaseAlignment))

	handles := make([]byte, handleSize*rayTracingShaderGroupCount)
	if res := vk.GetRayTracingShaderGroupHandles(
		context.Device.LogicalDevice,
		p.Handle,
		0,
		rayTracingShaderGroupCount,
		uint(len(handles)),
		unsafe.Pointer(&handles[0])); res != vk.Success {
		return errors.Newf("failed to get shader group handles: %s", VulkanResultString(res))
	}

	// Each group gets its own base-aligned region holding a single record.
	tableSize := baseAligned * rayTracingShaderGroupCount
	table := make([]byte, tableSize)
	for i := 0; i < rayTracingShaderGroupCount; i++ {
		copy(table[uint64(i)*baseAligned:], handles[uint64(i)*handleSize:uint64(i+1)*handleSize])
	}

	sbt, err := BufferCreate(
		context,
		"shader binding table",
		tableSize,
		vk.BufferUsageFlags(vk.BufferUsageShaderBindingTableBit|vk.BufferUsageShaderDeviceAddressBit),
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		true,
	)
	if err != nil {
		return err
	}
	if err := sbt.LoadData(context, 0, 0, table); err != nil {
		sbt.BufferDestroy(context)
		return err
	}
	p.SBTBuffer = sbt

	base := sbt.DeviceAddress(context)
	p.RaygenRegion = vk.StridedDeviceAddressRegion{
		DeviceAddress: base,
		Stride:        vk.DeviceSize(baseAligned),
		Size:          vk.DeviceSize(baseAligned),
	}
	p.MissRegion = vk.StridedDeviceAddressRegion{
		DeviceAddress: base + vk.DeviceAddress(baseAligned),
		Stride:        vk.DeviceSize(handleAligned),
		Size:          vk.DeviceSize(baseAligned),
	}
	p.HitRegion = vk.StridedDeviceAddressRegion{
		DeviceAddress: base + vk.DeviceAddress(2*baseAligned),
		Stride:        vk.DeviceSize(handleAligned),
		Size:          vk.DeviceSize(baseAligned),
	}
	return nil
}

func rayTracingProperties(context *VulkanContext) vk.PhysicalDeviceRayTracingPipelineProperties {
	rtProps := vk.PhysicalDeviceRayTracingPipelineProperties{
		SType: vk.StructureTypePhysicalDeviceRayTracingPipelineProperties,
	}
	props2 := vk.PhysicalDeviceProperties2{
		SType: vk.StructureTypePhysicalDeviceProperties2,
		PNext: unsafe.Pointer(&rtProps),
	}
	vk.GetPhysicalDeviceProperties2(context.Device.PhysicalDevice, &props2)
	rtProps.Deref()
	return rtProps
}

// TraceRays binds the pipeline and dispatches one ray per pixel.
func (p *VulkanRayTracingPipeline) TraceRays(cb *VulkanCommandBuffer, set vk.DescriptorSet, width, height uint32) {
	vk.CmdBindPipeline(cb.Handle, vk.PipelineBindPointRayTracing, p.Handle)
	vk.CmdBindDescriptorSets(cb.Handle, vk.PipelineBindPointRayTracing, p.PipelineLayout,
		0, 1, []vk.DescriptorSet{set}, 0, nil)

	callableRegion := vk.StridedDeviceAddressRegion{}
	vk.CmdTraceRays(cb.Handle, &p.RaygenRegion, &p.MissRegion, &p.HitRegion, &callableRegion, width, height, 1)
}

func (p *VulkanRayTracingPipeline) Destroy(context *VulkanContext) {
	if p.SBTBuffer != nil {
		p.SBTBuffer.BufferDestroy(context)
		p.SBTBuffer = nil
	}
	if p.Handle != nil {
		vk.DestroyPipeline(context.Device.LogicalDevice, p.Handle, context.Allocator)
		p.Handle = nil
	}
	if p.PipelineLayout != nil {
		vk.DestroyPipelineLayout(context.Device.LogicalDevice, p.PipelineLayout, context.Allocator)
		p.PipelineLayout = nil
	}
}
