package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/assets"
)

func descriptorType(kind assets.DescriptorKind) vk.DescriptorType {
	switch kind {
	case assets.DESCRIPTOR_KIND_UNIFORM_BUFFER:
		return vk.DescriptorTypeUniformBuffer
	case assets.DESCRIPTOR_KIND_STORAGE_BUFFER:
		return vk.DescriptorTypeStorageBuffer
	case assets.DESCRIPTOR_KIND_STORAGE_IMAGE:
		return vk.DescriptorTypeStorageImage
	case assets.DESCRIPTOR_KIND_COMBINED_SAMPLER:
		return vk.DescriptorTypeCombinedImageSampler
	case assets.DESCRIPTOR_KIND_ACCELERATION_STRUCTURE:
		return vk.DescriptorTypeAccelerationStructure
	default:
		return vk.DescriptorTypeUniformBuffer
	}
}

// DescriptorSetLayoutCreate builds a set layout from the binding slots a
// shader declares. All bindings are visible to every stage; the substrate
// does not track per-stage visibility.
func DescriptorSetLayoutCreate(context *VulkanContext, bindings []assets.DescriptorBinding) (vk.DescriptorSetLayout, error) {
	layoutBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		layoutBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  descriptorType(b.Kind),
			DescriptorCount: count,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageAll),
		}
	}

	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(layoutBindings)),
		PBindings:    layoutBindings,
	}

	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(context.Device.LogicalDevice, &layoutInfo, context.Allocator, &layout); res != vk.Success {
		return vk.NullDescriptorSetLayout, errors.Newf("failed to create descriptor set layout: %s", VulkanResultString(res))
	}
	return layout, nil
}

// DescriptorPoolCreate sizes a pool for maxSets sets drawn from the given
// binding slots.
func DescriptorPoolCreate(context *VulkanContext, bindings []assets.DescriptorBinding, maxSets uint32) (vk.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(bindings))
	for i, b := range bindings {
		count := b.Count
		if count == 0 {
			count = 1
		}
		sizes[i] = vk.DescriptorPoolSize{
			Type:            descriptorType(b.Kind),
			DescriptorCount: count * maxSets,
		}
	}

	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
		MaxSets:       maxSets,
	}

	var pool vk.DescriptorPool
	if res := vk.CreateDescriptorPool(context.Device.LogicalDevice, &poolInfo, context.Allocator, &pool); res != vk.Success {
		return vk.NullDescriptorPool, errors.Newf("failed to create descriptor pool: %s", VulkanResultString(res))
	}
	return pool, nil
}

func DescriptorSetAllocate(context *VulkanContext, pool vk.DescriptorPool, layout vk.DescriptorSetLayout) (vk.DescriptorSet, error) {
	allocateInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(context.Device.LogicalDevice, &allocateInfo, &sets[0]); res != vk.Success {
		return vk.NullDescriptorSet, errors.Newf("failed to allocate descriptor set: %s", VulkanResultString(res))
	}
	return sets[0], nil
}

// DescriptorWriteStorageImage points a storage-image binding at the view in
// general layout.
func DescriptorWriteStorageImage(context *VulkanContext, set vk.DescriptorSet, binding uint32, view vk.ImageView) {
	imageInfo := vk.DescriptorImageInfo{
		ImageView:   view,
		ImageLayout: vk.ImageLayoutGeneral,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func DescriptorWriteUniformBuffer(context *VulkanContext, set vk.DescriptorSet, binding uint32, buffer *VulkanBuffer) {
	bufferInfo := vk.DescriptorBufferInfo{
		Buffer: buffer.Handle,
		Offset: 0,
		Range:  vk.DeviceSize(buffer.TotalSize),
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeUniformBuffer,
		PBufferInfo:     []vk.DescriptorBufferInfo{bufferInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// DescriptorWriteAccelerationStructure points a binding at the top-level
// structure rays are traced against.
func DescriptorWriteAccelerationStructure(context *VulkanContext, set vk.DescriptorSet, binding uint32, tlas *VulkanAccelerationStructure) {
	asInfo := vk.WriteDescriptorSetAccelerationStructure{
		SType:                      vk.StructureTypeWriteDescriptorSetAccelerationStructure,
		AccelerationStructureCount: 1,
		PAccelerationStructures:    []vk.AccelerationStructure{tlas.Handle},
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		PNext:           unsafe.Pointer(&asInfo),
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeAccelerationStructure,
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
