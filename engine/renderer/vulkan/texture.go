package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/assets"
)

// VulkanTexture is a sampled image uploaded from host pixels.
type VulkanTexture struct {
	Image   *VulkanImage
	Sampler vk.Sampler
}

// TextureCreate uploads RGBA8 pixels through a staging buffer and leaves the
// image in shader-read-only layout with a linear sampler attached.
func TextureCreate(context *VulkanContext, name string, pixels *assets.PixelData) (*VulkanTexture, error) {
	staging, err := BufferCreate(
		context,
		name+" staging",
		uint64(len(pixels.Pixels)),
		vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit),
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		true,
	)
	if err != nil {
		return nil, err
	}
	defer staging.BufferDestroy(context)

	if err := staging.LoadData(context, 0, 0, pixels.Pixels); err != nil {
		return nil, err
	}

	image, err := ImageCreate(
		context,
		name,
		vk.ImageType2d,
		pixels.Width,
		pixels.Height,
		vk.FormatR8g8b8a8Unorm,
		vk.ImageTilingOptimal,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit|vk.ImageUsageSampledBit),
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
		true,
		vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}

	err = context.ExecuteOneTimeCommands(func(cb *VulkanCommandBuffer) error {
		if err := ImageTransitionLayout(cb, image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
			vk.ImageLayoutUndefined, vk.ImageLayoutTransferDstOptimal); err != nil {
			return err
		}
		ImageCopyFromBuffer(cb, image, staging.Handle)
		return ImageTransitionLayout(cb, image.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit),
			vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	})
	if err != nil {
		image.ImageDestroy(context)
		return nil, err
	}

	samplerInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		MipmapMode:   vk.SamplerMipmapModeLinear,
	}
	var sampler vk.Sampler
	if res := vk.CreateSampler(context.Device.LogicalDevice, &samplerInfo, context.Allocator, &sampler); res != vk.Success {
		image.ImageDestroy(context)
		return nil, errors.Newf("failed to create sampler for %q: %s", name, VulkanResultString(res))
	}

	return &VulkanTexture{Image: image, Sampler: sampler}, nil
}

func (vt *VulkanTexture) Destroy(context *VulkanContext) error {
	if vt.Sampler != vk.NullSampler {
		vk.DestroySampler(context.Device.LogicalDevice, vt.Sampler, context.Allocator)
		vt.Sampler = vk.NullSampler
	}
	if vt.Image != nil {
		if err := vt.Image.ImageDestroy(context); err != nil {
			return err
		}
		vt.Image = nil
	}
	return nil
}

// DescriptorWriteCombinedSampler points a binding at a sampled texture.
func DescriptorWriteCombinedSampler(context *VulkanContext, set vk.DescriptorSet, binding uint32, texture *VulkanTexture) {
	imageInfo := vk.DescriptorImageInfo{
		Sampler:     texture.Sampler,
		ImageView:   texture.Image.View,
		ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          set,
		DstBinding:      binding,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo:      []vk.DescriptorImageInfo{imageInfo},
	}
	vk.UpdateDescriptorSets(context.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
