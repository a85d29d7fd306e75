package vulkan

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/assets"
)

type VulkanShaderStage struct {
	Handle                vk.ShaderModule
	ShaderStageCreateInfo vk.PipelineShaderStageCreateInfo
}

// NewShaderModule wraps a loaded SPIR-V blob in a shader module and the stage
// create info that pipelines consume.
func NewShaderModule(context *VulkanContext, shader *assets.ShaderBinary, stageFlag vk.ShaderStageFlagBits) (*VulkanShaderStage, error) {
	stage := &VulkanShaderStage{}

	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(shader.Code)),
		PCode:    bytesToWords(shader.Code),
	}

	if res := vk.CreateShaderModule(
		context.Device.LogicalDevice,
		&createInfo,
		context.Allocator,
		&stage.Handle); res != vk.Success {
		return nil, errors.Newf("failed to create shader module %q: %s", shader.Name, VulkanResultString(res))
	}

	stage.ShaderStageCreateInfo = vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stageFlag,
		Module: stage.Handle,
		PName:  VulkanSafeString("main"),
	}

	return stage, nil
}

func (vs *VulkanShaderStage) Destroy(context *VulkanContext) {
	if vs.Handle != vk.NullShaderModule {
		vk.DestroyShaderModule(context.Device.LogicalDevice, vs.Handle, context.Allocator)
		vs.Handle = vk.NullShaderModule
	}
}

// bytesToWords reinterprets SPIR-V bytes as the 32-bit words the driver
// expects. Length was validated at load time.
func bytesToWords(code []byte) []uint32 {
	words := make([]uint32, len(code)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(code[i*4:])
	}
	return words
}
