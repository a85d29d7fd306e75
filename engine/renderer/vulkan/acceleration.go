package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/vergegfx/verge/engine/core"
	"github.com/vergegfx/verge/engine/math"
	"github.com/vergegfx/verge/engine/renderer/metadata"
)

// scratchAlignment satisfies minAccelerationStructureScratchOffsetAlignment
// on every implementation this targets.
const scratchAlignment = 128

type VulkanAccelerationStructure struct {
	Handle        vk.AccelerationStructure
	Buffer        *VulkanBuffer
	DeviceAddress vk.DeviceAddress
	// ID is set for bottom-level structures registered with a BlasRegistry.
	ID metadata.BlasID
}

// BlasInput pairs device-local vertex/index buffers with the descriptor that
// was validated against them.
type BlasInput struct {
	Vertices *VulkanBuffer
	Indices  *VulkanBuffer
	Desc     metadata.GeometryDescriptor
}

func deviceAddressConst(addr vk.DeviceAddress) vk.DeviceOrHostAddressConst {
	var u vk.DeviceOrHostAddressConst
	*(*vk.DeviceAddress)(unsafe.Pointer(&u)) = addr
	return u
}

func deviceAddress(addr vk.DeviceAddress) vk.DeviceOrHostAddress {
	var u vk.DeviceOrHostAddress
	*(*vk.DeviceAddress)(unsafe.Pointer(&u)) = addr
	return u
}

func geometryFlags(flags metadata.GeometryFlag) vk.GeometryFlags {
	var out vk.GeometryFlagBits
	if flags&metadata.GeometryOpaque != 0 {
		out |= vk.GeometryOpaqueBit
	}
	if flags&metadata.GeometryNoDuplicateAnyHit != 0 {
		out |= vk.GeometryNoDuplicateAnyHitInvocationBit
	}
	return vk.GeometryFlags(out)
}

// BlasCreate builds a bottom-level acceleration structure over the given
// triangle geometries: size query, backing and scratch allocation, a blocking
// one-time build, scratch teardown. On success the structure is registered
// with the registry and carries the resulting identifier.
func BlasCreate(context *VulkanContext, inputs []BlasInput, registry *metadata.BlasRegistry) (*VulkanAccelerationStructure, error) {
	descriptors := make([]metadata.GeometryDescriptor, len(inputs))
	for i := range inputs {
		descriptors[i] = inputs[i].Desc
	}
	if err := metadata.ValidateGeometries(descriptors); err != nil {
		return nil, err
	}

	geometries := make([]vk.AccelerationStructureGeometry, len(inputs))
	rangeInfos := make([]vk.AccelerationStructureBuildRangeInfo, len(inputs))
	primitiveCounts := make([]uint32, len(inputs))

	for i, input := range inputs {
		indexType := vk.IndexTypeUint32
		if input.Desc.IndexStride == 2 {
			indexType = vk.IndexTypeUint16
		}

		triangles := vk.AccelerationStructureGeometryTrianglesData{
			SType:        vk.StructureTypeAccelerationStructureGeometryTrianglesData,
			VertexFormat: vk.FormatR32g32b32Sfloat,
			VertexData:   deviceAddressConst(input.Vertices.DeviceAddress(context)),
			VertexStride: vk.DeviceSize(input.Desc.VertexStride),
			MaxVertex:    input.Desc.VertexCount - 1,
			IndexType:    indexType,
			IndexData:    deviceAddressConst(input.Indices.DeviceAddress(context)),
		}

		geometries[i] = vk.AccelerationStructureGeometry{
			SType:        vk.StructureTypeAccelerationStructureGeometry,
			GeometryType: vk.GeometryTypeTriangles,
			Flags:        geometryFlags(input.Desc.Flags),
		}
		*(*vk.AccelerationStructureGeometryTrianglesData)(unsafe.Pointer(&geometries[i].Geometry)) = triangles

		primitiveCounts[i] = input.Desc.IndexCount / 3
		rangeInfos[i] = vk.AccelerationStructureBuildRangeInfo{
			PrimitiveCount: primitiveCounts[i],
		}
	}

	as, err := buildAccelerationStructure(
		context,
		"bottom-level acceleration structure",
		vk.AccelerationStructureTypeBottomLevel,
		geometries,
		rangeInfos,
		primitiveCounts,
	)
	if err != nil {
		return nil, err
	}

	if registry != nil {
		as.ID = registry.Register(uint64(as.DeviceAddress))
	}
	return as, nil
}

// TlasCreate builds a top-level acceleration structure over the given
// instances. Every referenced BLAS must be live in the registry.
func TlasCreate(context *VulkanContext, instances []metadata.Instance, registry *metadata.BlasRegistry) (*VulkanAccelerationStructure, error) {
	if err := metadata.ValidateInstances(instances, registry); err != nil {
		return nil, err
	}

	records := metadata.EncodeInstances(instances)
	instanceBuffer, err := BufferCreate(
		context,
		"TLAS instance buffer",
		uint64(len(records)),
		vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureBuildInputReadOnlyBit|vk.BufferUsageShaderDeviceAddressBit),
		uint32(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit),
		true,
	)
	if err != nil {
		return nil, err
	}
	defer instanceBuffer.BufferDestroy(context)

	if err := instanceBuffer.LoadData(context, 0, 0, records); err != nil {
		return nil, err
	}

	instancesData := vk.AccelerationStructureGeometryInstancesData{
		SType:           vk.StructureTypeAccelerationStructureGeometryInstancesData,
		ArrayOfPointers: vk.False,
		Data:            deviceAddressConst(instanceBuffer.DeviceAddress(context)),
	}

	geometry := vk.AccelerationStructureGeometry{
		SType:        vk.StructureTypeAccelerationStructureGeometry,
		GeometryType: vk.GeometryTypeInstances,
	}
	*(*vk.AccelerationStructureGeometryInstancesData)(unsafe.Pointer(&geometry.Geometry)) = instancesData

	primitiveCount := uint32(len(instances))
	rangeInfo := vk.AccelerationStructureBuildRangeInfo{
		PrimitiveCount: primitiveCount,
	}

	return buildAccelerationStructure(
		context,
		"top-level acceleration structure",
		vk.AccelerationStructureTypeTopLevel,
		[]vk.AccelerationStructureGeometry{geometry},
		[]vk.AccelerationStructureBuildRangeInfo{rangeInfo},
		[]uint32{primitiveCount},
	)
}

func buildAccelerationStructure(
	context *VulkanContext,
	name string,
	asType vk.AccelerationStructureType,
	geometries []vk.AccelerationStructureGeometry,
	rangeInfos []vk.AccelerationStructureBuildRangeInfo,
	primitiveCounts []uint32,
) (*VulkanAccelerationStructure, error) {
	buildInfo := vk.AccelerationStructureBuildGeometryInfo{
		SType:         vk.StructureTypeAccelerationStructureBuildGeometryInfo,
		Type:          asType,
		Flags:         vk.BuildAccelerationStructureFlags(vk.BuildAccelerationStructurePreferFastTraceBit),
		Mode:          vk.BuildAccelerationStructureModeBuild,
		GeometryCount: uint32(len(geometries)),
		PGeometries:   geometries,
	}

	sizesInfo := vk.AccelerationStructureBuildSizesInfo{
		SType: vk.StructureTypeAccelerationStructureBuildSizesInfo,
	}
	vk.GetAccelerationStructureBuildSizes(
		context.Device.LogicalDevice,
		vk.AccelerationStructureBuildTypeDevice,
		&buildInfo,
		primitiveCounts,
		&sizesInfo)
	sizesInfo.Deref()

	backing, err := BufferCreate(
		context,
		name,
		uint64(sizesInfo.AccelerationStructureSize),
		vk.BufferUsageFlags(vk.BufferUsageAccelerationStructureStorageBit|vk.BufferUsageShaderDeviceAddressBit),
		uint32(vk.MemoryPropertyDeviceLocalBit),
		true,
	)
	if err != nil {
		return nil, err
	}

	createInfo := vk.AccelerationStructureCreateInfo{
		SType:  vk.StructureTypeAccelerationStructureCreateInfo,
		Buffer: backing.Handle,
		Size:   sizesInfo.AccelerationStructureSize,
		Type:   asType,
	}
	var handle vk.AccelerationStructure
	if res := vk.CreateAccelerationStructure(context.Device.LogicalDevice, &createInfo, context.Allocator, &handle); res != vk.Success {
		backing.BufferDestroy(context)
		return nil, errors.Wrapf(core.ErrBuildDeviceFailed, "failed to create acceleration structure: %s", VulkanResultString(res))
	}

	// Scratch is oversized by the alignment so the aligned address stays in
	// bounds.
	scratch, err := BufferCreate(
		context,
		"acceleration structure scratch",
		uint64(sizesInfo.BuildScratchSize)+scratchAlignment,
		vk.BufferUsageFlags(vk.BufferUsageStorageBufferBit|vk.BufferUsageShaderDeviceAddressBit),
		uint32(vk.MemoryPropertyDeviceLocalBit),
		true,
	)
	if err != nil {
		vk.DestroyAccelerationStructure(context.Device.LogicalDevice, handle, context.Allocator)
		backing.BufferDestroy(context)
		return nil, err
	}

	buildInfo.DstAccelerationStructure = handle
	buildInfo.ScratchData = deviceAddress(
		vk.DeviceAddress(math.AlignUp(uint64(scratch.DeviceAddress(context)), scratchAlignment)))

	buildErr := context.ExecuteOneTimeCommands(func(cb *VulkanCommandBuffer) error {
		vk.CmdBuildAccelerationStructures(
			cb.Handle,
			1,
			[]vk.AccelerationStructureBuildGeometryInfo{buildInfo},
			[][]vk.AccelerationStructureBuildRangeInfo{rangeInfos})
		return nil
	})

	// The build fence has been waited on, so the scratch buffer is free to go
	// regardless of outcome.
	scratch.BufferDestroy(context)

	if buildErr != nil {
		vk.DestroyAccelerationStructure(context.Device.LogicalDevice, handle, context.Allocator)
		backing.BufferDestroy(context)
		return nil, errors.Wrap(core.ErrBuildDeviceFailed, buildErr.Error())
	}

	addressInfo := vk.AccelerationStructureDeviceAddressInfo{
		SType:                 vk.StructureTypeAccelerationStructureDeviceAddressInfo,
		AccelerationStructure: handle,
	}
	address := vk.GetAccelerationStructureDeviceAddress(context.Device.LogicalDevice, &addressInfo)

	core.LogDebug("Built %s: %d bytes, address %#x.", name, sizesInfo.AccelerationStructureSize, address)

	return &VulkanAccelerationStructure{
		Handle:        handle,
		Buffer:        backing,
		DeviceAddress: address,
	}, nil
}

// AccelerationStructureDestroy releases the structure and its backing buffer.
// Bottom-level structures are dropped from the registry so later TLAS builds
// referencing them fail validation instead of reading freed memory.
func (as *VulkanAccelerationStructure) AccelerationStructureDestroy(context *VulkanContext, registry *metadata.BlasRegistry) error {
	if registry != nil && as.ID.Address != 0 {
		registry.Release(as.ID)
	}
	if as.Handle != nil {
		vk.DestroyAccelerationStructure(context.Device.LogicalDevice, as.Handle, context.Allocator)
		as.Handle = nil
	}
	if as.Buffer != nil {
		if err := as.Buffer.BufferDestroy(context); err != nil {
			return err
		}
		as.Buffer = nil
	}
	return nil
}
