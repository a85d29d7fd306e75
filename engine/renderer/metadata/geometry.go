package metadata

import (
	"github.com/cockroachdb/errors"

	"github.com/vergegfx/verge/engine/core"
)

type GeometryFlag uint8

const (
	// GeometryOpaque marks geometry whose any-hit shaders are skipped.
	GeometryOpaque GeometryFlag = 1 << iota
	// GeometryNoDuplicateAnyHit guarantees any-hit runs at most once per primitive.
	GeometryNoDuplicateAnyHit
)

// GeometryDescriptor describes one triangle mesh fed to a bottom-level
// acceleration structure build. Immutable once submitted to the builder.
// Buffer capacities are carried in bytes so counts can be validated before
// the build reaches the device.
type GeometryDescriptor struct {
	VertexBufferSize uint64
	IndexBufferSize  uint64
	VertexStride     uint32
	VertexCount      uint32
	IndexStride      uint32
	IndexCount       uint32
	Flags            GeometryFlag
}

// ValidateGeometries gates a BLAS build. An empty set or a descriptor whose
// counts overrun its backing buffers never reaches the device, where the
// result would be undefined.
func ValidateGeometries(geometries []GeometryDescriptor) error {
	if len(geometries) == 0 {
		return core.ErrBuildEmptyInput
	}
	for i, g := range geometries {
		if g.VertexCount == 0 || g.IndexCount == 0 {
			return errors.Wrapf(core.ErrBuildEmptyInput, "geometry %d has zero vertices or indices", i)
		}
		if g.VertexStride == 0 || (g.IndexStride != 2 && g.IndexStride != 4) {
			return errors.Wrapf(core.ErrBuildSizeMismatch, "geometry %d has invalid strides (vertex %d, index %d)", i, g.VertexStride, g.IndexStride)
		}
		if uint64(g.VertexCount)*uint64(g.VertexStride) > g.VertexBufferSize {
			return errors.Wrapf(core.ErrBuildSizeMismatch, "geometry %d declares %d vertices but the buffer holds %d bytes", i, g.VertexCount, g.VertexBufferSize)
		}
		if uint64(g.IndexCount)*uint64(g.IndexStride) > g.IndexBufferSize {
			return errors.Wrapf(core.ErrBuildSizeMismatch, "geometry %d declares %d indices but the buffer holds %d bytes", i, g.IndexCount, g.IndexBufferSize)
		}
		if g.IndexCount%3 != 0 {
			return errors.Wrapf(core.ErrBuildSizeMismatch, "geometry %d index count %d is not a multiple of 3", i, g.IndexCount)
		}
	}
	return nil
}

type InstanceFlag uint8

const (
	InstanceTriangleFacingCullDisable InstanceFlag = 1 << iota
	InstanceForceOpaque
)

// BlasID is the non-owning reference an Instance carries to its bottom-level
// structure: the device address plus a generation tag so stale references
// are distinguishable from reused addresses.
type BlasID struct {
	Address    uint64
	Generation uint32
}

// Instance places one BLAS in a top-level structure. Transform is 3x4
// row-major. CustomIndex is the shader-visible identifier.
type Instance struct {
	Blas        BlasID
	Transform   [12]float32
	CustomIndex uint32
	Mask        uint8
	Flags       InstanceFlag
}

// BlasRegistry is the owning scene's mapping of live bottom-level structures.
// The registry does not keep anything alive itself; it detects instances
// whose BLAS was released or never registered before a TLAS build is issued.
type BlasRegistry struct {
	generations map[uint64]uint32
	nextGen     uint32
}

func NewBlasRegistry() *BlasRegistry {
	return &BlasRegistry{
		generations: make(map[uint64]uint32),
		nextGen:     1,
	}
}

// Register records a BLAS device address and returns the identifier instances
// should reference it by.
func (r *BlasRegistry) Register(address uint64) BlasID {
	gen := r.nextGen
	r.nextGen++
	r.generations[address] = gen
	return BlasID{Address: address, Generation: gen}
}

// Release drops a BLAS from the registry. Any TLAS still referencing it is a
// caller lifetime bug that ValidateInstances will flag.
func (r *BlasRegistry) Release(id BlasID) {
	if gen, ok := r.generations[id.Address]; ok && gen == id.Generation {
		delete(r.generations, id.Address)
	}
}

// Live reports whether the identifier still refers to a registered BLAS.
func (r *BlasRegistry) Live(id BlasID) bool {
	gen, ok := r.generations[id.Address]
	return ok && gen == id.Generation
}

// ValidateInstances gates a TLAS build. When a registry is provided, every
// referenced BLAS must still be live; a nil registry skips the lifetime check
// (the caller owns the guarantee).
func ValidateInstances(instances []Instance, registry *BlasRegistry) error {
	if len(instances) == 0 {
		return core.ErrBuildEmptyInput
	}
	for i, inst := range instances {
		if inst.Blas.Address == 0 {
			return errors.Wrapf(core.ErrBuildSizeMismatch, "instance %d references a null BLAS address", i)
		}
		if registry != nil && !registry.Live(inst.Blas) {
			return errors.Wrapf(core.ErrBuildSizeMismatch, "instance %d references BLAS %#x generation %d which is not live", i, inst.Blas.Address, inst.Blas.Generation)
		}
	}
	return nil
}
