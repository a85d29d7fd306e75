package metadata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vergegfx/verge/engine/core"
)

// validGeometry is a single triangle with tightly sized buffers.
func validGeometry() GeometryDescriptor {
	return GeometryDescriptor{
		VertexBufferSize: 3 * 12,
		IndexBufferSize:  3 * 2,
		VertexStride:     12,
		VertexCount:      3,
		IndexStride:      2,
		IndexCount:       3,
		Flags:            GeometryOpaque,
	}
}

func TestValidateGeometriesAcceptsValidInput(t *testing.T) {
	assert.NoError(t, ValidateGeometries([]GeometryDescriptor{validGeometry()}))
}

func TestValidateGeometriesEmptyInput(t *testing.T) {
	assert.ErrorIs(t, ValidateGeometries(nil), core.ErrBuildEmptyInput)

	g := validGeometry()
	g.VertexCount = 0
	assert.ErrorIs(t, ValidateGeometries([]GeometryDescriptor{g}), core.ErrBuildEmptyInput)

	g = validGeometry()
	g.IndexCount = 0
	assert.ErrorIs(t, ValidateGeometries([]GeometryDescriptor{g}), core.ErrBuildEmptyInput)
}

func TestValidateGeometriesSizeMismatch(t *testing.T) {
	cases := map[string]func(*GeometryDescriptor){
		"vertex count overruns buffer": func(g *GeometryDescriptor) { g.VertexCount = 4 },
		"index count overruns buffer":  func(g *GeometryDescriptor) { g.IndexCount = 6 },
		"zero vertex stride":           func(g *GeometryDescriptor) { g.VertexStride = 0 },
		"index stride not 2 or 4":      func(g *GeometryDescriptor) { g.IndexStride = 3 },
		"index count not triangles": func(g *GeometryDescriptor) {
			g.IndexBufferSize = 8
			g.IndexCount = 4
		},
	}
	for name, mutate := range cases {
		g := validGeometry()
		mutate(&g)
		err := ValidateGeometries([]GeometryDescriptor{g})
		assert.ErrorIs(t, err, core.ErrBuildSizeMismatch, name)
	}
}

func TestValidateGeometriesFlagsBadEntryNotWholeSet(t *testing.T) {
	bad := validGeometry()
	bad.VertexCount = 100
	err := ValidateGeometries([]GeometryDescriptor{validGeometry(), bad})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "geometry 1")
}

func TestBlasRegistryGenerations(t *testing.T) {
	r := NewBlasRegistry()

	id := r.Register(0x1000)
	assert.True(t, r.Live(id))

	r.Release(id)
	assert.False(t, r.Live(id))

	// Re-registering the same address produces a new generation; the old
	// identifier stays dead.
	fresh := r.Register(0x1000)
	assert.True(t, r.Live(fresh))
	assert.False(t, r.Live(id))
	assert.NotEqual(t, id.Generation, fresh.Generation)
}

func TestBlasRegistryReleaseIgnoresStaleGeneration(t *testing.T) {
	r := NewBlasRegistry()

	old := r.Register(0x2000)
	r.Release(old)
	fresh := r.Register(0x2000)

	// Releasing with the stale identifier must not kill the live one.
	r.Release(old)
	assert.True(t, r.Live(fresh))
}

func TestValidateInstances(t *testing.T) {
	r := NewBlasRegistry()
	id := r.Register(0x3000)

	live := Instance{Blas: id, Mask: 0xFF}
	assert.NoError(t, ValidateInstances([]Instance{live}, r))

	assert.ErrorIs(t, ValidateInstances(nil, r), core.ErrBuildEmptyInput)

	null := Instance{Mask: 0xFF}
	assert.ErrorIs(t, ValidateInstances([]Instance{null}, r), core.ErrBuildSizeMismatch)

	// A released BLAS makes its instances dead references.
	r.Release(id)
	assert.ErrorIs(t, ValidateInstances([]Instance{live}, r), core.ErrBuildSizeMismatch)

	// Without a registry the lifetime check is the caller's problem.
	assert.NoError(t, ValidateInstances([]Instance{live}, nil))
}
