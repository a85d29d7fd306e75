package math

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The unit triangle in the z=0 plane used by the intersection tests.
var (
	v0 = mgl32.Vec3{0, 0.75, 0}
	v1 = mgl32.Vec3{-0.75, -0.75, 0}
	v2 = mgl32.Vec3{0.75, -0.75, 0}
)

func TestRayTriangleHitThroughCenter(t *testing.T) {
	r := Ray{
		Origin:    mgl32.Vec3{0, 0, 1},
		Direction: mgl32.Vec3{0, 0, -1},
	}
	dist, hit := RayTriangle(r, v0, v1, v2)
	require.True(t, hit)
	assert.InDelta(t, 1.0, dist, 1e-5)
}

func TestRayTriangleMissOutsideEdges(t *testing.T) {
	for _, origin := range []mgl32.Vec3{
		{2, 0, 1},  // right of the triangle
		{-2, 0, 1}, // left
		{0, 2, 1},  // above the apex
		{0, -2, 1}, // below the base
	} {
		r := Ray{Origin: origin, Direction: mgl32.Vec3{0, 0, -1}}
		_, hit := RayTriangle(r, v0, v1, v2)
		assert.False(t, hit, "origin %v", origin)
	}
}

func TestRayTriangleParallelRayMisses(t *testing.T) {
	r := Ray{
		Origin:    mgl32.Vec3{0, 0, 1},
		Direction: mgl32.Vec3{1, 0, 0},
	}
	_, hit := RayTriangle(r, v0, v1, v2)
	assert.False(t, hit)
}

func TestRayTriangleBehindOriginMisses(t *testing.T) {
	// Triangle sits behind the ray.
	r := Ray{
		Origin:    mgl32.Vec3{0, 0, -1},
		Direction: mgl32.Vec3{0, 0, -1},
	}
	_, hit := RayTriangle(r, v0, v1, v2)
	assert.False(t, hit)
}

func TestRayTriangleBackFaceHits(t *testing.T) {
	r := Ray{
		Origin:    mgl32.Vec3{0, 0, -1},
		Direction: mgl32.Vec3{0, 0, 1},
	}
	_, hit := RayTriangle(r, v0, v1, v2)
	assert.True(t, hit)
}

func TestRayTriangleDegenerateTriangleNeverHits(t *testing.T) {
	r := Ray{
		Origin:    mgl32.Vec3{0, 0, 1},
		Direction: mgl32.Vec3{0, 0, -1},
	}
	_, hit := RayTriangle(r, v0, v0, v0)
	assert.False(t, hit)
}

func TestRayTriangleTransformedInstance(t *testing.T) {
	// Translate the triangle the way a TLAS instance would and verify the ray
	// result moves with it.
	m := IdentityTransform()
	m[3] = 5 // translate +5 in x

	tv0 := TransformPoint(m, v0)
	tv1 := TransformPoint(m, v1)
	tv2 := TransformPoint(m, v2)

	through := Ray{Origin: mgl32.Vec3{5, 0, 1}, Direction: mgl32.Vec3{0, 0, -1}}
	_, hit := RayTriangle(through, tv0, tv1, tv2)
	assert.True(t, hit)

	// The old position no longer intersects.
	old := Ray{Origin: mgl32.Vec3{0, 0, 1}, Direction: mgl32.Vec3{0, 0, -1}}
	_, hit = RayTriangle(old, tv0, tv1, tv2)
	assert.False(t, hit)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 5, Clamp(3, 5, 10))
	assert.Equal(t, 10, Clamp(12, 5, 10))
	assert.Equal(t, 7, Clamp(7, 5, 10))
	assert.Equal(t, 0.5, Clamp(0.5, 0.0, 1.0))
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, uint64(0), AlignUp(uint64(0), uint64(128)))
	assert.Equal(t, uint64(128), AlignUp(uint64(1), uint64(128)))
	assert.Equal(t, uint64(128), AlignUp(uint64(128), uint64(128)))
	assert.Equal(t, uint64(256), AlignUp(uint64(129), uint64(128)))
}
