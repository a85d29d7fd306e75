package math

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Ray is a half-line used for intersection queries against traced geometry.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// RayTriangle runs the Moller-Trumbore intersection test. It returns the
// distance along the ray and whether the triangle was hit. Back faces count
// as hits; degenerate triangles never hit.
func RayTriangle(r Ray, v0, v1, v2 mgl32.Vec3) (float32, bool) {
	const epsilon = 1e-7

	edge1 := v1.Sub(v0)
	edge2 := v2.Sub(v0)

	h := r.Direction.Cross(edge2)
	a := edge1.Dot(h)
	if math32.Abs(a) < epsilon {
		// Ray parallel to the triangle plane.
		return 0, false
	}

	f := 1.0 / a
	s := r.Origin.Sub(v0)
	u := f * s.Dot(h)
	if u < 0.0 || u > 1.0 {
		return 0, false
	}

	q := s.Cross(edge1)
	v := f * r.Direction.Dot(q)
	if v < 0.0 || u+v > 1.0 {
		return 0, false
	}

	t := f * edge2.Dot(q)
	if t <= epsilon {
		return 0, false
	}
	return t, true
}

// TransformPoint applies a 3x4 row-major transform to a point.
func TransformPoint(m [12]float32, p mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{
		m[0]*p.X() + m[1]*p.Y() + m[2]*p.Z() + m[3],
		m[4]*p.X() + m[5]*p.Y() + m[6]*p.Z() + m[7],
		m[8]*p.X() + m[9]*p.Y() + m[10]*p.Z() + m[11],
	}
}

// IdentityTransform is the 3x4 row-major identity used for untransformed
// instances.
func IdentityTransform() [12]float32 {
	return [12]float32{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
	}
}
