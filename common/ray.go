package common

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"
)

// rayEpsilon rejects near-parallel triangles and self-hits at the ray origin.
const rayEpsilon = 1e-6

// Ray is a half-line starting at Origin and extending along Direction.
// Direction does not need to be normalized, but distances reported by the
// intersection routines are in units of |Direction|.
type Ray struct {
	Origin    mgl32.Vec3
	Direction mgl32.Vec3
}

// NewRay creates a Ray with a normalized direction.
//
// Parameters:
//   - origin: the ray origin
//   - direction: the ray direction (normalized on construction)
//
// Returns:
//   - Ray: the ray
func NewRay(origin, direction mgl32.Vec3) Ray {
	return Ray{Origin: origin, Direction: direction.Normalize()}
}

// At returns the point at parametric distance t along the ray.
func (r Ray) At(t float32) mgl32.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Transform maps the ray through an affine matrix. The direction is not re-normalized,
// so a parameter t on the transformed ray identifies the same point as t on the original.
//
// Parameters:
//   - m: the matrix to apply
//
// Returns:
//   - Ray: the transformed ray
func (r Ray) Transform(m mgl32.Mat4) Ray {
	return Ray{
		Origin:    mgl32.TransformCoordinate(r.Origin, m),
		Direction: mgl32.TransformNormal(r.Direction, m),
	}
}

// Intersection describes one point where a ray met a drawable.
type Intersection struct {
	// Distance is the world-space distance from the ray origin to Point.
	Distance float32

	// Point is the world-space hit position.
	Point mgl32.Vec3

	// FaceIndex is the index of the hit triangle in the geometry's index list (triangle number, not index offset).
	FaceIndex int

	// InstanceID identifies the instance that was hit, when the drawable is instanced.
	InstanceID uint64

	// Slot is the dense slot of the hit instance at the time of the test, or -1 for non-instanced drawables.
	Slot int

	// Object is an opaque reference to the drawable that produced the hit.
	Object any
}

// IntersectTriangle tests the ray against triangle (a, b, c) using the Möller–Trumbore algorithm.
// The front face is the one seen with a, b, c in counter-clockwise order.
//
// Parameters:
//   - a, b, c: the triangle vertices
//   - cullBack: when true, hits on the back face are rejected
//
// Returns:
//   - float32: the ray parameter t of the hit
//   - bool: true if the ray hits the triangle at t > 0
func (r Ray) IntersectTriangle(a, b, c mgl32.Vec3, cullBack bool) (float32, bool) {
	edge1 := b.Sub(a)
	edge2 := c.Sub(a)
	pvec := r.Direction.Cross(edge2)
	det := edge1.Dot(pvec)
	if det < rayEpsilon && (cullBack || det > -rayEpsilon) {
		return 0, false
	}
	invDet := 1 / det

	tvec := r.Origin.Sub(a)
	u := tvec.Dot(pvec) * invDet
	if u < 0 || u > 1 {
		return 0, false
	}

	qvec := tvec.Cross(edge1)
	v := r.Direction.Dot(qvec) * invDet
	if v < 0 || u+v > 1 {
		return 0, false
	}

	t := edge2.Dot(qvec) * invDet
	if t <= rayEpsilon {
		return 0, false
	}
	return t, true
}

// IntersectSphere tests the ray against a sphere.
//
// Parameters:
//   - center: the sphere center
//   - radius: the sphere radius
//
// Returns:
//   - float32: the nearest non-negative ray parameter t, or 0 when the origin is inside the sphere
//   - bool: true if the ray touches the sphere in front of (or around) its origin
func (r Ray) IntersectSphere(center mgl32.Vec3, radius float32) (float32, bool) {
	oc := r.Origin.Sub(center)
	a := r.Direction.Dot(r.Direction)
	if a == 0 {
		return 0, false
	}
	b := oc.Dot(r.Direction)
	c := oc.Dot(oc) - radius*radius
	disc := b*b - a*c
	if disc < 0 {
		return 0, false
	}
	sq := float32(math.Sqrt(float64(disc)))
	t0 := (-b - sq) / a
	t1 := (-b + sq) / a
	if t1 < 0 {
		return 0, false
	}
	if t0 < 0 {
		return 0, true
	}
	return t0, true
}

// SortByDistance orders intersections nearest first. Equal distances keep their relative order.
//
// Parameters:
//   - hits: the intersections to sort in place
func SortByDistance(hits []Intersection) {
	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
}
