package common

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
)

func TestBuildModelMatrixIdentity(t *testing.T) {
	m := BuildModelMatrix(mgl32.Vec3{}, mgl32.Vec3{}, mgl32.Vec3{1, 1, 1})
	assert.True(t, m.ApproxEqual(mgl32.Ident4()))
}

func TestBuildModelMatrixMatchesComposition(t *testing.T) {
	pos := mgl32.Vec3{1, -2, 3}
	rot := mgl32.Vec3{0.3, 1.1, -0.4}
	scale := mgl32.Vec3{2, 0.5, 1.5}

	want := mgl32.Translate3D(pos[0], pos[1], pos[2]).
		Mul4(mgl32.HomogRotate3DY(rot[1])).
		Mul4(mgl32.HomogRotate3DX(rot[0])).
		Mul4(mgl32.HomogRotate3DZ(rot[2])).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))

	got := BuildModelMatrix(pos, rot, scale)
	assert.True(t, got.ApproxEqualThreshold(want, 1e-5), "got %v want %v", got, want)
	assert.True(t, IsAffine(got))
	assert.Equal(t, pos, Translation(got))
}

func TestLookAtMapsEyeToOrigin(t *testing.T) {
	eye := mgl32.Vec3{3, 4, 5}
	view := LookAt(eye, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	origin := mgl32.TransformCoordinate(eye, view)
	assert.True(t, origin.ApproxEqualThreshold(mgl32.Vec3{}, 1e-5))

	// the target lies straight ahead on -Z
	target := mgl32.TransformCoordinate(mgl32.Vec3{}, view)
	assert.InDelta(t, 0, target[0], 1e-5)
	assert.InDelta(t, 0, target[1], 1e-5)
	assert.InDelta(t, -eye.Len(), target[2], 1e-5)
}

func TestPerspectiveDepthRange(t *testing.T) {
	proj := Perspective(float32(math.Pi/2), 1, 1, 100)

	near := proj.Mul4x1(mgl32.Vec4{0, 0, -1, 1})
	far := proj.Mul4x1(mgl32.Vec4{0, 0, -100, 1})
	assert.InDelta(t, 0, near[2]/near[3], 1e-5)
	assert.InDelta(t, 1, far[2]/far[3], 1e-5)
}

func TestFrustumContainsSphere(t *testing.T) {
	proj := Perspective(float32(math.Pi/2), 1, 0.1, 50)
	view := LookAt(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	f := ExtractFrustumFromMatrix(proj.Mul4(view))

	assert.True(t, f.ContainsSphere(mgl32.Vec3{}, 1))
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, 20}, 1), "behind the camera")
	assert.False(t, f.ContainsSphere(mgl32.Vec3{100, 0, 0}, 1), "far off to the side")
	assert.True(t, f.ContainsSphere(mgl32.Vec3{11, 0, 0}, 2), "straddling the right plane")
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, -60}, 1), "beyond the far plane")
}

func TestCoalesce(t *testing.T) {
	assert.Equal(t, "b", Coalesce("", "b", "c"))
	assert.Equal(t, 0, Coalesce(0, 0))
}

func TestSliceToBytes(t *testing.T) {
	assert.Nil(t, SliceToBytes([]float32{}))
	b := SliceToBytes([]float32{1, 2})
	assert.Len(t, b, 8)
}
