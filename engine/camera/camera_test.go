package camera

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCameraDefaults(t *testing.T) {
	c := NewCamera()

	x, y, z := c.Position()
	assert.Equal(t, mgl32.Vec3{0, 0, 10}, mgl32.Vec3{x, y, z})
	assert.InDelta(t, 0.7853982, c.Fov(), 1e-6)
	assert.NotNil(t, c.BindGroupProvider())

	// the origin sits 10 units in front of the camera
	view := mgl32.TransformCoordinate(mgl32.Vec3{}, c.ViewMatrix())
	assert.True(t, view.ApproxEqualThreshold(mgl32.Vec3{0, 0, -10}, 1e-5))
}

func TestScreenRayThroughCentre(t *testing.T) {
	c := NewCamera(WithPosition(0, 2, 8), WithTarget(0, 2, 0))

	ray := c.ScreenRay(0, 0)
	assert.Equal(t, mgl32.Vec3{0, 2, 8}, ray.Origin)
	assert.True(t, ray.Direction.ApproxEqualThreshold(mgl32.Vec3{0, 0, -1}, 1e-4))
}

func TestScreenRayHitsProjectedPoint(t *testing.T) {
	c := NewCamera(WithAspect(16.0/9.0), WithPosition(3, 4, 12))
	point := mgl32.Vec3{1, -1, 0.5}

	clip := c.ViewProjectionMatrix().Mul4x1(point.Vec4(1))
	ndc := clip.Vec3().Mul(1 / clip.W())

	ray := c.ScreenRay(ndc.X(), ndc.Y())
	toPoint := point.Sub(ray.Origin)
	closest := ray.At(toPoint.Dot(ray.Direction))
	assert.InDelta(t, 0, closest.Sub(point).Len(), 1e-3)
}

func TestFrustumFollowsCamera(t *testing.T) {
	c := NewCamera()
	f := c.Frustum()
	assert.True(t, f.ContainsSphere(mgl32.Vec3{}, 1))
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, 20}, 1), "behind the camera")
	assert.False(t, f.ContainsSphere(mgl32.Vec3{0, 0, -200}, 1), "beyond the far plane")

	c.SetPosition(0, 0, 30)
	c.SetTarget(0, 0, 40)
	assert.True(t, c.Frustum().ContainsSphere(mgl32.Vec3{0, 0, 50}, 1))
	assert.False(t, c.Frustum().ContainsSphere(mgl32.Vec3{}, 1))
}

func TestUniform(t *testing.T) {
	c := NewCamera(WithPosition(1, 2, 3))
	u := c.Uniform()
	assert.Equal(t, c.ViewProjectionMatrix(), u.ViewProj)
	assert.Equal(t, mgl32.Vec3{1, 2, 3}, u.CameraPosition)

	buf := u.Marshal()
	require.Len(t, buf, 80)
	assert.Contains(t, GPUCameraUniformSource, "CameraUniform")
}
