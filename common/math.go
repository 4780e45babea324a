package common

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// BuildModelMatrix constructs a 4x4 model matrix from position, Euler rotation, and scale.
// The rotation order is Y * X * Z (yaw-pitch-roll). The result is column-major.
//
// Parameters:
//   - pos: translation in parent space
//   - rot: rotation angles in radians around each axis
//   - scale: scale factors along each axis
//
// Returns:
//   - mgl32.Mat4: the composed model matrix
func BuildModelMatrix(pos, rot, scale mgl32.Vec3) mgl32.Mat4 {
	cx := float32(math.Cos(float64(rot[0])))
	sx := float32(math.Sin(float64(rot[0])))
	cy := float32(math.Cos(float64(rot[1])))
	sy := float32(math.Sin(float64(rot[1])))
	cz := float32(math.Cos(float64(rot[2])))
	sz := float32(math.Sin(float64(rot[2])))

	// R = Ry * Rx * Rz, column-major
	return mgl32.Mat4{
		(cy*cz + sy*sx*sz) * scale[0], (cx * sz) * scale[0], (-sy*cz + cy*sx*sz) * scale[0], 0,
		(cy*-sz + sy*sx*cz) * scale[1], (cx * cz) * scale[1], (sy*sz + cy*sx*cz) * scale[1], 0,
		(sy * cx) * scale[2], (-sx) * scale[2], (cy * cx) * scale[2], 0,
		pos[0], pos[1], pos[2], 1,
	}
}

// Perspective creates a perspective projection matrix for WebGPU clip space, where depth maps to [0, 1].
// mgl32.Perspective targets the OpenGL [-1, 1] range and is not interchangeable with this.
//
// Parameters:
//   - fovY: vertical field of view in radians
//   - aspect: viewport aspect ratio (width/height)
//   - near: near clipping plane distance (must be > 0)
//   - far: far clipping plane distance (must be > near)
//
// Returns:
//   - mgl32.Mat4: the projection matrix
func Perspective(fovY, aspect, near, far float32) mgl32.Mat4 {
	f := 1.0 / float32(math.Tan(float64(fovY)/2.0))
	out := mgl32.Ident4()

	out[0] = f / aspect
	out[5] = f
	out[10] = far / (near - far)
	out[11] = -1.0
	out[14] = (near * far) / (near - far)
	out[15] = 0.0
	return out
}

// LookAt creates a view matrix that positions and orients a camera.
// The resulting matrix transforms world coordinates to view space.
//
// Parameters:
//   - eye: camera position in world space
//   - center: target point the camera looks at
//   - up: up vector defining camera orientation (typically 0,1,0)
//
// Returns:
//   - mgl32.Mat4: the view matrix
func LookAt(eye, center, up mgl32.Vec3) mgl32.Mat4 {
	z := eye.Sub(center)
	if z.Len() == 0 {
		z = mgl32.Vec3{0, 0, 1}
	}
	z = z.Normalize()

	x := up.Cross(z)
	if x.Len() == 0 {
		x = mgl32.Vec3{1, 0, 0}
	}
	x = x.Normalize()
	y := z.Cross(x)

	return mgl32.Mat4{
		x[0], y[0], z[0], 0,
		x[1], y[1], z[1], 0,
		x[2], y[2], z[2], 0,
		-x.Dot(eye), -y.Dot(eye), -z.Dot(eye), 1,
	}
}

// Translation returns the translation column of an affine matrix.
//
// Parameters:
//   - m: the matrix to read
//
// Returns:
//   - mgl32.Vec3: the x, y, z translation
func Translation(m mgl32.Mat4) mgl32.Vec3 {
	return mgl32.Vec3{m[12], m[13], m[14]}
}

// IsAffine reports whether the fourth row of m is exactly [0, 0, 0, 1].
//
// Parameters:
//   - m: the matrix to check
//
// Returns:
//   - bool: true if m carries no projective component
func IsAffine(m mgl32.Mat4) bool {
	return m[3] == 0 && m[7] == 0 && m[11] == 0 && m[15] == 1
}
