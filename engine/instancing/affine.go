package instancing

import "github.com/go-gl/mathgl/mgl32"

// Affine3x4 is an affine transform stored as the top three rows of a 4x4 matrix.
// The fourth row is always [0, 0, 0, 1] and is never stored.
type Affine3x4 [3]mgl32.Vec4

// AffineFromMat4 keeps rows 0..2 of m. Any projective terms in row 3 are discarded.
//
// Parameters:
//   - m: the source matrix
//
// Returns:
//   - Affine3x4: the affine part of m
func AffineFromMat4(m mgl32.Mat4) Affine3x4 {
	return Affine3x4{m.Row(0), m.Row(1), m.Row(2)}
}

// IdentityAffine returns the identity transform.
func IdentityAffine() Affine3x4 {
	return AffineFromMat4(mgl32.Ident4())
}

// Mat4 expands the transform back to a full matrix with row 3 set to [0, 0, 0, 1].
func (a Affine3x4) Mat4() mgl32.Mat4 {
	return mgl32.Mat4FromRows(a[0], a[1], a[2], mgl32.Vec4{0, 0, 0, 1})
}
