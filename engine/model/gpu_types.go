package model

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// GPUVertex is the GPU-aligned representation of a single mesh vertex.
// Size: 64 bytes (std430 aligned, no padding required).
type GPUVertex struct {
	Position [3]float32 // offset  0: vertex position in model space (12 bytes)
	Normal   [3]float32 // offset 12: vertex normal for lighting (12 bytes)
	TexCoord [2]float32 // offset 24: UV texture coordinate (8 bytes)
	Color    [4]float32 // offset 32: per-vertex RGBA color (16 bytes)
	Tangent  [4]float32 // offset 48: tangent vector (xyz) + handedness (w) for normal mapping (16 bytes)
}

// Size returns the size of the GPUVertex struct in bytes.
//
// Returns:
//   - int: the size of the struct in bytes.
func (g *GPUVertex) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPUVertex struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 64-byte buffer ready for GPU upload.
func (g *GPUVertex) Marshal() []byte {
	buf := make([]byte, 64)
	g.marshalInto(buf)
	return buf
}

func (g *GPUVertex) marshalInto(buf []byte) {
	fields := [16]float32{
		g.Position[0], g.Position[1], g.Position[2],
		g.Normal[0], g.Normal[1], g.Normal[2],
		g.TexCoord[0], g.TexCoord[1],
		g.Color[0], g.Color[1], g.Color[2], g.Color[3],
		g.Tangent[0], g.Tangent[1], g.Tangent[2], g.Tangent[3],
	}
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], math.Float32bits(f))
	}
}

// MarshalVertices serializes a vertex slice into one contiguous little-endian buffer.
//
// Parameters:
//   - vertices: the vertices to serialize
//
// Returns:
//   - []byte: len(vertices) * 64 bytes
func MarshalVertices(vertices []GPUVertex) []byte {
	buf := make([]byte, len(vertices)*64)
	for i := range vertices {
		vertices[i].marshalInto(buf[i*64 : (i+1)*64])
	}
	return buf
}

// MarshalIndices serializes a uint32 index slice into a little-endian buffer.
//
// Parameters:
//   - indices: the triangle indices
//
// Returns:
//   - []byte: len(indices) * 4 bytes
func MarshalIndices(indices []uint32) []byte {
	buf := make([]byte, len(indices)*4)
	for i, idx := range indices {
		binary.LittleEndian.PutUint32(buf[i*4:(i+1)*4], idx)
	}
	return buf
}

// ComputeBoundingRadius calculates the bounding sphere radius from a slice of
// GPUVertex positions. The radius is the maximum distance from the origin
// across all vertices in the slice.
//
// Parameters:
//   - vertices: the vertex data to compute the bounding radius from
//
// Returns:
//   - float32: the maximum distance from the origin
func ComputeBoundingRadius(vertices []GPUVertex) float32 {
	var maxDistSq float32
	for _, v := range vertices {
		p := mgl32.Vec3(v.Position)
		distSq := p.Dot(p)
		if distSq > maxDistSq {
			maxDistSq = distSq
		}
	}
	return float32(math.Sqrt(float64(maxDistSq)))
}
