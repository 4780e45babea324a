package model

// NewCube builds an indexed axis-aligned cube centred on the origin with the given edge length.
// Each face has its own four vertices so normals stay flat.
//
// Parameters:
//   - name: the model name
//   - size: the edge length
//   - options: further options applied after the geometry
//
// Returns:
//   - Model: the cube model
func NewCube(name string, size float32, options ...ModelBuilderOption) Model {
	h := size / 2
	faces := []struct {
		normal  [3]float32
		corners [4][3]float32
	}{
		{[3]float32{0, 0, 1}, [4][3]float32{{-h, -h, h}, {h, -h, h}, {h, h, h}, {-h, h, h}}},
		{[3]float32{0, 0, -1}, [4][3]float32{{h, -h, -h}, {-h, -h, -h}, {-h, h, -h}, {h, h, -h}}},
		{[3]float32{1, 0, 0}, [4][3]float32{{h, -h, h}, {h, -h, -h}, {h, h, -h}, {h, h, h}}},
		{[3]float32{-1, 0, 0}, [4][3]float32{{-h, -h, -h}, {-h, -h, h}, {-h, h, h}, {-h, h, -h}}},
		{[3]float32{0, 1, 0}, [4][3]float32{{-h, h, h}, {h, h, h}, {h, h, -h}, {-h, h, -h}}},
		{[3]float32{0, -1, 0}, [4][3]float32{{-h, -h, -h}, {h, -h, -h}, {h, -h, h}, {-h, -h, h}}},
	}
	uvs := [4][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

	vertices := make([]GPUVertex, 0, 24)
	indices := make([]uint32, 0, 36)
	for _, f := range faces {
		base := uint32(len(vertices))
		for i, c := range f.corners {
			vertices = append(vertices, GPUVertex{
				Position: c,
				Normal:   f.normal,
				TexCoord: uvs[i],
				Color:    [4]float32{1, 1, 1, 1},
			})
		}
		indices = append(indices, base, base+1, base+2, base, base+2, base+3)
	}

	opts := append([]ModelBuilderOption{WithName(name), WithVertices(vertices), WithIndices(indices)}, options...)
	return NewModel(opts...)
}
