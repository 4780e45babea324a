package model

import (
	"github.com/Carmen-Shannon/oxy-instancing/common"
	"github.com/go-gl/mathgl/mgl32"
)

func (m *model) Raycast(world mgl32.Mat4, ray common.Ray) []common.Intersection {
	// Cheap reject against the world-space bounding sphere before touching triangles.
	center := common.Translation(world)
	if _, ok := ray.IntersectSphere(center, m.boundingRadius*maxAxisScale(world)); !ok {
		return nil
	}

	if world.Det() == 0 {
		return nil
	}
	local := ray.Transform(world.Inv())

	var hits []common.Intersection
	verts := m.mesh.vertices
	visit := func(face int, a, b, c uint32) {
		if int(a) >= len(verts) || int(b) >= len(verts) || int(c) >= len(verts) {
			return
		}
		t, ok := local.IntersectTriangle(verts[a].Position, verts[b].Position, verts[c].Position, !m.doubleSided)
		if !ok {
			return
		}
		point := ray.At(t)
		hits = append(hits, common.Intersection{
			Distance:  point.Sub(ray.Origin).Len(),
			Point:     point,
			FaceIndex: face,
			Slot:      -1,
			Object:    m,
		})
	}

	if idx := m.mesh.indices; len(idx) > 0 {
		for i := 0; i+2 < len(idx); i += 3 {
			visit(i/3, idx[i], idx[i+1], idx[i+2])
		}
	} else {
		for i := 0; i+2 < len(verts); i += 3 {
			visit(i/3, uint32(i), uint32(i+1), uint32(i+2))
		}
	}
	return hits
}

// maxAxisScale returns the largest scale factor among the basis columns of world.
func maxAxisScale(world mgl32.Mat4) float32 {
	return max(
		world.Col(0).Vec3().Len(),
		world.Col(1).Vec3().Len(),
		world.Col(2).Vec3().Len(),
	)
}
