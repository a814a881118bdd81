package mesh

import (
	"github.com/chewxy/math32"

	m "github.com/Faultbox/texsynth/pkg/math"
)

// UVSphere builds a latitude/longitude sphere of the given radius.
// u runs with longitude and v from the south pole (0) to the north pole (1).
// The seam column is duplicated in UV space so every face has a
// continuous UV triangle.
func UVSphere(radius float32, rings, segments int) *Mesh {
	ms := &Mesh{}

	// Positions: poles are shared, the seam is not duplicated.
	ms.Verts = append(ms.Verts, m.Vec3{Y: -radius})
	for r := 1; r < rings; r++ {
		phi := math32.Pi * float32(r) / float32(rings)
		y := -radius * math32.Cos(phi)
		rr := radius * math32.Sin(phi)
		for s := 0; s < segments; s++ {
			theta := 2 * math32.Pi * float32(s) / float32(segments)
			ms.Verts = append(ms.Verts, m.Vec3{
				X: rr * math32.Sin(theta),
				Y: y,
				Z: rr * math32.Cos(theta),
			})
		}
	}
	ms.Verts = append(ms.Verts, m.Vec3{Y: radius})
	north := len(ms.Verts) - 1

	vert := func(r, s int) int {
		switch r {
		case 0:
			return 0
		case rings:
			return north
		}
		return 1 + (r-1)*segments + s%segments
	}

	// UVs: a full (rings+1) x (segments+1) lattice.
	for r := 0; r <= rings; r++ {
		for s := 0; s <= segments; s++ {
			ms.UVs = append(ms.UVs, m.Vec2{
				X: float32(s) / float32(segments),
				Y: float32(r) / float32(rings),
			})
		}
	}
	uv := func(r, s int) int {
		return r*(segments+1) + s
	}

	for r := 0; r < rings; r++ {
		for s := 0; s < segments; s++ {
			// Counter-clockwise seen from outside.
			if r > 0 {
				ms.Faces = append(ms.Faces, [3]int{vert(r, s), vert(r, s+1), vert(r+1, s+1)})
				ms.FaceUVs = append(ms.FaceUVs, [3]int{uv(r, s), uv(r, s+1), uv(r+1, s+1)})
			}
			if r < rings-1 {
				ms.Faces = append(ms.Faces, [3]int{vert(r, s), vert(r+1, s+1), vert(r+1, s)})
				ms.FaceUVs = append(ms.FaceUVs, [3]int{uv(r, s), uv(r+1, s+1), uv(r+1, s)})
			}
		}
	}
	return ms
}
