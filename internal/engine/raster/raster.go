// Package raster provides a deterministic software triangle rasterizer.
// It produces per-pixel fragment buffers (face index, barycentric weights,
// depth) for up to K nearest faces, which the renderer and the UV
// backprojector interpolate attributes from.
package raster

import (
	"github.com/chewxy/math32"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/pkg/math"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// NoFace marks an empty fragment slot.
const NoFace = -1

// depthEpsilon merges fragments of faces meeting at a shared edge.
const depthEpsilon = 1e-6

// Fragments holds K depth-sorted fragment layers for a Size x Size image.
// Slot i = (y*Size + x)*K + k, nearest first.
type Fragments struct {
	Size      int
	K         int
	PixToFace []int32
	Bary      [][3]float32 // perspective-correct barycentric weights
	Zbuf      []float32    // view-space depth, -1 where empty
}

func newFragments(size, k int) *Fragments {
	n := size * size * k
	f := &Fragments{
		Size:      size,
		K:         k,
		PixToFace: make([]int32, n),
		Bary:      make([][3]float32, n),
		Zbuf:      make([]float32, n),
	}
	for i := range f.PixToFace {
		f.PixToFace[i] = NoFace
		f.Zbuf[i] = -1
	}
	return f
}

// Index returns the slot of layer k at column x, row y.
func (f *Fragments) Index(x, y, k int) int {
	return (y*f.Size+x)*f.K + k
}

// Face returns the face index of a slot, or NoFace.
func (f *Fragments) Face(i int) int {
	return int(f.PixToFace[i])
}

// Covered reports whether the nearest layer at (x, y) holds a face.
func (f *Fragments) Covered(x, y int) bool {
	return f.PixToFace[f.Index(x, y, 0)] != NoFace
}

// UV interpolates the texture coordinate of slot i. faceUVs maps each face
// to three indices into uvs. ok is false for empty slots.
func (f *Fragments) UV(i int, uvs []math.Vec2, faceUVs [][3]int) (uv math.Vec2, ok bool) {
	face := f.PixToFace[i]
	if face == NoFace {
		return math.Vec2{}, false
	}
	t := faceUVs[face]
	return math.Blend3(uvs[t[0]], uvs[t[1]], uvs[t[2]], f.Bary[i]), true
}

// Scalar interpolates a per-vertex scalar attribute of slot i.
func (f *Fragments) Scalar(i int, faces [][3]int, attr []float32) (float32, bool) {
	face := f.PixToFace[i]
	if face == NoFace {
		return 0, false
	}
	v := faces[face]
	w := f.Bary[i]
	return attr[v[0]]*w[0] + attr[v[1]]*w[1] + attr[v[2]]*w[2], true
}

// Vector interpolates a per-vertex vector attribute of slot i.
func (f *Fragments) Vector(i int, faces [][3]int, attr []math.Vec3) (math.Vec3, bool) {
	face := f.PixToFace[i]
	if face == NoFace {
		return math.Vec3{}, false
	}
	v := faces[face]
	w := f.Bary[i]
	return attr[v[0]].Scale(w[0]).Add(attr[v[1]].Scale(w[1])).Add(attr[v[2]].Scale(w[2])), true
}

// screenVertex is a vertex after projection to pixel coordinates.
type screenVertex struct {
	X, Y float32 // pixel coordinates, row 0 at the top
	W    float32 // clip-space w (view depth)
}

// Rasterize renders the mesh from the camera at cam.ImageSize, keeping the
// k nearest faces per pixel. Faces are not culled: closed meshes resolve
// visibility through the depth test.
func Rasterize(ms *mesh.Mesh, cam *camera.Camera, k int) *Fragments {
	if k < 1 {
		k = 1
	}
	size := cam.ImageSize
	frags := newFragments(size, k)
	viewProj := cam.ViewProjection()

	// Project all vertices once
	sv := make([]screenVertex, len(ms.Verts))
	for i, v := range ms.Verts {
		clip := viewProj.Project(v)
		s := screenVertex{W: clip[3]}
		if clip[3] > 0 {
			ndcX := clip[0] / clip[3]
			ndcY := clip[1] / clip[3]
			s.X = (ndcX + 1) * 0.5 * float32(size)
			s.Y = (1 - ndcY) * 0.5 * float32(size) // Y flipped
		}
		sv[i] = s
	}

	for fi, face := range ms.Faces {
		a, b, c := sv[face[0]], sv[face[1]], sv[face[2]]

		// Skip faces reaching behind the near plane
		if a.W <= cam.ZNear || b.W <= cam.ZNear || c.W <= cam.ZNear {
			continue
		}

		area := edge(a.X, a.Y, b.X, b.Y, c.X, c.Y)
		if math32.Abs(area) < 1e-12 {
			continue // degenerate in screen space
		}

		// Bounding box clipped to the image
		minX := clampInt(int(math32.Floor(min3(a.X, b.X, c.X))), 0, size-1)
		maxX := clampInt(int(math32.Ceil(max3(a.X, b.X, c.X))), 0, size-1)
		minY := clampInt(int(math32.Floor(min3(a.Y, b.Y, c.Y))), 0, size-1)
		maxY := clampInt(int(math32.Ceil(max3(a.Y, b.Y, c.Y))), 0, size-1)

		for y := minY; y <= maxY; y++ {
			for x := minX; x <= maxX; x++ {
				px, py := float32(x)+0.5, float32(y)+0.5

				// Screen-space barycentrics from edge functions
				l0 := edge(b.X, b.Y, c.X, c.Y, px, py) / area
				l1 := edge(c.X, c.Y, a.X, a.Y, px, py) / area
				l2 := edge(a.X, a.Y, b.X, b.Y, px, py) / area
				if l0 < 0 || l1 < 0 || l2 < 0 {
					continue
				}

				// Perspective-correct weights and depth
				p0, p1, p2 := l0/a.W, l1/b.W, l2/c.W
				inv := p0 + p1 + p2
				z := 1 / inv
				bary := [3]float32{p0 * z, p1 * z, p2 * z}

				frags.insert(x, y, int32(fi), z, bary)
			}
		}
	}
	return frags
}

// insert places a fragment into the depth-sorted layer list at (x, y).
func (f *Fragments) insert(x, y int, face int32, z float32, bary [3]float32) {
	base := f.Index(x, y, 0)
	pos := f.K
	for k := 0; k < f.K; k++ {
		i := base + k
		if f.PixToFace[i] == NoFace {
			pos = k
			break
		}
		if math32.Abs(f.Zbuf[i]-z) <= depthEpsilon*z {
			return // same surface point seen through a shared edge
		}
		if z < f.Zbuf[i] {
			pos = k
			break
		}
	}
	if pos == f.K {
		return
	}

	// Shift farther layers back by one
	for k := f.K - 1; k > pos; k-- {
		f.PixToFace[base+k] = f.PixToFace[base+k-1]
		f.Zbuf[base+k] = f.Zbuf[base+k-1]
		f.Bary[base+k] = f.Bary[base+k-1]
	}
	f.PixToFace[base+pos] = face
	f.Zbuf[base+pos] = z
	f.Bary[base+pos] = bary
}

// edge is twice the signed area of (a, b, p).
func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

func min3(a, b, c float32) float32 {
	return math32.Min(a, math32.Min(b, c))
}

func max3(a, b, c float32) float32 {
	return math32.Max(a, math32.Max(b, c))
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
