// Package mesh holds the triangle mesh model consumed by the texturing
// pipeline: positions, triangle indices and a UV set shared through a
// separate per-face UV index table.
package mesh

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	m "github.com/Faultbox/texsynth/pkg/math"
)

// Mesh is a triangulated surface. Faces index Verts; FaceUVs index UVs.
// The core never mutates a Mesh it did not create.
type Mesh struct {
	Verts   []m.Vec3
	Faces   [][3]int
	UVs     []m.Vec2
	FaceUVs [][3]int
}

// Bounds holds the axis-aligned bounding box of the mesh.
type Bounds struct {
	Min m.Vec3
	Max m.Vec3
}

// Center returns the box center.
func (b Bounds) Center() m.Vec3 {
	return b.Min.Add(b.Max).Scale(0.5)
}

// Extent returns the largest side length.
func (b Bounds) Extent() float32 {
	d := b.Max.Sub(b.Min)
	e := d.X
	if d.Y > e {
		e = d.Y
	}
	if d.Z > e {
		e = d.Z
	}
	return e
}

// Bounds computes the bounding box of all vertices.
func (ms *Mesh) Bounds() Bounds {
	b := Bounds{
		Min: m.Vec3{X: 1e10, Y: 1e10, Z: 1e10},
		Max: m.Vec3{X: -1e10, Y: -1e10, Z: -1e10},
	}
	for _, v := range ms.Verts {
		b.Min = b.Min.Min(v)
		b.Max = b.Max.Max(v)
	}
	return b
}

// Normalized returns a copy centered on the origin and scaled so that its
// largest bounding-box side has length 1.
func (ms *Mesh) Normalized() *Mesh {
	b := ms.Bounds()
	center := b.Center()
	scale := b.Extent()
	if scale == 0 {
		scale = 1
	}

	out := ms.shallowCopy()
	out.Verts = make([]m.Vec3, len(ms.Verts))
	for i, v := range ms.Verts {
		out.Verts[i] = v.Sub(center).Scale(1 / scale)
	}
	return out
}

// VertexNormals returns area-weighted vertex normals: each face adds its
// unnormalised cross product to its three corners.
func (ms *Mesh) VertexNormals() []m.Vec3 {
	normals := make([]m.Vec3, len(ms.Verts))
	for _, f := range ms.Faces {
		v0, v1, v2 := ms.Verts[f[0]], ms.Verts[f[1]], ms.Verts[f[2]]
		n := v1.Sub(v0).Cross(v2.Sub(v0))
		for _, idx := range f {
			normals[idx] = normals[idx].Add(n)
		}
	}
	for i := range normals {
		normals[i] = normals[i].Normalize()
	}
	return normals
}

// SubMesh returns a mesh restricted to the given faces. Vertex and UV
// arrays are shared with the receiver; only the face tables are new.
func (ms *Mesh) SubMesh(faceIDs []int) *Mesh {
	out := ms.shallowCopy()
	out.Faces = make([][3]int, len(faceIDs))
	out.FaceUVs = make([][3]int, len(faceIDs))
	for i, id := range faceIDs {
		out.Faces[i] = ms.Faces[id]
		out.FaceUVs[i] = ms.FaceUVs[id]
	}
	return out
}

// Digest returns a stable content hash of the geometry and UV layout.
func (ms *Mesh) Digest() string {
	h := sha256.New()
	buf := make([]byte, 4)
	putF := func(f float32) {
		binary.LittleEndian.PutUint32(buf, math.Float32bits(f))
		h.Write(buf)
	}
	putI := func(i int) {
		binary.LittleEndian.PutUint32(buf, uint32(i))
		h.Write(buf)
	}

	putI(len(ms.Verts))
	for _, v := range ms.Verts {
		putF(v.X)
		putF(v.Y)
		putF(v.Z)
	}
	putI(len(ms.Faces))
	for _, f := range ms.Faces {
		putI(f[0])
		putI(f[1])
		putI(f[2])
	}
	putI(len(ms.UVs))
	for _, uv := range ms.UVs {
		putF(uv.X)
		putF(uv.Y)
	}
	putI(len(ms.FaceUVs))
	for _, f := range ms.FaceUVs {
		putI(f[0])
		putI(f[1])
		putI(f[2])
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (ms *Mesh) shallowCopy() *Mesh {
	return &Mesh{
		Verts:   ms.Verts,
		Faces:   ms.Faces,
		UVs:     ms.UVs,
		FaceUVs: ms.FaceUVs,
	}
}
