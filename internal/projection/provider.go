package projection

import (
	"fmt"
	"sort"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/engine/raster"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// MeshProvider resolves the mesh variant seen from a view at a given hit
// (depth layer). Single-layer sessions use SingleMesh.
type MeshProvider interface {
	Hits() int
	Resolve(view, hit int) (*mesh.Mesh, [][3]int, error)
}

// SingleMesh serves the same mesh for every view with one hit.
type SingleMesh struct {
	Mesh *mesh.Mesh
}

// Hits implements MeshProvider.
func (s SingleMesh) Hits() int { return 1 }

// Resolve implements MeshProvider.
func (s SingleMesh) Resolve(view, hit int) (*mesh.Mesh, [][3]int, error) {
	if hit != 0 {
		return nil, nil, fmt.Errorf("hit %d out of range for single mesh", hit)
	}
	return s.Mesh, s.Mesh.FaceUVs, nil
}

// XRay peels a mesh into depth layers per view: variant (view, hit) keeps
// the faces that are the hit-th surface along some pixel ray from that
// view. Layered objects get their inner surfaces textured this way.
type XRay struct {
	hits     int
	variants []*mesh.Mesh // view*hits + hit
}

// NewXRay builds the layered variants by rasterizing every viewpoint with
// hits faces per pixel at imageSize.
func NewXRay(ms *mesh.Mesh, viewpoints []camera.Viewpoint, hits, imageSize int) (*XRay, error) {
	if hits < 1 {
		return nil, fmt.Errorf("xray needs at least one hit, got %d", hits)
	}
	x := &XRay{
		hits:     hits,
		variants: make([]*mesh.Mesh, len(viewpoints)*hits),
	}
	for v, vp := range viewpoints {
		frags := raster.Rasterize(ms, camera.FromViewpoint(vp, imageSize), hits)
		layers := make([]map[int]struct{}, hits)
		for h := range layers {
			layers[h] = make(map[int]struct{})
		}
		for i, face := range frags.PixToFace {
			if face == raster.NoFace {
				continue
			}
			layers[i%hits][int(face)] = struct{}{}
		}
		for h, set := range layers {
			ids := make([]int, 0, len(set))
			for id := range set {
				ids = append(ids, id)
			}
			sort.Ints(ids)
			x.variants[v*hits+h] = ms.SubMesh(ids)
		}
	}
	return x, nil
}

// Hits implements MeshProvider.
func (x *XRay) Hits() int { return x.hits }

// Resolve implements MeshProvider.
func (x *XRay) Resolve(view, hit int) (*mesh.Mesh, [][3]int, error) {
	if hit < 0 || hit >= x.hits {
		return nil, nil, fmt.Errorf("hit %d out of range [0,%d)", hit, x.hits)
	}
	i := view*x.hits + hit
	if view < 0 || i >= len(x.variants) {
		return nil, nil, fmt.Errorf("view %d out of range", view)
	}
	ms := x.variants[i]
	return ms, ms.FaceUVs, nil
}
