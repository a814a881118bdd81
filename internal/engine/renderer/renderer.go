// Package renderer shades rasterized meshes into the buffers the texturing
// pipeline consumes: a textured color image, a normal map, a normalised
// depth map and a per-pixel view-alignment (similarity) map.
package renderer

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/chewxy/math32"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/engine/raster"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/math"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// Shader selects how texture samples become pixel values.
type Shader int

const (
	// SoftPhong samples the texture bilinearly under unit ambient light
	// over a white background.
	SoftPhong Shader = iota
	// FlatTexel samples the texture with nearest filtering over a black
	// background. Used for mask rendering.
	FlatTexel
)

func (s Shader) String() string {
	switch s {
	case SoftPhong:
		return "soft-phong"
	case FlatTexel:
		return "flat-texel"
	default:
		return fmt.Sprintf("Shader(%d)", int(s))
	}
}

// ErrFaceUVs is returned when the face/UV tables do not line up.
var ErrFaceUVs = errors.New("face uv table does not match faces")

// Renderer renders meshes from one camera. It holds no per-call state and
// may be used from several goroutines.
type Renderer struct {
	cam           *camera.Camera
	shader        Shader
	imageSize     int
	facesPerPixel int
}

// New creates a renderer for the camera at the given output size.
func New(cam *camera.Camera, shader Shader, imageSize, facesPerPixel int) *Renderer {
	if facesPerPixel < 1 {
		facesPerPixel = 1
	}
	return &Renderer{
		cam:           cam.WithImageSize(imageSize),
		shader:        shader,
		imageSize:     imageSize,
		facesPerPixel: facesPerPixel,
	}
}

// Camera returns the renderer's camera.
func (r *Renderer) Camera() *camera.Camera {
	return r.cam
}

// ImageSize returns the output resolution.
func (r *Renderer) ImageSize() int {
	return r.imageSize
}

// Result holds the buffers of one render.
type Result struct {
	Color      *image.RGBA // nil when rendered without a texture
	Normal     *image.RGBA
	Depth      *grid.Grid // 1 nearest .. 0 farthest foreground, 0 background
	Similarity *grid.Grid // |cos| between surface normal and view direction
	Fragments  *raster.Fragments
}

// Rasterize returns the fragments of the mesh for this renderer's camera.
func (r *Renderer) Rasterize(ms *mesh.Mesh) *raster.Fragments {
	return raster.Rasterize(ms, r.cam, r.facesPerPixel)
}

// Render rasterizes and shades the mesh. faceUVs overrides ms.FaceUVs when
// non-nil. texture may be nil, in which case Color is nil.
func (r *Renderer) Render(ms *mesh.Mesh, faceUVs [][3]int, texture *image.RGBA) (*Result, error) {
	faceUVs, err := resolveFaceUVs(ms, faceUVs)
	if err != nil {
		return nil, err
	}

	frags := r.Rasterize(ms)
	res := &Result{
		Fragments:  frags,
		Similarity: Similarity(ms, frags, r.cam.Position()),
		Depth:      Depth(frags),
		Normal:     r.normalMap(ms, frags),
	}
	if texture != nil {
		if r.shader == FlatTexel {
			res.Color = shadeNearestRGBA(frags, ms.UVs, faceUVs, texture)
		} else {
			res.Color = shadeBilinear(frags, ms.UVs, faceUVs, texture)
		}
	}
	return res, nil
}

// RenderMasks renders single-channel override textures onto the mesh with
// the flat texel shader. The mesh is rasterized once and each texture is
// sampled with nearest filtering; the caller's mesh is never modified.
// The similarity map of the same rasterization is returned alongside.
func (r *Renderer) RenderMasks(ms *mesh.Mesh, faceUVs [][3]int, textures ...*grid.Grid) ([]*grid.Grid, *grid.Grid, error) {
	faceUVs, err := resolveFaceUVs(ms, faceUVs)
	if err != nil {
		return nil, nil, err
	}

	frags := r.Rasterize(ms)
	out := make([]*grid.Grid, len(textures))
	for i, tex := range textures {
		out[i] = shadeNearest(frags, ms.UVs, faceUVs, tex)
	}
	return out, Similarity(ms, frags, r.cam.Position()), nil
}

func resolveFaceUVs(ms *mesh.Mesh, faceUVs [][3]int) ([][3]int, error) {
	if faceUVs == nil {
		faceUVs = ms.FaceUVs
	}
	if len(faceUVs) != len(ms.Faces) {
		return nil, fmt.Errorf("%w: %d faces, %d uv faces", ErrFaceUVs, len(ms.Faces), len(faceUVs))
	}
	return faceUVs, nil
}

// Similarity computes the absolute cosine between the interpolated normal
// and the direction from the interpolated surface point to the camera, per
// pixel of the nearest layer.
func Similarity(ms *mesh.Mesh, frags *raster.Fragments, eye math.Vec3) *grid.Grid {
	normals := ms.VertexNormals()
	out := grid.New(frags.Size, frags.Size)
	for y := 0; y < frags.Size; y++ {
		for x := 0; x < frags.Size; x++ {
			i := frags.Index(x, y, 0)
			n, ok := frags.Vector(i, ms.Faces, normals)
			if !ok {
				continue
			}
			p, _ := frags.Vector(i, ms.Faces, ms.Verts)
			out.Set(x, y, math32.Abs(math.CosineSimilarity(n, eye.Sub(p))))
		}
	}
	return out
}

// flatDepth is the relative depth span below which the foreground is
// treated as a single plane.
const flatDepth = 1e-5

// Depth normalises the nearest-layer depth over the foreground so that the
// closest point is 1 and the farthest is 0. Background stays 0.
func Depth(frags *raster.Fragments) *grid.Grid {
	out := grid.New(frags.Size, frags.Size)
	lo, hi := float32(math32.MaxFloat32), float32(-1)
	for y := 0; y < frags.Size; y++ {
		for x := 0; x < frags.Size; x++ {
			z := frags.Zbuf[frags.Index(x, y, 0)]
			if z < 0 {
				continue
			}
			lo = math32.Min(lo, z)
			hi = math32.Max(hi, z)
		}
	}
	if hi < 0 {
		return out
	}
	span := hi - lo
	if span <= flatDepth*hi {
		span = 0
	}
	for y := 0; y < frags.Size; y++ {
		for x := 0; x < frags.Size; x++ {
			z := frags.Zbuf[frags.Index(x, y, 0)]
			if z < 0 {
				continue
			}
			d := float32(1)
			if span > 0 {
				d = 1 - (z-lo)/span
			}
			out.Set(x, y, d)
		}
	}
	return out
}

func (r *Renderer) normalMap(ms *mesh.Mesh, frags *raster.Fragments) *image.RGBA {
	normals := ms.VertexNormals()
	img := image.NewRGBA(image.Rect(0, 0, frags.Size, frags.Size))
	for y := 0; y < frags.Size; y++ {
		for x := 0; x < frags.Size; x++ {
			n, ok := frags.Vector(frags.Index(x, y, 0), ms.Faces, normals)
			if !ok {
				img.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			n = n.Normalize()
			img.SetRGBA(x, y, color.RGBA{
				R: unit8((n.X + 1) / 2),
				G: unit8((n.Y + 1) / 2),
				B: unit8((n.Z + 1) / 2),
				A: 255,
			})
		}
	}
	return img
}

func unit8(v float32) uint8 {
	v *= 255
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}
