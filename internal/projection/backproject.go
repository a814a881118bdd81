package projection

import (
	"errors"
	"fmt"
	"image"

	"github.com/chewxy/math32"

	"github.com/Faultbox/texsynth/internal/engine/raster"
	"github.com/Faultbox/texsynth/internal/engine/renderer"
	"github.com/Faultbox/texsynth/internal/engine/texture"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/math"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// ErrUVRange is returned when an interpolated UV leaves [0,1].
var ErrUVRange = errors.New("uv outside [0,1]")

// uvSlack absorbs interpolation rounding at the atlas border, in texels.
const uvSlack = 1e-3

// Corner is one of the four texels surrounding a splat position.
type Corner struct {
	Row, Col int
}

// SplatCorners returns the 2x2 texel neighbourhood of uv on an atlas of
// size texels, ordered (r0,c0), (r0,c1), (r1,c0), (r1,c1) with
// row = (1-v)(size-1) and col = u(size-1).
func SplatCorners(uv math.Vec2, size int) ([4]Corner, error) {
	last := float32(size - 1)
	row := (1 - uv.Y) * last
	col := uv.X * last
	if row < -uvSlack || row > last+uvSlack || col < -uvSlack || col > last+uvSlack {
		return [4]Corner{}, fmt.Errorf("%w: (%g, %g)", ErrUVRange, uv.X, uv.Y)
	}
	row = math32.Min(math32.Max(row, 0), last)
	col = math32.Min(math32.Max(col, 0), last)

	r0, r1 := int(math32.Floor(row)), int(math32.Ceil(row))
	c0, c1 := int(math32.Floor(col)), int(math32.Ceil(col))
	return [4]Corner{{r0, c0}, {r0, c1}, {r1, c0}, {r1, c1}}, nil
}

// sample is one selected fragment: the source pixel and its splat corners.
type sample struct {
	x, y    int
	corners [4]Corner
}

// collectSamples walks fragments layer by layer, pixels row-major, keeping
// covered pixels accepted by keep (nil keeps all).
func collectSamples(frags *raster.Fragments, uvs []math.Vec2, faceUVs [][3]int, atlasSize int, keep func(pixel int) bool) ([]sample, error) {
	var out []sample
	for k := 0; k < frags.K; k++ {
		for y := 0; y < frags.Size; y++ {
			for x := 0; x < frags.Size; x++ {
				if keep != nil && !keep(y*frags.Size+x) {
					continue
				}
				uv, ok := frags.UV(frags.Index(x, y, k), uvs, faceUVs)
				if !ok {
					continue
				}
				corners, err := SplatCorners(uv, atlasSize)
				if err != nil {
					return nil, err
				}
				out = append(out, sample{x: x, y: y, corners: corners})
			}
		}
	}
	return out, nil
}

// splat calls write for every sample corner. Corners are applied in
// passes (all first corners, then all second corners, ...), so that on
// collisions the later pass wins.
func splat(samples []sample, write func(s sample, c Corner)) {
	for corner := 0; corner < 4; corner++ {
		for _, s := range samples {
			write(s, s.corners[corner])
		}
	}
}

// Projection is the result of one backprojection.
type Projection struct {
	Atlas     *image.RGBA
	WriteMask *grid.Grid // OR(update, new) at the projection resolution
	Exist     *grid.Grid // the caller's exist-texture, updated
	Texels    int        // texel writes, counting overwrites
}

// Backproject writes the reference image into a copy of the atlas at the
// texels seen through the OR of the update and new masks, rendered from
// r's camera at r's resolution. exist is set to 1 at every written texel
// in place.
func Backproject(r *renderer.Renderer, ms *mesh.Mesh, faceUVs [][3]int, reference image.Image,
	newMask, update *grid.Grid, atlas *image.RGBA, exist *grid.Grid) (*Projection, error) {
	if !newMask.SameSize(update) {
		return nil, fmt.Errorf("%w: new %dx%d, update %dx%d", ErrMaskSize, newMask.W, newMask.H, update.W, update.H)
	}
	size := atlas.Bounds().Dx()
	if exist.W != size || exist.H != atlas.Bounds().Dy() {
		return nil, fmt.Errorf("%w: exist %dx%d, atlas %v", ErrMaskSize, exist.W, exist.H, atlas.Bounds())
	}
	if faceUVs == nil {
		faceUVs = ms.FaceUVs
	}

	n := r.ImageSize()
	write := grid.New(newMask.W, newMask.H)
	for i := range write.Pix {
		if isSet(newMask.Pix[i]) || isSet(update.Pix[i]) {
			write.Pix[i] = 1
		}
	}
	write = texture.ResizeNearest(write, n)
	ref := texture.ResizeImage(reference, n)

	frags := r.Rasterize(ms)
	samples, err := collectSamples(frags, ms.UVs, faceUVs, size, func(pixel int) bool {
		return write.Pix[pixel] == 1
	})
	if err != nil {
		return nil, fmt.Errorf("backprojecting: %w", err)
	}

	out := image.NewRGBA(atlas.Bounds())
	copy(out.Pix, atlas.Pix)
	b := out.Bounds()
	splat(samples, func(s sample, c Corner) {
		src := ref.PixOffset(s.x, s.y)
		o := out.PixOffset(b.Min.X+c.Col, b.Min.Y+c.Row)
		copy(out.Pix[o:o+3], ref.Pix[src:src+3])
		out.Pix[o+3] = 255
		exist.Set(c.Col, c.Row, 1)
	})

	return &Projection{
		Atlas:     out,
		WriteMask: write,
		Exist:     exist,
		Texels:    len(samples) * 4,
	}, nil
}
