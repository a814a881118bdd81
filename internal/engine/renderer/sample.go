package renderer

import (
	"image"
	"image/color"

	"github.com/chewxy/math32"

	"github.com/Faultbox/texsynth/internal/engine/raster"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/math"
)

// Texture lookups treat v=0 as the bottom image row and sample texel
// centers at (i+0.5)/size.

// NearestTexel returns the column and row sampled at uv on a w x h texture.
func NearestTexel(uv math.Vec2, w, h int) (int, int) {
	col := int(math32.Floor(uv.X * float32(w)))
	row := int(math32.Floor((1 - uv.Y) * float32(h)))
	return clamp(col, 0, w-1), clamp(row, 0, h-1)
}

func shadeNearest(frags *raster.Fragments, uvs []math.Vec2, faceUVs [][3]int, tex *grid.Grid) *grid.Grid {
	out := grid.New(frags.Size, frags.Size)
	for y := 0; y < frags.Size; y++ {
		for x := 0; x < frags.Size; x++ {
			uv, ok := frags.UV(frags.Index(x, y, 0), uvs, faceUVs)
			if !ok {
				continue
			}
			col, row := NearestTexel(uv, tex.W, tex.H)
			out.Set(x, y, tex.At(col, row))
		}
	}
	return out
}

func shadeNearestRGBA(frags *raster.Fragments, uvs []math.Vec2, faceUVs [][3]int, tex *image.RGBA) *image.RGBA {
	b := tex.Bounds()
	img := image.NewRGBA(image.Rect(0, 0, frags.Size, frags.Size))
	for y := 0; y < frags.Size; y++ {
		for x := 0; x < frags.Size; x++ {
			uv, ok := frags.UV(frags.Index(x, y, 0), uvs, faceUVs)
			if !ok {
				img.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			col, row := NearestTexel(uv, b.Dx(), b.Dy())
			img.SetRGBA(x, y, tex.RGBAAt(b.Min.X+col, b.Min.Y+row))
		}
	}
	return img
}

func shadeBilinear(frags *raster.Fragments, uvs []math.Vec2, faceUVs [][3]int, tex *image.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, frags.Size, frags.Size))
	white := color.RGBA{R: 255, G: 255, B: 255, A: 255}
	for y := 0; y < frags.Size; y++ {
		for x := 0; x < frags.Size; x++ {
			uv, ok := frags.UV(frags.Index(x, y, 0), uvs, faceUVs)
			if !ok {
				img.SetRGBA(x, y, white)
				continue
			}
			img.SetRGBA(x, y, sampleBilinear(tex, uv))
		}
	}
	return img
}

func sampleBilinear(tex *image.RGBA, uv math.Vec2) color.RGBA {
	b := tex.Bounds()
	w, h := b.Dx(), b.Dy()
	fx := uv.X*float32(w) - 0.5
	fy := (1-uv.Y)*float32(h) - 0.5

	x0 := int(math32.Floor(fx))
	y0 := int(math32.Floor(fy))
	tx := fx - float32(x0)
	ty := fy - float32(y0)

	at := func(x, y int) color.RGBA {
		return tex.RGBAAt(b.Min.X+clamp(x, 0, w-1), b.Min.Y+clamp(y, 0, h-1))
	}
	c00, c10 := at(x0, y0), at(x0+1, y0)
	c01, c11 := at(x0, y0+1), at(x0+1, y0+1)

	mix := func(a, b, c, d uint8) uint8 {
		top := float32(a)*(1-tx) + float32(b)*tx
		bot := float32(c)*(1-tx) + float32(d)*tx
		return uint8(math32.Round(top*(1-ty) + bot*ty))
	}
	return color.RGBA{
		R: mix(c00.R, c10.R, c01.R, c11.R),
		G: mix(c00.G, c10.G, c01.G, c11.G),
		B: mix(c00.B, c10.B, c01.B, c11.B),
		A: 255,
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
