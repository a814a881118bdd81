// Package texture handles the raster images the pipeline reads and writes:
// texture atlases, reference images from the generator and binary masks.
package texture

import (
	"encoding/binary"
	"image"
	"image/color"

	"golang.org/x/image/draw"

	"github.com/Faultbox/texsynth/pkg/grid"
)

// DefaultGray is the initial atlas colour.
const DefaultGray = 128

// NewAtlas returns a size x size opaque atlas filled with gray.
func NewAtlas(size int, gray uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: gray, G: gray, B: gray, A: 255}}, image.Point{}, draw.Src)
	return img
}

// ToRGBA converts any image to an *image.RGBA anchored at the origin.
// RGBA inputs already at the origin are returned as is.
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}

// ResizeImage scales img to size x size with Catmull-Rom filtering. Images
// already at the target size are converted without resampling.
func ResizeImage(img image.Image, size int) *image.RGBA {
	b := img.Bounds()
	if b.Dx() == size && b.Dy() == size {
		return ToRGBA(img)
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// ResizeNearest scales a mask to size x size with nearest-neighbour
// sampling so that no fractional values appear.
func ResizeNearest(g *grid.Grid, size int) *grid.Grid {
	if g.W == size && g.H == size {
		return g.Clone()
	}
	// Resample cell indices packed into RGBA so float values pass through
	// untouched.
	src := image.NewRGBA(image.Rect(0, 0, g.W, g.H))
	for i := range g.Pix {
		binary.LittleEndian.PutUint32(src.Pix[i*4:], uint32(i))
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	out := grid.New(size, size)
	for i := range out.Pix {
		out.Pix[i] = g.Pix[binary.LittleEndian.Uint32(dst.Pix[i*4:])]
	}
	return out
}

// Channel extracts one colour channel (0 red, 1 green, 2 blue) as a grid
// scaled to [0,1].
func Channel(img image.Image, ch int) *grid.Grid {
	rgba := ToRGBA(img)
	b := rgba.Bounds()
	g := grid.New(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g.Set(x, y, float32(rgba.Pix[rgba.PixOffset(x, y)+ch])/255)
		}
	}
	return g
}
