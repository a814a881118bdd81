// Package grid provides dense single-channel float32 rasters. Masks,
// exist-textures and similarity maps are all grids.
package grid

import (
	"fmt"
	"image"
	"image/color"
)

// Grid is a W x H raster stored row-major.
type Grid struct {
	W, H int
	Pix  []float32
}

// New returns a zeroed grid.
func New(w, h int) *Grid {
	return &Grid{W: w, H: h, Pix: make([]float32, w*h)}
}

// Filled returns a grid with every cell set to v.
func Filled(w, h int, v float32) *Grid {
	g := New(w, h)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

// At returns the value at column x, row y.
func (g *Grid) At(x, y int) float32 {
	return g.Pix[y*g.W+x]
}

// Set writes the value at column x, row y.
func (g *Grid) Set(x, y int, v float32) {
	g.Pix[y*g.W+x] = v
}

// Clone returns a deep copy.
func (g *Grid) Clone() *Grid {
	c := &Grid{W: g.W, H: g.H, Pix: make([]float32, len(g.Pix))}
	copy(c.Pix, g.Pix)
	return c
}

// SameSize reports whether g and other have identical dimensions.
func (g *Grid) SameSize(other *Grid) bool {
	return g.W == other.W && g.H == other.H
}

// Count returns the number of cells equal to v.
func (g *Grid) Count(v float32) int {
	n := 0
	for _, p := range g.Pix {
		if p == v {
			n++
		}
	}
	return n
}

// Sum returns the sum of all cells.
func (g *Grid) Sum() float64 {
	var s float64
	for _, p := range g.Pix {
		s += float64(p)
	}
	return s
}

// Any reports whether any cell is non-zero.
func (g *Grid) Any() bool {
	for _, p := range g.Pix {
		if p != 0 {
			return true
		}
	}
	return false
}

// Mul returns the cell-wise product a*b.
func Mul(a, b *Grid) (*Grid, error) {
	if !a.SameSize(b) {
		return nil, sizeError(a, b)
	}
	out := New(a.W, a.H)
	for i := range out.Pix {
		out.Pix[i] = a.Pix[i] * b.Pix[i]
	}
	return out, nil
}

// Sub returns the cell-wise difference a-b.
func Sub(a, b *Grid) (*Grid, error) {
	if !a.SameSize(b) {
		return nil, sizeError(a, b)
	}
	out := New(a.W, a.H)
	for i := range out.Pix {
		out.Pix[i] = a.Pix[i] - b.Pix[i]
	}
	return out, nil
}

// ClampMin raises every cell below lo to lo, in place.
func (g *Grid) ClampMin(lo float32) {
	for i, p := range g.Pix {
		if p < lo {
			g.Pix[i] = lo
		}
	}
}

// Threshold returns a binary grid: 1 where g >= t, else 0.
func (g *Grid) Threshold(t float32) *Grid {
	out := New(g.W, g.H)
	for i, p := range g.Pix {
		if p >= t {
			out.Pix[i] = 1
		}
	}
	return out
}

// Invert returns 1-g.
func (g *Grid) Invert() *Grid {
	out := New(g.W, g.H)
	for i, p := range g.Pix {
		out.Pix[i] = 1 - p
	}
	return out
}

// Gray converts the grid to an 8-bit image, mapping [0,1] to [0,255].
// Values are truncated the way tensor-to-image conversion does.
func (g *Grid) Gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.W, g.H))
	for i, p := range g.Pix {
		img.Pix[i] = toByte(p)
	}
	return img
}

// FromImage builds a grid from the luminance of img scaled to [0,1].
func FromImage(img image.Image) *Grid {
	b := img.Bounds()
	g := New(b.Dx(), b.Dy())
	for y := 0; y < g.H; y++ {
		for x := 0; x < g.W; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			g.Pix[y*g.W+x] = float32(c.Y) / 255
		}
	}
	return g
}

// Argmax returns, for every cell, the index of the grid holding the largest
// value. Ties resolve to the lowest index.
func Argmax(grids []*Grid) ([]int, error) {
	if len(grids) == 0 {
		return nil, fmt.Errorf("argmax over zero grids")
	}
	first := grids[0]
	for _, g := range grids[1:] {
		if !g.SameSize(first) {
			return nil, sizeError(first, g)
		}
	}
	idx := make([]int, len(first.Pix))
	for i := range idx {
		best := first.Pix[i]
		for k := 1; k < len(grids); k++ {
			if v := grids[k].Pix[i]; v > best {
				best = v
				idx[i] = k
			}
		}
	}
	return idx, nil
}

func toByte(p float32) uint8 {
	v := p * 255
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

func sizeError(a, b *Grid) error {
	return fmt.Errorf("grid size mismatch: %dx%d vs %dx%d", a.W, a.H, b.W, b.H)
}
