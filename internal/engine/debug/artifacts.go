// Package debug writes diagnostic images of a texturing session.
package debug

import (
	"fmt"
	"image"
	"image/color"
	"path/filepath"

	"github.com/Faultbox/texsynth/internal/engine/texture"
	"github.com/Faultbox/texsynth/pkg/grid"
)

// Artifact kinds.
const (
	KindColor      = "color"
	KindNormal     = "normal"
	KindDepth      = "depth"
	KindSimilarity = "similarity"
	KindNew        = "new"
	KindUpdate     = "update"
	KindOld        = "old"
	KindExist      = "exist"
	KindQuad       = "quad"
	KindWriteMask  = "write_mask"
	KindGenerated  = "generated"
	KindAtlas      = "atlas"
	KindCache      = "similarity_texture"
)

// QuadPalette colours the quad mask labels 0..3.
var QuadPalette = [4]color.RGBA{
	{A: 255},         // background
	{B: 255, A: 255}, // old
	{G: 255, A: 255}, // update
	{R: 255, A: 255}, // new
}

// ArtifactWriter writes PNGs under <outputDir>/<kind>/<view>_<hit>.png.
// A nil or disabled writer does nothing.
type ArtifactWriter struct {
	outputDir string
	enabled   bool
}

// NewArtifactWriter creates a writer rooted at outputDir.
func NewArtifactWriter(outputDir string, enabled bool) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
		enabled:   enabled,
	}
}

// Enabled reports whether artifacts are written.
func (w *ArtifactWriter) Enabled() bool {
	return w != nil && w.enabled
}

// Filename returns the path of an artifact without writing it.
func (w *ArtifactWriter) Filename(kind string, view, hit int) string {
	return filepath.Join(w.outputDir, kind, fmt.Sprintf("%d_%d.png", view, hit))
}

// WriteImage saves img and returns its path.
func (w *ArtifactWriter) WriteImage(kind string, view, hit int, img image.Image) (string, error) {
	if !w.Enabled() || img == nil {
		return "", nil
	}
	path := w.Filename(kind, view, hit)
	if err := texture.SavePNG(path, img); err != nil {
		return "", fmt.Errorf("writing %s artifact: %w", kind, err)
	}
	return path, nil
}

// WriteGrid saves a [0,1] grid as grayscale.
func (w *ArtifactWriter) WriteGrid(kind string, view, hit int, g *grid.Grid) (string, error) {
	if !w.Enabled() || g == nil {
		return "", nil
	}
	return w.WriteImage(kind, view, hit, g.Gray())
}

// WriteQuad saves the quad mask with QuadPalette colours.
func (w *ArtifactWriter) WriteQuad(view, hit int, quad *grid.Grid) (string, error) {
	if !w.Enabled() || quad == nil {
		return "", nil
	}
	return w.WriteImage(KindQuad, view, hit, QuadImage(quad))
}

// QuadImage renders quad labels as colours. Out-of-range labels are black.
func QuadImage(quad *grid.Grid) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, quad.W, quad.H))
	for y := 0; y < quad.H; y++ {
		for x := 0; x < quad.W; x++ {
			label := int(quad.At(x, y))
			c := QuadPalette[0]
			if label >= 0 && label < len(QuadPalette) {
				c = QuadPalette[label]
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
