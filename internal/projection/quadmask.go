// Package projection implements the multi-view texturing core: view
// selection, mask compositing, the similarity cache and backprojection of
// generated images into the UV atlas.
package projection

import (
	"errors"
	"fmt"

	"github.com/Faultbox/texsynth/pkg/grid"
)

// Quad mask labels.
const (
	LabelBackground = 0
	LabelOld        = 1
	LabelUpdate     = 2
	LabelNew        = 3
)

// ErrMaskSize is returned when masks that must align differ in size.
var ErrMaskSize = errors.New("mask size mismatch")

// Weights scales each quad label's pixel fraction in the view heat.
type Weights struct {
	Background float64 `yaml:"background"`
	Old        float64 `yaml:"old"`
	Update     float64 `yaml:"update"`
	New        float64 `yaml:"new"`
}

// DefaultWeights favour untextured pixels, then reassigned ones.
func DefaultWeights() Weights {
	return Weights{
		Background: 0,
		Old:        0.1,
		Update:     0.5,
		New:        1.0,
	}
}

func (w Weights) of(label int) float64 {
	switch label {
	case LabelOld:
		return w.Old
	case LabelUpdate:
		return w.Update
	case LabelNew:
		return w.New
	default:
		return w.Background
	}
}

// isSet reports whether a mask cell is on.
func isSet(p float32) bool {
	return p >= 0.5
}

// ComposeQuadMask labels every pixel from the three binary masks. Where
// masks overlap the priority is new > update > old.
func ComposeQuadMask(newMask, update, old *grid.Grid) (*grid.Grid, error) {
	if !newMask.SameSize(update) || !newMask.SameSize(old) {
		return nil, fmt.Errorf("%w: new %dx%d, update %dx%d, old %dx%d", ErrMaskSize,
			newMask.W, newMask.H, update.W, update.H, old.W, old.H)
	}
	quad := grid.New(newMask.W, newMask.H)
	for i := range quad.Pix {
		switch {
		case isSet(newMask.Pix[i]):
			quad.Pix[i] = LabelNew
		case isSet(update.Pix[i]):
			quad.Pix[i] = LabelUpdate
		case isSet(old.Pix[i]):
			quad.Pix[i] = LabelOld
		}
	}
	return quad, nil
}

// ViewHeat is the weighted fraction of pixels per quad label.
func ViewHeat(quad *grid.Grid, w Weights) float64 {
	if len(quad.Pix) == 0 {
		return 0
	}
	var counts [4]int
	for _, p := range quad.Pix {
		label := int(p)
		if label >= 0 && label < len(counts) {
			counts[label]++
		}
	}
	total := float64(len(quad.Pix))
	var heat float64
	for label, n := range counts {
		heat += float64(n) * w.of(label) / total
	}
	return heat
}
