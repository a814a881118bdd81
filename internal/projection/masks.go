package projection

import (
	"fmt"

	"github.com/anthonynsimon/bild/effect"

	"github.com/Faultbox/texsynth/internal/engine/renderer"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// MaskOptions tunes diffusion mask construction.
type MaskOptions struct {
	// ViewThreshold hides pixels whose similarity is below it.
	ViewThreshold float32
	// Dilation grows the new mask by this radius in pixels. 0 disables.
	Dilation float64
}

// Masks are the per-view diffusion masks at render resolution.
type Masks struct {
	New        *grid.Grid
	Update     *grid.Grid
	Old        *grid.Grid
	Exist      *grid.Grid
	Visible    *grid.Grid
	Similarity *grid.Grid
}

// Ownership marks the texels whose highest cache entry is slot. The argmax
// spans every slot, including views that have not been rendered yet.
func Ownership(cache []*grid.Grid, slot int) (*grid.Grid, error) {
	idx, err := grid.Argmax(cache)
	if err != nil {
		return nil, err
	}
	own := grid.New(cache[0].W, cache[0].H)
	for i, k := range idx {
		if k == slot {
			own.Pix[i] = 1
		}
	}
	return own, nil
}

// BuildDiffusionMasks classifies the pixels r sees into new, update and old
// using the exist-texture and the similarity cache slot owning the view.
// The mesh is rendered with override textures and is not modified.
func BuildDiffusionMasks(r *renderer.Renderer, ms *mesh.Mesh, faceUVs [][3]int,
	exist *grid.Grid, cache []*grid.Grid, slot int, opts MaskOptions) (*Masks, error) {
	if slot < 0 || slot >= len(cache) {
		return nil, fmt.Errorf("cache slot %d out of range [0,%d)", slot, len(cache))
	}
	if !exist.SameSize(cache[slot]) {
		return nil, fmt.Errorf("%w: exist %dx%d, cache %dx%d", ErrMaskSize, exist.W, exist.H, cache[slot].W, cache[slot].H)
	}
	own, err := Ownership(cache, slot)
	if err != nil {
		return nil, fmt.Errorf("resolving texel ownership: %w", err)
	}

	rendered, sim, err := r.RenderMasks(ms, faceUVs, grid.Filled(exist.W, exist.H, 1), exist.Invert(), own)
	if err != nil {
		return nil, fmt.Errorf("rendering masks: %w", err)
	}
	visible, newMask, allUpdate := rendered[0], rendered[1], rendered[2]

	valid := sim.Threshold(opts.ViewThreshold)
	if visible, err = grid.Mul(visible, valid); err != nil {
		return nil, err
	}
	if newMask, err = grid.Mul(newMask, valid); err != nil {
		return nil, err
	}
	if opts.Dilation > 0 {
		newMask = dilate(newMask, opts.Dilation)
	}

	existMask, err := grid.Sub(visible, newMask)
	if err != nil {
		return nil, err
	}
	// Dilation can push new past visible.
	existMask.ClampMin(0)

	update, err := grid.Mul(existMask, allUpdate)
	if err != nil {
		return nil, err
	}
	old, err := grid.Sub(existMask, update)
	if err != nil {
		return nil, err
	}

	return &Masks{
		New:        newMask,
		Update:     update,
		Old:        old,
		Exist:      existMask,
		Visible:    visible,
		Similarity: sim,
	}, nil
}

func dilate(g *grid.Grid, radius float64) *grid.Grid {
	return grid.FromImage(effect.Dilate(g.Gray(), radius)).Threshold(0.5)
}
