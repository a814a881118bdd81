package projection

import (
	"context"
	"fmt"
	"image"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/engine/renderer"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// PipelineOptions sizes per-view rendering.
type PipelineOptions struct {
	RenderSize     int
	ProjectionSize int
	FacesPerPixel  int
	Masks          MaskOptions
	Weights        Weights
}

// Pipeline renders candidate views against the session's coverage state.
// It reads exist and cache but never writes them; Backproject is the only
// mutation and goes through the caller.
type Pipeline struct {
	provider   MeshProvider
	viewpoints []camera.Viewpoint
	cache      []*grid.Grid
	exist      *grid.Grid
	opts       PipelineOptions
}

// NewPipeline wires a pipeline to the session state.
func NewPipeline(provider MeshProvider, viewpoints []camera.Viewpoint, cache []*grid.Grid, exist *grid.Grid, opts PipelineOptions) *Pipeline {
	return &Pipeline{
		provider:   provider,
		viewpoints: viewpoints,
		cache:      cache,
		exist:      exist,
		opts:       opts,
	}
}

// ViewRender is everything produced for one (view, hit).
type ViewRender struct {
	View, Hit int
	Slot      int
	Viewpoint camera.Viewpoint
	Mesh      *mesh.Mesh
	FaceUVs   [][3]int
	Render    *renderer.Result // nil when only scoring
	Masks     *Masks
	Quad      *grid.Grid
	Heat      float64 // unpunished
}

func (p *Pipeline) masks(view, hit int) (*ViewRender, error) {
	if view < 0 || view >= len(p.viewpoints) {
		return nil, fmt.Errorf("view %d out of range [0,%d)", view, len(p.viewpoints))
	}
	ms, faceUVs, err := p.provider.Resolve(view, hit)
	if err != nil {
		return nil, err
	}
	vp := p.viewpoints[view]
	slot := Slot(view, hit, p.provider.Hits())

	flat := renderer.New(camera.FromViewpoint(vp, p.opts.RenderSize), renderer.FlatTexel, p.opts.RenderSize, p.opts.FacesPerPixel)
	masks, err := BuildDiffusionMasks(flat, ms, faceUVs, p.exist, p.cache, slot, p.opts.Masks)
	if err != nil {
		return nil, err
	}
	quad, err := ComposeQuadMask(masks.New, masks.Update, masks.Old)
	if err != nil {
		return nil, err
	}
	return &ViewRender{
		View:      view,
		Hit:       hit,
		Slot:      slot,
		Viewpoint: vp,
		Mesh:      ms,
		FaceUVs:   faceUVs,
		Masks:     masks,
		Quad:      quad,
		Heat:      ViewHeat(quad, p.opts.Weights),
	}, nil
}

// Score implements Scorer.
func (p *Pipeline) Score(ctx context.Context, view, hit int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	vr, err := p.masks(view, hit)
	if err != nil {
		return 0, err
	}
	return vr.Heat, nil
}

// RenderView renders the view with the current atlas and builds its masks.
func (p *Pipeline) RenderView(view, hit int, atlas *image.RGBA) (*ViewRender, error) {
	vr, err := p.masks(view, hit)
	if err != nil {
		return nil, err
	}
	soft := renderer.New(camera.FromViewpoint(vr.Viewpoint, p.opts.RenderSize), renderer.SoftPhong, p.opts.RenderSize, p.opts.FacesPerPixel)
	if vr.Render, err = soft.Render(vr.Mesh, vr.FaceUVs, atlas); err != nil {
		return nil, fmt.Errorf("rendering view %d: %w", view, err)
	}
	return vr, nil
}

// Backproject writes reference into atlas for the rendered view at the
// projection resolution, updating the pipeline's exist-texture in place.
func (p *Pipeline) Backproject(vr *ViewRender, reference image.Image, atlas *image.RGBA) (*Projection, error) {
	r := renderer.New(camera.FromViewpoint(vr.Viewpoint, p.opts.ProjectionSize), renderer.SoftPhong, p.opts.ProjectionSize, p.opts.FacesPerPixel)
	return Backproject(r, vr.Mesh, vr.FaceUVs, reference, vr.Masks.New, vr.Masks.Update, atlas, p.exist)
}
