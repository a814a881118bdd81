package projection

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/engine/renderer"
	"github.com/Faultbox/texsynth/internal/storage/cachestore"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// CacheStore persists similarity textures between runs.
type CacheStore interface {
	Load(key string) (*grid.Grid, bool, error)
	Save(key string, g *grid.Grid) error
}

// CacheOptions sizes the similarity cache build.
type CacheOptions struct {
	UVSize         int
	ProjectionSize int
	FacesPerPixel  int
	Workers        int
}

// Slot returns the cache index of a (view, hit) pair.
func Slot(view, hit, hits int) int {
	return view*hits + hit
}

// SimilarityTexture renders the similarity buffer through r and splats it
// into a uvSize x uvSize texture.
func SimilarityTexture(r *renderer.Renderer, ms *mesh.Mesh, faceUVs [][3]int, uvSize int) (*grid.Grid, error) {
	res, err := r.Render(ms, faceUVs, nil)
	if err != nil {
		return nil, err
	}
	if faceUVs == nil {
		faceUVs = ms.FaceUVs
	}
	samples, err := collectSamples(res.Fragments, ms.UVs, faceUVs, uvSize, nil)
	if err != nil {
		return nil, err
	}
	out := grid.New(uvSize, uvSize)
	splat(samples, func(s sample, c Corner) {
		out.Set(c.Col, c.Row, res.Similarity.At(s.x, s.y))
	})
	return out, nil
}

// BuildSimilarityCache computes one similarity texture per (view, hit),
// indexed by Slot. With a store, textures are loaded when present and
// saved after rendering. Slots are independent and built on up to
// opts.Workers goroutines.
func BuildSimilarityCache(ctx context.Context, provider MeshProvider, viewpoints []camera.Viewpoint,
	opts CacheOptions, store CacheStore) ([]*grid.Grid, error) {
	hits := provider.Hits()
	cache := make([]*grid.Grid, len(viewpoints)*hits)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Workers, 1))
	for v, vp := range viewpoints {
		for h := 0; h < hits; h++ {
			v, vp, h := v, vp, h
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				tex, err := similaritySlot(provider, vp, v, h, opts, store)
				if err != nil {
					return fmt.Errorf("similarity view %d hit %d: %w", v, h, err)
				}
				cache[Slot(v, h, hits)] = tex
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return cache, nil
}

func similaritySlot(provider MeshProvider, vp camera.Viewpoint, view, hit int, opts CacheOptions, store CacheStore) (*grid.Grid, error) {
	ms, faceUVs, err := provider.Resolve(view, hit)
	if err != nil {
		return nil, err
	}

	var key string
	if store != nil {
		key = cachestore.Key(ms.Digest(), faceUVs, vp, hit, opts.UVSize, opts.ProjectionSize)
		tex, ok, err := store.Load(key)
		if err != nil {
			return nil, fmt.Errorf("loading cached similarity: %w", err)
		}
		if ok && tex.W == opts.UVSize && tex.H == opts.UVSize {
			return tex, nil
		}
	}

	r := renderer.New(camera.FromViewpoint(vp, opts.ProjectionSize), renderer.SoftPhong, opts.ProjectionSize, opts.FacesPerPixel)
	tex, err := SimilarityTexture(r, ms, faceUVs, opts.UVSize)
	if err != nil {
		return nil, err
	}
	if store != nil {
		if err := store.Save(key, tex); err != nil {
			return nil, fmt.Errorf("saving similarity: %w", err)
		}
	}
	return tex, nil
}
