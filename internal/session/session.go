// Package session runs the multi-view texturing loop for one mesh.
package session

import (
	"context"
	"fmt"
	"image"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Faultbox/texsynth/internal/config"
	"github.com/Faultbox/texsynth/internal/diffusion"
	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/engine/debug"
	"github.com/Faultbox/texsynth/internal/engine/texture"
	"github.com/Faultbox/texsynth/internal/logger"
	"github.com/Faultbox/texsynth/internal/metrics"
	"github.com/Faultbox/texsynth/internal/projection"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

// Output file names inside the output directory.
const (
	TextureFile = "texture.png"
	ExistFile   = "exist.png"
	MeshFile    = "mesh.obj"
	ConfigFile  = "config.yaml"
)

// Options injects collaborators. Zero values are built from the config.
type Options struct {
	Generator diffusion.Generator
	Store     projection.CacheStore
}

// Result summarizes a finished session.
type Result struct {
	ID        string
	Steps     int
	Generated int
	Skipped   int
	Views     []int
	Coverage  float64
	OutputDir string
}

// Session owns the state of one texturing run. It is not safe for
// concurrent use.
type Session struct {
	id  string
	cfg *config.Config
	log *zap.Logger

	generator diffusion.Generator
	provider  string
	store     projection.CacheStore

	mesh       *mesh.Mesh
	meshes     projection.MeshProvider
	viewpoints []camera.Viewpoint
	selector   *projection.Selector
	state      *projection.ViewState
	artifacts  *debug.ArtifactWriter

	atlas *image.RGBA
	exist *grid.Grid
	cache []*grid.Grid
}

// New validates cfg, loads the mesh and prepares the atlas.
func New(cfg *config.Config, opts Options) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	s := &Session{
		id:         uuid.NewString(),
		cfg:        cfg,
		generator:  opts.Generator,
		provider:   "custom",
		store:      opts.Store,
		viewpoints: cfg.Viewpoints(),
		artifacts:  debug.NewArtifactWriter(cfg.Output.Dir, cfg.Output.SaveIntermediate),
	}
	s.log = logger.With(logger.Session(s.id), logger.Mesh(cfg.Mesh.Path))
	s.state = projection.NewViewState(len(s.viewpoints))

	if s.generator == nil {
		gen, err := NewGenerator(cfg.Diffusion)
		if err != nil {
			return nil, err
		}
		s.generator = gen
		s.provider = cfg.Diffusion.Provider
	}

	ms, err := mesh.LoadOBJ(cfg.Mesh.Path)
	if err != nil {
		return nil, fmt.Errorf("loading mesh: %w", err)
	}
	if len(ms.UVs) == 0 || len(ms.FaceUVs) != len(ms.Faces) {
		return nil, fmt.Errorf("%s: %w", cfg.Mesh.Path, mesh.ErrNoUVs)
	}
	if cfg.Mesh.Normalize {
		ms = ms.Normalized()
	}
	s.mesh = ms

	if cfg.Views.Hits > 1 {
		xray, err := projection.NewXRay(ms, s.viewpoints, cfg.Views.Hits, cfg.Render.ProjectionSize)
		if err != nil {
			return nil, fmt.Errorf("building x-ray layers: %w", err)
		}
		s.meshes = xray
	} else {
		s.meshes = projection.SingleMesh{Mesh: ms}
	}

	mode, err := projection.ParseMode(cfg.Selection.Mode)
	if err != nil {
		return nil, err
	}
	s.selector, err = projection.NewSelector(s.viewpoints, projection.SelectorOptions{
		Mode:            mode,
		UsePrinciple:    cfg.Selection.UsePrinciple,
		PrincipleViews:  cfg.Selection.PrincipleViews,
		PunishmentDecay: cfg.Selection.PunishmentDecay,
		Hits:            s.meshes.Hits(),
		Workers:         cfg.Selection.Workers,
	}, rand.New(rand.NewSource(cfg.Selection.Seed)))
	if err != nil {
		return nil, err
	}

	if err := s.initTexture(); err != nil {
		return nil, err
	}

	s.log.Info("session created",
		zap.Int("faces", len(ms.Faces)),
		zap.Int("views", len(s.viewpoints)),
		zap.Int("hits", s.meshes.Hits()),
		zap.String("mode", cfg.Selection.Mode))
	return s, nil
}

// NewGenerator builds the configured image generator.
func NewGenerator(cfg config.DiffusionConfig) (diffusion.Generator, error) {
	switch cfg.Provider {
	case config.ProviderPassthrough:
		return diffusion.Passthrough{}, nil
	case config.ProviderOpenAI:
		return diffusion.NewOpenAI(diffusion.OpenAIConfig{
			APIKey:  os.Getenv(cfg.APIKeyEnv),
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Size:    cfg.Size,
		})
	default:
		return nil, fmt.Errorf("unknown diffusion provider %q", cfg.Provider)
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Atlas returns the current texture atlas.
func (s *Session) Atlas() *image.RGBA { return s.atlas }

// Exist returns the current exist-texture.
func (s *Session) Exist() *grid.Grid { return s.exist }

// State returns the view selection state.
func (s *Session) State() *projection.ViewState { return s.state }

func (s *Session) initTexture() error {
	size := s.cfg.Texture.UVSize
	s.atlas = texture.NewAtlas(size, s.cfg.Texture.InitGray)
	s.exist = grid.New(size, size)
	if !s.cfg.Texture.Resume {
		return nil
	}

	texPath := filepath.Join(s.cfg.Output.Dir, TextureFile)
	existPath := filepath.Join(s.cfg.Output.Dir, ExistFile)
	if _, err := os.Stat(texPath); err != nil {
		s.log.Info("no texture to resume, starting fresh", zap.String("path", texPath))
		return nil
	}
	atlas, err := texture.Load(texPath)
	if err != nil {
		return fmt.Errorf("resuming texture: %w", err)
	}
	s.atlas = texture.ResizeImage(atlas, size)

	if _, err := os.Stat(existPath); err == nil {
		exist, err := texture.LoadGrid(existPath)
		if err != nil {
			return fmt.Errorf("resuming exist-texture: %w", err)
		}
		s.exist = texture.ResizeNearest(exist.Threshold(0.5), size)
	}
	s.log.Info("resumed texture", zap.String("path", texPath), logger.Coverage(s.exist.Sum()/float64(len(s.exist.Pix))))
	return nil
}

// Run builds the similarity cache, runs the update steps and writes the
// outputs. Cancellation is checked between steps.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	cfg := s.cfg

	var err error
	s.cache, err = projection.BuildSimilarityCache(ctx, s.meshes, s.viewpoints, projection.CacheOptions{
		UVSize:         cfg.Texture.UVSize,
		ProjectionSize: cfg.Render.ProjectionSize,
		FacesPerPixel:  cfg.Render.FacesPerPixel,
		Workers:        cfg.Selection.Workers,
	}, s.store)
	if err != nil {
		return nil, fmt.Errorf("building similarity cache: %w", err)
	}
	metrics.RendersTotal.WithLabelValues(metrics.PurposeCache).Add(float64(len(s.cache)))
	s.writeCache()

	reachable := reachableTexels(s.cache)
	pipeline := projection.NewPipeline(s.meshes, s.viewpoints, s.cache, s.exist, projection.PipelineOptions{
		RenderSize:     cfg.Render.ImageSize,
		ProjectionSize: cfg.Render.ProjectionSize,
		FacesPerPixel:  cfg.Render.FacesPerPixel,
		Masks: projection.MaskOptions{
			ViewThreshold: cfg.Mask.ViewThreshold,
			Dilation:      cfg.Mask.Dilation,
		},
		Weights: cfg.Mask.Weights,
	})
	scorer := projection.ScorerFunc(func(ctx context.Context, view, hit int) (float64, error) {
		metrics.RendersTotal.WithLabelValues(metrics.PurposeScore).Inc()
		return pipeline.Score(ctx, view, hit)
	})

	res := &Result{ID: s.id, OutputDir: cfg.Output.Dir}
	for step := 0; step < cfg.Selection.UpdateSteps; step++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res.Coverage = coverage(s.exist, reachable)
		metrics.Coverage.WithLabelValues(s.id).Set(res.Coverage)
		if res.Coverage >= cfg.Selection.Saturation {
			s.log.Info("texture saturated", logger.Step(step), logger.Coverage(res.Coverage))
			metrics.StepsTotal.WithLabelValues(metrics.OutcomeSaturated).Inc()
			break
		}

		generated, err := s.step(ctx, step, pipeline, scorer, res)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", step, err)
		}
		res.Steps++
		if generated {
			res.Generated++
		} else {
			res.Skipped++
		}
	}
	res.Coverage = coverage(s.exist, reachable)
	metrics.Coverage.WithLabelValues(s.id).Set(res.Coverage)

	if err := s.persist(); err != nil {
		return nil, err
	}
	s.log.Info("session finished",
		zap.Int("steps", res.Steps),
		zap.Int("generated", res.Generated),
		zap.Int("skipped", res.Skipped),
		logger.Coverage(res.Coverage),
		zap.Duration("elapsed", time.Since(start)))
	return res, nil
}

// step runs one select, generate and backproject cycle. It reports
// whether the generator was called.
func (s *Session) step(ctx context.Context, step int, pipeline *projection.Pipeline, scorer projection.Scorer, res *Result) (bool, error) {
	cfg := s.cfg

	sel, err := s.selector.Select(ctx, step, s.state, scorer)
	if err != nil {
		return false, fmt.Errorf("selecting view: %w", err)
	}
	res.Views = append(res.Views, sel.View)
	log := s.log.With(logger.Step(step), logger.View(sel.View), logger.Hit(sel.Hit))

	vr, err := pipeline.RenderView(sel.View, sel.Hit, s.atlas)
	if err != nil {
		return false, err
	}
	metrics.RendersTotal.WithLabelValues(metrics.PurposeView).Inc()
	metrics.ViewHeat.Observe(vr.Heat)
	s.writeView(vr)

	hasNew := vr.Masks.New.Any()
	if !hasNew && !vr.Masks.Update.Any() {
		log.Info("nothing to paint from view, skipping", zap.Stringer("viewpoint", vr.Viewpoint))
		metrics.StepsTotal.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return false, nil
	}

	paint := grid.New(vr.Quad.W, vr.Quad.H)
	for i, label := range vr.Quad.Pix {
		if label == projection.LabelNew || label == projection.LabelUpdate {
			paint.Pix[i] = 1
		}
	}
	prompt := diffusion.ViewPrompt(cfg.Diffusion.Prompt, vr.Viewpoint.Sector, cfg.Diffusion.AddViewToPrompt)
	strength := diffusion.Strength(hasNew, cfg.Diffusion.NewStrength, cfg.Diffusion.UpdateStrength)
	log.Info("generating view", logger.Heat(vr.Heat), zap.String("prompt", prompt), zap.Float64("strength", strength))

	genStart := time.Now()
	generated, err := s.generator.Generate(ctx, diffusion.Request{
		Image:    vr.Render.Color,
		Mask:     paint,
		Quad:     vr.Quad,
		Prompt:   prompt,
		Strength: strength,
	})
	metrics.GenerateDuration.WithLabelValues(s.provider).Observe(time.Since(genStart).Seconds())
	if err != nil {
		return false, fmt.Errorf("generating view %d: %w", sel.View, err)
	}

	proj, err := pipeline.Backproject(vr, generated, s.atlas)
	if err != nil {
		return false, err
	}
	s.atlas = proj.Atlas
	metrics.RendersTotal.WithLabelValues(metrics.PurposeBackproject).Inc()
	metrics.TexelsWritten.Add(float64(proj.Texels))
	metrics.StepsTotal.WithLabelValues(metrics.OutcomeGenerated).Inc()

	s.writeStep(vr, generated, proj)
	log.Debug("backprojected view", zap.Int("texels", proj.Texels))
	return true, nil
}

func (s *Session) persist() error {
	dir := s.cfg.Output.Dir
	if err := texture.SavePNG(filepath.Join(dir, TextureFile), s.atlas); err != nil {
		return fmt.Errorf("saving texture: %w", err)
	}
	if err := texture.SaveGrid(filepath.Join(dir, ExistFile), s.exist); err != nil {
		return fmt.Errorf("saving exist-texture: %w", err)
	}
	if err := mesh.SaveOBJ(s.mesh, filepath.Join(dir, MeshFile), TextureFile); err != nil {
		return fmt.Errorf("saving mesh: %w", err)
	}
	if err := s.cfg.SaveTo(filepath.Join(dir, ConfigFile)); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	s.log.Info("outputs written", zap.String("dir", dir))
	return nil
}

// reachableTexels marks the texels any (view, hit) can see.
func reachableTexels(cache []*grid.Grid) *grid.Grid {
	if len(cache) == 0 {
		return nil
	}
	out := grid.New(cache[0].W, cache[0].H)
	for _, c := range cache {
		for i, v := range c.Pix {
			if v > 0 {
				out.Pix[i] = 1
			}
		}
	}
	return out
}

// coverage is the fraction of reachable texels already textured. A mesh
// with no reachable texels counts as saturated.
func coverage(exist, reachable *grid.Grid) float64 {
	if reachable == nil {
		return 1
	}
	var total, covered int
	for i, r := range reachable.Pix {
		if r == 0 {
			continue
		}
		total++
		if exist.Pix[i] >= 0.5 {
			covered++
		}
	}
	if total == 0 {
		return 1
	}
	return float64(covered) / float64(total)
}
