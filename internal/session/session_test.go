package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/texsynth/internal/config"
	"github.com/Faultbox/texsynth/internal/diffusion"
	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/engine/debug"
	"github.com/Faultbox/texsynth/internal/engine/texture"
	"github.com/Faultbox/texsynth/internal/storage/cachestore"
	"github.com/Faultbox/texsynth/pkg/grid"
	"github.com/Faultbox/texsynth/pkg/mesh"
)

var red = color.RGBA{R: 255, A: 255}

// testConfig returns a small sequential front/back session on a UV sphere.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "sphere.obj")
	require.NoError(t, mesh.SaveOBJ(mesh.UVSphere(1, 16, 32), meshPath, "none.png"))

	cfg := config.Default()
	cfg.Mesh.Path = meshPath
	cfg.Render.ImageSize = 32
	cfg.Render.ProjectionSize = 64
	cfg.Texture.UVSize = 32
	cfg.Views.Custom = []camera.Viewpoint{
		{Dist: 1.5, Elev: 0, Azim: 0},
		{Dist: 1.5, Elev: 0, Azim: 180},
	}
	cfg.Selection.Mode = "sequential"
	cfg.Selection.UpdateSteps = 2
	cfg.Diffusion.Prompt = "a red ball"
	cfg.Output.Dir = filepath.Join(dir, "out")
	return cfg
}

func countRed(img *image.RGBA) int {
	n := 0
	for i := 0; i < len(img.Pix); i += 4 {
		if img.Pix[i] > 200 && img.Pix[i+1] < 60 && img.Pix[i+2] < 60 {
			n++
		}
	}
	return n
}

type recordingGenerator struct {
	diffusion.Passthrough
	requests []diffusion.Request
	err      error
}

func (g *recordingGenerator) Generate(ctx context.Context, req diffusion.Request) (image.Image, error) {
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.Passthrough.Generate(ctx, req)
}

func TestRunPaintsAndPersists(t *testing.T) {
	cfg := testConfig(t)
	gen := &recordingGenerator{Passthrough: diffusion.Passthrough{Fill: &red}}

	s, err := New(cfg, Options{Generator: gen})
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, res.Views)
	assert.Equal(t, 2, res.Steps)
	assert.Equal(t, 2, res.Generated)
	assert.Greater(t, res.Coverage, 0.5)
	assert.Greater(t, countRed(s.Atlas()), 0)
	assert.Greater(t, s.Exist().Count(1), 0)

	require.Len(t, gen.requests, 2)
	assert.Equal(t, "a red ball, front view", gen.requests[0].Prompt)
	assert.Equal(t, "a red ball, back view", gen.requests[1].Prompt)
	assert.Equal(t, cfg.Diffusion.NewStrength, gen.requests[0].Strength)
	assert.Equal(t, 32, gen.requests[0].Mask.W)

	for _, name := range []string{TextureFile, ExistFile, MeshFile, "mesh.mtl", ConfigFile} {
		assert.FileExists(t, filepath.Join(cfg.Output.Dir, name))
	}
	saved, err := config.LoadFile(filepath.Join(cfg.Output.Dir, ConfigFile))
	require.NoError(t, err)
	assert.Equal(t, cfg.Diffusion.Prompt, saved.Diffusion.Prompt)
}

func TestRunStopsWhenSaturated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Selection.UpdateSteps = 5
	cfg.Selection.Saturation = 0.01

	s, err := New(cfg, Options{Generator: diffusion.Passthrough{Fill: &red}})
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Steps)
	assert.GreaterOrEqual(t, res.Coverage, 0.01)
}

func TestRunSkipsViewsWithNothingToPaint(t *testing.T) {
	cfg := testConfig(t)
	// Beyond the far plane the mesh is invisible.
	far := camera.Viewpoint{Dist: 500, Elev: 0, Azim: 90}
	cfg.Views.Custom = append([]camera.Viewpoint{far}, cfg.Views.Custom...)
	cfg.Selection.UpdateSteps = 3
	gen := &recordingGenerator{}

	s, err := New(cfg, Options{Generator: gen})
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, res.Views)
	assert.Equal(t, 3, res.Steps)
	assert.Equal(t, 2, res.Generated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, gen.requests, 2)
	assert.Equal(t, "a red ball, front view", gen.requests[0].Prompt)
}

func TestRunHeuristicWithCacheStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Selection.Mode = "heuristic"
	cfg.Selection.UsePrinciple = false
	cfg.Selection.Workers = 2

	store, err := cachestore.InMemory()
	require.NoError(t, err)
	defer store.Close()

	s, err := New(cfg, Options{Generator: diffusion.Passthrough{Fill: &red}, Store: store})
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Views, 2)
	assert.NotEqual(t, res.Views[0], res.Views[1], "a chosen view is punished")
	assert.Less(t, s.State().Punishment(res.Views[0]), 1.0)
}

func TestRunWritesArtifacts(t *testing.T) {
	cfg := testConfig(t)
	cfg.Selection.UpdateSteps = 1
	cfg.Output.SaveIntermediate = true

	s, err := New(cfg, Options{Generator: diffusion.Passthrough{Fill: &red}})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)

	w := debug.NewArtifactWriter(cfg.Output.Dir, true)
	for _, kind := range []string{
		debug.KindColor, debug.KindNormal, debug.KindDepth, debug.KindSimilarity,
		debug.KindNew, debug.KindUpdate, debug.KindOld, debug.KindExist, debug.KindQuad,
		debug.KindGenerated, debug.KindWriteMask, debug.KindAtlas,
	} {
		assert.FileExists(t, w.Filename(kind, 0, 0), kind)
	}
	assert.FileExists(t, w.Filename(debug.KindCache, 1, 0))
}

func TestRunResume(t *testing.T) {
	cfg := testConfig(t)
	cfg.Selection.UpdateSteps = 1
	s, err := New(cfg, Options{Generator: diffusion.Passthrough{Fill: &red}})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	require.NoError(t, err)
	painted := s.Exist().Count(1)

	cfg.Texture.Resume = true
	resumed, err := New(cfg, Options{Generator: diffusion.Passthrough{Fill: &red}})
	require.NoError(t, err)
	assert.Equal(t, painted, resumed.Exist().Count(1))
	assert.Equal(t, countRed(s.Atlas()), countRed(resumed.Atlas()))
}

func TestRunGeneratorFailure(t *testing.T) {
	cfg := testConfig(t)
	boom := errors.New("model unavailable")

	s, err := New(cfg, Options{Generator: &recordingGenerator{err: boom}})
	require.NoError(t, err)
	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, TextureFile))
}

func TestRunCancelled(t *testing.T) {
	s, err := New(testConfig(t), Options{Generator: diffusion.Passthrough{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRejectsMeshWithoutUVs(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "tri.obj")
	require.NoError(t, os.WriteFile(path, []byte("v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), 0644))
	cfg.Mesh.Path = path

	_, err := New(cfg, Options{Generator: diffusion.Passthrough{}})
	assert.ErrorIs(t, err, mesh.ErrNoUVs)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Selection.Mode = "greedy"
	_, err := New(cfg, Options{})
	assert.Error(t, err)
}

func TestNewGenerator(t *testing.T) {
	gen, err := NewGenerator(config.DiffusionConfig{Provider: config.ProviderPassthrough})
	require.NoError(t, err)
	assert.IsType(t, diffusion.Passthrough{}, gen)

	t.Setenv("TEXSYNTH_TEST_KEY", "")
	_, err = NewGenerator(config.DiffusionConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "TEXSYNTH_TEST_KEY"})
	assert.Error(t, err)

	t.Setenv("TEXSYNTH_TEST_KEY", "sk-test")
	gen, err = NewGenerator(config.DiffusionConfig{Provider: config.ProviderOpenAI, APIKeyEnv: "TEXSYNTH_TEST_KEY"})
	require.NoError(t, err)
	assert.IsType(t, &diffusion.OpenAI{}, gen)

	_, err = NewGenerator(config.DiffusionConfig{Provider: "midjourney"})
	assert.Error(t, err)
}

func TestCoverage(t *testing.T) {
	reach := grid.New(4, 1)
	reach.Pix = []float32{1, 1, 0, 1}
	exist := grid.New(4, 1)
	exist.Pix = []float32{1, 0, 1, 1}
	assert.InDelta(t, 2.0/3.0, coverage(exist, reach), 1e-9)

	assert.Equal(t, 1.0, coverage(exist, grid.New(4, 1)))
	assert.Equal(t, 1.0, coverage(exist, nil))

	a := grid.New(2, 1)
	b := grid.New(2, 1)
	a.Pix = []float32{0.3, 0}
	b.Pix = []float32{0, 0}
	assert.Equal(t, []float32{1, 0}, reachableTexels([]*grid.Grid{a, b}).Pix)
}

func TestResumeWithoutFilesStartsFresh(t *testing.T) {
	cfg := testConfig(t)
	cfg.Texture.Resume = true
	s, err := New(cfg, Options{Generator: diffusion.Passthrough{}})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Exist().Count(1))
	assert.Equal(t, texture.NewAtlas(32, cfg.Texture.InitGray).Pix, s.Atlas().Pix)
}
