// Package config handles texturing session configuration.
package config

import (
	"github.com/Faultbox/texsynth/internal/engine/camera"
	"github.com/Faultbox/texsynth/internal/projection"
)

// Config holds all session settings. The same schema is used for the
// global config and for per-mesh config.yaml files in batch mode.
type Config struct {
	Mesh      MeshConfig      `yaml:"mesh"`
	Render    RenderConfig    `yaml:"render"`
	Texture   TextureConfig   `yaml:"texture"`
	Views     ViewsConfig     `yaml:"views"`
	Selection SelectionConfig `yaml:"selection"`
	Mask      MaskConfig      `yaml:"mask"`
	Diffusion DiffusionConfig `yaml:"diffusion"`
	Output    OutputConfig    `yaml:"output"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// MeshConfig locates the input mesh.
type MeshConfig struct {
	Path      string `yaml:"path"`
	Normalize bool   `yaml:"normalize"` // center and scale to unit extent
}

// RenderConfig holds rasterization settings.
type RenderConfig struct {
	ImageSize      int `yaml:"image_size"`      // render and diffusion resolution
	ProjectionSize int `yaml:"projection_size"` // backprojection resolution
	FacesPerPixel  int `yaml:"faces_per_pixel"`
}

// TextureConfig holds atlas settings.
type TextureConfig struct {
	UVSize   int   `yaml:"uv_size"`
	InitGray uint8 `yaml:"init_gray"`
	Resume   bool  `yaml:"resume"` // load texture.png and exist.png from the output dir
}

// ViewsConfig defines the candidate viewpoints.
type ViewsConfig struct {
	Count  int                `yaml:"count"`
	Dist   float32            `yaml:"dist"`
	Custom []camera.Viewpoint `yaml:"custom,omitempty"` // replaces the predefined set
	Hits   int                `yaml:"hits"`             // depth layers per view, 1 disables x-ray
}

// SelectionConfig holds view selection settings.
type SelectionConfig struct {
	Mode            string  `yaml:"mode"`
	UsePrinciple    bool    `yaml:"use_principle"`
	PrincipleViews  int     `yaml:"principle_views"`
	PunishmentDecay float64 `yaml:"punishment_decay"`
	UpdateSteps     int     `yaml:"update_steps"`
	Saturation      float64 `yaml:"saturation"` // stop when coverage reaches this fraction
	Seed            int64   `yaml:"seed"`
	Workers         int     `yaml:"workers"`
}

// MaskConfig holds diffusion mask settings.
type MaskConfig struct {
	ViewThreshold float32            `yaml:"view_threshold"`
	Dilation      float64            `yaml:"dilation"`
	Weights       projection.Weights `yaml:"weights"`
}

// DiffusionConfig selects and configures the image generator.
type DiffusionConfig struct {
	Provider        string  `yaml:"provider"` // openai or passthrough
	Prompt          string  `yaml:"prompt"`
	AddViewToPrompt bool    `yaml:"add_view_to_prompt"`
	NewStrength     float64 `yaml:"new_strength"`
	UpdateStrength  float64 `yaml:"update_strength"`
	Model           string  `yaml:"model"`
	BaseURL         string  `yaml:"base_url"`
	APIKeyEnv       string  `yaml:"api_key_env"`
	Size            string  `yaml:"size"`
}

// OutputConfig holds output locations.
type OutputConfig struct {
	Dir              string `yaml:"dir"`
	SaveIntermediate bool   `yaml:"save_intermediate"`
}

// CacheConfig holds similarity cache persistence settings.
type CacheConfig struct {
	Dir string `yaml:"dir"` // empty disables persistence
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// MetricsConfig holds the metrics endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty disables the HTTP endpoint
}

// Generator providers.
const (
	ProviderOpenAI      = "openai"
	ProviderPassthrough = "passthrough"
)

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Mesh: MeshConfig{
			Path:      "mesh.obj",
			Normalize: true,
		},
		Render: RenderConfig{
			ImageSize:      768,
			ProjectionSize: 1536,
			FacesPerPixel:  1,
		},
		Texture: TextureConfig{
			UVSize:   1000,
			InitGray: 128,
		},
		Views: ViewsConfig{
			Count: 36,
			Dist:  1,
			Hits:  1,
		},
		Selection: SelectionConfig{
			Mode:            string(projection.ModeHeuristic),
			UsePrinciple:    true,
			PrincipleViews:  projection.DefaultPrincipleViews,
			PunishmentDecay: projection.DefaultPunishmentDecay,
			UpdateSteps:     20,
			Saturation:      1,
			Seed:            42,
			Workers:         1,
		},
		Mask: MaskConfig{
			ViewThreshold: 0.1,
			Weights:       projection.DefaultWeights(),
		},
		Diffusion: DiffusionConfig{
			Provider:        ProviderPassthrough,
			AddViewToPrompt: true,
			NewStrength:     1,
			UpdateStrength:  0.3,
			Model:           "dall-e-2",
			APIKeyEnv:       "OPENAI_API_KEY",
			Size:            "1024x1024",
		},
		Output: OutputConfig{
			Dir: "outputs",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Viewpoints returns the candidate viewpoints.
func (c *Config) Viewpoints() []camera.Viewpoint {
	if len(c.Views.Custom) > 0 {
		out := make([]camera.Viewpoint, len(c.Views.Custom))
		for i, vp := range c.Views.Custom {
			if vp.Dist == 0 {
				vp.Dist = c.Views.Dist
			}
			if vp.Sector == "" {
				vp.Sector = camera.SectorFor(vp.Elev, vp.Azim)
			}
			out[i] = vp
		}
		return out
	}
	return camera.Predefined(c.Views.Count, c.Views.Dist)
}
