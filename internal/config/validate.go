package config

import (
	"errors"
	"fmt"

	"github.com/Faultbox/texsynth/internal/projection"
)

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	if _, err := projection.ParseMode(c.Selection.Mode); err != nil {
		errs = append(errs, fmt.Errorf("selection.mode: %w", err))
	}
	check(c.Render.ImageSize > 0, "render.image_size must be positive, got %d", c.Render.ImageSize)
	check(c.Render.ProjectionSize > 0, "render.projection_size must be positive, got %d", c.Render.ProjectionSize)
	check(c.Render.FacesPerPixel > 0, "render.faces_per_pixel must be positive, got %d", c.Render.FacesPerPixel)
	check(c.Texture.UVSize > 1, "texture.uv_size must be at least 2, got %d", c.Texture.UVSize)
	check(c.Views.Count > 0 || len(c.Views.Custom) > 0, "views: no candidate viewpoints")
	check(c.Views.Dist > 0, "views.dist must be positive, got %g", c.Views.Dist)
	check(c.Views.Hits > 0, "views.hits must be positive, got %d", c.Views.Hits)
	check(c.Selection.UpdateSteps >= 0, "selection.update_steps must not be negative")
	check(c.Selection.PunishmentDecay > 0 && c.Selection.PunishmentDecay <= 1,
		"selection.punishment_decay must be in (0,1], got %g", c.Selection.PunishmentDecay)
	check(c.Selection.Saturation > 0 && c.Selection.Saturation <= 1,
		"selection.saturation must be in (0,1], got %g", c.Selection.Saturation)
	check(c.Diffusion.Provider == ProviderOpenAI || c.Diffusion.Provider == ProviderPassthrough,
		"diffusion.provider must be %q or %q, got %q", ProviderOpenAI, ProviderPassthrough, c.Diffusion.Provider)
	check(c.Output.Dir != "", "output.dir is required")

	return errors.Join(errs...)
}
