// Package diffusion is the boundary to the image generation model that
// paints each selected view.
package diffusion

import (
	"context"
	"image"
	"strings"

	"github.com/Faultbox/texsynth/pkg/grid"
)

// Request is one inpainting call.
type Request struct {
	// Image is the current render of the textured mesh.
	Image image.Image
	// Mask is 1 where the generator may paint (new or update pixels).
	Mask *grid.Grid
	// Quad labels every pixel background, old, update or new.
	Quad     *grid.Grid
	Prompt   string
	Strength float64
}

// Generator produces an image of the same view with the masked region
// repainted. Implementations must be safe to call sequentially from one
// session; failures are returned as is and never retried.
type Generator interface {
	Generate(ctx context.Context, req Request) (image.Image, error)
}

// ViewPrompt appends ", <sector> view" to prompt when enabled.
func ViewPrompt(prompt, sector string, addView bool) string {
	if !addView || sector == "" {
		return prompt
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return sector + " view"
	}
	return prompt + ", " + sector + " view"
}

// Strength picks the denoising strength of a step: steps that paint
// untextured pixels use newStrength, refinements use updateStrength.
func Strength(hasNew bool, newStrength, updateStrength float64) float64 {
	if hasNew {
		return newStrength
	}
	return updateStrength
}
