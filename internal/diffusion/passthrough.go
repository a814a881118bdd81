package diffusion

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"

	"github.com/Faultbox/texsynth/internal/engine/texture"
)

// Passthrough returns the request image, optionally filling the masked
// region with a constant colour. Used for dry runs.
type Passthrough struct {
	Fill *color.RGBA
}

// Generate implements Generator.
func (p Passthrough) Generate(ctx context.Context, req Request) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Image == nil {
		return nil, errors.New("passthrough: request has no image")
	}
	out := texture.ToRGBA(req.Image)
	if p.Fill == nil || req.Mask == nil {
		return out, nil
	}

	// Copy before painting so the caller's render is untouched.
	painted := image.NewRGBA(out.Bounds())
	draw.Draw(painted, painted.Bounds(), out, image.Point{}, draw.Src)
	mask := texture.ResizeNearest(req.Mask, painted.Bounds().Dx())
	b := painted.Bounds()
	for y := 0; y < mask.H && y < b.Dy(); y++ {
		for x := 0; x < mask.W && x < b.Dx(); x++ {
			if mask.At(x, y) >= 0.5 {
				painted.SetRGBA(b.Min.X+x, b.Min.Y+y, *p.Fill)
			}
		}
	}
	return painted, nil
}
