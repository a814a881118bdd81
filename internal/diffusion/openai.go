package diffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/Faultbox/texsynth/internal/engine/texture"
	"github.com/Faultbox/texsynth/internal/logger"
	"github.com/Faultbox/texsynth/pkg/grid"
)

// OpenAIConfig configures the OpenAI image edit client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty uses the public endpoint
	Model   string
	Size    string // e.g. "1024x1024"
}

// OpenAI inpaints views through the image edit endpoint.
type OpenAI struct {
	client *openai.Client
	model  string
	size   string
}

// NewOpenAI creates a client. The API key is required.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: API key not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		clientCfg.HTTPClient = modelField{next: clientCfg.HTTPClient, model: cfg.Model}
	}
	logger.Info("initializing image generator", zap.String("provider", "openai"), zap.String("model", cfg.Model))
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		size:   cfg.Size,
	}, nil
}

// Generate implements Generator. The edit endpoint has no strength
// parameter; it is logged and otherwise ignored.
func (o *OpenAI) Generate(ctx context.Context, req Request) (image.Image, error) {
	if req.Image == nil || req.Mask == nil {
		return nil, errors.New("openai: request needs an image and a mask")
	}
	rgba := texture.ToRGBA(req.Image)

	imageFile, err := tempPNG("texsynth-image-*.png", rgba)
	if err != nil {
		return nil, err
	}
	defer removeTemp(imageFile)

	maskFile, err := tempPNG("texsynth-mask-*.png", editMask(req.Mask, rgba.Bounds().Dx()))
	if err != nil {
		return nil, err
	}
	defer removeTemp(maskFile)

	logger.Debug("requesting image edit",
		zap.String("model", o.model), zap.String("prompt", req.Prompt), zap.Float64("strength", req.Strength))

	resp, err := o.client.CreateEditImage(ctx, openai.ImageEditRequest{
		Image:          imageFile,
		Mask:           maskFile,
		Prompt:         req.Prompt,
		Model:          o.model,
		N:              1,
		Size:           o.size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai image edit: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai image edit returned no images")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding generated image: %w", err)
	}
	return img, nil
}

// editMask converts a paint mask to the endpoint's convention: fully
// transparent pixels are repainted, opaque ones kept.
func editMask(mask *grid.Grid, size int) *image.RGBA {
	m := texture.ResizeNearest(mask, size)
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if m.At(x, y) >= 0.5 {
				img.SetRGBA(x, y, color.RGBA{})
			} else {
				img.SetRGBA(x, y, color.RGBA{A: 255})
			}
		}
	}
	return img
}

func tempPNG(pattern string, img image.Image) (*os.File, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		removeTemp(f)
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		removeTemp(f)
		return nil, err
	}
	return f, nil
}

func removeTemp(f *os.File) {
	f.Close()
	os.Remove(f.Name())
}
