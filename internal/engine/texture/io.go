package texture

import (
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/webp"

	"github.com/Faultbox/texsynth/pkg/grid"
)

// Load reads a PNG, JPEG, WebP or TGA file, chosen by extension.
func Load(path string) (*image.RGBA, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".tga" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		img, err := DecodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return img, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var img image.Image
	switch ext {
	case ".png":
		img, err = png.Decode(f)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(f)
	case ".webp":
		img, err = webp.Decode(f)
	default:
		img, _, err = image.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return ToRGBA(img), nil
}

// SavePNG writes img as PNG, creating parent directories.
func SavePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encoding PNG: %w", err)
	}
	return f.Close()
}

// SaveGrid writes a [0,1] grid as an 8-bit grayscale PNG.
func SaveGrid(path string, g *grid.Grid) error {
	return SavePNG(path, g.Gray())
}

// LoadGrid reads a grayscale image back into a [0,1] grid.
func LoadGrid(path string) (*grid.Grid, error) {
	img, err := Load(path)
	if err != nil {
		return nil, err
	}
	return grid.FromImage(img), nil
}
