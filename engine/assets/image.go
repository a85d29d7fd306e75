package assets

import (
	"image"
	"image/png"
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/image/draw"
)

// PixelData is CPU-side RGBA texel data ready to upload into a staging
// buffer.
type PixelData struct {
	Width  uint32
	Height uint32
	Pixels []byte // tightly packed RGBA8
}

// LoadPNG decodes a PNG into RGBA8, optionally rescaling to the requested
// dimensions (0 keeps the source size). Used by the tonemap example for its
// source texture.
func LoadPNG(path string, width, height uint32) (*PixelData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening image %q", path)
	}
	defer f.Close()

	src, err := png.Decode(f)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding image %q", path)
	}

	bounds := src.Bounds()
	if width == 0 {
		width = uint32(bounds.Dx())
	}
	if height == 0 {
		height = uint32(bounds.Dy())
	}

	dst := image.NewRGBA(image.Rect(0, 0, int(width), int(height)))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)

	return &PixelData{
		Width:  width,
		Height: height,
		Pixels: dst.Pix,
	}, nil
}
