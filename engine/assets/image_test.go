package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, width, height int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "test.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadPNGKeepsSourceSize(t *testing.T) {
	path := writePNG(t, 8, 4, color.RGBA{R: 255, A: 255})

	pixels, err := LoadPNG(path, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), pixels.Width)
	assert.Equal(t, uint32(4), pixels.Height)
	assert.Len(t, pixels.Pixels, 8*4*4)

	// Solid red survives the decode round trip.
	assert.Equal(t, uint8(255), pixels.Pixels[0])
	assert.Equal(t, uint8(0), pixels.Pixels[1])
	assert.Equal(t, uint8(255), pixels.Pixels[3])
}

func TestLoadPNGRescales(t *testing.T) {
	path := writePNG(t, 8, 8, color.RGBA{G: 255, A: 255})

	pixels, err := LoadPNG(path, 16, 4)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), pixels.Width)
	assert.Equal(t, uint32(4), pixels.Height)
	assert.Len(t, pixels.Pixels, 16*4*4)
}

func TestLoadPNGMissingFile(t *testing.T) {
	_, err := LoadPNG(filepath.Join(t.TempDir(), "absent.png"), 0, 0)
	assert.Error(t, err)
}

func TestLoadPNGNotAPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bogus.png")
	require.NoError(t, os.WriteFile(path, []byte("not a png"), 0o644))
	_, err := LoadPNG(path, 0, 0)
	assert.Error(t, err)
}
