package scene

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pbr-engine/core"
)

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 1, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(0, 1, color.NRGBA{0, 0, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestDecodeImage(t *testing.T) {
	img, err := DecodeImage("mem", bytes.NewReader(encodePNG(t)), false)
	require.NoError(t, err)
	assert.False(t, img.HDR())
	assert.Equal(t, 4, img.Channels)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, img.Pixels)
}

func TestDecodeImageFlip(t *testing.T) {
	img, err := DecodeImage("mem", bytes.NewReader(encodePNG(t)), true)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255, 255, 0, 0, 255}, img.Pixels)
}

func TestLoadImagePromotesToFloat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t), 0o644))

	img, err := LoadImage(path, true, false)
	require.NoError(t, err)
	assert.True(t, img.HDR())
	assert.Nil(t, img.Pixels)
	assert.InDeltaSlice(t, []float32{1, 0, 0, 1}, img.Float[:4], 1e-6)
}

func TestLoadImageMissing(t *testing.T) {
	_, err := LoadImage(filepath.Join(t.TempDir(), "none.png"), false, false)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSolidImage(t *testing.T) {
	img := SolidImage(core.ColorFlatNormal)
	assert.Equal(t, 1, img.Width)
	assert.Equal(t, []byte{128, 128, 255, 255}, img.Pixels)
}
