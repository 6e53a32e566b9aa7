package scene

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hdrHeader(w, h int) string {
	return fmt.Sprintf("#?RADIANCE\nFORMAT=32-bit_rle_rgbe\nEXPOSURE=1.0\n\n-Y %d +X %d\n", h, w)
}

func TestDecodeHDRFlat(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(hdrHeader(2, 2))
	// Exponent 129 scales mantissas by 2^(129-136) = 1/128.
	buf.Write([]byte{128, 64, 0, 129, 0, 0, 0, 0})
	buf.Write([]byte{64, 64, 64, 130, 128, 0, 128, 129})

	img, err := DecodeHDR(&buf, false)
	require.NoError(t, err)
	assert.True(t, img.HDR())
	assert.Equal(t, 2, img.Width)
	assert.Equal(t, 2, img.Height)
	assert.Equal(t, 3, img.Channels)
	assert.InDeltaSlice(t, []float32{1, 0.5, 0, 0, 0, 0}, img.Float[:6], 1e-6)
	assert.InDeltaSlice(t, []float32{1, 1, 1, 1, 0, 1}, img.Float[6:], 1e-6)
}

func TestDecodeHDRFlip(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(hdrHeader(1, 2))
	buf.Write([]byte{128, 0, 0, 129})
	buf.Write([]byte{0, 128, 0, 129})

	img, err := DecodeHDR(&buf, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float32{0, 1, 0, 1, 0, 0}, img.Float, 1e-6)
}

func TestDecodeHDRRLE(t *testing.T) {
	const w = 8
	var buf bytes.Buffer
	buf.WriteString(hdrHeader(w, 1))
	buf.Write([]byte{2, 2, 0, w})
	// R: run of 8 x 128.
	buf.Write([]byte{128 + 8, 128})
	// G: literal 8 values.
	buf.Write([]byte{8, 0, 16, 32, 48, 64, 80, 96, 112})
	// B: two runs of 4.
	buf.Write([]byte{128 + 4, 0, 128 + 4, 64})
	// E: run of 8 x 129.
	buf.Write([]byte{128 + 8, 129})

	img, err := DecodeHDR(&buf, false)
	require.NoError(t, err)
	require.Len(t, img.Float, w*3)
	for x := 0; x < w; x++ {
		px := img.Float[x*3 : x*3+3]
		assert.InDelta(t, 1.0, px[0], 1e-6)
		assert.InDelta(t, float32(x*16)/128, px[1], 1e-6)
		wantB := float32(0)
		if x >= 4 {
			wantB = 0.5
		}
		assert.InDelta(t, wantB, px[2], 1e-6)
	}
}

func TestDecodeHDRZeroExponent(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteString(hdrHeader(1, 1))
	buf.Write([]byte{200, 200, 200, 0})
	img, err := DecodeHDR(&buf, false)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0}, img.Float)
}

func TestDecodeHDRErrors(t *testing.T) {
	cases := map[string]string{
		"no magic":       "P6\n",
		"bad format":     "#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n",
		"bad resolution": "#?RADIANCE\n\n+X 1 -Y 1\n",
		"truncated":      "#?RADIANCE\n\n-Y 1 +X 2\n\x01\x02",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeHDR(strings.NewReader(in), false)
			assert.Error(t, err)
		})
	}
}
