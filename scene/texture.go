package scene

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"pbr-engine/core"
)

// Image holds decoded CPU-side pixel data, row-major, bottom row first when
// decoded with flip set. Exactly one of Pixels (8-bit) or Float (HDR) is set.
type Image struct {
	Name     string
	Width    int
	Height   int
	Channels int
	Pixels   []byte
	Float    []float32
}

// HDR reports whether the image carries floating-point texels.
func (img *Image) HDR() bool {
	return img.Float != nil
}

// LoadImage reads an image file. Radiance .hdr files decode to float RGB; every
// other format decodes to RGBA8 and is promoted to float when hdr is set.
func LoadImage(path string, hdr, flip bool) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open texture %q: %w", path, err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".hdr") {
		img, err := DecodeHDR(f, flip)
		if err != nil {
			return nil, fmt.Errorf("decode hdr %q: %w", path, err)
		}
		img.Name = path
		return img, nil
	}

	img, err := DecodeImage(path, f, flip)
	if err != nil {
		return nil, err
	}
	if hdr {
		img.promote()
	}
	return img, nil
}

// DecodeImage decodes any registered image format into RGBA8.
func DecodeImage(name string, r io.Reader, flip bool) (*Image, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode texture %q: %w", name, err)
	}
	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)

	img := &Image{
		Name:     name,
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Channels: 4,
		Pixels:   rgba.Pix,
	}
	if flip {
		flipRows(img.Pixels, img.Width*4, img.Height)
	}
	return img, nil
}

// SolidImage creates a 1x1 RGBA8 image of c.
func SolidImage(c core.Color) *Image {
	px := c.RGBA8()
	return &Image{
		Name:     fmt.Sprintf("solid(%.3g,%.3g,%.3g,%.3g)", c.R, c.G, c.B, c.A),
		Width:    1,
		Height:   1,
		Channels: 4,
		Pixels:   px[:],
	}
}

func (img *Image) promote() {
	img.Float = make([]float32, len(img.Pixels))
	for i, b := range img.Pixels {
		img.Float[i] = float32(b) / 255
	}
	img.Pixels = nil
}

func flipRows[T any](pix []T, stride, rows int) {
	tmp := make([]T, stride)
	for y := 0; y < rows/2; y++ {
		top := pix[y*stride : (y+1)*stride]
		bottom := pix[(rows-1-y)*stride : (rows-y)*stride]
		copy(tmp, top)
		copy(top, bottom)
		copy(bottom, tmp)
	}
}
