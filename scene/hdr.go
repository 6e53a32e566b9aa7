package scene

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chewxy/math32"
)

var errBadHDR = errors.New("malformed radiance header")

// DecodeHDR reads a Radiance RGBE (.hdr) image into float RGB. Both flat and
// new-style run-length encoded scanlines are supported.
func DecodeHDR(r io.Reader, flip bool) (*Image, error) {
	br := bufio.NewReader(r)

	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadHDR, err)
	}
	if !strings.HasPrefix(magic, "#?") {
		return nil, errBadHDR
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errBadHDR, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if fmtVal, ok := strings.CutPrefix(line, "FORMAT="); ok && fmtVal != "32-bit_rle_rgbe" {
			return nil, fmt.Errorf("unsupported hdr format %q", fmtVal)
		}
	}

	resLine, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errBadHDR, err)
	}
	var width, height int
	if _, err := fmt.Sscanf(strings.TrimSpace(resLine), "-Y %d +X %d", &height, &width); err != nil {
		return nil, fmt.Errorf("%w: resolution %q", errBadHDR, strings.TrimSpace(resLine))
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: size %dx%d", errBadHDR, width, height)
	}

	out := make([]float32, width*height*3)
	scan := make([]byte, width*4)
	for y := 0; y < height; y++ {
		if err := readScanline(br, scan, width); err != nil {
			return nil, fmt.Errorf("scanline %d: %w", y, err)
		}
		row := out[y*width*3 : (y+1)*width*3]
		for x := 0; x < width; x++ {
			rgbeToFloat(scan[x*4:x*4+4], row[x*3:x*3+3])
		}
	}

	img := &Image{Width: width, Height: height, Channels: 3, Float: out}
	if flip {
		flipRows(img.Float, width*3, height)
	}
	return img, nil
}

func readScanline(br *bufio.Reader, scan []byte, width int) error {
	head := make([]byte, 4)
	if _, err := io.ReadFull(br, head); err != nil {
		return err
	}
	rle := width >= 8 && width < 0x8000 && head[0] == 2 && head[1] == 2 && head[2]&0x80 == 0
	if !rle {
		copy(scan, head)
		_, err := io.ReadFull(br, scan[4:])
		return err
	}
	if int(head[2])<<8|int(head[3]) != width {
		return errors.New("scanline width mismatch")
	}

	// Each of the four channels is stored as its own run-length stream.
	for ch := 0; ch < 4; ch++ {
		for x := 0; x < width; {
			count, err := br.ReadByte()
			if err != nil {
				return err
			}
			if count > 128 {
				n := int(count - 128)
				if x+n > width {
					return errors.New("run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				for i := 0; i < n; i++ {
					scan[(x+i)*4+ch] = v
				}
				x += n
				continue
			}
			n := int(count)
			if n == 0 || x+n > width {
				return errors.New("bad literal run")
			}
			for i := 0; i < n; i++ {
				v, err := br.ReadByte()
				if err != nil {
					return err
				}
				scan[(x+i)*4+ch] = v
			}
			x += n
		}
	}
	return nil
}

func rgbeToFloat(rgbe []byte, dst []float32) {
	if rgbe[3] == 0 {
		dst[0], dst[1], dst[2] = 0, 0, 0
		return
	}
	f := math32.Ldexp(1, int(rgbe[3])-(128+8))
	dst[0] = float32(rgbe[0]) * f
	dst[1] = float32(rgbe[1]) * f
	dst[2] = float32(rgbe[2]) * f
}
