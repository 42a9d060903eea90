package compression

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/mrjoshuak/go-jpeg2000"
)

// JPEG 2000 errors
var (
	ErrJPEG2000Corrupted = errors.New("compression: corrupted JPEG 2000 data")
	ErrJPEG2000Geometry  = errors.New("compression: JPEG 2000 geometry mismatch")
)

// JPEG2000Options describes the samples a JPEG 2000 strip or tile holds.
type JPEG2000Options struct {
	Width, Height int

	// Samples is the number of interleaved samples per output pixel.
	Samples int

	// BitsPerSample is 8 or 16.
	BitsPerSample int

	// Order is the byte order of 16-bit output samples. Nil means
	// big-endian.
	Order binary.ByteOrder
}

// JPEG2000DecompressTo decodes a JPEG 2000 codestream (or JP2 file) into
// interleaved samples.
func JPEG2000DecompressTo(dst, src []byte, opts JPEG2000Options) error {
	if opts.BitsPerSample != 8 && opts.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d-bit samples", ErrJPEG2000Geometry, opts.BitsPerSample)
	}
	if opts.Samples < 1 || opts.Samples > 4 {
		return fmt.Errorf("%w: %d samples per pixel", ErrJPEG2000Geometry, opts.Samples)
	}
	order := opts.Order
	if order == nil {
		order = binary.BigEndian
	}
	bytesPerSample := opts.BitsPerSample / 8
	rowBytes := opts.Width * opts.Samples * bytesPerSample
	if len(dst) < rowBytes*opts.Height {
		return fmt.Errorf("%w: %d byte buffer for %dx%d", ErrJPEG2000Geometry, len(dst), opts.Width, opts.Height)
	}

	img, err := jpeg2000.Decode(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrJPEG2000Corrupted, err)
	}
	b := img.Bounds()
	if b.Dx() < opts.Width || b.Dy() < opts.Height {
		return fmt.Errorf("%w: decoded %dx%d, want %dx%d", ErrJPEG2000Geometry, b.Dx(), b.Dy(), opts.Width, opts.Height)
	}

	// 8-bit gray decodes straight into rows.
	if g, ok := img.(*image.Gray); ok && opts.Samples == 1 && bytesPerSample == 1 {
		for y := 0; y < opts.Height; y++ {
			i := g.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst[y*rowBytes:(y+1)*rowBytes], g.Pix[i:i+opts.Width])
		}
		return nil
	}

	var v [4]uint16
	pos := 0
	for y := 0; y < opts.Height; y++ {
		for x := 0; x < opts.Width; x++ {
			samples(img.At(b.Min.X+x, b.Min.Y+y), opts.Samples, v[:])
			for s := 0; s < opts.Samples; s++ {
				if bytesPerSample == 1 {
					dst[pos] = uint8(v[s] >> 8)
					pos++
				} else {
					order.PutUint16(dst[pos:], v[s])
					pos += 2
				}
			}
		}
	}
	return nil
}

// samples stores the 16-bit components of c in v: gray for one sample,
// gray and alpha for two, RGB for three and RGBA for four.
func samples(c color.Color, n int, v []uint16) {
	switch n {
	case 1:
		v[0] = color.Gray16Model.Convert(c).(color.Gray16).Y
	case 2:
		nc := color.NRGBA64Model.Convert(c).(color.NRGBA64)
		v[0] = color.Gray16Model.Convert(color.NRGBA64{R: nc.R, G: nc.G, B: nc.B, A: 0xffff}).(color.Gray16).Y
		v[1] = nc.A
	default:
		nc := color.NRGBA64Model.Convert(c).(color.NRGBA64)
		v[0], v[1], v[2], v[3] = nc.R, nc.G, nc.B, nc.A
	}
}
