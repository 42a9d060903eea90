package tiff

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mrjoshuak/go-tiffraster/internal/bitstream"
	"github.com/mrjoshuak/go-tiffraster/raster"
)

// rawDecoder fills a raster with the samples of one strip or tile.
type rawDecoder struct {
	decompressor Decompressor
	pool         *BufferPool
}

// decode decompresses c into ras. bits holds the width of each stored
// band; ras must have one band per entry and cover c.Width x c.Height
// pixels.
func (d *rawDecoder) decode(c *Chunk, ras *raster.Raster, bits []int) error {
	if len(bits) != ras.NumBands() {
		return fmt.Errorf("%w: %d stored bands for a %d-band raster", ErrInvalidConfiguration, len(bits), ras.NumBands())
	}
	bpp := 0
	for _, b := range bits {
		bpp += b
	}

	switch {
	case ras.Type == raster.Byte && bitContiguous(ras, bits):
		return d.decompressor.DecodeRaw(c, ras.Pix8, ras.Offset, bpp, ras.Stride)
	case ras.Type == raster.Float && !bitContiguous(ras, bits):
		return fmt.Errorf("%w: %v-bit samples in float storage", ErrUnsupportedStorage, bits)
	}

	rowBytes := (c.Width*bpp + 7) / 8
	buf, err := d.pool.GetWithError(rowBytes * c.Height)
	if err != nil {
		return err
	}
	defer d.pool.Put(buf)
	if err := d.decompressor.DecodeRaw(c, buf, 0, bpp, rowBytes); err != nil {
		return err
	}

	order := c.Source.ByteOrder()
	switch {
	case !bitContiguous(ras, bits):
		return extractBands(ras, buf, rowBytes, bits, order)
	case ras.Layout == raster.Interleaved:
		return decodeTyped(ras, buf, rowBytes, order)
	default:
		reformatData(ras, buf, rowBytes)
		return nil
	}
}

// bitContiguous reports whether ras stores the samples exactly as packed
// in the decoded rows, so that rows map onto elements without moving bits.
func bitContiguous(ras *raster.Raster, bits []int) bool {
	tb := ras.Type.Bits()
	switch ras.Layout {
	case raster.Interleaved:
		if !ras.IsContiguous() {
			return false
		}
		for _, b := range bits {
			if b != tb {
				return false
			}
		}
		return true
	case raster.MultiPixelPacked:
		return ras.BitOffset == 0 && len(bits) == 1 && bits[0] == ras.SampleBits[0] && tb%bits[0] == 0
	case raster.SinglePixelPacked:
		sum := 0
		for b, n := range bits {
			if n != ras.SampleBits[b] {
				return false
			}
			sum += n
		}
		return sum == tb
	}
	return false
}

// decodeTyped converts rows of whole 16- or 32-bit samples stored in the
// source byte order.
func decodeTyped(ras *raster.Raster, buf []byte, rowBytes int, order binary.ByteOrder) error {
	w, h := ras.Rect.Dx(), ras.Rect.Dy()
	n := w * ras.PixelStride
	for y := 0; y < h; y++ {
		row := buf[y*rowBytes:]
		out := ras.Offset + y*ras.Stride
		switch ras.Type {
		case raster.UShort, raster.Short:
			dst := ras.Pix16[out : out+n]
			for i := range dst {
				dst[i] = order.Uint16(row[2*i:])
			}
		case raster.Int:
			dst := ras.Pix32[out : out+n]
			for i := range dst {
				dst[i] = int32(order.Uint32(row[4*i:]))
			}
		case raster.Float:
			dst := ras.PixF[out : out+n]
			for i := range dst {
				dst[i] = math.Float32frombits(order.Uint32(row[4*i:]))
			}
		default:
			return fmt.Errorf("%w: %s storage", ErrUnsupportedStorage, ras.Type)
		}
	}
	return nil
}

// reformatData groups the bytes of each row into 16- or 32-bit elements,
// most significant byte first. A short trailing group is zero-extended.
func reformatData(ras *raster.Raster, buf []byte, rowBytes int) {
	h := ras.Rect.Dy()
	eb := ras.Type.Bits() / 8
	elems := (rowBytes + eb - 1) / eb
	for y := 0; y < h; y++ {
		row := buf[y*rowBytes : (y+1)*rowBytes]
		out := ras.Offset + y*ras.Stride
		for i := 0; i < elems; i++ {
			var v uint32
			for k := 0; k < eb; k++ {
				v <<= 8
				if j := i*eb + k; j < len(row) {
					v |= uint32(row[j])
				}
			}
			switch ras.Type {
			case raster.UShort, raster.Short:
				ras.Pix16[out+i] = uint16(v)
			case raster.Int:
				ras.Pix32[out+i] = int32(v)
			}
		}
	}
}

// extractBands reads each sample of the decoded rows with a bit cursor and
// stores it through (x, y, band) addressing. Samples that start on a byte
// boundary and span whole bytes honor the source byte order.
func extractBands(ras *raster.Raster, buf []byte, rowBytes int, bits []int, order binary.ByteOrder) error {
	r := bitstream.NewReader(buf, order)
	x0, y0 := ras.Rect.Min.X, ras.Rect.Min.Y
	w, h := ras.Rect.Dx(), ras.Rect.Dy()
	for y := 0; y < h; y++ {
		if err := r.Seek(y * rowBytes); err != nil {
			return fmt.Errorf("%w: row %d", ErrTruncatedSource, y)
		}
		bit := 0
		for x := 0; x < w; x++ {
			for b, n := range bits {
				var v uint32
				var err error
				switch {
				case bit%8 == 0 && n == 16:
					var s uint16
					s, err = r.ReadUint16()
					v = uint32(s)
				case bit%8 == 0 && n == 32:
					v, err = r.ReadUint32()
				default:
					v, err = r.ReadBits(n)
				}
				if err != nil {
					return fmt.Errorf("%w: pixel (%d, %d)", ErrTruncatedSource, x, y)
				}
				bit += n
				ras.SetSample(x0+x, y0+y, b, int(v))
			}
		}
	}
	return nil
}
