package tiff

import (
	"math"

	"github.com/mrjoshuak/go-tiffraster/raster"
)

// invertWhiteIsZero flips the samples of ras so that zero means black.
//
// Unsigned samples are complemented over their bit width and float
// samples become 1-v. Signed samples become MAX-v, which does not map the
// negative range onto itself.
func invertWhiteIsZero(ras *raster.Raster, signed bool) {
	w, h := ras.Rect.Dx(), ras.Rect.Dy()
	if w <= 0 || h <= 0 {
		return
	}
	switch ras.Layout {
	case raster.MultiPixelPacked:
		invertPacked(ras, w, h)
		return
	case raster.SinglePixelPacked:
		var mask uint32
		for _, m := range ras.Masks {
			mask |= m
		}
		for y := 0; y < h; y++ {
			row := ras.Offset + y*ras.Stride
			for x := 0; x < w; x++ {
				switch ras.Type {
				case raster.Byte:
					ras.Pix8[row+x] ^= uint8(mask)
				case raster.UShort, raster.Short:
					ras.Pix16[row+x] ^= uint16(mask)
				case raster.Int:
					ras.Pix32[row+x] ^= int32(mask)
				}
			}
		}
		return
	}

	for y := 0; y < h; y++ {
		pix := ras.Offset + y*ras.Stride
		for x := 0; x < w; x++ {
			for b, off := range ras.BandOffsets {
				i := pix + off
				switch ras.Type {
				case raster.Byte:
					ras.Pix8[i] ^= uint8(sampleMask(ras.SampleBits[b]))
				case raster.UShort:
					ras.Pix16[i] ^= uint16(sampleMask(ras.SampleBits[b]))
				case raster.Short:
					ras.Pix16[i] = uint16(math.MaxInt16 - int16(ras.Pix16[i]))
				case raster.Int:
					if signed {
						ras.Pix32[i] = math.MaxInt32 - ras.Pix32[i]
					} else {
						ras.Pix32[i] ^= int32(sampleMask(ras.SampleBits[b]))
					}
				case raster.Float:
					ras.PixF[i] = 1 - ras.PixF[i]
				}
			}
			pix += ras.PixelStride
		}
	}
}

// invertPacked complements every element a row of packed samples touches,
// including the pad bits of a partial last element.
func invertPacked(ras *raster.Raster, w, h int) {
	tb := ras.Type.Bits()
	n := (ras.BitOffset + w*ras.SampleBits[0] + tb - 1) / tb
	for y := 0; y < h; y++ {
		row := ras.Offset + y*ras.Stride
		for i := row; i < row+n; i++ {
			switch ras.Type {
			case raster.Byte:
				ras.Pix8[i] = ^ras.Pix8[i]
			case raster.UShort, raster.Short:
				ras.Pix16[i] = ^ras.Pix16[i]
			case raster.Int:
				ras.Pix32[i] = ^ras.Pix32[i]
			}
		}
	}
}

func sampleMask(bits int) uint32 {
	if bits >= 32 {
		return math.MaxUint32
	}
	return 1<<uint(bits) - 1
}
