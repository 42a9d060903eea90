package tiff

import (
	"math"

	"github.com/mrjoshuak/go-tiffraster/raster"
)

// ColorConverter converts one pixel of a three-band color space to RGB.
// Inputs and outputs use the sample range of the raster being converted.
type ColorConverter interface {
	ToRGB(x0, x1, x2 float32) (r, g, b float32)
}

// ColorConverterFunc adapts a function to the ColorConverter interface.
type ColorConverterFunc func(x0, x1, x2 float32) (r, g, b float32)

// ToRGB calls f.
func (f ColorConverterFunc) ToRGB(x0, x1, x2 float32) (r, g, b float32) {
	return f(x0, x1, x2)
}

// ITU-R BT.601 luma coefficients, the TIFF YCbCrCoefficients default.
const (
	kr601 = 0.299
	kg601 = 0.587
	kb601 = 0.114
)

// YCbCrConverter converts YCbCr samples to RGB using the YCbCrCoefficients
// and ReferenceBlackWhite fields of a directory.
type YCbCrConverter struct {
	LumaRed, LumaGreen, LumaBlue float32

	// ReferenceBlackWhite holds the footroom and headroom of Y, Cb and Cr.
	ReferenceBlackWhite [6]float32
}

// NewYCbCrConverter returns a converter for the given coefficients and
// reference black and white. Missing values take the TIFF defaults.
func NewYCbCrConverter(coefficients, referenceBlackWhite []float32) *YCbCrConverter {
	c := &YCbCrConverter{
		LumaRed:             kr601,
		LumaGreen:           kg601,
		LumaBlue:            kb601,
		ReferenceBlackWhite: [6]float32{0, 255, 128, 255, 128, 255},
	}
	if len(coefficients) == 3 {
		c.LumaRed, c.LumaGreen, c.LumaBlue = coefficients[0], coefficients[1], coefficients[2]
	}
	if len(referenceBlackWhite) == 6 {
		copy(c.ReferenceBlackWhite[:], referenceBlackWhite)
	}
	return c
}

// ToRGB converts one YCbCr pixel.
func (c *YCbCrConverter) ToRGB(y, cb, cr float32) (r, g, b float32) {
	ref := &c.ReferenceBlackWhite
	y = (y - ref[0]) * 255 / (ref[1] - ref[0])
	cb = (cb - ref[2]) * 127 / (ref[3] - ref[2])
	cr = (cr - ref[4]) * 127 / (ref[5] - ref[4])

	r = cr*(2-2*c.LumaRed) + y
	b = cb*(2-2*c.LumaBlue) + y
	// Y = kr*R + kg*G + kb*B
	g = (y - c.LumaBlue*b - c.LumaRed*r) / c.LumaGreen
	return r, g, b
}

// CIE D65 reference white.
const (
	whiteX = 0.95047
	whiteY = 1.0
	whiteZ = 1.08883
)

// CIELabConverter converts 8-bit CIE L*a*b* samples, as stored with
// PhotometricCIELab, to linear RGB in [0, 255].
type CIELabConverter struct{}

// ToRGB converts one L*a*b* pixel. a* and b* are signed bytes.
func (CIELabConverter) ToRGB(l, a, b float32) (r, g, bl float32) {
	if a > 127 {
		a -= 256
	}
	if b > 127 {
		b -= 256
	}
	fy := (float64(l)*100/255 + 16) / 116
	fx := fy + float64(a)/500
	fz := fy - float64(b)/200

	x := whiteX * labInverse(fx)
	y := whiteY * labInverse(fy)
	z := whiteZ * labInverse(fz)

	rl := 3.2406*x - 1.5372*y - 0.4986*z
	gl := -0.9689*x + 1.8758*y + 0.0415*z
	bll := 0.0557*x - 0.2040*y + 1.0570*z
	return float32(clamp01(rl) * 255), float32(clamp01(gl) * 255), float32(clamp01(bll) * 255)
}

func labInverse(t float64) float64 {
	const delta = 6.0 / 29
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// convertColors runs cc over the first three bands of every pixel of ras,
// rounding and clamping integer results to the sample range.
func convertColors(ras *raster.Raster, cc ColorConverter, signed bool) {
	x0, y0 := ras.Rect.Min.X, ras.Rect.Min.Y
	w, h := ras.Rect.Dx(), ras.Rect.Dy()
	var lo, hi [3]float32
	for b := 0; b < 3; b++ {
		lo[b], hi[b] = sampleRange(ras.Type, ras.SampleBits[b], signed)
	}
	for y := y0; y < y0+h; y++ {
		for x := x0; x < x0+w; x++ {
			r, g, b := cc.ToRGB(ras.SampleFloat(x, y, 0), ras.SampleFloat(x, y, 1), ras.SampleFloat(x, y, 2))
			if ras.Type == raster.Float {
				ras.SetSampleFloat(x, y, 0, r)
				ras.SetSampleFloat(x, y, 1, g)
				ras.SetSampleFloat(x, y, 2, b)
				continue
			}
			for band, v := range [3]float32{r, g, b} {
				v = float32(math.Round(float64(v)))
				if v < lo[band] {
					v = lo[band]
				} else if v > hi[band] {
					v = hi[band]
				}
				ras.SetSample(x, y, band, int(v))
			}
		}
	}
}

// sampleRange returns the representable range of a bits-wide sample.
func sampleRange(t raster.DataType, bits int, signed bool) (lo, hi float32) {
	switch {
	case t == raster.Short:
		return math.MinInt16, math.MaxInt16
	case t == raster.Int && signed:
		return math.MinInt32, math.MaxInt32
	}
	return 0, float32(sampleMask(bits))
}
