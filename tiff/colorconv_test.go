package tiff

import (
	"image"
	"math"
	"testing"

	"github.com/mrjoshuak/go-tiffraster/raster"
)

func near(a, b, tol float32) bool {
	return math.Abs(float64(a-b)) <= float64(tol)
}

func TestYCbCrConverter(t *testing.T) {
	c := NewYCbCrConverter(nil, nil)
	tests := []struct {
		name      string
		y, cb, cr float32
		r, g, b   float32
	}{
		{"black", 0, 128, 128, 0, 0, 0},
		{"gray", 128, 128, 128, 128, 128, 128},
		{"white", 255, 128, 128, 255, 255, 255},
		{"red", 76, 85, 255, 254, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b := c.ToRGB(tt.y, tt.cb, tt.cr)
			if !near(r, tt.r, 1.5) || !near(g, tt.g, 1.5) || !near(b, tt.b, 1.5) {
				t.Errorf("ToRGB(%v, %v, %v) = (%v, %v, %v), want (%v, %v, %v)", tt.y, tt.cb, tt.cr, r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestNewYCbCrConverterFields(t *testing.T) {
	c := NewYCbCrConverter([]float32{0.2126, 0.7152, 0.0722}, []float32{16, 235, 128, 240, 128, 240})
	if c.LumaRed != 0.2126 || c.LumaGreen != 0.7152 || c.LumaBlue != 0.0722 {
		t.Errorf("coefficients = %v %v %v", c.LumaRed, c.LumaGreen, c.LumaBlue)
	}
	// Studio swing black and white.
	if r, g, b := c.ToRGB(16, 128, 128); !near(r, 0, 0.01) || !near(g, 0, 0.01) || !near(b, 0, 0.01) {
		t.Errorf("footroom = (%v, %v, %v), want black", r, g, b)
	}
	if r, g, b := c.ToRGB(235, 128, 128); !near(r, 255, 0.01) || !near(g, 255, 0.01) || !near(b, 255, 0.01) {
		t.Errorf("headroom = (%v, %v, %v), want white", r, g, b)
	}

	d := NewYCbCrConverter([]float32{1}, []float32{1, 2})
	if d.LumaRed != kr601 || d.ReferenceBlackWhite[1] != 255 {
		t.Error("malformed fields should fall back to the defaults")
	}
}

func TestCIELabConverter(t *testing.T) {
	var c CIELabConverter
	if r, g, b := c.ToRGB(0, 0, 0); r != 0 || g != 0 || b != 0 {
		t.Errorf("L=0 gives (%v, %v, %v), want black", r, g, b)
	}
	r, g, b := c.ToRGB(255, 0, 0)
	if !near(r, 255, 1) || !near(g, 255, 1) || !near(b, 255, 1) {
		t.Errorf("L=100 gives (%v, %v, %v), want white", r, g, b)
	}
	// a* is stored as a signed byte; 0xc0 is -64, towards green.
	r, g, _ = c.ToRGB(128, 0xc0, 0)
	if g <= r {
		t.Errorf("negative a* gives r=%v g=%v, want green to dominate", r, g)
	}
}

func TestConvertColorsClamps(t *testing.T) {
	ras := raster.NewInterleaved(image.Rect(0, 0, 1, 1), raster.Byte, 3)
	cc := ColorConverterFunc(func(x0, x1, x2 float32) (float32, float32, float32) {
		return -20, 300, 99.6
	})
	convertColors(ras, cc, false)
	if got := ras.Pixel(0, 0, nil); got[0] != 0 || got[1] != 255 || got[2] != 100 {
		t.Errorf("pixel = %v, want [0 255 100]", got)
	}

	sh := raster.NewInterleaved(image.Rect(0, 0, 1, 1), raster.Short, 3)
	convertColors(sh, cc, true)
	if got := sh.Pixel(0, 0, nil); got[0] != -20 || got[1] != 300 || got[2] != 100 {
		t.Errorf("signed pixel = %v, want [-20 300 100]", got)
	}
}

func BenchmarkYCbCrConverter(b *testing.B) {
	c := NewYCbCrConverter(nil, nil)
	for i := 0; i < b.N; i++ {
		c.ToRGB(float32(i&255), 100, 200)
	}
}
