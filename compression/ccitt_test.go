package compression

import (
	"bytes"
	"errors"
	"testing"
)

func TestCCITTGroup4AllWhite(t *testing.T) {
	// Every row of an all-white page repeats the all-white reference line
	// and codes as a single vertical-mode V0 bit.
	const w, h = 16, 8
	src := []byte{0xff}

	tests := []struct {
		name   string
		invert bool
		want   byte
	}{
		{"white is one", false, 0xff},
		{"white is zero", true, 0x00},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, (w+7)/8*h)
			err := CCITTDecompressTo(dst, src, CCITTOptions{Width: w, Height: h, Group4: true, Invert: tt.invert})
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dst, bytes.Repeat([]byte{tt.want}, len(dst))) {
				t.Errorf("got %x", dst)
			}
		})
	}
}

func TestCCITTBufferTooSmall(t *testing.T) {
	err := CCITTDecompressTo(make([]byte, 3), []byte{0xff}, CCITTOptions{Width: 16, Height: 2, Group4: true})
	if !errors.Is(err, ErrCCITTCorrupted) {
		t.Errorf("err = %v, want ErrCCITTCorrupted", err)
	}
}

func TestJPEG2000Errors(t *testing.T) {
	tests := []struct {
		name string
		opts JPEG2000Options
		want error
	}{
		{"bit depth", JPEG2000Options{Width: 1, Height: 1, Samples: 1, BitsPerSample: 12}, ErrJPEG2000Geometry},
		{"samples", JPEG2000Options{Width: 1, Height: 1, Samples: 5, BitsPerSample: 8}, ErrJPEG2000Geometry},
		{"buffer", JPEG2000Options{Width: 4, Height: 4, Samples: 3, BitsPerSample: 8}, ErrJPEG2000Geometry},
		{"garbage", JPEG2000Options{Width: 1, Height: 1, Samples: 1, BitsPerSample: 8}, ErrJPEG2000Corrupted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := JPEG2000DecompressTo(make([]byte, 4), []byte{0xde, 0xad, 0xbe, 0xef}, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
