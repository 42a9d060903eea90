package tiff

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// PixelLayout describes how one image stores its samples, as declared by
// its directory fields.
type PixelLayout struct {
	Photometric     Photometric
	Compression     Compression
	SamplesPerPixel int

	// BitsPerSample holds the width of each band.
	BitsPerSample []int

	// SampleFormat holds the format of each band. Missing entries default
	// to SampleFormatUint.
	SampleFormat []SampleFormat

	// ExtraSamples describes the bands beyond the color bands.
	ExtraSamples []ExtraSample

	// ColorMap is the palette as three consecutive runs of 2^bits 16-bit
	// entries: red, green, then blue. It is nil for non-indexed images.
	ColorMap []uint16

	// Planar is true when every band is stored in its own strips or tiles.
	Planar bool
}

// Format returns the sample format of band b.
func (l *PixelLayout) Format(b int) SampleFormat {
	if b < len(l.SampleFormat) && l.SampleFormat[b] != 0 {
		return l.SampleFormat[b]
	}
	if b > 0 && len(l.SampleFormat) > 0 {
		return l.Format(0)
	}
	return SampleFormatUint
}

// BitsPerPixel returns the sum of the band widths.
func (l *PixelLayout) BitsPerPixel() int {
	total := 0
	for _, b := range l.bands() {
		total += b
	}
	return total
}

// bands returns the bit depth of each of the SamplesPerPixel bands.
func (l *PixelLayout) bands() []int {
	if len(l.BitsPerSample) > l.SamplesPerPixel {
		return l.BitsPerSample[:l.SamplesPerPixel]
	}
	return l.BitsPerSample
}

// firstExtraSample returns the role of the first extra band.
func (l *PixelLayout) firstExtraSample() ExtraSample {
	if len(l.ExtraSamples) == 0 {
		return ExtraSampleUnspecified
	}
	return l.ExtraSamples[0]
}

// Validate checks the layout for internal consistency. Every violated rule
// is reported; the returned error wraps ErrInvalidConfiguration.
func (l *PixelLayout) Validate() error {
	var result *multierror.Error
	if l.SamplesPerPixel < 1 {
		result = multierror.Append(result, fmt.Errorf("%w: %d samples per pixel", ErrInvalidConfiguration, l.SamplesPerPixel))
	}
	if len(l.BitsPerSample) < l.SamplesPerPixel {
		result = multierror.Append(result, fmt.Errorf("%w: %d bit depths for %d samples", ErrInvalidConfiguration, len(l.BitsPerSample), l.SamplesPerPixel))
	}
	for b, bits := range l.bands() {
		if bits < 1 || bits > 32 {
			result = multierror.Append(result, fmt.Errorf("%w: band %d has %d bits", ErrInvalidConfiguration, b, bits))
		}
	}
	if l.ColorMap != nil && len(l.BitsPerSample) > 0 {
		bits := l.BitsPerSample[0]
		if bits >= 1 && bits <= 16 {
			if want := 3 << uint(bits); len(l.ColorMap) < want {
				result = multierror.Append(result, fmt.Errorf("%w: color map has %d entries, want %d", ErrInvalidConfiguration, len(l.ColorMap), want))
			}
		} else {
			result = multierror.Append(result, fmt.Errorf("%w: color map with %d-bit samples", ErrInvalidConfiguration, bits))
		}
	}
	return result.ErrorOrNil()
}

// clone returns a deep copy of l.
func (l PixelLayout) clone() PixelLayout {
	l.BitsPerSample = append([]int(nil), l.BitsPerSample...)
	l.SampleFormat = append([]SampleFormat(nil), l.SampleFormat...)
	l.ExtraSamples = append([]ExtraSample(nil), l.ExtraSamples...)
	if l.ColorMap != nil {
		l.ColorMap = append([]uint16(nil), l.ColorMap...)
	}
	return l
}

func (l PixelLayout) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "photometric=%s samples=%d bits=%v", l.Photometric, l.SamplesPerPixel, l.BitsPerSample)
	if len(l.SampleFormat) > 0 {
		fmt.Fprintf(&sb, " format=%v", l.SampleFormat)
	}
	if len(l.ExtraSamples) > 0 {
		fmt.Fprintf(&sb, " extra=%v", l.ExtraSamples)
	}
	if l.ColorMap != nil {
		sb.WriteString(" palette")
	}
	if l.Planar {
		sb.WriteString(" planar")
	}
	return sb.String()
}
