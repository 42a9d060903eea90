package tiff

import (
	"fmt"

	"github.com/hashicorp/go-multierror"

	"github.com/mrjoshuak/go-tiffraster/raster"
)

// DecodeRequest is everything a Pipeline needs to decode one strip or
// tile. It is copied by Configure and not modified afterwards.
type DecodeRequest struct {
	// Layout describes the stored samples. For one plane of a planar
	// image it has a single band and Planar set.
	Layout PixelLayout

	// Source, Offset and ByteCount locate the stored bytes.
	Source    ByteSource
	Offset    int64
	ByteCount int

	// Region places the strip or tile in the destination.
	Region Region

	// SourceBands[i] of the stored pixels is written to band
	// DestinationBands[i] of Destination. Nil lists select every band.
	SourceBands      []int
	DestinationBands []int

	Destination *raster.Raster

	// ColorConverter, if set, converts the first three bands to RGB.
	ColorConverter ColorConverter
}

// Validate reports every problem with the request. Each aggregated error
// wraps ErrInvalidConfiguration, except a destination storage layout the
// decoder does not know, which wraps ErrUnsupportedStorage.
func (r *DecodeRequest) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidConfiguration}, args...)...))
	}

	if err := r.Layout.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if r.Source == nil {
		add("no byte source")
	}
	if r.Offset < 0 {
		add("negative offset %d", r.Offset)
	}
	if r.ByteCount < 0 {
		add("negative byte count %d", r.ByteCount)
	}
	if err := r.Region.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if len(r.SourceBands) != len(r.DestinationBands) {
		add("%d source bands mapped to %d destination bands", len(r.SourceBands), len(r.DestinationBands))
	}
	for _, b := range r.SourceBands {
		if b < 0 || b >= r.Layout.SamplesPerPixel {
			add("source band %d of %d", b, r.Layout.SamplesPerPixel)
		}
	}
	if r.Destination == nil {
		add("no destination raster")
	} else {
		switch r.Destination.Layout {
		case raster.Interleaved, raster.MultiPixelPacked, raster.SinglePixelPacked:
			if err := r.Destination.Validate(); err != nil {
				add("destination: %v", err)
			}
		default:
			result = multierror.Append(result, fmt.Errorf("%w: %s", ErrUnsupportedStorage, r.Destination.Layout))
		}
		for _, b := range r.DestinationBands {
			if b < 0 || b >= r.Destination.NumBands() {
				add("destination band %d of %d", b, r.Destination.NumBands())
			}
		}
		if !r.Region.Dst.Empty() && !r.Region.Dst.In(r.Destination.Rect) {
			add("destination rectangle %v outside raster %v", r.Region.Dst, r.Destination.Rect)
		}
	}
	if r.ColorConverter != nil && r.Layout.SamplesPerPixel < 3 {
		add("color conversion of %d bands", r.Layout.SamplesPerPixel)
	}
	return result.ErrorOrNil()
}

// withDefaults returns a deep copy of r with nil band lists replaced by the
// identity mapping.
func (r DecodeRequest) withDefaults() DecodeRequest {
	r.Layout = r.Layout.clone()
	if r.SourceBands == nil && r.DestinationBands == nil {
		n := r.Layout.SamplesPerPixel
		if r.Destination != nil && r.Destination.NumBands() < n {
			n = r.Destination.NumBands()
		}
		r.SourceBands = identity(n)
		r.DestinationBands = identity(n)
	} else {
		r.SourceBands = append([]int(nil), r.SourceBands...)
		r.DestinationBands = append([]int(nil), r.DestinationBands...)
	}
	return r
}

func identity(n int) []int {
	bands := make([]int, n)
	for i := range bands {
		bands[i] = i
	}
	return bands
}

func isIdentity(bands []int) bool {
	for i, b := range bands {
		if b != i {
			return false
		}
	}
	return true
}
