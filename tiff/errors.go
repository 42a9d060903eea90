package tiff

import (
	"errors"
	"fmt"
)

// Decoding errors. Every error returned by this package wraps one of these
// and can be tested with errors.Is.
var (
	// ErrUnsupportedLayout is returned when no raster type matches a pixel
	// layout.
	ErrUnsupportedLayout = errors.New("tiff: unsupported pixel layout")

	// ErrUnsupportedStorage is returned when a destination raster uses a
	// storage arrangement the decoder cannot write.
	ErrUnsupportedStorage = errors.New("tiff: unsupported destination storage")

	// ErrTruncatedSource is returned when the byte source ends before the
	// declared strip or tile does.
	ErrTruncatedSource = errors.New("tiff: truncated source")

	// ErrInvalidConfiguration is returned for malformed decode requests.
	ErrInvalidConfiguration = errors.New("tiff: invalid configuration")

	// ErrUnsupportedCompression is returned when no decompressor is
	// registered for a compression scheme.
	ErrUnsupportedCompression = errors.New("tiff: unsupported compression")

	// ErrInvalidHeader is returned when a file does not start with a TIFF
	// byte order mark.
	ErrInvalidHeader = errors.New("tiff: invalid header")

	// ErrNotPrepared is returned by Pipeline.Decode when BeginDecoding has
	// not run since the last Configure.
	ErrNotPrepared = fmt.Errorf("%w: pipeline not prepared", ErrInvalidConfiguration)
)

// LayoutError reports a pixel layout that resolves to no raster type.
type LayoutError struct {
	Layout PixelLayout
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("tiff: unsupported pixel layout: %s", e.Layout)
}

// Unwrap returns ErrUnsupportedLayout.
func (e *LayoutError) Unwrap() error {
	return ErrUnsupportedLayout
}
