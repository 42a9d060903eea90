// Package predictor undoes the TIFF Predictor tag transforms.
//
// Predictor 2 (horizontal differencing) stores each sample as the
// difference from the same sample of the previous pixel in the row.
// Predictor 3 (floating point) splits each row into byte planes, most
// significant byte first, and differences the resulting byte stream with a
// stride of samples per pixel.
package predictor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/mrjoshuak/go-tiffraster/internal/interleave"
)

// Predictor values of the TIFF Predictor tag.
const (
	None          = 1
	Horizontal    = 2
	FloatingPoint = 3
)

var (
	// ErrUnsupported is returned for predictor and sample size combinations
	// that have no defined inverse.
	ErrUnsupported = errors.New("predictor: unsupported configuration")

	// ErrShortRow is returned when a row is smaller than its declared size.
	ErrShortRow = errors.New("predictor: row too short")
)

// Row describes the geometry of one decoded row.
type Row struct {
	Width           int // pixels per row
	SamplesPerPixel int
	BitsPerSample   int
	Order           binary.ByteOrder
}

// Bytes returns the size of the row in bytes.
func (r Row) Bytes() int {
	return (r.Width*r.SamplesPerPixel*r.BitsPerSample + 7) / 8
}

// Decode undoes predictor p on every row of data. Rows are stride bytes
// apart. scratch, if non-nil, must hold at least one row and is used by the
// floating-point predictor.
func Decode(p int, data []byte, rows, stride int, geom Row, scratch []byte) error {
	switch p {
	case 0, None:
		return nil
	case Horizontal, FloatingPoint:
	default:
		return fmt.Errorf("%w: predictor %d", ErrUnsupported, p)
	}
	n := geom.Bytes()
	if p == FloatingPoint && len(scratch) < n {
		scratch = make([]byte, n)
	}
	for y := 0; y < rows; y++ {
		start := y * stride
		if start+n > len(data) {
			return ErrShortRow
		}
		row := data[start : start+n]
		var err error
		if p == Horizontal {
			err = DecodeHorizontal(row, geom)
		} else {
			err = DecodeFloatingPoint(row, geom, scratch)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// DecodeHorizontal reverses horizontal differencing on one row in place.
// Samples of 8, 16 and 32 bits are supported; wider samples are
// reconstructed in the row's byte order.
func DecodeHorizontal(row []byte, geom Row) error {
	spp := geom.SamplesPerPixel
	n := geom.Width * spp
	switch geom.BitsPerSample {
	case 8:
		if len(row) < n {
			return ErrShortRow
		}
		if spp == 1 {
			accumulate(row[:n])
			return nil
		}
		for i := spp; i < n; i++ {
			row[i] += row[i-spp]
		}
	case 16:
		if len(row) < 2*n {
			return ErrShortRow
		}
		o := geom.Order
		for i := spp; i < n; i++ {
			v := o.Uint16(row[2*i:]) + o.Uint16(row[2*(i-spp):])
			o.PutUint16(row[2*i:], v)
		}
	case 32:
		if len(row) < 4*n {
			return ErrShortRow
		}
		o := geom.Order
		for i := spp; i < n; i++ {
			v := o.Uint32(row[4*i:]) + o.Uint32(row[4*(i-spp):])
			o.PutUint32(row[4*i:], v)
		}
	default:
		return fmt.Errorf("%w: horizontal differencing of %d-bit samples", ErrUnsupported, geom.BitsPerSample)
	}
	return nil
}

// accumulate turns byte differences into running sums.
func accumulate(data []byte) {
	n := len(data)
	i := 1
	for ; i+7 < n; i += 8 {
		data[i] += data[i-1]
		data[i+1] += data[i]
		data[i+2] += data[i+1]
		data[i+3] += data[i+2]
		data[i+4] += data[i+3]
		data[i+5] += data[i+4]
		data[i+6] += data[i+5]
		data[i+7] += data[i+6]
	}
	for ; i < n; i++ {
		data[i] += data[i-1]
	}
}

// DecodeFloatingPoint reverses the floating-point predictor on one row in
// place. The reconstructed samples are written in the row's byte order.
func DecodeFloatingPoint(row []byte, geom Row, scratch []byte) error {
	size := geom.BitsPerSample / 8
	if geom.BitsPerSample%8 != 0 || size < 2 {
		return fmt.Errorf("%w: floating-point predictor on %d-bit samples", ErrUnsupported, geom.BitsPerSample)
	}
	spp := geom.SamplesPerPixel
	n := geom.Width * spp * size
	if len(row) < n {
		return ErrShortRow
	}
	row = row[:n]
	for i := spp; i < n; i++ {
		row[i] += row[i-spp]
	}
	if len(scratch) < n {
		scratch = make([]byte, n)
	}
	interleave.FromPlanesInPlace(row, size, scratch)
	if geom.Order == binary.LittleEndian {
		interleave.SwapElements(row, size)
	}
	return nil
}

// EncodeHorizontal applies horizontal differencing to one row in place.
func EncodeHorizontal(row []byte, geom Row) error {
	spp := geom.SamplesPerPixel
	n := geom.Width * spp
	o := geom.Order
	switch geom.BitsPerSample {
	case 8:
		if len(row) < n {
			return ErrShortRow
		}
		for i := n - 1; i >= spp; i-- {
			row[i] -= row[i-spp]
		}
	case 16:
		if len(row) < 2*n {
			return ErrShortRow
		}
		for i := n - 1; i >= spp; i-- {
			o.PutUint16(row[2*i:], o.Uint16(row[2*i:])-o.Uint16(row[2*(i-spp):]))
		}
	case 32:
		if len(row) < 4*n {
			return ErrShortRow
		}
		for i := n - 1; i >= spp; i-- {
			o.PutUint32(row[4*i:], o.Uint32(row[4*i:])-o.Uint32(row[4*(i-spp):]))
		}
	default:
		return fmt.Errorf("%w: horizontal differencing of %d-bit samples", ErrUnsupported, geom.BitsPerSample)
	}
	return nil
}

// EncodeFloatingPoint applies the floating-point predictor to one row in
// place. The row holds samples in geom.Order.
func EncodeFloatingPoint(row []byte, geom Row) error {
	size := geom.BitsPerSample / 8
	if geom.BitsPerSample%8 != 0 || size < 2 {
		return fmt.Errorf("%w: floating-point predictor on %d-bit samples", ErrUnsupported, geom.BitsPerSample)
	}
	spp := geom.SamplesPerPixel
	n := geom.Width * spp * size
	if len(row) < n {
		return ErrShortRow
	}
	row = row[:n]
	if geom.Order == binary.LittleEndian {
		interleave.SwapElements(row, size)
	}
	planes := interleave.ToPlanes(row, size, nil)
	copy(row, planes)
	for i := n - 1; i >= spp; i-- {
		row[i] -= row[i-spp]
	}
	return nil
}
