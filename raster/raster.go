// Package raster provides typed pixel storage addressed by (x, y, band).
//
// A Raster owns (or views) one flat array of storage elements. The element
// type is one of the DataType values and the arrangement of samples inside
// the array is one of three layouts:
//
//   - Interleaved: every sample occupies one element; the samples of a pixel
//     are PixelStride elements apart from the next pixel's.
//   - MultiPixelPacked: a single band whose samples are packed several to an
//     element, most significant bits first.
//   - SinglePixelPacked: one element per pixel, with each band selected by a
//     bit mask.
//
// Rasters use absolute coordinates: Rect.Min is the coordinate of the first
// pixel, which need not be the origin.
package raster

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
)

// Raster errors
var (
	ErrInvalidRaster = errors.New("raster: invalid raster configuration")
	ErrBoundsCheck   = errors.New("raster: coordinates out of bounds")
)

// DataType is the storage element type of a raster.
type DataType int

// Storage element types.
const (
	Byte   DataType = iota // unsigned 8-bit
	UShort                 // unsigned 16-bit
	Short                  // signed 16-bit
	Int                    // signed 32-bit
	Float                  // IEEE 754 32-bit
)

// Bits returns the storage width of the element type in bits.
func (t DataType) Bits() int {
	switch t {
	case Byte:
		return 8
	case UShort, Short:
		return 16
	case Int, Float:
		return 32
	default:
		return 0
	}
}

// String returns the name of the data type.
func (t DataType) String() string {
	switch t {
	case Byte:
		return "byte"
	case UShort:
		return "ushort"
	case Short:
		return "short"
	case Int:
		return "int"
	case Float:
		return "float"
	default:
		return fmt.Sprintf("DataType(%d)", int(t))
	}
}

// Layout is the arrangement of samples within the storage array.
type Layout int

// Storage layouts.
const (
	Interleaved Layout = iota
	MultiPixelPacked
	SinglePixelPacked
)

// String returns the name of the layout.
func (l Layout) String() string {
	switch l {
	case Interleaved:
		return "interleaved"
	case MultiPixelPacked:
		return "multi-pixel-packed"
	case SinglePixelPacked:
		return "single-pixel-packed"
	default:
		return fmt.Sprintf("Layout(%d)", int(l))
	}
}

// Raster is a rectangle of pixels stored in a flat typed array.
//
// Exactly one of Pix8, Pix16, Pix32 and PixF is non-nil, matching Type:
// Byte uses Pix8, UShort and Short use Pix16 (Short stores the two's
// complement bits), Int uses Pix32 and Float uses PixF.
type Raster struct {
	// Rect is the absolute pixel rectangle covered by the raster.
	Rect image.Rectangle

	// Type is the storage element type.
	Type DataType

	// Layout is the sample arrangement.
	Layout Layout

	// SampleBits holds the number of significant bits of each band.
	// Its length is the number of bands.
	SampleBits []int

	// PixelStride is the distance in elements between adjacent pixels of
	// an interleaved raster. It is 1 for single-pixel-packed rasters and
	// unused for multi-pixel-packed ones.
	PixelStride int

	// BandOffsets holds the element offset of each band within a pixel of
	// an interleaved raster.
	BandOffsets []int

	// Masks holds the bit mask of each band of a single-pixel-packed raster.
	Masks []uint32

	// Stride is the distance in elements between vertically adjacent pixels.
	Stride int

	// Offset is the element index of the first row of the raster.
	Offset int

	// BitOffset is the bit position of the first pixel of a
	// multi-pixel-packed raster within the element at Offset.
	BitOffset int

	Pix8  []uint8
	Pix16 []uint16
	Pix32 []int32
	PixF  []float32

	shifts []uint
}

// NewInterleaved allocates an interleaved raster of the given type with
// bands samples per pixel. Every band has the full element width.
func NewInterleaved(r image.Rectangle, t DataType, bands int) *Raster {
	if bands < 1 {
		bands = 1
	}
	w, h := r.Dx(), r.Dy()
	ras := &Raster{
		Rect:        r,
		Type:        t,
		Layout:      Interleaved,
		SampleBits:  make([]int, bands),
		PixelStride: bands,
		BandOffsets: make([]int, bands),
		Stride:      w * bands,
	}
	for b := 0; b < bands; b++ {
		ras.SampleBits[b] = t.Bits()
		ras.BandOffsets[b] = b
	}
	ras.alloc(w * bands * h)
	return ras
}

// NewMultiPixelPacked allocates a single-band raster whose samples are
// bitsPerPixel wide and packed into elements of the given type.
func NewMultiPixelPacked(r image.Rectangle, t DataType, bitsPerPixel int) *Raster {
	tb := t.Bits()
	w, h := r.Dx(), r.Dy()
	stride := (w*bitsPerPixel + tb - 1) / tb
	ras := &Raster{
		Rect:       r,
		Type:       t,
		Layout:     MultiPixelPacked,
		SampleBits: []int{bitsPerPixel},
		Stride:     stride,
	}
	ras.alloc(stride * h)
	return ras
}

// NewSinglePixelPacked allocates a raster storing one element per pixel,
// with band b held in the bits selected by masks[b].
func NewSinglePixelPacked(r image.Rectangle, t DataType, masks []uint32) *Raster {
	w, h := r.Dx(), r.Dy()
	ras := &Raster{
		Rect:        r,
		Type:        t,
		Layout:      SinglePixelPacked,
		SampleBits:  make([]int, len(masks)),
		PixelStride: 1,
		Masks:       append([]uint32(nil), masks...),
		Stride:      w,
	}
	for b, m := range masks {
		ras.SampleBits[b] = bits.OnesCount32(m)
	}
	ras.initShifts()
	ras.alloc(w * h)
	return ras
}

func (r *Raster) alloc(n int) {
	switch r.Type {
	case Byte:
		r.Pix8 = make([]uint8, n)
	case UShort, Short:
		r.Pix16 = make([]uint16, n)
	case Int:
		r.Pix32 = make([]int32, n)
	case Float:
		r.PixF = make([]float32, n)
	}
}

func (r *Raster) initShifts() {
	r.shifts = make([]uint, len(r.Masks))
	for b, m := range r.Masks {
		if m != 0 {
			r.shifts[b] = uint(bits.TrailingZeros32(m))
		}
	}
}

// Validate reports whether the raster geometry is consistent with its
// storage array.
func (r *Raster) Validate() error {
	if r.Rect.Empty() {
		return nil
	}
	if len(r.SampleBits) == 0 {
		return fmt.Errorf("%w: no bands", ErrInvalidRaster)
	}
	switch r.Layout {
	case Interleaved:
		if len(r.BandOffsets) != len(r.SampleBits) {
			return fmt.Errorf("%w: %d band offsets for %d bands", ErrInvalidRaster, len(r.BandOffsets), len(r.SampleBits))
		}
	case SinglePixelPacked:
		if len(r.Masks) != len(r.SampleBits) {
			return fmt.Errorf("%w: %d masks for %d bands", ErrInvalidRaster, len(r.Masks), len(r.SampleBits))
		}
		if r.Type == Float {
			return fmt.Errorf("%w: packed float storage", ErrInvalidRaster)
		}
	case MultiPixelPacked:
		if len(r.SampleBits) != 1 || r.SampleBits[0] < 1 || r.SampleBits[0] > r.Type.Bits() || r.Type == Float {
			return fmt.Errorf("%w: multi-pixel-packed %d-bit samples in %s elements", ErrInvalidRaster, r.SampleBits[0], r.Type)
		}
	default:
		return fmt.Errorf("%w: unknown layout %d", ErrInvalidRaster, int(r.Layout))
	}
	last := r.index(r.Rect.Max.X-1, r.Rect.Max.Y-1, len(r.SampleBits)-1)
	if last >= r.Len() {
		return fmt.Errorf("%w: storage of %d elements too small", ErrInvalidRaster, r.Len())
	}
	return nil
}

// NumBands returns the number of bands.
func (r *Raster) NumBands() int {
	return len(r.SampleBits)
}

// Bounds returns the absolute pixel rectangle of the raster.
func (r *Raster) Bounds() image.Rectangle {
	return r.Rect
}

// Len returns the length of the storage array in elements.
func (r *Raster) Len() int {
	switch r.Type {
	case Byte:
		return len(r.Pix8)
	case UShort, Short:
		return len(r.Pix16)
	case Int:
		return len(r.Pix32)
	case Float:
		return len(r.PixF)
	}
	return 0
}

// Shift returns the right shift that extracts band b of a
// single-pixel-packed raster.
func (r *Raster) Shift(b int) uint {
	if len(r.shifts) != len(r.Masks) {
		r.initShifts()
	}
	return r.shifts[b]
}

// index returns the element index holding sample (x, y, b). For
// multi-pixel-packed rasters it is the element containing the sample.
func (r *Raster) index(x, y, b int) int {
	row := r.Offset + (y-r.Rect.Min.Y)*r.Stride
	switch r.Layout {
	case MultiPixelPacked:
		bit := r.BitOffset + (x-r.Rect.Min.X)*r.SampleBits[0]
		return row + bit/r.Type.Bits()
	case SinglePixelPacked:
		return row + (x - r.Rect.Min.X)
	default:
		return row + (x-r.Rect.Min.X)*r.PixelStride + r.BandOffsets[b]
	}
}

// PixOffset returns the index of the first element of pixel (x, y).
func (r *Raster) PixOffset(x, y int) int {
	return r.index(x, y, 0) - r.bandOffset(0)
}

func (r *Raster) bandOffset(b int) int {
	if r.Layout == Interleaved {
		return r.BandOffsets[b]
	}
	return 0
}

// element returns the raw bits of element i.
func (r *Raster) element(i int) uint32 {
	switch r.Type {
	case Byte:
		return uint32(r.Pix8[i])
	case UShort, Short:
		return uint32(r.Pix16[i])
	case Int:
		return uint32(r.Pix32[i])
	}
	return 0
}

func (r *Raster) setElement(i int, v uint32) {
	switch r.Type {
	case Byte:
		r.Pix8[i] = uint8(v)
	case UShort, Short:
		r.Pix16[i] = uint16(v)
	case Int:
		r.Pix32[i] = int32(v)
	}
}

// Sample returns band b of pixel (x, y) as an integer. Short samples are
// sign-extended and float samples are truncated.
func (r *Raster) Sample(x, y, b int) int {
	i := r.index(x, y, b)
	switch r.Layout {
	case SinglePixelPacked:
		return int((r.element(i) & r.Masks[b]) >> r.Shift(b))
	case MultiPixelPacked:
		tb := r.Type.Bits()
		pbs := r.SampleBits[0]
		bit := r.BitOffset + (x-r.Rect.Min.X)*pbs
		shift := tb - bit%tb - pbs
		return int((r.element(i) >> uint(shift)) & (1<<uint(pbs) - 1))
	}
	switch r.Type {
	case Byte:
		return int(r.Pix8[i])
	case UShort:
		return int(r.Pix16[i])
	case Short:
		return int(int16(r.Pix16[i]))
	case Int:
		return int(r.Pix32[i])
	case Float:
		return int(r.PixF[i])
	}
	return 0
}

// SetSample stores v into band b of pixel (x, y), truncating it to the
// storage width.
func (r *Raster) SetSample(x, y, b, v int) {
	i := r.index(x, y, b)
	switch r.Layout {
	case SinglePixelPacked:
		m := r.Masks[b]
		r.setElement(i, r.element(i)&^m|(uint32(v)<<r.Shift(b))&m)
		return
	case MultiPixelPacked:
		tb := r.Type.Bits()
		pbs := r.SampleBits[0]
		bit := r.BitOffset + (x-r.Rect.Min.X)*pbs
		shift := uint(tb - bit%tb - pbs)
		m := uint32(1<<uint(pbs)-1) << shift
		r.setElement(i, r.element(i)&^m|(uint32(v)<<shift)&m)
		return
	}
	switch r.Type {
	case Byte:
		r.Pix8[i] = uint8(v)
	case UShort, Short:
		r.Pix16[i] = uint16(v)
	case Int:
		r.Pix32[i] = int32(v)
	case Float:
		r.PixF[i] = float32(v)
	}
}

// SampleFloat returns band b of pixel (x, y) as a float32.
func (r *Raster) SampleFloat(x, y, b int) float32 {
	if r.Type == Float {
		return r.PixF[r.index(x, y, b)]
	}
	return float32(r.Sample(x, y, b))
}

// SetSampleFloat stores v into band b of pixel (x, y). Integer storage
// receives the truncated value.
func (r *Raster) SetSampleFloat(x, y, b int, v float32) {
	if r.Type == Float {
		r.PixF[r.index(x, y, b)] = v
		return
	}
	r.SetSample(x, y, b, int(v))
}

// Pixel returns all bands of pixel (x, y), reusing p when it is large
// enough.
func (r *Raster) Pixel(x, y int, p []int) []int {
	n := len(r.SampleBits)
	if cap(p) < n {
		p = make([]int, n)
	}
	p = p[:n]
	for b := range p {
		p[b] = r.Sample(x, y, b)
	}
	return p
}

// SetPixel stores all bands of pixel (x, y).
func (r *Raster) SetPixel(x, y int, p []int) {
	for b, v := range p {
		r.SetSample(x, y, b, v)
	}
}

// In reports whether (x, y) lies inside the raster.
func (r *Raster) In(x, y int) bool {
	return image.Pt(x, y).In(r.Rect)
}

// SubImage returns a raster viewing the part of r inside rect. The view
// shares storage with r.
func (r *Raster) SubImage(rect image.Rectangle) *Raster {
	rect = rect.Intersect(r.Rect)
	sub := *r
	sub.Rect = rect
	if rect.Empty() {
		return &sub
	}
	dx := rect.Min.X - r.Rect.Min.X
	dy := rect.Min.Y - r.Rect.Min.Y
	sub.Offset += dy * r.Stride
	switch r.Layout {
	case MultiPixelPacked:
		tb := r.Type.Bits()
		bit := r.BitOffset + dx*r.SampleBits[0]
		sub.Offset += bit / tb
		sub.BitOffset = bit % tb
	default:
		sub.Offset += dx * r.PixelStride
	}
	return &sub
}

// IsContiguous reports whether the raster's samples can be written row by
// row at their natural packing: interleaved rasters must hold bands in
// order with no gaps between pixels, and multi-pixel-packed rasters must
// start on an element boundary.
func (r *Raster) IsContiguous() bool {
	switch r.Layout {
	case Interleaved:
		if r.PixelStride != len(r.SampleBits) {
			return false
		}
		for b, off := range r.BandOffsets {
			if off != b {
				return false
			}
		}
		return true
	case MultiPixelPacked:
		return r.BitOffset == 0
	case SinglePixelPacked:
		return r.PixelStride == 1
	}
	return false
}

// SameStorage reports whether a and b use the same element type, layout
// and per-band sample widths, so that bytes decoded for one are valid for
// the other.
func SameStorage(a, b *Raster) bool {
	if a.Type != b.Type || a.Layout != b.Layout || len(a.SampleBits) != len(b.SampleBits) {
		return false
	}
	for i := range a.SampleBits {
		if a.SampleBits[i] != b.SampleBits[i] {
			return false
		}
	}
	if a.Layout == SinglePixelPacked {
		for i := range a.Masks {
			if a.Masks[i] != b.Masks[i] {
				return false
			}
		}
	}
	return true
}
