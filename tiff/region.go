package tiff

import (
	"fmt"
	"image"
)

// Region places one strip or tile in the destination.
//
// Source pixel s maps to destination pixel
//
//	d = (s - SourceOffset) / Subsample + DestOffset
//
// and only source pixels whose distance from SourceOffset is a multiple of
// the subsampling period are copied. The inverse mapping is exact:
//
//	s = (d - DestOffset) * Subsample + SourceOffset
type Region struct {
	// Src is the rectangle of the image covered by the decoded bytes.
	Src image.Rectangle

	SubsampleX, SubsampleY int

	SourceOffset image.Point
	DestOffset   image.Point

	// Dst is the destination rectangle written by this strip or tile.
	Dst image.Rectangle

	// ActiveSrc is the part of Src that contributes to Dst. Its minimum
	// maps to Dst.Min and its last row and column map to the last row and
	// column of Dst.
	ActiveSrc image.Rectangle
}

// Forward maps a source coordinate to the destination. The result is only
// meaningful for source pixels on the subsampling grid.
func (r *Region) Forward(p image.Point) image.Point {
	return image.Point{
		X: floorDiv(p.X-r.SourceOffset.X, r.SubsampleX) + r.DestOffset.X,
		Y: floorDiv(p.Y-r.SourceOffset.Y, r.SubsampleY) + r.DestOffset.Y,
	}
}

// Inverse maps a destination coordinate to its source pixel.
func (r *Region) Inverse(p image.Point) image.Point {
	return image.Point{
		X: (p.X-r.DestOffset.X)*r.SubsampleX + r.SourceOffset.X,
		Y: (p.Y-r.DestOffset.Y)*r.SubsampleY + r.SourceOffset.Y,
	}
}

// Validate checks the region invariants.
func (r *Region) Validate() error {
	if r.SubsampleX < 1 || r.SubsampleY < 1 {
		return fmt.Errorf("%w: subsampling %dx%d", ErrInvalidConfiguration, r.SubsampleX, r.SubsampleY)
	}
	if r.Src.Empty() {
		return fmt.Errorf("%w: empty source rectangle %v", ErrInvalidConfiguration, r.Src)
	}
	if r.Dst.Empty() {
		return fmt.Errorf("%w: empty destination rectangle %v", ErrInvalidConfiguration, r.Dst)
	}
	if !r.ActiveSrc.In(r.Src) {
		return fmt.Errorf("%w: active source %v outside %v", ErrInvalidConfiguration, r.ActiveSrc, r.Src)
	}
	if r.ActiveSrc.Dx() != (r.Dst.Dx()-1)*r.SubsampleX+1 || r.ActiveSrc.Dy() != (r.Dst.Dy()-1)*r.SubsampleY+1 {
		return fmt.Errorf("%w: active source %v does not span destination %v", ErrInvalidConfiguration, r.ActiveSrc, r.Dst)
	}
	return nil
}

// ComputeRegion derives the destination rectangle a strip or tile covering
// src contributes to, clipped to dstBounds, together with the active part of
// src. It returns false when the strip or tile contributes no pixel.
func ComputeRegion(src image.Rectangle, sourceOffset image.Point, subsampleX, subsampleY int, dstOffset image.Point, dstBounds image.Rectangle) (Region, bool) {
	r := Region{
		Src:          src,
		SubsampleX:   subsampleX,
		SubsampleY:   subsampleY,
		SourceOffset: sourceOffset,
		DestOffset:   dstOffset,
	}
	if src.Empty() || subsampleX < 1 || subsampleY < 1 {
		return r, false
	}

	dst := image.Rectangle{
		Min: image.Point{
			X: ceilDiv(src.Min.X-sourceOffset.X, subsampleX),
			Y: ceilDiv(src.Min.Y-sourceOffset.Y, subsampleY),
		},
		Max: image.Point{
			X: floorDiv(src.Max.X-1-sourceOffset.X, subsampleX) + 1,
			Y: floorDiv(src.Max.Y-1-sourceOffset.Y, subsampleY) + 1,
		},
	}
	dst = dst.Add(dstOffset).Intersect(dstBounds)
	if dst.Empty() {
		return r, false
	}
	r.Dst = dst

	last := r.Inverse(dst.Max.Sub(image.Pt(1, 1)))
	r.ActiveSrc = image.Rectangle{Min: r.Inverse(dst.Min), Max: last.Add(image.Pt(1, 1))}
	return r, true
}

// floorDiv returns floor(num/den) for den > 0.
func floorDiv(num, den int) int {
	if num < 0 {
		num -= den - 1
	}
	return num / den
}

// ceilDiv returns ceil(num/den) for den > 0.
func ceilDiv(num, den int) int {
	if num > 0 {
		num += den - 1
	}
	return num / den
}
