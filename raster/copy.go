package raster

import "image"

// CopyRect copies the samples of src inside sr into dst so that sr.Min
// lands on dp. Band srcBands[i] of src is written to band dstBands[i] of
// dst; a nil band list selects every band in order. The copied rectangle is
// clipped to both rasters.
func CopyRect(dst *Raster, dp image.Point, src *Raster, sr image.Rectangle, srcBands, dstBands []int) {
	sr = sr.Intersect(src.Rect)
	dr := sr.Add(dp.Sub(sr.Min)).Intersect(dst.Rect)
	if dr.Empty() {
		return
	}
	sr = image.Rectangle{Min: sr.Min.Add(dr.Min.Sub(dp)), Max: sr.Min.Add(dr.Max.Sub(dp))}
	if srcBands == nil {
		srcBands = identityBands(src.NumBands())
	}
	if dstBands == nil {
		dstBands = identityBands(dst.NumBands())
	}
	n := len(srcBands)
	if len(dstBands) < n {
		n = len(dstBands)
	}

	if canCopyRows(dst, src, srcBands, dstBands, n) {
		copyRows(dst, dr, src, sr)
		return
	}

	float := src.Type == Float || dst.Type == Float
	for y := 0; y < dr.Dy(); y++ {
		sy, dy := sr.Min.Y+y, dr.Min.Y+y
		for x := 0; x < dr.Dx(); x++ {
			sx, dx := sr.Min.X+x, dr.Min.X+x
			for i := 0; i < n; i++ {
				if float {
					dst.SetSampleFloat(dx, dy, dstBands[i], src.SampleFloat(sx, sy, srcBands[i]))
				} else {
					dst.SetSample(dx, dy, dstBands[i], src.Sample(sx, sy, srcBands[i]))
				}
			}
		}
	}
}

func identityBands(n int) []int {
	bands := make([]int, n)
	for i := range bands {
		bands[i] = i
	}
	return bands
}

// canCopyRows reports whether whole pixel rows can be moved with copy().
func canCopyRows(dst, src *Raster, srcBands, dstBands []int, n int) bool {
	if dst.Layout != Interleaved || src.Layout != Interleaved || dst.Type != src.Type {
		return false
	}
	if n != src.NumBands() || n != dst.NumBands() {
		return false
	}
	for i := 0; i < n; i++ {
		if srcBands[i] != i || dstBands[i] != i {
			return false
		}
	}
	return src.IsContiguous() && dst.IsContiguous()
}

func copyRows(dst *Raster, dr image.Rectangle, src *Raster, sr image.Rectangle) {
	rowLen := dr.Dx() * dst.PixelStride
	for y := 0; y < dr.Dy(); y++ {
		si := src.PixOffset(sr.Min.X, sr.Min.Y+y)
		di := dst.PixOffset(dr.Min.X, dr.Min.Y+y)
		switch dst.Type {
		case Byte:
			copy(dst.Pix8[di:di+rowLen], src.Pix8[si:si+rowLen])
		case UShort, Short:
			copy(dst.Pix16[di:di+rowLen], src.Pix16[si:si+rowLen])
		case Int:
			copy(dst.Pix32[di:di+rowLen], src.Pix32[si:si+rowLen])
		case Float:
			copy(dst.PixF[di:di+rowLen], src.PixF[si:si+rowLen])
		}
	}
}
