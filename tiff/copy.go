package tiff

import (
	"image"

	"github.com/mrjoshuak/go-tiffraster/raster"
)

// subsampleCopy moves the active part of raw into dst following reg.
//
// Three strategies are used, cheapest first: a bulk rectangle copy when
// nothing is subsampled or rescaled, a bulk copy per destination row when
// only rows are subsampled, and otherwise a per-pixel loop that applies the
// bit-depth tables. tables, srcBits and dstBits are indexed like srcBands.
func subsampleCopy(dst, raw *raster.Raster, reg Region, srcBands, dstBands []int, adjust bool, tables [][]int, srcBits, dstBits []int) {
	if !adjust && reg.SubsampleX == 1 && reg.SubsampleY == 1 {
		raster.CopyRect(dst, reg.Dst.Min, raw, reg.ActiveSrc, srcBands, dstBands)
		return
	}
	if !adjust && reg.SubsampleX == 1 {
		for dy := reg.Dst.Min.Y; dy < reg.Dst.Max.Y; dy++ {
			sy := reg.Inverse(image.Pt(reg.Dst.Min.X, dy)).Y
			row := image.Rect(reg.ActiveSrc.Min.X, sy, reg.ActiveSrc.Max.X, sy+1)
			raster.CopyRect(dst, image.Pt(reg.Dst.Min.X, dy), raw, row, srcBands, dstBands)
		}
		return
	}

	float := raw.Type == raster.Float || dst.Type == raster.Float
	for dy := reg.Dst.Min.Y; dy < reg.Dst.Max.Y; dy++ {
		for dx := reg.Dst.Min.X; dx < reg.Dst.Max.X; dx++ {
			s := reg.Inverse(image.Pt(dx, dy))
			for i, sb := range srcBands {
				db := dstBands[i]
				if float {
					dst.SetSampleFloat(dx, dy, db, raw.SampleFloat(s.X, s.Y, sb))
					continue
				}
				v := raw.Sample(s.X, s.Y, sb)
				if adjust {
					v = rescale(v, i, tables, srcBits, dstBits)
				}
				dst.SetSample(dx, dy, db, v)
			}
		}
	}
}

// rescale maps sample v of mapped band i to the destination depth.
func rescale(v, i int, tables [][]int, srcBits, dstBits []int) int {
	if srcBits[i] == dstBits[i] {
		return v
	}
	if t := tables[i]; t != nil {
		return t[v&(len(t)-1)]
	}
	return int(RescaleSample(uint32(v)&sampleMask(srcBits[i]), srcBits[i], dstBits[i]))
}
