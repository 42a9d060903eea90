package tiff

import (
	"fmt"
	"image"
	"image/color"

	"github.com/mrjoshuak/go-tiffraster/raster"
)

// ColorModel classifies how the bands of a raster type are interpreted.
type ColorModel int

// Color models.
const (
	ModelGray ColorModel = iota
	ModelGrayAlpha
	ModelIndexed
	ModelRGB
	ModelRGBA
	ModelCMYK
	ModelPacked
	ModelComponent // N bands with no fixed interpretation
)

var colorModelNames = [...]string{"gray", "gray-alpha", "indexed", "rgb", "rgba", "cmyk", "packed", "component"}

func (m ColorModel) String() string {
	if int(m) < len(colorModelNames) {
		return colorModelNames[m]
	}
	return fmt.Sprintf("ColorModel(%d)", int(m))
}

// ColorSpace identifies the color space of the samples.
type ColorSpace int

// Color spaces.
const (
	SpaceGray ColorSpace = iota
	SpaceSRGB
	SpaceLinearRGB
	SpaceCMYK
	SpaceSynthetic // N channels with no colorimetric meaning
)

var colorSpaceNames = [...]string{"gray", "sRGB", "linear-RGB", "CMYK", "synthetic"}

func (s ColorSpace) String() string {
	if int(s) < len(colorSpaceNames) {
		return colorSpaceNames[s]
	}
	return fmt.Sprintf("ColorSpace(%d)", int(s))
}

// RasterType is the in-memory representation chosen for a pixel layout.
type RasterType struct {
	Model      ColorModel
	ColorSpace ColorSpace

	// DataType is the native storage element type.
	DataType raster.DataType

	// Layout is the storage arrangement.
	Layout raster.Layout

	// SampleBits holds the significant bits of each band.
	SampleBits []int

	// Masks holds the per-band masks of a single-pixel-packed type.
	Masks []uint32

	// Palette holds the 8-bit palette of an indexed type.
	Palette color.Palette

	HasAlpha           bool
	AlphaPremultiplied bool
	Signed             bool
}

// NumBands returns the number of bands.
func (t RasterType) NumBands() int {
	return len(t.SampleBits)
}

// NewRaster allocates a raster of this type covering r.
func (t RasterType) NewRaster(r image.Rectangle) *raster.Raster {
	var ras *raster.Raster
	switch t.Layout {
	case raster.MultiPixelPacked:
		ras = raster.NewMultiPixelPacked(r, t.DataType, t.SampleBits[0])
	case raster.SinglePixelPacked:
		ras = raster.NewSinglePixelPacked(r, t.DataType, t.Masks)
	default:
		ras = raster.NewInterleaved(r, t.DataType, len(t.SampleBits))
	}
	copy(ras.SampleBits, t.SampleBits)
	return ras
}

// Matches reports whether ras stores samples exactly as this type does, so
// that data decoded for the type can be written into it directly.
func (t RasterType) Matches(ras *raster.Raster) bool {
	if ras.Type != t.DataType || ras.Layout != t.Layout || ras.NumBands() != len(t.SampleBits) {
		return false
	}
	for b, bits := range t.SampleBits {
		if ras.SampleBits[b] != bits {
			return false
		}
	}
	if t.Layout == raster.SinglePixelPacked {
		for b, m := range t.Masks {
			if ras.Masks[b] != m {
				return false
			}
		}
	}
	return true
}

func (t RasterType) String() string {
	return fmt.Sprintf("%s %s %s %s bits=%v", t.Model, t.ColorSpace, t.DataType, t.Layout, t.SampleBits)
}

// dataTypeForBits returns the narrowest integer element holding numBits.
func dataTypeForBits(numBits int, signed bool) raster.DataType {
	switch {
	case numBits <= 8:
		return raster.Byte
	case numBits <= 16:
		if signed {
			return raster.Short
		}
		return raster.UShort
	default:
		return raster.Int
	}
}

// packedMask returns the mask of band b when all bands are packed into one
// element, first band in the most significant bits.
func packedMask(bits []int, b int) uint32 {
	mask := uint32(1)<<uint(bits[b]) - 1
	for i := b + 1; i < len(bits); i++ {
		mask <<= uint(bits[i])
	}
	return mask
}

// paletteEntry rescales a 16-bit palette component to 8 bits, rounding
// halves up.
func paletteEntry(v uint16) uint8 {
	return uint8((uint32(v)*255 + 32767) / 65535)
}

func interleavedType(model ColorModel, cs ColorSpace, dt raster.DataType, bits []int) RasterType {
	return RasterType{
		Model:      model,
		ColorSpace: cs,
		DataType:   dt,
		Layout:     raster.Interleaved,
		SampleBits: append([]int(nil), bits...),
	}
}

// ResolveRasterType maps a pixel layout to the raster type that holds its
// samples. The rules are tried in order and the first match wins:
//
//  1. one band of 1, 2, 4, 8 or 16 bits: gray, or indexed with a palette
//  2. two bands of 8 or 16 bits: gray with alpha
//  3. three bands of 8 or 16 bits: RGB
//  4. four bands of 8 or 16 bits: CMYK when separated 8-bit, otherwise RGBA
//  5. CMYK with 1, 2 or 4 bit samples: N-band component, depths preserved
//  6. three or four bands totalling 8 or 16 bits: one packed element per pixel
//  7. any band count sharing a depth of 8, 16 or 32 bits: generic interleaved
//  8. other non-indexed, non-float data: storage sized by the widest band
//
// A layout matching no rule yields a *LayoutError.
func ResolveRasterType(l PixelLayout) (RasterType, error) {
	if err := l.Validate(); err != nil {
		return RasterType{}, err
	}
	spp := l.SamplesPerPixel
	bps := l.bands()
	format := l.Format(0)
	signed := format == SampleFormatInt
	premultiplied := l.firstExtraSample() == ExtraSampleAssociatedAlpha

	allBits := func(want int) bool {
		for _, b := range bps {
			if b != want {
				return false
			}
		}
		return true
	}
	intType := func(bits int) raster.DataType {
		if bits <= 8 {
			return raster.Byte
		}
		if signed {
			return raster.Short
		}
		return raster.UShort
	}

	// Rule 1.
	if spp == 1 {
		switch bits := bps[0]; bits {
		case 1, 2, 4, 8, 16:
			var t RasterType
			if bits < 8 {
				t = RasterType{
					Model:      ModelGray,
					ColorSpace: SpaceGray,
					DataType:   raster.Byte,
					Layout:     raster.MultiPixelPacked,
					SampleBits: []int{bits},
				}
			} else {
				t = interleavedType(ModelGray, SpaceGray, intType(bits), bps)
			}
			if l.ColorMap == nil {
				t.Signed = signed
				return t, nil
			}
			if bits == 16 {
				t.DataType = raster.UShort
			}
			t.Model = ModelIndexed
			t.ColorSpace = SpaceSRGB
			n := 1 << uint(bits)
			t.Palette = make(color.Palette, n)
			for i := 0; i < n; i++ {
				t.Palette[i] = color.RGBA{
					R: paletteEntry(l.ColorMap[i]),
					G: paletteEntry(l.ColorMap[n+i]),
					B: paletteEntry(l.ColorMap[2*n+i]),
					A: 0xff,
				}
			}
			return t, nil
		}
	}

	// Rule 2.
	if spp == 2 && (allBits(8) || allBits(16)) {
		t := interleavedType(ModelGrayAlpha, SpaceGray, intType(bps[0]), bps)
		t.HasAlpha = true
		t.AlphaPremultiplied = premultiplied
		t.Signed = bps[0] == 16 && signed
		return t, nil
	}

	// Rule 3.
	if spp == 3 && (allBits(8) || allBits(16)) {
		cs := SpaceSRGB
		if (l.Photometric == PhotometricYCbCr && !l.Compression.IsJPEG()) || l.Photometric == PhotometricCIELab {
			cs = SpaceLinearRGB
		}
		t := interleavedType(ModelRGB, cs, intType(bps[0]), bps)
		t.Signed = bps[0] == 16 && signed
		return t, nil
	}

	// Rule 4. Only 8-bit data is CMYK; 16-bit four-band data is RGBA
	// whatever the photometric interpretation.
	if spp == 4 && (allBits(8) || allBits(16)) {
		var t RasterType
		if l.Photometric == PhotometricSeparated && bps[0] == 8 {
			t = interleavedType(ModelCMYK, SpaceCMYK, intType(bps[0]), bps)
		} else {
			t = interleavedType(ModelRGBA, SpaceSRGB, intType(bps[0]), bps)
			t.HasAlpha = true
			t.AlphaPremultiplied = premultiplied
		}
		t.Signed = bps[0] == 16 && signed
		return t, nil
	}

	// Rule 5. Checked before the packed rule, which 2- and 4-bit CMYK
	// layouts would otherwise also satisfy.
	if l.Photometric == PhotometricSeparated && (bps[0] == 1 || bps[0] == 2 || bps[0] == 4) {
		if spp == 4 {
			return interleavedType(ModelCMYK, SpaceCMYK, raster.Byte, bps), nil
		}
		return interleavedType(ModelComponent, SpaceSynthetic, raster.Byte, bps), nil
	}

	totalBits := l.BitsPerPixel()

	// Rule 6.
	if (spp == 3 || spp == 4) && (totalBits == 8 || totalBits == 16) {
		dt := raster.Byte
		if totalBits == 16 {
			dt = raster.UShort
		}
		return packedType(bps, dt, premultiplied), nil
	}

	// Rule 7.
	if bps[0]%8 == 0 && allBits(bps[0]) && l.uniformFormat() {
		dt, ok := raster.DataType(0), false
		switch bps[0] {
		case 8:
			dt, ok = raster.Byte, format != SampleFormatFloat
		case 16:
			dt, ok = intType(16), format != SampleFormatFloat
		case 32:
			dt, ok = raster.Int, true
			if format == SampleFormatFloat {
				dt = raster.Float
			}
		}
		if ok {
			if spp <= 4 && (dt == raster.Int || dt == raster.Float) {
				models := [...]ColorModel{ModelGray, ModelGrayAlpha, ModelRGB, ModelRGBA}
				cs := SpaceSRGB
				if spp <= 2 {
					cs = SpaceGray
				}
				t := interleavedType(models[spp-1], cs, dt, bps)
				t.HasAlpha = spp%2 == 0
				t.AlphaPremultiplied = t.HasAlpha && premultiplied
				t.Signed = dt == raster.Int && signed
				return t, nil
			}
			t := interleavedType(ModelComponent, SpaceSynthetic, dt, bps)
			t.Signed = dt != raster.Float && signed
			return t, nil
		}
	}

	// Rule 8.
	if l.ColorMap == nil && format != SampleFormatFloat {
		maxBits := 0
		for _, b := range bps {
			if b > maxBits {
				maxBits = b
			}
		}
		dt := dataTypeForBits(maxBits, signed)
		switch {
		case spp == 1:
			t := interleavedType(ModelGray, SpaceGray, dt, bps)
			t.Signed = signed
			return t, nil
		case spp == 2:
			t := interleavedType(ModelGrayAlpha, SpaceGray, dt, bps)
			t.HasAlpha = true
			t.AlphaPremultiplied = premultiplied
			t.Signed = signed
			return t, nil
		case (spp == 3 || spp == 4) && totalBits <= 32 && !signed:
			return packedType(bps, dataTypeForBits(totalBits, false), premultiplied), nil
		case spp == 3:
			t := interleavedType(ModelRGB, SpaceSRGB, dt, bps)
			t.Signed = signed
			return t, nil
		case spp == 4:
			t := interleavedType(ModelRGBA, SpaceSRGB, dt, bps)
			t.HasAlpha = true
			t.AlphaPremultiplied = premultiplied
			t.Signed = signed
			return t, nil
		default:
			t := interleavedType(ModelComponent, SpaceSynthetic, dt, bps)
			t.Signed = signed
			return t, nil
		}
	}

	return RasterType{}, &LayoutError{Layout: l}
}

func packedType(bps []int, dt raster.DataType, premultiplied bool) RasterType {
	t := RasterType{
		Model:      ModelPacked,
		ColorSpace: SpaceSRGB,
		DataType:   dt,
		Layout:     raster.SinglePixelPacked,
		SampleBits: append([]int(nil), bps...),
		Masks:      make([]uint32, len(bps)),
		HasAlpha:   len(bps) == 4,
	}
	for b := range bps {
		t.Masks[b] = packedMask(bps, b)
	}
	t.AlphaPremultiplied = t.HasAlpha && premultiplied
	return t
}

// uniformFormat reports whether every band declares the same format.
func (l *PixelLayout) uniformFormat() bool {
	f := l.Format(0)
	for b := 1; b < l.SamplesPerPixel; b++ {
		if l.Format(b) != f {
			return false
		}
	}
	return true
}

// ResolvePlanarRasterType returns the single-band raster type holding one
// plane of a planar image.
func ResolvePlanarRasterType(l PixelLayout, band int) (RasterType, error) {
	if err := l.Validate(); err != nil {
		return RasterType{}, err
	}
	if band < 0 || band >= l.SamplesPerPixel {
		return RasterType{}, fmt.Errorf("%w: plane %d of %d", ErrInvalidConfiguration, band, l.SamplesPerPixel)
	}
	bits := l.BitsPerSample[band]
	format := l.Format(band)
	if format == SampleFormatFloat {
		if bits != 32 {
			return RasterType{}, &LayoutError{Layout: l}
		}
		return interleavedType(ModelGray, SpaceGray, raster.Float, []int{32}), nil
	}
	if bits == 1 || bits == 2 || bits == 4 {
		return RasterType{
			Model:      ModelGray,
			ColorSpace: SpaceGray,
			DataType:   raster.Byte,
			Layout:     raster.MultiPixelPacked,
			SampleBits: []int{bits},
		}, nil
	}
	t := interleavedType(ModelGray, SpaceGray, dataTypeForBits(bits, format == SampleFormatInt), []int{bits})
	t.Signed = format == SampleFormatInt
	return t, nil
}
