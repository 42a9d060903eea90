// Package tiffutil provides TIFF-specific utility functions.
//
// This package offers higher-level operations built on the tiff package:
// file summaries, validation, comparison, band extraction and conversion
// of decoded rasters to the standard image types.
//
// Example usage:
//
//	info, _ := tiffutil.GetFileInfo("scan.tif")
//	fmt.Printf("%d images, first is %dx%d\n", len(info.Images), info.Images[0].Width, info.Images[0].Height)
//
//	img, _ := tiffutil.ReadImage("scan.tif", 0)
package tiffutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"sync"

	"github.com/hashicorp/go-multierror"

	"github.com/mrjoshuak/go-tiffraster/raster"
	"github.com/mrjoshuak/go-tiffraster/tiff"
)

// Conversion errors
var (
	ErrNoBands    = errors.New("tiffutil: raster has no bands")
	ErrBandRange  = errors.New("tiffutil: band out of range")
	ErrImageRange = errors.New("tiffutil: image index out of range")
)

// ===========================================
// File Information
// ===========================================

// ImageInfo summarizes one image of a TIFF file.
type ImageInfo struct {
	Index           int
	Width           int
	Height          int
	Photometric     tiff.Photometric
	Compression     tiff.Compression
	SamplesPerPixel int
	BitsPerSample   []int
	SampleFormat    tiff.SampleFormat
	Planar          bool
	IsTiled         bool
	TileWidth       int
	TileHeight      int
	RowsPerStrip    int
	NumChunks       int

	// RasterType describes the decoded representation. It is empty when
	// the layout has none.
	RasterType string

	// Supported is false when the image cannot be decoded. Reason then
	// says why.
	Supported bool
	Reason    string
}

// FileInfo provides a summary of a TIFF file.
type FileInfo struct {
	Path      string
	FileSize  int64
	ByteOrder string
	BigTIFF   bool
	Images    []ImageInfo
}

// GetFileInfo returns summary information about a TIFF file.
func GetFileInfo(path string) (*FileInfo, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	r, err := tiff.Open(path, &tiff.ReaderOptions{})
	if err != nil {
		return nil, err
	}
	defer r.Close()

	info := &FileInfo{
		Path:      path,
		FileSize:  stat.Size(),
		ByteOrder: r.ByteOrder().String(),
		BigTIFF:   r.BigTIFF(),
	}
	for i := 0; i < r.NumImages(); i++ {
		info.Images = append(info.Images, imageInfo(r, i))
	}
	return info, nil
}

func imageInfo(r *tiff.Reader, i int) ImageInfo {
	d, _ := r.Directory(i)
	l := tiff.LayoutOf(d)
	ii := ImageInfo{
		Index:           i,
		Width:           int(d.ImageWidth),
		Height:          int(d.ImageLength),
		Photometric:     l.Photometric,
		Compression:     l.Compression,
		SamplesPerPixel: l.SamplesPerPixel,
		BitsPerSample:   l.BitsPerSample,
		SampleFormat:    l.Format(0),
		Planar:          l.Planar,
		IsTiled:         d.IsTiled(),
		NumChunks:       d.NumChunks(),
		Supported:       true,
	}
	if ii.IsTiled {
		ii.TileWidth, ii.TileHeight = d.ChunkSize()
	} else {
		ii.RowsPerStrip = int(d.RowsPerStrip)
	}

	if err := d.Validate(); err != nil {
		ii.Supported = false
		ii.Reason = err.Error()
		return ii
	}
	t, err := tiff.ResolveRasterType(l)
	if err != nil {
		ii.Supported = false
		ii.Reason = err.Error()
		return ii
	}
	ii.RasterType = t.String()
	if _, err := r.Decompressor(i); err != nil {
		ii.Supported = false
		ii.Reason = err.Error()
	}
	return ii
}

// ===========================================
// Band Extraction
// ===========================================

// ExtractBand decodes image index of r and returns one band as float32
// values in row-major order.
func ExtractBand(r *tiff.Reader, index, band int) ([]float32, error) {
	if index < 0 || index >= r.NumImages() {
		return nil, fmt.Errorf("%w: %d of %d", ErrImageRange, index, r.NumImages())
	}
	ras, err := r.Read(index, nil)
	if err != nil {
		return nil, err
	}
	if band < 0 || band >= ras.NumBands() {
		return nil, fmt.Errorf("%w: %d of %d", ErrBandRange, band, ras.NumBands())
	}
	b := ras.Rect
	out := make([]float32, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			out = append(out, ras.SampleFloat(x, y, band))
		}
	}
	return out, nil
}

// ===========================================
// Image Conversion
// ===========================================

// ReadImage decodes image index of the file at path into a standard
// image.
func ReadImage(path string, index int) (image.Image, error) {
	r, err := tiff.Open(path, nil)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if index < 0 || index >= r.NumImages() {
		return nil, fmt.Errorf("%w: %d of %d", ErrImageRange, index, r.NumImages())
	}
	t, err := r.RasterType(index)
	if err != nil {
		return nil, err
	}
	ras, err := r.Read(index, nil)
	if err != nil {
		return nil, err
	}
	return ToImage(ras, t)
}

// ToImage converts a raster decoded as type t into the closest standard
// image type. Eight-bit data keeps 8 bits per channel; anything else is
// rescaled to 16 bits. Float samples are clamped to [0, 1] and signed
// samples are offset so that the most negative value maps to zero.
func ToImage(ras *raster.Raster, t tiff.RasterType) (image.Image, error) {
	n := ras.NumBands()
	if n == 0 {
		return nil, ErrNoBands
	}
	r := ras.Rect
	exact := t.NumBands() == n

	if exact && t.Model == tiff.ModelIndexed {
		if len(t.Palette) <= 256 {
			img := image.NewPaletted(r, t.Palette)
			each(r, func(x, y int) {
				img.SetColorIndex(x, y, uint8(ras.Sample(x, y, 0)))
			})
			return img, nil
		}
		img := image.NewRGBA(r)
		each(r, func(x, y int) {
			if i := ras.Sample(x, y, 0); i < len(t.Palette) {
				img.Set(x, y, t.Palette[i])
			}
		})
		return img, nil
	}

	if exact && t.Model == tiff.ModelCMYK && n == 4 {
		img := image.NewCMYK(r)
		each(r, func(x, y int) {
			o := img.PixOffset(x, y)
			for b := 0; b < 4; b++ {
				img.Pix[o+b] = uint8(sample16(ras, t, x, y, b) >> 8)
			}
		})
		return img, nil
	}

	alpha := t.HasAlpha && (n == 2 || n == 4)
	premultiplied := alpha && t.AlphaPremultiplied
	colors := n
	if alpha {
		colors--
	}
	gray := colors < 3

	if is8Bit(ras, t) {
		switch {
		case gray && !alpha:
			img := image.NewGray(r)
			each(r, func(x, y int) {
				img.Pix[img.PixOffset(x, y)] = uint8(ras.Sample(x, y, 0))
			})
			return img, nil
		case premultiplied:
			img := image.NewRGBA(r)
			fill8(img.Pix, img.PixOffset, ras, r, gray, alpha)
			return img, nil
		case alpha:
			img := image.NewNRGBA(r)
			fill8(img.Pix, img.PixOffset, ras, r, gray, alpha)
			return img, nil
		default:
			img := image.NewRGBA(r)
			fill8(img.Pix, img.PixOffset, ras, r, gray, alpha)
			return img, nil
		}
	}

	if gray && !alpha {
		img := image.NewGray16(r)
		each(r, func(x, y int) {
			img.SetGray16(x, y, color.Gray16{Y: sample16(ras, t, x, y, 0)})
		})
		return img, nil
	}
	var img interface {
		image.Image
		Set(x, y int, c color.Color)
	}
	mk := func(c [4]uint16) color.Color { return color.NRGBA64{R: c[0], G: c[1], B: c[2], A: c[3]} }
	if premultiplied || !alpha {
		img = image.NewRGBA64(r)
		mk = func(c [4]uint16) color.Color { return color.RGBA64{R: c[0], G: c[1], B: c[2], A: c[3]} }
	} else {
		img = image.NewNRGBA64(r)
	}
	each(r, func(x, y int) {
		c := [4]uint16{3: 0xffff}
		if gray {
			v := sample16(ras, t, x, y, 0)
			c[0], c[1], c[2] = v, v, v
		} else {
			for b := 0; b < 3; b++ {
				c[b] = sample16(ras, t, x, y, b)
			}
		}
		if alpha {
			c[3] = sample16(ras, t, x, y, n-1)
		}
		img.Set(x, y, mk(c))
	})
	return img, nil
}

// fill8 writes 8-bit samples into the 4-byte pixels of an RGBA or NRGBA
// image.
func fill8(pix []uint8, offset func(x, y int) int, ras *raster.Raster, r image.Rectangle, gray, alpha bool) {
	n := ras.NumBands()
	each(r, func(x, y int) {
		o := offset(x, y)
		if gray {
			v := uint8(ras.Sample(x, y, 0))
			pix[o], pix[o+1], pix[o+2] = v, v, v
		} else {
			for b := 0; b < 3; b++ {
				pix[o+b] = uint8(ras.Sample(x, y, b))
			}
		}
		pix[o+3] = 0xff
		if alpha {
			pix[o+3] = uint8(ras.Sample(x, y, n-1))
		}
	})
}

// is8Bit reports whether every band of ras holds unsigned 8-bit samples.
func is8Bit(ras *raster.Raster, t tiff.RasterType) bool {
	if ras.Type != raster.Byte || t.Signed {
		return false
	}
	for _, b := range ras.SampleBits {
		if b != 8 {
			return false
		}
	}
	return true
}

// sample16 returns band b of (x, y) rescaled to 16 bits.
func sample16(ras *raster.Raster, t tiff.RasterType, x, y, b int) uint16 {
	if ras.Type == raster.Float {
		v := float64(ras.SampleFloat(x, y, b))
		switch {
		case math.IsNaN(v) || v <= 0:
			return 0
		case v >= 1:
			return 0xffff
		}
		return uint16(v*0xffff + 0.5)
	}
	bits := ras.SampleBits[b]
	if bits <= 0 {
		return 0
	}
	s := ras.Sample(x, y, b)
	if t.Signed {
		s = max(s+1<<uint(bits-1), 0)
	}
	return uint16(tiff.RescaleSample(uint32(s)&mask(bits), bits, 16))
}

func mask(bits int) uint32 {
	if bits >= 32 {
		return math.MaxUint32
	}
	return 1<<uint(bits) - 1
}

func each(r image.Rectangle, fn func(x, y int)) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			fn(x, y)
		}
	}
}

// ===========================================
// Validation
// ===========================================

// ValidationResult contains the results of file validation.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// ValidateFile checks every image of a TIFF file. When decode is set each
// image is also decoded in full, and recoverable problems met on the way
// are reported as warnings.
func ValidateFile(path string, decode bool) (*ValidationResult, error) {
	result := &ValidationResult{Valid: true}
	fail := func(format string, args ...interface{}) {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf(format, args...))
	}

	stat, err := os.Stat(path)
	if err != nil {
		fail("cannot access file: %v", err)
		return result, nil
	}
	if stat.Size() < 8 {
		fail("file too small to be valid TIFF")
		return result, nil
	}

	opts := tiff.DefaultReaderOptions()
	opts.CacheSize = 0
	var mu sync.Mutex
	opts.Warn = func(msg string) {
		mu.Lock()
		defer mu.Unlock()
		result.Warnings = append(result.Warnings, msg)
	}
	r, err := tiff.Open(path, &opts)
	if err != nil {
		fail("cannot open file: %v", err)
		return result, nil
	}
	defer r.Close()

	for i := 0; i < r.NumImages(); i++ {
		d, _ := r.Directory(i)
		if err := d.Validate(); err != nil {
			var merr *multierror.Error
			if errors.As(err, &merr) {
				for _, e := range merr.Errors {
					fail("image %d: %v", i, e)
				}
			} else {
				fail("image %d: %v", i, err)
			}
			continue
		}
		if d.ImageWidth > 65535 || d.ImageLength > 65535 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("image %d: very large image dimensions", i))
		}
		if _, err := r.RasterType(i); err != nil {
			fail("image %d: %v", i, err)
			continue
		}
		if _, err := r.Decompressor(i); err != nil {
			fail("image %d: %v", i, err)
			continue
		}
		if decode {
			if _, err := r.Read(i, nil); err != nil {
				fail("image %d: decoding: %v", i, err)
			}
		}
	}
	return result, nil
}

// ===========================================
// Comparison
// ===========================================

// CompareOptions configures file comparison behavior.
type CompareOptions struct {
	Tolerance float32 // Maximum allowed difference between samples
}

// CompareFiles checks if two TIFF files decode to equivalent rasters.
// Returns true if files match within tolerance, along with any differences found.
func CompareFiles(path1, path2 string, opts CompareOptions) (bool, []string, error) {
	var diffs []string

	r1, err := tiff.Open(path1, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open %s: %w", path1, err)
	}
	defer r1.Close()

	r2, err := tiff.Open(path2, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to open %s: %w", path2, err)
	}
	defer r2.Close()

	if r1.NumImages() != r2.NumImages() {
		diffs = append(diffs, fmt.Sprintf("image count: %d vs %d", r1.NumImages(), r2.NumImages()))
	}

	for i := 0; i < min(r1.NumImages(), r2.NumImages()); i++ {
		a, err := r1.Read(i, nil)
		if err != nil {
			return false, nil, fmt.Errorf("reading %s image %d: %w", path1, i, err)
		}
		b, err := r2.Read(i, nil)
		if err != nil {
			return false, nil, fmt.Errorf("reading %s image %d: %w", path2, i, err)
		}
		diffs = append(diffs, compareRasters(i, a, b, opts.Tolerance)...)
	}

	return len(diffs) == 0, diffs, nil
}

func compareRasters(i int, a, b *raster.Raster, tolerance float32) []string {
	if a.Rect.Size() != b.Rect.Size() {
		return []string{fmt.Sprintf("image %d: size %v vs %v", i, a.Rect.Size(), b.Rect.Size())}
	}
	if a.NumBands() != b.NumBands() {
		return []string{fmt.Sprintf("image %d: %d bands vs %d", i, a.NumBands(), b.NumBands())}
	}
	var diffs []string
	d := b.Rect.Min.Sub(a.Rect.Min)
	for band := 0; band < a.NumBands(); band++ {
		count := 0
		var maxDiff float32
		each(a.Rect, func(x, y int) {
			diff := a.SampleFloat(x, y, band) - b.SampleFloat(x+d.X, y+d.Y, band)
			if diff < 0 {
				diff = -diff
			}
			if diff > tolerance {
				count++
				maxDiff = max(maxDiff, diff)
			}
		})
		if count > 0 {
			diffs = append(diffs, fmt.Sprintf("image %d band %d: %d samples differ (max difference %g)", i, band, count, maxDiff))
		}
	}
	return diffs
}
