package tiffutil

import (
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/mrjoshuak/go-tiffraster/internal/tifftest"
	"github.com/mrjoshuak/go-tiffraster/raster"
	"github.com/mrjoshuak/go-tiffraster/tiff"
)

func value(x, y, b int) uint32 {
	return uint32(x*7+y*13+b*40) & 0xff
}

func rgbImage(w, h int) tifftest.Image {
	bits := []int{8, 8, 8}
	return tifftest.Image{
		Width:         w,
		Height:        h,
		BitsPerSample: bits,
		Photometric:   2,
		Chunks:        [][]byte{tifftest.PackRows(w, h, bits, binary.LittleEndian, value)},
	}
}

func grayImage(w, h int, fill func(x, y int) uint8) tifftest.Image {
	bits := []int{8}
	return tifftest.Image{
		Width:         w,
		Height:        h,
		BitsPerSample: bits,
		Photometric:   1,
		Chunks: [][]byte{tifftest.PackRows(w, h, bits, binary.LittleEndian, func(x, y, b int) uint32 {
			return uint32(fill(x, y))
		})},
	}
}

func createTestFile(t *testing.T, name string, images ...tifftest.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, tifftest.Encode(binary.LittleEndian, images...), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func newRaster(t *testing.T, l tiff.PixelLayout, w, h int) (*raster.Raster, tiff.RasterType) {
	t.Helper()
	rt, err := tiff.ResolveRasterType(l)
	if err != nil {
		t.Fatalf("ResolveRasterType: %v", err)
	}
	return rt.NewRaster(image.Rect(0, 0, w, h)), rt
}

// ===========================================
// File Information
// ===========================================

func TestGetFileInfo(t *testing.T) {
	tiled := rgbImage(20, 10)
	tiled.TileWidth, tiled.TileHeight = 16, 16
	tiled.Chunks = [][]byte{make([]byte, 16*16*3), make([]byte, 16*16*3)}
	jpeg := rgbImage(4, 4)
	jpeg.Compression = int(tiff.CompressionJPEG)

	path := createTestFile(t, "info.tif", grayImage(8, 6, func(x, y int) uint8 { return 0 }), tiled, jpeg)
	info, err := GetFileInfo(path)
	if err != nil {
		t.Fatalf("GetFileInfo: %v", err)
	}
	if info.Path != path || info.FileSize == 0 {
		t.Errorf("Path = %q, FileSize = %d", info.Path, info.FileSize)
	}
	if info.ByteOrder != binary.LittleEndian.String() || info.BigTIFF {
		t.Errorf("ByteOrder = %q, BigTIFF = %v", info.ByteOrder, info.BigTIFF)
	}
	if len(info.Images) != 3 {
		t.Fatalf("%d images, want 3", len(info.Images))
	}

	gray := info.Images[0]
	if gray.Width != 8 || gray.Height != 6 || gray.Photometric != tiff.PhotometricBlackIsZero {
		t.Errorf("gray image = %+v", gray)
	}
	if gray.IsTiled || gray.RowsPerStrip != 6 || gray.NumChunks != 1 || !gray.Supported {
		t.Errorf("gray layout = %+v", gray)
	}

	rgb := info.Images[1]
	if !rgb.IsTiled || rgb.TileWidth != 16 || rgb.TileHeight != 16 || rgb.NumChunks != 2 {
		t.Errorf("tiled image = %+v", rgb)
	}
	if rgb.SamplesPerPixel != 3 || rgb.SampleFormat != tiff.SampleFormatUint || rgb.RasterType == "" {
		t.Errorf("tiled format = %+v", rgb)
	}

	if j := info.Images[2]; j.Supported || j.Reason == "" || j.Compression != tiff.CompressionJPEG {
		t.Errorf("JPEG image reported as %+v", j)
	}
}

func TestGetFileInfoUnsupportedLayout(t *testing.T) {
	im := grayImage(2, 2, func(x, y int) uint8 { return 0 })
	im.Photometric = 3 // palette without a color map
	info, err := GetFileInfo(createTestFile(t, "palette.tif", im))
	if err != nil {
		t.Fatal(err)
	}
	if info.Images[0].Supported || info.Images[0].RasterType != "" {
		t.Errorf("image = %+v, want unsupported", info.Images[0])
	}
}

// ===========================================
// Band Extraction
// ===========================================

func TestExtractBand(t *testing.T) {
	path := createTestFile(t, "rgb.tif", rgbImage(5, 4))
	r, err := tiff.Open(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for band := 0; band < 3; band++ {
		got, err := ExtractBand(r, 0, band)
		if err != nil {
			t.Fatalf("band %d: %v", band, err)
		}
		if len(got) != 20 {
			t.Fatalf("band %d: %d values, want 20", band, len(got))
		}
		for i, v := range got {
			if want := float32(value(i%5, i/5, band)); v != want {
				t.Fatalf("band %d value %d = %v, want %v", band, i, v, want)
			}
		}
	}

	if _, err := ExtractBand(r, 0, 3); !errors.Is(err, ErrBandRange) {
		t.Errorf("band 3: got %v, want ErrBandRange", err)
	}
	if _, err := ExtractBand(r, 1, 0); !errors.Is(err, ErrImageRange) {
		t.Errorf("image 1: got %v, want ErrImageRange", err)
	}
}

// ===========================================
// Image Conversion
// ===========================================

func TestToImage(t *testing.T) {
	tests := []struct {
		name   string
		layout tiff.PixelLayout
		set    []int
		want   color.Color
		check  func(image.Image) bool
	}{
		{
			name:   "gray8",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricBlackIsZero, SamplesPerPixel: 1, BitsPerSample: []int{8}},
			set:    []int{200},
			want:   color.Gray{Y: 200},
			check:  func(img image.Image) bool { _, ok := img.(*image.Gray); return ok },
		},
		{
			name:   "gray16",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricBlackIsZero, SamplesPerPixel: 1, BitsPerSample: []int{16}},
			set:    []int{0x1234},
			want:   color.Gray16{Y: 0x1234},
			check:  func(img image.Image) bool { _, ok := img.(*image.Gray16); return ok },
		},
		{
			name:   "gray4",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricBlackIsZero, SamplesPerPixel: 1, BitsPerSample: []int{4}},
			set:    []int{15},
			want:   color.Gray16{Y: 0xffff},
			check:  func(img image.Image) bool { _, ok := img.(*image.Gray16); return ok },
		},
		{
			name: "signed16",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricBlackIsZero, SamplesPerPixel: 1, BitsPerSample: []int{16},
				SampleFormat: []tiff.SampleFormat{tiff.SampleFormatInt}},
			set:   []int{-32768},
			want:  color.Gray16{Y: 0},
			check: func(img image.Image) bool { _, ok := img.(*image.Gray16); return ok },
		},
		{
			name:   "rgb8",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricRGB, SamplesPerPixel: 3, BitsPerSample: []int{8, 8, 8}},
			set:    []int{10, 20, 30},
			want:   color.RGBA{R: 10, G: 20, B: 30, A: 255},
			check:  func(img image.Image) bool { _, ok := img.(*image.RGBA); return ok },
		},
		{
			name: "rgba8 unassociated",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricRGB, SamplesPerPixel: 4, BitsPerSample: []int{8, 8, 8, 8},
				ExtraSamples: []tiff.ExtraSample{tiff.ExtraSampleUnassociatedAlpha}},
			set:   []int{10, 20, 30, 128},
			want:  color.NRGBA{R: 10, G: 20, B: 30, A: 128},
			check: func(img image.Image) bool { _, ok := img.(*image.NRGBA); return ok },
		},
		{
			name: "rgba8 associated",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricRGB, SamplesPerPixel: 4, BitsPerSample: []int{8, 8, 8, 8},
				ExtraSamples: []tiff.ExtraSample{tiff.ExtraSampleAssociatedAlpha}},
			set:   []int{10, 20, 30, 128},
			want:  color.RGBA{R: 10, G: 20, B: 30, A: 128},
			check: func(img image.Image) bool { _, ok := img.(*image.RGBA); return ok },
		},
		{
			name:   "rgb16",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricRGB, SamplesPerPixel: 3, BitsPerSample: []int{16, 16, 16}},
			set:    []int{1, 2, 0xffff},
			want:   color.RGBA64{R: 1, G: 2, B: 0xffff, A: 0xffff},
			check:  func(img image.Image) bool { _, ok := img.(*image.RGBA64); return ok },
		},
		{
			name: "gray alpha 16",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricBlackIsZero, SamplesPerPixel: 2, BitsPerSample: []int{16, 16},
				ExtraSamples: []tiff.ExtraSample{tiff.ExtraSampleUnassociatedAlpha}},
			set:   []int{0x8000, 0xffff},
			want:  color.NRGBA64{R: 0x8000, G: 0x8000, B: 0x8000, A: 0xffff},
			check: func(img image.Image) bool { _, ok := img.(*image.NRGBA64); return ok },
		},
		{
			name:   "rgb565",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricRGB, SamplesPerPixel: 3, BitsPerSample: []int{5, 6, 5}},
			set:    []int{31, 0, 31},
			want:   color.RGBA64{R: 0xffff, G: 0, B: 0xffff, A: 0xffff},
			check:  func(img image.Image) bool { _, ok := img.(*image.RGBA64); return ok },
		},
		{
			name:   "cmyk",
			layout: tiff.PixelLayout{Photometric: tiff.PhotometricSeparated, SamplesPerPixel: 4, BitsPerSample: []int{8, 8, 8, 8}},
			set:    []int{1, 2, 3, 4},
			want:   color.CMYK{C: 1, M: 2, Y: 3, K: 4},
			check:  func(img image.Image) bool { _, ok := img.(*image.CMYK); return ok },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ras, rt := newRaster(t, tt.layout, 3, 2)
			ras.SetPixel(2, 1, tt.set)
			img, err := ToImage(ras, rt)
			if err != nil {
				t.Fatalf("ToImage: %v", err)
			}
			if !tt.check(img) {
				t.Fatalf("ToImage returned %T", img)
			}
			if img.Bounds() != ras.Rect {
				t.Errorf("Bounds() = %v, want %v", img.Bounds(), ras.Rect)
			}
			got := img.ColorModel().Convert(img.At(2, 1))
			want := img.ColorModel().Convert(tt.want)
			if got != want {
				t.Errorf("At(2, 1) = %#v, want %#v", got, want)
			}
		})
	}
}

func TestToImageFloat(t *testing.T) {
	l := tiff.PixelLayout{Photometric: tiff.PhotometricBlackIsZero, SamplesPerPixel: 1, BitsPerSample: []int{32},
		SampleFormat: []tiff.SampleFormat{tiff.SampleFormatFloat}}
	ras, rt := newRaster(t, l, 3, 1)
	ras.SetSampleFloat(0, 0, 0, -1)
	ras.SetSampleFloat(1, 0, 0, 0.5)
	ras.SetSampleFloat(2, 0, 0, 2)
	img, err := ToImage(ras, rt)
	if err != nil {
		t.Fatal(err)
	}
	g, ok := img.(*image.Gray16)
	if !ok {
		t.Fatalf("ToImage returned %T", img)
	}
	for x, want := range []uint16{0, 0x8000, 0xffff} {
		if got := g.Gray16At(x, 0).Y; got != want {
			t.Errorf("x=%d: %#x, want %#x", x, got, want)
		}
	}
}

func TestToImagePalette(t *testing.T) {
	cmap := make([]uint16, 3*256)
	cmap[7], cmap[256+7], cmap[512+7] = 0xffff, 0, 0x8080
	l := tiff.PixelLayout{Photometric: tiff.PhotometricPalette, SamplesPerPixel: 1, BitsPerSample: []int{8}, ColorMap: cmap}
	ras, rt := newRaster(t, l, 2, 2)
	ras.SetSample(1, 1, 0, 7)
	img, err := ToImage(ras, rt)
	if err != nil {
		t.Fatal(err)
	}
	p, ok := img.(*image.Paletted)
	if !ok {
		t.Fatalf("ToImage returned %T", img)
	}
	if p.ColorIndexAt(1, 1) != 7 {
		t.Errorf("index = %d, want 7", p.ColorIndexAt(1, 1))
	}
	if got := p.At(1, 1); got != (color.RGBA{R: 255, G: 0, B: 128, A: 255}) {
		t.Errorf("At(1, 1) = %v", got)
	}
}

func TestToImageOffsetRect(t *testing.T) {
	ras := raster.NewInterleaved(image.Rect(4, 5, 6, 7), raster.Byte, 1)
	ras.SetSample(5, 6, 0, 99)
	rt := tiff.RasterType{Model: tiff.ModelGray, DataType: raster.Byte, SampleBits: []int{8}}
	img, err := ToImage(ras, rt)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds() != ras.Rect {
		t.Errorf("Bounds() = %v", img.Bounds())
	}
	if got := img.(*image.Gray).GrayAt(5, 6).Y; got != 99 {
		t.Errorf("GrayAt(5, 6) = %d, want 99", got)
	}
}

func TestToImageNoBands(t *testing.T) {
	ras := &raster.Raster{Rect: image.Rect(0, 0, 1, 1)}
	if _, err := ToImage(ras, tiff.RasterType{}); !errors.Is(err, ErrNoBands) {
		t.Errorf("got %v, want ErrNoBands", err)
	}
}

func TestReadImage(t *testing.T) {
	path := createTestFile(t, "read.tif", grayImage(4, 3, func(x, y int) uint8 { return uint8(x + 10*y) }), rgbImage(3, 3))
	img, err := ReadImage(path, 0)
	if err != nil {
		t.Fatalf("ReadImage: %v", err)
	}
	g, ok := img.(*image.Gray)
	if !ok {
		t.Fatalf("ReadImage returned %T", img)
	}
	if got := g.GrayAt(3, 2).Y; got != 23 {
		t.Errorf("GrayAt(3, 2) = %d, want 23", got)
	}

	img, err = ReadImage(path, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := img.At(2, 1), (color.RGBA{R: uint8(value(2, 1, 0)), G: uint8(value(2, 1, 1)), B: uint8(value(2, 1, 2)), A: 255}); got != want {
		t.Errorf("At(2, 1) = %v, want %v", got, want)
	}

	if _, err := ReadImage(path, 2); !errors.Is(err, ErrImageRange) {
		t.Errorf("image 2: got %v, want ErrImageRange", err)
	}
}

// ===========================================
// Validation
// ===========================================

func TestValidateFile(t *testing.T) {
	path := createTestFile(t, "valid.tif", rgbImage(6, 4))
	for _, decode := range []bool{false, true} {
		result, err := ValidateFile(path, decode)
		if err != nil {
			t.Fatal(err)
		}
		if !result.Valid || len(result.Errors) != 0 || len(result.Warnings) != 0 {
			t.Errorf("decode=%v: %+v", decode, result)
		}
	}
}

func TestValidateFileProblems(t *testing.T) {
	truncated := rgbImage(6, 4)
	truncated.Offsets = []uint32{1 << 20}

	clamped := grayImage(4, 2, func(x, y int) uint8 { return 1 })
	clamped.ByteCounts = []uint32{100000}

	jpeg := rgbImage(2, 2)
	jpeg.Compression = int(tiff.CompressionJPEG)

	tests := []struct {
		name     string
		image    tifftest.Image
		decode   bool
		valid    bool
		warnings int
	}{
		{"truncated strip undecoded", truncated, false, true, 0},
		{"truncated strip decoded", truncated, true, false, 0},
		{"clamped byte count", clamped, true, true, 1},
		{"jpeg", jpeg, false, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ValidateFile(createTestFile(t, "problem.tif", tt.image), tt.decode)
			if err != nil {
				t.Fatal(err)
			}
			if result.Valid != tt.valid {
				t.Errorf("Valid = %v, want %v: %v", result.Valid, tt.valid, result.Errors)
			}
			if !tt.valid && len(result.Errors) == 0 {
				t.Error("invalid file with no errors")
			}
			if len(result.Warnings) != tt.warnings {
				t.Errorf("warnings = %v, want %d", result.Warnings, tt.warnings)
			}
		})
	}
}

func TestValidateFileDirectoryErrors(t *testing.T) {
	im := rgbImage(2, 2)
	im.Photometric = 3
	im.Fields = []tifftest.Field{{Tag: 530, Type: tifftest.Short, Values: []uint32{3, 1}}}
	result, err := ValidateFile(createTestFile(t, "bad.tif", im), false)
	if err != nil {
		t.Fatal(err)
	}
	if result.Valid || len(result.Errors) != 2 {
		t.Errorf("result = %+v, want two directory errors", result)
	}
}

// ===========================================
// Comparison
// ===========================================

func TestCompareFiles(t *testing.T) {
	base := createTestFile(t, "a.tif", grayImage(4, 4, func(x, y int) uint8 { return uint8(x * y) }))
	same := createTestFile(t, "b.tif", grayImage(4, 4, func(x, y int) uint8 { return uint8(x * y) }))
	near := createTestFile(t, "c.tif", grayImage(4, 4, func(x, y int) uint8 {
		if x == 3 && y == 3 {
			return 11
		}
		return uint8(x * y)
	}))
	sized := createTestFile(t, "d.tif", grayImage(5, 4, func(x, y int) uint8 { return 0 }))
	two := createTestFile(t, "e.tif",
		grayImage(4, 4, func(x, y int) uint8 { return uint8(x * y) }),
		grayImage(4, 4, func(x, y int) uint8 { return 0 }))

	tests := []struct {
		name      string
		other     string
		tolerance float32
		match     bool
		diffs     int
	}{
		{"identical", same, 0, true, 0},
		{"one sample differs", near, 0, false, 1},
		{"within tolerance", near, 2, true, 0},
		{"different size", sized, 0, false, 1},
		{"different image count", two, 0, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match, diffs, err := CompareFiles(base, tt.other, CompareOptions{Tolerance: tt.tolerance})
			if err != nil {
				t.Fatal(err)
			}
			if match != tt.match || len(diffs) != tt.diffs {
				t.Errorf("match = %v, diffs = %v", match, diffs)
			}
		})
	}
}

func BenchmarkToImage(b *testing.B) {
	rt := tiff.RasterType{Model: tiff.ModelRGB, DataType: raster.UShort, SampleBits: []int{16, 16, 16}}
	ras := rt.NewRaster(image.Rect(0, 0, 256, 256))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ToImage(ras, rt); err != nil {
			b.Fatal(err)
		}
	}
}
