package tiffraster_test

import (
	"bytes"
	"fmt"
	"image"
	"os"

	xtiff "golang.org/x/image/tiff"

	"github.com/mrjoshuak/go-tiffraster/raster"
	"github.com/mrjoshuak/go-tiffraster/tiff"
	"github.com/mrjoshuak/go-tiffraster/tiffutil"
)

// encodeGray returns a small grayscale TIFF file.
func encodeGray() []byte {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	for i := range img.Pix {
		img.Pix[i] = uint8(i * 16)
	}
	var buf bytes.Buffer
	if err := xtiff.Encode(&buf, img, &xtiff.Options{Compression: xtiff.Deflate}); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// Example_basicRead demonstrates decoding an image held in memory.
func Example_basicRead() {
	data := encodeGray()
	r, err := tiff.NewReader(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		fmt.Println("Error opening TIFF:", err)
		return
	}
	defer r.Close()

	t, _ := r.RasterType(0)
	fmt.Println("Model:", t.Model)

	ras, err := r.Read(0, nil)
	if err != nil {
		fmt.Println("Error decoding:", err)
		return
	}
	fmt.Println("Bounds:", ras.Rect)
	fmt.Println("Sample at (3, 2):", ras.Sample(3, 2, 0))
	// Output:
	// Model: gray
	// Bounds: (0,0)-(4,4)
	// Sample at (3, 2): 176
}

// Example_region demonstrates reading a subsampled part of an image into
// an offset destination.
func Example_region() {
	data := encodeGray()
	r, err := tiff.NewReader(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		fmt.Println("Error opening TIFF:", err)
		return
	}
	defer r.Close()

	ras, err := r.Read(0, &tiff.ReadParam{
		SourceRegion:      image.Rect(1, 0, 4, 4),
		SubsampleX:        2,
		SubsampleY:        2,
		DestinationOffset: image.Pt(10, 10),
	})
	if err != nil {
		fmt.Println("Error decoding:", err)
		return
	}
	fmt.Println("Bounds:", ras.Rect)
	fmt.Println(ras.Pixel(10, 10, nil), ras.Pixel(11, 11, nil))
	// Output:
	// Bounds: (10,10)-(12,12)
	// [16] [176]
}

// Example_readInto demonstrates decoding into a caller-owned raster.
func Example_readInto() {
	data := encodeGray()
	r, err := tiff.NewReader(bytes.NewReader(data), int64(len(data)), nil)
	if err != nil {
		fmt.Println("Error opening TIFF:", err)
		return
	}
	defer r.Close()

	dst := raster.NewInterleaved(image.Rect(0, 0, 8, 8), raster.UShort, 1)
	dst.SampleBits[0] = 12
	if err := r.ReadInto(0, dst, &tiff.ReadParam{DestinationOffset: image.Pt(4, 4)}); err != nil {
		fmt.Println("Error decoding:", err)
		return
	}
	// 8-bit samples are rescaled to the 12 bits of the destination.
	fmt.Println(dst.Sample(4, 4, 0), dst.Sample(7, 7, 0))
	// Output:
	// 0 3854
}

// Example_toImage demonstrates converting a file to a standard image.
func Example_toImage() {
	img, err := tiffutil.ReadImage("scan.tif", 0)
	if err != nil {
		fmt.Println("Error reading image:", err)
		return
	}
	fmt.Printf("%T %v\n", img, img.Bounds())
}

// Example_fileInfo demonstrates summarizing a file.
func Example_fileInfo() {
	info, err := tiffutil.GetFileInfo("scan.tif")
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	for _, im := range info.Images {
		fmt.Printf("#%d %dx%d %s %s\n", im.Index, im.Width, im.Height, im.Photometric, im.Compression)
		if !im.Supported {
			fmt.Println("  cannot decode:", im.Reason)
		}
	}
}

// Example_customColors demonstrates replacing the color converter.
func Example_customColors() {
	f, err := os.Open("scan.tif")
	if err != nil {
		fmt.Println("Error opening file:", err)
		return
	}
	defer f.Close()
	stat, _ := f.Stat()

	r, err := tiff.NewReader(f, stat.Size(), nil)
	if err != nil {
		fmt.Println("Error opening TIFF:", err)
		return
	}
	ras, err := r.Read(0, &tiff.ReadParam{
		ColorConverter: tiff.NewYCbCrConverter(nil, []float32{16, 235, 128, 240, 128, 240}),
	})
	if err != nil {
		fmt.Println("Error decoding:", err)
		return
	}
	fmt.Println(ras.Rect)
}

// Example_memoryManagement demonstrates bounding scratch memory and
// decoding parallelism.
func Example_memoryManagement() {
	pool := tiff.NewBufferPoolWithLimit(64 << 20)
	opts := tiff.DefaultReaderOptions()
	opts.Pool = pool
	opts.Parallel = tiff.ParallelConfig{NumWorkers: 4, GrainSize: 1}
	opts.CacheSize = 0

	r, err := tiff.Open("large.tif", &opts)
	if err != nil {
		fmt.Println("Error:", err)
		return
	}
	defer r.Close()

	if _, err := r.Read(0, nil); err != nil {
		fmt.Println("Error decoding:", err)
		return
	}
	gets, hits, misses := pool.Stats()
	fmt.Printf("pool gets: %d, hits: %d, misses: %d\n", gets, hits, misses)
}
