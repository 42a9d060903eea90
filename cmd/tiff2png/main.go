// tiff2png decodes one image of a TIFF file and writes it as PNG.
//
// Usage:
//
//	tiff2png [options] infile outfile
//
// Options:
//
//	-v           verbose output
//	-i <n>       image index (default 0)
//	-r x0,y0,x1,y1
//	             source region to convert
//	-sx <n>      keep every n-th column
//	-sy <n>      keep every n-th row
//	-j <n>       number of strips or tiles decoded at once
//	-h, -help    show usage information
//	-version     show version information
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/mrjoshuak/go-tiffraster/tiff"
	"github.com/mrjoshuak/go-tiffraster/tiffutil"
)

const version = "1.0.0"

func main() {
	verbose := flag.Bool("v", false, "verbose output")
	index := flag.Int("i", 0, "image index")
	regionStr := flag.String("r", "", "source region x0,y0,x1,y1")
	subX := flag.Int("sx", 1, "keep every n-th column")
	subY := flag.Int("sy", 1, "keep every n-th row")
	workers := flag.Int("j", 0, "number of strips or tiles decoded at once (0 = all CPUs)")
	showVersion := flag.Bool("version", false, "show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: tiff2png [options] infile outfile\n\n")
		fmt.Fprintf(os.Stderr, "Decode one image of a TIFF file and write it as PNG.\n")
		fmt.Fprintf(os.Stderr, "Samples wider than 8 bits are written as 16-bit PNG.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("tiff2png version %s\n", version)
		fmt.Println("Part of go-tiffraster - https://github.com/mrjoshuak/go-tiffraster")
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) != 2 {
		flag.Usage()
		os.Exit(1)
	}

	param := &tiff.ReadParam{SubsampleX: *subX, SubsampleY: *subY}
	if *regionStr != "" {
		var r image.Rectangle
		if _, err := fmt.Sscanf(*regionStr, "%d,%d,%d,%d", &r.Min.X, &r.Min.Y, &r.Max.X, &r.Max.Y); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid region %q: %v\n", *regionStr, err)
			os.Exit(1)
		}
		param.SourceRegion = r.Canon()
	}

	opts := tiff.DefaultReaderOptions()
	if *workers > 0 {
		opts.Parallel.NumWorkers = *workers
	}

	if err := convert(args[0], args[1], *index, param, &opts, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func convert(inFile, outFile string, index int, param *tiff.ReadParam, opts *tiff.ReaderOptions, verbose bool) error {
	if verbose {
		fmt.Printf("Reading file %s\n", inFile)
		opts.Warn = func(msg string) {
			fmt.Fprintf(os.Stderr, "  warning: %s\n", msg)
		}
	}

	r, err := tiff.Open(inFile, opts)
	if err != nil {
		return fmt.Errorf("cannot read input file: %w", err)
	}
	defer r.Close()

	if index < 0 || index >= r.NumImages() {
		return fmt.Errorf("image %d does not exist, file has %d", index, r.NumImages())
	}
	d, err := r.Directory(index)
	if err != nil {
		return err
	}
	t, err := r.RasterType(index)
	if err != nil {
		return fmt.Errorf("cannot decode image %d: %w", index, err)
	}

	if verbose {
		l := tiff.LayoutOf(d)
		fmt.Printf("  Image %d of %d: %dx%d\n", index, r.NumImages(), d.ImageWidth, d.ImageLength)
		fmt.Printf("  Layout: %s, %s\n", l, l.Compression)
		fmt.Printf("  Decodes to: %s\n", t)
	}

	ras, err := r.Read(index, param)
	if err != nil {
		return fmt.Errorf("cannot decode image %d: %w", index, err)
	}
	img, err := tiffutil.ToImage(ras, t)
	if err != nil {
		return err
	}

	if verbose {
		b := img.Bounds()
		fmt.Printf("Writing file %s (%dx%d, %T)\n", outFile, b.Dx(), b.Dy(), img)
	}

	out, err := os.Create(outFile)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	if err := png.Encode(out, img); err != nil {
		out.Close()
		return fmt.Errorf("cannot write output file: %w", err)
	}
	return out.Close()
}
