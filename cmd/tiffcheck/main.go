// tiffcheck validates TIFF files and reports whether their images can be
// decoded.
//
// Usage:
//
//	tiffcheck [-q|--quiet] [-s|--strict] [-i|--info] <filename> [<filename> ...]
//
// Options:
//
//	-q, --quiet   Only output errors. Exit code indicates pass/fail.
//	-s, --strict  Decode every image and treat warnings as errors.
//	-i, --info    Print a summary of every image.
//	-h, --help    Show this help message.
//	--version     Show version information.
//
// Exit codes:
//
//	0: All files valid
//	1: One or more files invalid
//	2: Error (file not found, etc.)
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mrjoshuak/go-tiffraster/tiffutil"
)

const version = "1.0.0"

// Exit codes.
const (
	exitValid   = 0
	exitInvalid = 1
	exitError   = 2
)

const usage = `Usage: tiffcheck [options] <filename> [<filename> ...]

Validate TIFF files and check that their images can be decoded.

Options:
  -q, --quiet    Only output errors. Exit code indicates pass/fail.
  -s, --strict   Decode every image and treat warnings as errors.
  -i, --info     Print a summary of every image.
  -h, --help     Show this help message.
  --version      Show version information.

Exit codes:
  0: All files valid
  1: One or more files invalid
  2: Error (file not found, permission denied, etc.)

Examples:
  tiffcheck scan.tif                  Validate a single file
  tiffcheck -q *.tif                  Validate all TIFF files silently
  tiffcheck -s -i scan.tif            Decode every image and describe it
`

type options struct {
	quiet, strict, info bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var opts options
	var files []string
	for _, arg := range args {
		switch arg {
		case "-q", "--quiet":
			opts.quiet = true
		case "-s", "--strict":
			opts.strict = true
		case "-i", "--info":
			opts.info = true
		case "-h", "--help":
			fmt.Fprint(stdout, usage)
			return exitValid
		case "--version":
			fmt.Fprintf(stdout, "tiffcheck version %s\n", version)
			return exitValid
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(stderr, "Unknown option: %s\n%s", arg, usage)
				return exitError
			}
			files = append(files, arg)
		}
	}
	if len(files) == 0 {
		fmt.Fprintf(stderr, "Error: No input files specified\n%s", usage)
		return exitError
	}

	valid, failed := 0, false
	for _, name := range files {
		ok, err := check(name, opts, stdout, stderr)
		switch {
		case err != nil:
			if !opts.quiet {
				fmt.Fprintf(stderr, "%s: error: %v\n", name, err)
			}
			failed = true
		case ok:
			valid++
		}
	}

	if len(files) > 1 && !opts.quiet {
		fmt.Fprintf(stdout, "\nSummary: %d of %d files valid\n", valid, len(files))
	}
	switch {
	case failed:
		return exitError
	case valid < len(files):
		return exitInvalid
	}
	return exitValid
}

// check validates one file and prints its report. It returns an error only
// when the file cannot be examined at all.
func check(name string, opts options, stdout, stderr io.Writer) (bool, error) {
	if _, err := os.Stat(name); err != nil {
		return false, err
	}
	result, err := tiffutil.ValidateFile(name, opts.strict)
	if err != nil {
		return false, err
	}
	if opts.strict && len(result.Warnings) > 0 {
		result.Valid = false
		result.Errors = append(result.Errors, result.Warnings...)
		result.Warnings = nil
	}

	if opts.quiet {
		for _, msg := range result.Errors {
			fmt.Fprintf(stderr, "%s: %s\n", name, msg)
		}
		return result.Valid, nil
	}

	status := "OK"
	if !result.Valid {
		status = "INVALID"
	}
	fmt.Fprintf(stdout, "%s: %s\n", name, status)
	for _, msg := range result.Errors {
		fmt.Fprintf(stdout, "  [ERROR] %s\n", msg)
	}
	for _, msg := range result.Warnings {
		fmt.Fprintf(stdout, "  [WARNING] %s\n", msg)
	}
	if opts.info {
		printInfo(name, stdout)
	}
	return result.Valid, nil
}

func printInfo(name string, w io.Writer) {
	fi, err := tiffutil.GetFileInfo(name)
	if err != nil {
		return
	}
	kind := "TIFF"
	if fi.BigTIFF {
		kind = "BigTIFF"
	}
	fmt.Fprintf(w, "  %s, %s, %d bytes, %d image(s)\n", kind, fi.ByteOrder, fi.FileSize, len(fi.Images))
	for _, im := range fi.Images {
		storage := fmt.Sprintf("%d rows per strip", im.RowsPerStrip)
		if im.IsTiled {
			storage = fmt.Sprintf("%dx%d tiles", im.TileWidth, im.TileHeight)
		}
		if im.Planar {
			storage += ", planar"
		}
		fmt.Fprintf(w, "  #%d: %dx%d %s %s bits=%v %s, %s, %d chunks\n",
			im.Index, im.Width, im.Height, im.Photometric, im.SampleFormat, im.BitsPerSample,
			im.Compression, storage, im.NumChunks)
		if im.Supported {
			fmt.Fprintf(w, "      decodes to %s\n", im.RasterType)
		} else {
			fmt.Fprintf(w, "      not decodable: %s\n", im.Reason)
		}
	}
}
