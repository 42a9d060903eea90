// Package ifd reads the image file directories of classic TIFF and BigTIFF
// files into the fields a raster decoder needs.
package ifd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"math"

	"github.com/google/tiff"
	"github.com/google/tiff/bigtiff"
	"github.com/hashicorp/go-multierror"
)

// Directory errors
var (
	ErrInvalidDirectory = errors.New("ifd: invalid directory")
	ErrNoDirectories    = errors.New("ifd: file has no directories")
)

// TIFF tags read outside of struct unmarshalling.
const (
	tagYCbCrCoefficients   = 529
	tagReferenceBlackWhite = 532
)

// ReadAtReadSeeker is the access a parser needs to a TIFF file.
type ReadAtReadSeeker interface {
	io.ReaderAt
	io.ReadSeeker
}

// File is a parsed TIFF file.
type File struct {
	ByteOrder   binary.ByteOrder
	BigTIFF     bool
	Directories []*Directory
}

// Directory holds the fields of one image file directory. Missing fields
// are given their TIFF defaults by Parse.
type Directory struct {
	SubfileType               uint32   `tiff:"field,tag=254"`
	ImageWidth                uint64   `tiff:"field,tag=256"`
	ImageLength               uint64   `tiff:"field,tag=257"`
	BitsPerSample             []uint16 `tiff:"field,tag=258"`
	Compression               uint16   `tiff:"field,tag=259"`
	PhotometricInterpretation uint16   `tiff:"field,tag=262"`
	FillOrder                 uint16   `tiff:"field,tag=266"`
	StripOffsets              []uint64 `tiff:"field,tag=273"`
	SamplesPerPixel           uint16   `tiff:"field,tag=277"`
	RowsPerStrip              uint64   `tiff:"field,tag=278"`
	StripByteCounts           []uint64 `tiff:"field,tag=279"`
	PlanarConfiguration       uint16   `tiff:"field,tag=284"`
	T4Options                 uint32   `tiff:"field,tag=292"`
	Predictor                 uint16   `tiff:"field,tag=317"`
	ColorMap                  []uint16 `tiff:"field,tag=320"`
	TileWidth                 uint64   `tiff:"field,tag=322"`
	TileLength                uint64   `tiff:"field,tag=323"`
	TileOffsets               []uint64 `tiff:"field,tag=324"`
	TileByteCounts            []uint64 `tiff:"field,tag=325"`
	ExtraSamples              []uint16 `tiff:"field,tag=338"`
	SampleFormat              []uint16 `tiff:"field,tag=339"`
	YCbCrSubSampling          []uint16 `tiff:"field,tag=530"`

	// YCbCrCoefficients and ReferenceBlackWhite are decoded from their
	// RATIONAL values. They are nil when absent.
	YCbCrCoefficients   []float32 `tiff:"-"`
	ReferenceBlackWhite []float32 `tiff:"-"`
}

// Parse reads the header and every top-level directory of a TIFF or
// BigTIFF file.
func Parse(r ReadAtReadSeeker) (*File, error) {
	order, err := byteOrder(r)
	if err != nil {
		return nil, err
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	tif, err := tiff.Parse(r, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("ifd: parsing header: %w", err)
	}
	f := &File{
		ByteOrder: order,
		BigTIFF:   tif.Version() == bigtiff.Version,
	}
	for i, tifd := range tif.IFDs() {
		d, err := load(tifd, order)
		if err != nil {
			return nil, fmt.Errorf("ifd: directory %d: %w", i, err)
		}
		f.Directories = append(f.Directories, d)
	}
	if len(f.Directories) == 0 {
		return nil, ErrNoDirectories
	}
	return f, nil
}

func byteOrder(r io.ReaderAt) (binary.ByteOrder, error) {
	var mark [2]byte
	if _, err := r.ReadAt(mark[:], 0); err != nil {
		return nil, fmt.Errorf("ifd: reading header: %w", err)
	}
	switch string(mark[:]) {
	case "II":
		return binary.LittleEndian, nil
	case "MM":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("ifd: byte order mark %q", mark[:])
}

func load(tifd tiff.IFD, order binary.ByteOrder) (*Directory, error) {
	d := &Directory{}
	if err := tiff.UnmarshalIFD(tifd, d); err != nil {
		return nil, err
	}
	if tifd.HasField(tagYCbCrCoefficients) {
		d.YCbCrCoefficients = rationals(tifd.GetField(tagYCbCrCoefficients), order)
	}
	if tifd.HasField(tagReferenceBlackWhite) {
		d.ReferenceBlackWhite = rationals(tifd.GetField(tagReferenceBlackWhite), order)
	}
	d.setDefaults()
	return d, nil
}

// rationals decodes a RATIONAL field, each value a numerator and
// denominator of four bytes.
func rationals(f tiff.Field, order binary.ByteOrder) []float32 {
	b := f.Value().Bytes()
	out := make([]float32, 0, len(b)/8)
	for i := 0; i+8 <= len(b); i += 8 {
		num := order.Uint32(b[i:])
		den := order.Uint32(b[i+4:])
		if den == 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, float32(float64(num)/float64(den)))
	}
	return out
}

func (d *Directory) setDefaults() {
	if d.Compression == 0 {
		d.Compression = 1
	}
	if d.FillOrder == 0 {
		d.FillOrder = 1
	}
	if d.SamplesPerPixel == 0 {
		d.SamplesPerPixel = 1
	}
	if d.PlanarConfiguration == 0 {
		d.PlanarConfiguration = 1
	}
	if d.Predictor == 0 {
		d.Predictor = 1
	}
	if d.RowsPerStrip == 0 || d.RowsPerStrip > d.ImageLength {
		d.RowsPerStrip = d.ImageLength
	}
	spp := int(d.SamplesPerPixel)
	switch {
	case len(d.BitsPerSample) == 0:
		d.BitsPerSample = repeat(1, spp)
	case len(d.BitsPerSample) == 1 && spp > 1:
		d.BitsPerSample = repeat(d.BitsPerSample[0], spp)
	}
	if len(d.SampleFormat) == 1 && spp > 1 {
		d.SampleFormat = repeat(d.SampleFormat[0], spp)
	}
	if len(d.YCbCrSubSampling) < 2 {
		d.YCbCrSubSampling = []uint16{2, 2}
	}
}

func repeat(v uint16, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// IsTiled reports whether the image is stored in tiles rather than strips.
func (d *Directory) IsTiled() bool {
	return d.TileWidth > 0 && d.TileLength > 0 && len(d.TileOffsets) > 0
}

// IsPlanar reports whether each band is stored in its own strips or tiles.
func (d *Directory) IsPlanar() bool {
	return d.PlanarConfiguration == 2 && d.SamplesPerPixel > 1
}

// Bounds returns the image rectangle.
func (d *Directory) Bounds() image.Rectangle {
	return image.Rect(0, 0, int(d.ImageWidth), int(d.ImageLength))
}

// ChunkSize returns the width and height of a strip or tile. The last
// strip may be shorter.
func (d *Directory) ChunkSize() (int, int) {
	if d.IsTiled() {
		return int(d.TileWidth), int(d.TileLength)
	}
	return int(d.ImageWidth), int(d.RowsPerStrip)
}

// ChunksAcross returns the number of strips or tiles in a row.
func (d *Directory) ChunksAcross() int {
	w, _ := d.ChunkSize()
	if w <= 0 {
		return 0
	}
	return (int(d.ImageWidth) + w - 1) / w
}

// ChunksDown returns the number of strips or tiles in a column.
func (d *Directory) ChunksDown() int {
	_, h := d.ChunkSize()
	if h <= 0 {
		return 0
	}
	return (int(d.ImageLength) + h - 1) / h
}

// ChunksPerPlane returns the number of strips or tiles holding one plane,
// or every band when the image is not planar.
func (d *Directory) ChunksPerPlane() int {
	return d.ChunksAcross() * d.ChunksDown()
}

// NumChunks returns the number of strips or tiles the image declares.
func (d *Directory) NumChunks() int {
	n := d.ChunksPerPlane()
	if d.IsPlanar() {
		n *= int(d.SamplesPerPixel)
	}
	return n
}

// ChunkIndex returns the index of the strip or tile at column cx and row cy
// of the given plane.
func (d *Directory) ChunkIndex(cx, cy, plane int) int {
	return plane*d.ChunksPerPlane() + cy*d.ChunksAcross() + cx
}

// ChunkRect returns the image area covered by chunk i. Tiles keep their
// full size past the image edge; strips are clipped to the image.
func (d *Directory) ChunkRect(i int) image.Rectangle {
	i %= max(d.ChunksPerPlane(), 1)
	w, h := d.ChunkSize()
	cx, cy := i%max(d.ChunksAcross(), 1), i/max(d.ChunksAcross(), 1)
	r := image.Rect(cx*w, cy*h, (cx+1)*w, (cy+1)*h)
	if !d.IsTiled() {
		r = r.Intersect(d.Bounds())
	}
	return r
}

// ChunkOffset returns the file offset of strip or tile i.
func (d *Directory) ChunkOffset(i int) int64 {
	offsets := d.StripOffsets
	if d.IsTiled() {
		offsets = d.TileOffsets
	}
	if i < 0 || i >= len(offsets) || offsets[i] > math.MaxInt64 {
		return -1
	}
	return int64(offsets[i])
}

// ChunkByteCount returns the stored size of strip or tile i.
func (d *Directory) ChunkByteCount(i int) int64 {
	counts := d.StripByteCounts
	if d.IsTiled() {
		counts = d.TileByteCounts
	}
	if i < 0 || i >= len(counts) || counts[i] > math.MaxInt64 {
		return -1
	}
	return int64(counts[i])
}

// Validate reports every structural problem of the directory. Each
// aggregated error wraps ErrInvalidDirectory.
func (d *Directory) Validate() error {
	var result *multierror.Error
	add := func(format string, args ...interface{}) {
		result = multierror.Append(result, fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidDirectory}, args...)...))
	}
	if d.ImageWidth == 0 || d.ImageLength == 0 {
		add("image size %dx%d", d.ImageWidth, d.ImageLength)
	}
	if d.ImageWidth > math.MaxInt32 || d.ImageLength > math.MaxInt32 {
		add("image size %dx%d too large", d.ImageWidth, d.ImageLength)
	}
	if len(d.BitsPerSample) < int(d.SamplesPerPixel) {
		add("%d bit depths for %d samples", len(d.BitsPerSample), d.SamplesPerPixel)
	}
	offsets, counts, kind := d.StripOffsets, d.StripByteCounts, "strip"
	if d.IsTiled() {
		offsets, counts, kind = d.TileOffsets, d.TileByteCounts, "tile"
	}
	if len(offsets) == 0 {
		add("no %s offsets", kind)
	}
	if len(offsets) != len(counts) {
		add("%d %s offsets but %d byte counts", len(offsets), kind, len(counts))
	}
	if want := d.NumChunks(); len(offsets) < want {
		add("%d %s offsets, want %d", len(offsets), kind, want)
	}
	if d.PhotometricInterpretation == 3 && len(d.ColorMap) == 0 {
		add("palette image without a color map")
	}
	if len(d.YCbCrSubSampling) >= 2 {
		for _, s := range d.YCbCrSubSampling[:2] {
			if s != 1 && s != 2 && s != 4 {
				add("YCbCr subsampling %v", d.YCbCrSubSampling)
				break
			}
		}
	}
	return result.ErrorOrNil()
}
