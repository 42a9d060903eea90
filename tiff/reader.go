package tiff

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru"

	"github.com/mrjoshuak/go-tiffraster/ifd"
	"github.com/mrjoshuak/go-tiffraster/raster"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// Parallel controls how many strips or tiles are decoded at once. The
	// zero value uses the package-wide configuration.
	Parallel ParallelConfig

	// CacheSize is the number of decompressed strips or tiles kept for
	// reuse across reads. 0 disables caching.
	CacheSize int

	// Warn, if set, receives recoverable problems found while reading.
	Warn func(msg string)

	// Pool supplies scratch buffers. Nil means the package pool.
	Pool *BufferPool
}

// DefaultReaderOptions returns the default reader options.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		Parallel:  GetParallelConfig(),
		CacheSize: 64,
	}
}

// ReadParam selects what part of an image is read and where it goes.
type ReadParam struct {
	// SourceRegion is the part of the image to read. The empty rectangle
	// means the whole image.
	SourceRegion image.Rectangle

	// SubsampleX and SubsampleY keep every n-th column and row of the
	// source region. Zero means 1.
	SubsampleX, SubsampleY int

	// DestinationOffset is where the first source pixel lands.
	DestinationOffset image.Point

	// SourceBands[i] is written to DestinationBands[i]. Nil lists select
	// every band.
	SourceBands      []int
	DestinationBands []int

	// ColorConverter replaces the converter chosen from the photometric
	// interpretation.
	ColorConverter ColorConverter
}

// Reader decodes the images of a TIFF file.
type Reader struct {
	src    ByteSource
	size   int64
	file   *ifd.File
	opts   ReaderOptions
	pool   *BufferPool
	cache  *lru.Cache
	closer io.Closer
}

// NewReader parses the directories of the TIFF file in r, which is size
// bytes long. A nil opts uses DefaultReaderOptions.
func NewReader(r io.ReaderAt, size int64, opts *ReaderOptions) (*Reader, error) {
	o := DefaultReaderOptions()
	if opts != nil {
		o = *opts
	}
	if o.Parallel == (ParallelConfig{}) {
		o.Parallel = GetParallelConfig()
	}
	order, err := DetectByteOrder(r)
	if err != nil {
		return nil, err
	}
	f, err := ifd.Parse(io.NewSectionReader(r, 0, size))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}
	rd := &Reader{
		src:  NewSource(r, order),
		size: size,
		file: f,
		opts: o,
		pool: o.Pool,
	}
	if rd.pool == nil {
		rd.pool = globalBufferPool
	}
	if o.CacheSize > 0 {
		rd.cache, err = lru.New(o.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return rd, nil
}

// Open memory-maps the file at path and parses its directories.
func Open(path string, opts *ReaderOptions) (*Reader, error) {
	fs, err := OpenFile(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(fs, fs.Size(), opts)
	if err != nil {
		fs.Close()
		return nil, err
	}
	r.src = fs
	r.closer = fs
	return r, nil
}

// Close releases the file opened by Open.
func (r *Reader) Close() error {
	if r.cache != nil {
		r.cache.Purge()
	}
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// NumImages returns the number of directories.
func (r *Reader) NumImages() int {
	return len(r.file.Directories)
}

// BigTIFF reports whether the file uses 64-bit offsets.
func (r *Reader) BigTIFF() bool {
	return r.file.BigTIFF
}

// ByteOrder returns the byte order of the file.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.file.ByteOrder
}

// Directory returns the fields of image i.
func (r *Reader) Directory(i int) (*ifd.Directory, error) {
	if i < 0 || i >= len(r.file.Directories) {
		return nil, fmt.Errorf("%w: image %d of %d", ErrInvalidConfiguration, i, len(r.file.Directories))
	}
	return r.file.Directories[i], nil
}

// Layout returns the pixel layout of image i.
func (r *Reader) Layout(i int) (PixelLayout, error) {
	d, err := r.Directory(i)
	if err != nil {
		return PixelLayout{}, err
	}
	return LayoutOf(d), nil
}

// RasterType returns the raster type image i decodes to.
func (r *Reader) RasterType(i int) (RasterType, error) {
	l, err := r.Layout(i)
	if err != nil {
		return RasterType{}, err
	}
	return ResolveRasterType(l)
}

// Decompressor returns the decompressor for the strips or tiles of image i,
// configured from its directory.
func (r *Reader) Decompressor(i int) (Decompressor, error) {
	d, err := r.Directory(i)
	if err != nil {
		return nil, err
	}
	l := LayoutOf(d)
	return NewDecompressor(l.Compression, r.decompressorOptions(d, l))
}

// LayoutOf returns the pixel layout declared by a directory.
func LayoutOf(d *ifd.Directory) PixelLayout {
	l := PixelLayout{
		Photometric:     Photometric(d.PhotometricInterpretation),
		Compression:     Compression(d.Compression),
		SamplesPerPixel: int(d.SamplesPerPixel),
		Planar:          d.IsPlanar(),
	}
	for _, b := range d.BitsPerSample {
		l.BitsPerSample = append(l.BitsPerSample, int(b))
	}
	for _, f := range d.SampleFormat {
		l.SampleFormat = append(l.SampleFormat, SampleFormat(f))
	}
	for _, e := range d.ExtraSamples {
		l.ExtraSamples = append(l.ExtraSamples, ExtraSample(e))
	}
	if l.Photometric == PhotometricPalette && len(d.ColorMap) > 0 {
		l.ColorMap = append([]uint16(nil), d.ColorMap...)
	}
	return l
}

// Read decodes image i into a new raster covering the destination area
// of p. A nil p reads the whole image.
func (r *Reader) Read(i int, p *ReadParam) (*raster.Raster, error) {
	t, err := r.RasterType(i)
	if err != nil {
		return nil, err
	}
	d := r.file.Directories[i]
	param := r.param(d, p)
	if param.SubsampleX < 1 || param.SubsampleY < 1 {
		return nil, fmt.Errorf("%w: subsampling %dx%d", ErrInvalidConfiguration, param.SubsampleX, param.SubsampleY)
	}
	src := param.SourceRegion.Intersect(d.Bounds())
	size := image.Pt(ceilDiv(src.Dx(), param.SubsampleX), ceilDiv(src.Dy(), param.SubsampleY))
	rect := image.Rectangle{Max: size}.Add(param.DestinationOffset)

	var dst *raster.Raster
	if param.SourceBands == nil {
		dst = t.NewRaster(rect)
	} else {
		if t.Layout != raster.Interleaved {
			return nil, fmt.Errorf("%w: band selection from %s storage", ErrUnsupportedStorage, t.Layout)
		}
		n := 0
		for _, b := range param.DestinationBands {
			n = max(n, b+1)
		}
		dst = raster.NewInterleaved(rect, t.DataType, n)
		for k, b := range param.DestinationBands {
			if sb := param.SourceBands[k]; sb >= 0 && sb < len(t.SampleBits) {
				dst.SampleBits[b] = t.SampleBits[sb]
			}
		}
	}
	if err := r.ReadInto(i, dst, p); err != nil {
		return nil, err
	}
	return dst, nil
}

// param returns p with zero fields replaced by their defaults.
func (r *Reader) param(d *ifd.Directory, p *ReadParam) ReadParam {
	var param ReadParam
	if p != nil {
		param = *p
	}
	if param.SourceRegion.Empty() {
		param.SourceRegion = d.Bounds()
	}
	if param.SubsampleX == 0 {
		param.SubsampleX = 1
	}
	if param.SubsampleY == 0 {
		param.SubsampleY = 1
	}
	return param
}

// chunkJob is one strip or tile, or one plane of it, to decode.
type chunkJob struct {
	index  int
	region Region
	row    int // chunk row
	plane  int // -1 for chunky images
	dst    int // destination band of the plane
}

// jobGroups splits jobs into groups that may run concurrently. Packed
// destinations share storage elements between bands and between
// horizontally adjacent chunks, so every job of one chunk row goes into
// the same group there. Distinct chunk rows never share destination rows.
func jobGroups(jobs []chunkJob, packed bool) [][]int {
	groups := make([][]int, 0, len(jobs))
	if !packed {
		for j := range jobs {
			groups = append(groups, []int{j})
		}
		return groups
	}
	byRow := make(map[int]int)
	for j, job := range jobs {
		g, ok := byRow[job.row]
		if !ok {
			g = len(groups)
			byRow[job.row] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], j)
	}
	return groups
}

// ReadInto decodes image i into dst. Strips and tiles are decoded in
// parallel, each writing its own part of dst. Into packed rasters the
// chunks of one chunk row are decoded in sequence.
func (r *Reader) ReadInto(i int, dst *raster.Raster, p *ReadParam) error {
	d, err := r.Directory(i)
	if err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if dst == nil {
		return fmt.Errorf("%w: no destination raster", ErrInvalidConfiguration)
	}
	layout := LayoutOf(d)
	param := r.param(d, p)
	if param.SubsampleX < 1 || param.SubsampleY < 1 {
		return fmt.Errorf("%w: subsampling %dx%d", ErrInvalidConfiguration, param.SubsampleX, param.SubsampleY)
	}
	if (param.SourceBands == nil) != (param.DestinationBands == nil) || len(param.SourceBands) != len(param.DestinationBands) {
		return fmt.Errorf("%w: %d source bands for %d destination bands", ErrInvalidConfiguration, len(param.SourceBands), len(param.DestinationBands))
	}
	src := param.SourceRegion.Intersect(d.Bounds())
	if src.Empty() {
		return fmt.Errorf("%w: source region %v outside image %v", ErrInvalidConfiguration, param.SourceRegion, d.Bounds())
	}
	srcBands, dstBands := param.SourceBands, param.DestinationBands
	if srcBands == nil {
		n := min(layout.SamplesPerPixel, dst.NumBands())
		srcBands, dstBands = identity(n), identity(n)
	}

	dec, err := r.Decompressor(i)
	if err != nil {
		return err
	}
	if r.cache != nil {
		dec = &cachedDecompressor{inner: dec, cache: r.cache, image: i}
	}

	clip := image.Rectangle{Max: image.Pt(ceilDiv(src.Dx(), param.SubsampleX), ceilDiv(src.Dy(), param.SubsampleY))}
	clip = clip.Add(param.DestinationOffset).Intersect(dst.Rect)
	jobs := r.jobs(d, src, param, clip, layout.Planar, srcBands, dstBands)

	cc := param.ColorConverter
	if cc == nil && !layout.Planar && len(srcBands) >= 3 {
		switch {
		case layout.Photometric == PhotometricCIELab:
			cc = CIELabConverter{}
		case layout.Photometric == PhotometricYCbCr && !layout.Compression.IsJPEG():
			cc = NewYCbCrConverter(d.YCbCrCoefficients, d.ReferenceBlackWhite)
		}
	}

	pipelines := sync.Pool{New: func() interface{} {
		pl := NewPipeline(dec)
		pl.raw.pool = r.pool
		return pl
	}}
	decode := func(job *chunkJob) error {
		offset, count, err := r.chunkBytes(d, job.index)
		if err != nil {
			return err
		}
		req := DecodeRequest{
			Layout:           layout,
			Source:           r.src,
			Offset:           offset,
			ByteCount:        count,
			Region:           job.region,
			SourceBands:      srcBands,
			DestinationBands: dstBands,
			Destination:      dst,
			ColorConverter:   cc,
		}
		if job.plane >= 0 {
			req.Layout = planeLayout(layout, job.plane)
			req.SourceBands = []int{0}
			req.DestinationBands = []int{job.dst}
			req.ColorConverter = nil
		}
		pl := pipelines.Get().(*Pipeline)
		defer pipelines.Put(pl)
		if err := pl.Configure(req); err != nil {
			return fmt.Errorf("tiff: image %d chunk %d: %w", i, job.index, err)
		}
		if err := pl.BeginDecoding(); err != nil {
			return fmt.Errorf("tiff: image %d chunk %d: %w", i, job.index, err)
		}
		if err := pl.Decode(); err != nil {
			return fmt.Errorf("tiff: image %d chunk %d: %w", i, job.index, err)
		}
		return nil
	}
	groups := jobGroups(jobs, dst.Layout != raster.Interleaved)
	return parallelFor(r.opts.Parallel, len(groups), func(g int) error {
		for _, j := range groups[g] {
			if err := decode(&jobs[j]); err != nil {
				return err
			}
		}
		return nil
	})
}

// jobs lists the strips or tiles intersecting src that write at least one
// destination pixel.
func (r *Reader) jobs(d *ifd.Directory, src image.Rectangle, param ReadParam, clip image.Rectangle, planar bool, srcBands, dstBands []int) []chunkJob {
	cw, ch := d.ChunkSize()
	minX, maxX := src.Min.X/cw, (src.Max.X-1)/cw
	minY, maxY := src.Min.Y/ch, (src.Max.Y-1)/ch

	planes := []int{-1}
	planeDst := []int{0}
	if planar {
		planes, planeDst = srcBands, dstBands
	}
	var jobs []chunkJob
	for k, plane := range planes {
		for cy := minY; cy <= maxY; cy++ {
			for cx := minX; cx <= maxX; cx++ {
				idx := d.ChunkIndex(cx, cy, max(plane, 0))
				reg, ok := ComputeRegion(d.ChunkRect(idx), src.Min, param.SubsampleX, param.SubsampleY, param.DestinationOffset, clip)
				if !ok {
					continue
				}
				jobs = append(jobs, chunkJob{index: idx, region: reg, row: cy, plane: plane, dst: planeDst[k]})
			}
		}
	}
	return jobs
}

// chunkBytes returns the location of chunk idx, clamping a byte count that
// runs past the end of the source.
func (r *Reader) chunkBytes(d *ifd.Directory, idx int) (int64, int, error) {
	offset, count := d.ChunkOffset(idx), d.ChunkByteCount(idx)
	if offset < 0 || count < 0 {
		return 0, 0, fmt.Errorf("%w: chunk %d has no location", ErrInvalidConfiguration, idx)
	}
	if offset >= r.size {
		return 0, 0, fmt.Errorf("%w: chunk %d starts at %d past end of file %d", ErrTruncatedSource, idx, offset, r.size)
	}
	if offset+count > r.size {
		r.warn(fmt.Sprintf("chunk %d: byte count %d runs past end of file, clamped to %d", idx, count, r.size-offset))
		count = r.size - offset
	}
	return offset, int(count), nil
}

func (r *Reader) decompressorOptions(d *ifd.Directory, l PixelLayout) DecompressorOptions {
	opts := DecompressorOptions{
		Predictor: int(d.Predictor),
		FillOrder: int(d.FillOrder),
		T4Options: d.T4Options,
		Pool:      r.pool,
	}
	if l.Photometric == PhotometricYCbCr && !l.Planar && len(d.YCbCrSubSampling) >= 2 {
		opts.YCbCrSubsampling = [2]int{int(d.YCbCrSubSampling[0]), int(d.YCbCrSubSampling[1])}
	}
	return opts
}

func (r *Reader) warn(msg string) {
	if r.opts.Warn != nil {
		r.opts.Warn(msg)
	}
}

// planeLayout returns the single-band layout of one plane of l.
func planeLayout(l PixelLayout, plane int) PixelLayout {
	p := PixelLayout{
		Photometric:     l.Photometric,
		Compression:     l.Compression,
		SamplesPerPixel: 1,
		BitsPerSample:   []int{l.BitsPerSample[plane]},
		SampleFormat:    []SampleFormat{l.Format(plane)},
		Planar:          true,
	}
	return p
}

// chunkKey identifies decompressed bytes in the reader cache.
type chunkKey struct {
	image        int
	offset       int64
	byteCount    int
	width        int
	height       int
	bitsPerPixel int
}

// cachedDecompressor keeps decompressed strips and tiles in an LRU cache.
type cachedDecompressor struct {
	inner Decompressor
	cache *lru.Cache
	image int
}

func (c *cachedDecompressor) DecodeRaw(ch *Chunk, b []byte, dstOffset, bitsPerPixel, scanlineStride int) error {
	rowBytes := (ch.Width*bitsPerPixel + 7) / 8
	key := chunkKey{c.image, ch.Offset, ch.ByteCount, ch.Width, ch.Height, bitsPerPixel}
	if ch.Height <= 0 || scanlineStride < rowBytes || dstOffset+(ch.Height-1)*scanlineStride+rowBytes > len(b) {
		return fmt.Errorf("%w: %d byte buffer for %d rows of %d bytes", ErrInvalidConfiguration, len(b), ch.Height, rowBytes)
	}
	if v, ok := c.cache.Get(key); ok {
		data := v.([]byte)
		for y := 0; y < ch.Height; y++ {
			copy(b[dstOffset+y*scanlineStride:], data[y*rowBytes:(y+1)*rowBytes])
		}
		return nil
	}
	data := make([]byte, rowBytes*ch.Height)
	if err := c.inner.DecodeRaw(ch, data, 0, bitsPerPixel, rowBytes); err != nil {
		return err
	}
	c.cache.Add(key, data)
	for y := 0; y < ch.Height; y++ {
		copy(b[dstOffset+y*scanlineStride:], data[y*rowBytes:(y+1)*rowBytes])
	}
	return nil
}
