package tiff

import (
	"fmt"

	"github.com/mrjoshuak/go-tiffraster/compression"
	"github.com/mrjoshuak/go-tiffraster/internal/bitstream"
	"github.com/mrjoshuak/go-tiffraster/internal/predictor"
)

// Chunk identifies the stored bytes of one strip or tile.
type Chunk struct {
	Source    ByteSource
	Offset    int64
	ByteCount int

	// Width and Height are the pixel dimensions the bytes decode to.
	Width, Height int

	// SamplesPerPixel and BitsPerSample describe the samples stored in
	// this chunk: one sample per pixel for a plane of a planar image.
	SamplesPerPixel int
	BitsPerSample   []int

	Photometric Photometric
}

// Decompressor turns the stored bytes of a chunk into uncompressed rows.
//
// DecodeRaw writes Height rows of (Width*bitsPerPixel+7)/8 bytes, row y
// starting at b[dstOffset+y*scanlineStride]. Samples keep the byte order of
// the source and sub-byte samples are packed most significant bit first.
type Decompressor interface {
	DecodeRaw(c *Chunk, b []byte, dstOffset, bitsPerPixel, scanlineStride int) error
}

// DecompressorOptions holds the directory fields that affect decompression.
type DecompressorOptions struct {
	// Predictor is the TIFF Predictor tag value. 0 means none.
	Predictor int

	// FillOrder is the TIFF FillOrder tag value. 0 means FillOrderMSB2LSB.
	FillOrder int

	// T4Options is the TIFF T4Options tag value for CCITT Group 3 data.
	T4Options uint32

	// YCbCrSubsampling holds the horizontal and vertical chroma
	// subsampling of YCbCr data. Zero values mean 1.
	YCbCrSubsampling [2]int

	// Pool supplies scratch buffers. Nil means the package pool.
	Pool *BufferPool
}

type decompressor struct {
	compression Compression
	opts        DecompressorOptions
	pool        *BufferPool
}

// NewDecompressor returns the decompressor for a compression scheme. It
// returns ErrUnsupportedCompression for schemes without a decoder.
func NewDecompressor(c Compression, opts DecompressorOptions) (Decompressor, error) {
	switch c {
	case CompressionNone, CompressionPackBits, CompressionLZW,
		CompressionAdobeDeflate, CompressionDeflate, CompressionZSTD,
		CompressionCCITTRLE, CompressionCCITTFax4,
		CompressionJPEG2000, CompressionAperioJ2KYCC, CompressionAperioJ2KRGB:
	case CompressionCCITTFax3:
		if opts.T4Options&1 != 0 {
			return nil, fmt.Errorf("%w: two-dimensional T.4 coding", ErrUnsupportedCompression)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
	switch opts.Predictor {
	case 0, predictor.None, predictor.Horizontal, predictor.FloatingPoint:
	default:
		return nil, fmt.Errorf("%w: predictor %d", ErrInvalidConfiguration, opts.Predictor)
	}
	d := &decompressor{compression: c, opts: opts, pool: opts.Pool}
	if d.pool == nil {
		d.pool = globalBufferPool
	}
	return d, nil
}

func (d *decompressor) reversed() bool {
	return d.opts.FillOrder == FillOrderLSB2MSB
}

func (d *decompressor) isCCITT() bool {
	switch d.compression {
	case CompressionCCITTRLE, CompressionCCITTFax3, CompressionCCITTFax4:
		return true
	}
	return false
}

// subsampling returns the chroma subsampling that applies to c.
func (d *decompressor) subsampling(c *Chunk) (int, int) {
	if c.Photometric != PhotometricYCbCr || c.SamplesPerPixel != 3 {
		return 1, 1
	}
	sx, sy := d.opts.YCbCrSubsampling[0], d.opts.YCbCrSubsampling[1]
	if sx < 1 {
		sx = 1
	}
	if sy < 1 {
		sy = 1
	}
	return sx, sy
}

func (d *decompressor) DecodeRaw(c *Chunk, b []byte, dstOffset, bitsPerPixel, scanlineStride int) error {
	if c.Width <= 0 || c.Height <= 0 {
		return nil
	}
	rowBytes := (c.Width*bitsPerPixel + 7) / 8
	if scanlineStride < rowBytes || dstOffset < 0 || dstOffset+(c.Height-1)*scanlineStride+rowBytes > len(b) {
		return fmt.Errorf("%w: %d byte buffer for %d rows of %d bytes at stride %d", ErrInvalidConfiguration, len(b), c.Height, rowBytes, scanlineStride)
	}

	sx, sy := d.subsampling(c)
	subsampled := sx != 1 || sy != 1
	if subsampled && (bitsPerPixel != 24 || !uniformBits(c.BitsPerSample, 8)) {
		return fmt.Errorf("%w: subsampled YCbCr with %v bits", ErrUnsupportedLayout, c.BitsPerSample)
	}

	if d.compression == CompressionNone && !subsampled {
		return d.readRows(c, b, dstOffset, rowBytes, scanlineStride)
	}

	decodedLen := rowBytes * c.Height
	if subsampled {
		decodedLen = ycbcrBlockBytes(c.Width, c.Height, sx, sy)
	}
	direct := !subsampled && scanlineStride == rowBytes
	var decoded []byte
	if direct {
		decoded = b[dstOffset : dstOffset+decodedLen]
	} else {
		buf, err := d.pool.GetWithError(decodedLen)
		if err != nil {
			return err
		}
		defer d.pool.Put(buf)
		decoded = buf
	}

	if d.compression == CompressionNone {
		if c.ByteCount < decodedLen {
			return fmt.Errorf("%w: strip needs %d bytes, has %d", ErrTruncatedSource, decodedLen, c.ByteCount)
		}
		if err := readFull(c.Source, decoded, c.Offset, c.ByteCount); err != nil {
			return err
		}
		if d.reversed() {
			bitstream.ReverseBits(decoded)
		}
	} else {
		src, release, err := d.readChunk(c)
		if err != nil {
			return err
		}
		err = d.decompress(c, decoded, src, bitsPerPixel)
		release()
		if err != nil {
			return err
		}
	}

	if subsampled {
		upsampleYCbCr(b[dstOffset:], scanlineStride, decoded, c.Width, c.Height, sx, sy)
		return nil
	}
	if err := d.unpredict(c, decoded, rowBytes); err != nil {
		return err
	}
	if !direct {
		for y := 0; y < c.Height; y++ {
			copy(b[dstOffset+y*scanlineStride:], decoded[y*rowBytes:(y+1)*rowBytes])
		}
	}
	return nil
}

// readRows copies uncompressed rows straight from the source. Reads never
// leave [Offset, Offset+ByteCount).
func (d *decompressor) readRows(c *Chunk, b []byte, dstOffset, rowBytes, scanlineStride int) error {
	if need := rowBytes * c.Height; need > c.ByteCount {
		return fmt.Errorf("%w: strip needs %d bytes, has %d", ErrTruncatedSource, need, c.ByteCount)
	}
	if scanlineStride == rowBytes {
		dst := b[dstOffset : dstOffset+rowBytes*c.Height]
		if err := readFull(c.Source, dst, c.Offset, len(dst)); err != nil {
			return err
		}
		if d.reversed() {
			bitstream.ReverseBits(dst)
		}
		return nil
	}
	for y := 0; y < c.Height; y++ {
		row := b[dstOffset+y*scanlineStride : dstOffset+y*scanlineStride+rowBytes]
		if err := readFull(c.Source, row, c.Offset+int64(y*rowBytes), rowBytes); err != nil {
			return err
		}
		if d.reversed() {
			bitstream.ReverseBits(row)
		}
	}
	return nil
}

// readChunk returns the stored bytes of c. Memory-mapped sources are
// sliced without copying. release must be called when the bytes are no
// longer needed.
func (d *decompressor) readChunk(c *Chunk) ([]byte, func(), error) {
	noop := func() {}
	if c.ByteCount <= 0 {
		return nil, noop, fmt.Errorf("%w: empty chunk at offset %d", ErrTruncatedSource, c.Offset)
	}
	reverse := d.reversed() && !d.isCCITT()
	if s, ok := c.Source.(slicer); ok && !reverse {
		if data := s.Slice(c.Offset, int64(c.ByteCount)); data != nil {
			return data, noop, nil
		}
	}
	buf, err := d.pool.GetWithError(c.ByteCount)
	if err != nil {
		return nil, noop, err
	}
	release := func() { d.pool.Put(buf) }
	if err := readFull(c.Source, buf, c.Offset, c.ByteCount); err != nil {
		release()
		return nil, noop, err
	}
	if reverse {
		bitstream.ReverseBits(buf)
	}
	return buf, release, nil
}

func (d *decompressor) decompress(c *Chunk, dst, src []byte, bitsPerPixel int) error {
	var err error
	switch d.compression {
	case CompressionPackBits:
		err = compression.PackBitsDecompressTo(dst, src)
	case CompressionLZW:
		err = compression.LZWDecompressTo(dst, src)
	case CompressionAdobeDeflate, CompressionDeflate:
		err = compression.DeflateDecompressTo(dst, src)
	case CompressionZSTD:
		err = compression.ZstdDecompressTo(dst, src)
	case CompressionCCITTRLE, CompressionCCITTFax3, CompressionCCITTFax4:
		if bitsPerPixel != 1 {
			return fmt.Errorf("%w: CCITT coding of %d-bit pixels", ErrUnsupportedLayout, bitsPerPixel)
		}
		err = compression.CCITTDecompressTo(dst, src, compression.CCITTOptions{
			Width:  c.Width,
			Height: c.Height,
			Group4: d.compression == CompressionCCITTFax4,
			LSB:    d.reversed(),
			Invert: c.Photometric == PhotometricWhiteIsZero,
			Align:  d.compression == CompressionCCITTRLE || d.opts.T4Options&4 != 0,
		})
	case CompressionJPEG2000, CompressionAperioJ2KYCC, CompressionAperioJ2KRGB:
		bits := 0
		if len(c.BitsPerSample) > 0 {
			bits = c.BitsPerSample[0]
		}
		if !uniformBits(c.BitsPerSample, bits) {
			return fmt.Errorf("%w: JPEG 2000 with bits %v", ErrUnsupportedLayout, c.BitsPerSample)
		}
		err = compression.JPEG2000DecompressTo(dst, src, compression.JPEG2000Options{
			Width:         c.Width,
			Height:        c.Height,
			Samples:       c.SamplesPerPixel,
			BitsPerSample: bits,
			Order:         c.Source.ByteOrder(),
		})
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedCompression, d.compression)
	}
	if err != nil {
		return fmt.Errorf("tiff: %s chunk at offset %d: %w", d.compression, c.Offset, err)
	}
	return nil
}

// unpredict undoes the Predictor transform on decoded rows.
func (d *decompressor) unpredict(c *Chunk, data []byte, rowBytes int) error {
	if d.opts.Predictor == 0 || d.opts.Predictor == predictor.None {
		return nil
	}
	bits := c.BitsPerSample[0]
	if !uniformBits(c.BitsPerSample, bits) {
		return fmt.Errorf("%w: predictor with bits %v", ErrUnsupportedLayout, c.BitsPerSample)
	}
	geom := predictor.Row{
		Width:           c.Width,
		SamplesPerPixel: c.SamplesPerPixel,
		BitsPerSample:   bits,
		Order:           c.Source.ByteOrder(),
	}
	var scratch []byte
	if d.opts.Predictor == predictor.FloatingPoint {
		buf, err := d.pool.GetWithError(rowBytes)
		if err != nil {
			return err
		}
		defer d.pool.Put(buf)
		scratch = buf
	}
	if err := predictor.Decode(d.opts.Predictor, data, c.Height, rowBytes, geom, scratch); err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupportedLayout, err)
	}
	return nil
}

// readFull reads exactly n bytes at off into dst[:n].
func readFull(src ByteSource, dst []byte, off int64, n int) error {
	if n > len(dst) {
		n = len(dst)
	}
	got, err := src.ReadAt(dst[:n], off)
	if got < n {
		if err == nil {
			err = fmt.Errorf("%w: read %d of %d bytes at offset %d", ErrTruncatedSource, got, n, off)
		}
		return err
	}
	return nil
}

func uniformBits(bits []int, want int) bool {
	for _, b := range bits {
		if b != want {
			return false
		}
	}
	return true
}

// ycbcrBlockBytes returns the size of subsampled YCbCr data: every block
// of sx*sy pixels stores its luma samples followed by one Cb and one Cr.
func ycbcrBlockBytes(w, h, sx, sy int) int {
	blocksAcross := (w + sx - 1) / sx
	blocksDown := (h + sy - 1) / sy
	return blocksAcross * blocksDown * (sx*sy + 2)
}

// upsampleYCbCr expands subsampled YCbCr blocks into interleaved Y, Cb, Cr
// rows, replicating the chroma of each block over its pixels.
func upsampleYCbCr(dst []byte, stride int, src []byte, w, h, sx, sy int) {
	blocksAcross := (w + sx - 1) / sx
	blocksDown := (h + sy - 1) / sy
	blockLen := sx*sy + 2
	for by := 0; by < blocksDown; by++ {
		for bx := 0; bx < blocksAcross; bx++ {
			block := src[(by*blocksAcross+bx)*blockLen:]
			cb, cr := block[sx*sy], block[sx*sy+1]
			for j := 0; j < sy; j++ {
				y := by*sy + j
				if y >= h {
					break
				}
				for i := 0; i < sx; i++ {
					x := bx*sx + i
					if x >= w {
						break
					}
					p := dst[y*stride+x*3:]
					p[0], p[1], p[2] = block[j*sx+i], cb, cr
				}
			}
		}
	}
}
