package compression

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// Deflate errors
var (
	ErrDeflateCorrupted = errors.New("compression: corrupted Deflate data")
)

// inflater is a zlib reader kept across strips.
type inflater struct {
	src bytes.Reader
	zr  io.ReadCloser
}

// reset points f at a new zlib stream. After an error f must be discarded
// or reset again.
func (f *inflater) reset(src []byte) error {
	f.src.Reset(src)
	if r, ok := f.zr.(zlib.Resetter); ok {
		return r.Reset(&f.src, nil)
	}
	zr, err := zlib.NewReader(&f.src)
	if err != nil {
		return err
	}
	f.zr = zr
	return nil
}

var inflaters = sync.Pool{
	New: func() any { return new(inflater) },
}

// deflaters holds writers by level index: level+2 for levels -2..9.
var deflaters [12]sync.Pool

// DeflateDecompressTo inflates the zlib stream src, the payload of TIFF
// compression 8 and 32946, into dst. The stream must produce at least
// len(dst) bytes; any excess is ignored.
func DeflateDecompressTo(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return ErrDeflateCorrupted
		}
		return nil
	}

	f := inflaters.Get().(*inflater)
	if err := f.reset(src); err != nil {
		// The reader may be half-initialized; let it go.
		return ErrDeflateCorrupted
	}
	defer inflaters.Put(f)

	// A strip may end without the final block; what was read still counts.
	n, err := io.ReadFull(f.zr, dst)
	if n < len(dst) || (err != nil && err != io.EOF && err != io.ErrUnexpectedEOF) {
		return ErrDeflateCorrupted
	}
	return nil
}

// DeflateCompress encodes src as a zlib stream at the default level.
func DeflateCompress(src []byte) ([]byte, error) {
	return DeflateCompressLevel(src, zlib.DefaultCompression)
}

// DeflateCompressLevel encodes src as a zlib stream at level, one of the
// zlib levels from zlib.HuffmanOnly to zlib.BestCompression.
func DeflateCompressLevel(src []byte, level int) ([]byte, error) {
	if level < zlib.HuffmanOnly || level > zlib.BestCompression {
		level = zlib.DefaultCompression
	}
	pool := &deflaters[level+2]
	var buf bytes.Buffer
	w, _ := pool.Get().(*zlib.Writer)
	if w == nil {
		var err error
		if w, err = zlib.NewWriterLevel(&buf, level); err != nil {
			return nil, err
		}
	} else {
		w.Reset(&buf)
	}
	defer pool.Put(w)

	if _, err := w.Write(src); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
