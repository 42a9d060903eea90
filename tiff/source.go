package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// ByteSource is random access to the bytes of a TIFF file together with
// the byte order declared by its header.
type ByteSource interface {
	io.ReaderAt
	ByteOrder() binary.ByteOrder
}

// slicer is implemented by sources that can expose stored bytes without
// copying.
type slicer interface {
	Slice(off, length int64) []byte
}

type source struct {
	r     io.ReaderAt
	order binary.ByteOrder
}

// NewSource wraps r as a ByteSource with the given byte order. A nil order
// means big-endian. Reads that end early fail with ErrTruncatedSource.
func NewSource(r io.ReaderAt, order binary.ByteOrder) ByteSource {
	if order == nil {
		order = binary.BigEndian
	}
	return &source{r: r, order: order}
}

func (s *source) ByteOrder() binary.ByteOrder {
	return s.order
}

func (s *source) ReadAt(p []byte, off int64) (int, error) {
	n, err := s.r.ReadAt(p, off)
	if n == len(p) {
		return n, nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return n, fmt.Errorf("%w: read %d of %d bytes at offset %d", ErrTruncatedSource, n, len(p), off)
	}
	return n, err
}

func (s *source) Slice(off, length int64) []byte {
	if sl, ok := s.r.(slicer); ok {
		return sl.Slice(off, length)
	}
	return nil
}

// FileSource is a memory-mapped TIFF file. Strip and tile bytes are read
// straight from the mapping.
type FileSource struct {
	data  []byte
	order binary.ByteOrder
	file  *os.File
	unmap func() error
}

// OpenFile memory-maps the file at path. The byte order is taken from the
// "II" or "MM" header mark.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	data, unmap, err := mapFile(f, fi.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("tiff: mapping %s: %w", path, err)
	}
	fs := &FileSource{data: data, file: f, unmap: unmap}
	if fs.order, err = DetectByteOrder(fs); err != nil {
		fs.Close()
		return nil, err
	}
	return fs, nil
}

// ByteOrder returns the byte order declared by the file header.
func (f *FileSource) ByteOrder() binary.ByteOrder {
	return f.order
}

// ReadAt copies mapped bytes into p. A read ending past the end of the
// file fails with ErrTruncatedSource.
func (f *FileSource) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("%w: negative offset %d", ErrInvalidConfiguration, off)
	}
	var n int
	if off < int64(len(f.data)) {
		n = copy(p, f.data[off:])
	}
	if n < len(p) {
		return n, fmt.Errorf("%w: read %d of %d bytes at offset %d", ErrTruncatedSource, n, len(p), off)
	}
	return n, nil
}

// Slice returns the mapped bytes [off, off+length) without copying, or nil
// when the range is outside the file. The slice is valid until Close.
func (f *FileSource) Slice(off, length int64) []byte {
	if off < 0 || length < 0 || off+length > int64(len(f.data)) {
		return nil
	}
	return f.data[off : off+length]
}

// Size returns the file size in bytes.
func (f *FileSource) Size() int64 {
	return int64(len(f.data))
}

// Close unmaps and closes the file.
func (f *FileSource) Close() error {
	var err error
	if f.unmap != nil {
		err = f.unmap()
		f.unmap = nil
		f.data = nil
	}
	if f.file != nil {
		if cerr := f.file.Close(); err == nil {
			err = cerr
		}
		f.file = nil
	}
	return err
}

// DetectByteOrder reads the byte order mark at the start of a TIFF file.
func DetectByteOrder(r io.ReaderAt) (binary.ByteOrder, error) {
	var mark [2]byte
	if _, err := r.ReadAt(mark[:], 0); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrTruncatedSource, err)
	}
	switch string(mark[:]) {
	case "II":
		return binary.LittleEndian, nil
	case "MM":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("%w: byte order mark %q", ErrInvalidHeader, mark[:])
}
