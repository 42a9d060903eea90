package compression

import (
	"bytes"
	"errors"
	"io"

	"golang.org/x/image/tiff/lzw"
)

// LZW errors
var (
	ErrLZWCorrupted = errors.New("compression: corrupted LZW data")
)

// LZWDecompressTo decodes the TIFF LZW stream src into dst.
//
// Streams are read most significant bit first as TIFF 6.0 requires. Files
// written by early libtiff versions pack codes least significant bit first;
// they are recognized by their leading clear code and read in LSB order.
// A stream that fails in one order is retried in the other.
func LZWDecompressTo(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return ErrLZWCorrupted
		}
		return nil
	}
	first, second := lzw.MSB, lzw.LSB
	if isOldStyleLZW(src) {
		first, second = lzw.LSB, lzw.MSB
	}
	if err := lzwDecode(dst, src, first); err == nil {
		return nil
	}
	return lzwDecode(dst, src, second)
}

// isOldStyleLZW reports whether src starts with a 9-bit clear code (256)
// packed least significant bit first. The MSB-first clear code starts
// with 0x80.
func isOldStyleLZW(src []byte) bool {
	return len(src) >= 2 && src[0] == 0 && src[1]&1 == 1
}

func lzwDecode(dst, src []byte, order lzw.Order) error {
	r := lzw.NewReader(bytes.NewReader(src), order, 8)
	defer r.Close()

	// Encoders that omit the end-of-information code leave the reader
	// at io.ErrUnexpectedEOF after the last full strip.
	if n, _ := io.ReadFull(r, dst); n != len(dst) {
		return ErrLZWCorrupted
	}
	return nil
}
