package compression

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"golang.org/x/image/ccitt"
)

// CCITT errors
var (
	ErrCCITTCorrupted = errors.New("compression: corrupted CCITT data")
)

// CCITTOptions describes a bilevel CCITT-coded strip or tile.
type CCITTOptions struct {
	Width  int
	Height int

	// Group4 selects T.6 coding; otherwise the data is T.4 one-dimensional
	// (Modified Huffman) coding.
	Group4 bool

	// LSB reports that codes are packed least significant bit first
	// (FillOrder 2).
	LSB bool

	// Invert produces 0 for white and 1 for black, the white-is-zero
	// packing. By default white is 1.
	Invert bool

	// Align reports that every coded row starts on a byte boundary.
	Align bool
}

// CCITTDecompressTo decodes src into dst as rows of packed bits, each row
// padded to a whole byte. dst must hold Height rows of (Width+7)/8 bytes.
func CCITTDecompressTo(dst, src []byte, opts CCITTOptions) error {
	rowBytes := (opts.Width + 7) / 8
	if want := rowBytes * opts.Height; len(dst) < want {
		return fmt.Errorf("%w: %d byte buffer for %dx%d bilevel", ErrCCITTCorrupted, len(dst), opts.Width, opts.Height)
	}

	order := ccitt.MSB
	if opts.LSB {
		order = ccitt.LSB
	}
	sf := ccitt.Group3
	if opts.Group4 {
		sf = ccitt.Group4
	}
	r := ccitt.NewReader(bytes.NewReader(src), order, sf, opts.Width, opts.Height, &ccitt.Options{
		Invert: opts.Invert,
		Align:  opts.Align,
	})
	if _, err := io.ReadFull(r, dst[:rowBytes*opts.Height]); err != nil {
		return fmt.Errorf("%w: %v", ErrCCITTCorrupted, err)
	}
	return nil
}
