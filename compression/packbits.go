// Package compression provides the entropy decoders for TIFF strips and
// tiles.
//
// Every decoder has the form XDecompressTo(dst, src, ...) and fills dst
// with exactly len(dst) decoded bytes, the size of the strip or tile at its
// declared bit depth. Encoders are provided where the codec allows it so
// that payloads can be produced for tests and tools.
package compression

import (
	"errors"
)

// PackBits errors
var (
	ErrPackBitsCorrupted = errors.New("compression: corrupted PackBits data")
)

const (
	packBitsMinRunLength = 3
	packBitsMaxRunLength = 128
)

// PackBitsCompress encodes src with the Macintosh PackBits scheme used by
// TIFF compression 32773.
//
// Each header byte n is followed by data:
//   - 0 <= n <= 127: n+1 literal bytes follow
//   - -127 <= n <= -1: the next byte is repeated 1-n times
//   - n == -128: no operation
//
// For example:
//
//	[A, A, A, A, B, C, D] -> [-3, A, 2, B, C, D]
func PackBitsCompress(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}

	dst := make([]byte, 0, len(src)+len(src)/128+1)

	i := 0
	for i < len(src) {
		val := src[i]
		runEnd := i + 1
		for runEnd < len(src) && src[runEnd] == val && runEnd-i < packBitsMaxRunLength {
			runEnd++
		}
		runLength := runEnd - i

		if runLength >= packBitsMinRunLength {
			dst = append(dst, byte(-(runLength - 1)), val)
			i = runEnd
			continue
		}

		literalStart := i
		for i < len(src) && i-literalStart < packBitsMaxRunLength {
			if i+packBitsMinRunLength <= len(src) {
				val := src[i]
				if src[i+1] == val && src[i+2] == val {
					break
				}
			}
			i++
		}

		if literalLength := i - literalStart; literalLength > 0 {
			dst = append(dst, byte(literalLength-1))
			dst = append(dst, src[literalStart:i]...)
		}
	}

	return dst
}

// PackBitsDecompressTo decodes src into dst. Decoding stops once dst is
// full; bytes after that point are ignored. A run that would overflow dst
// is truncated.
func PackBitsDecompressTo(dst, src []byte) error {
	dstPos := 0
	i := 0
	for i < len(src) && dstPos < len(dst) {
		n := int(int8(src[i]))
		i++

		switch {
		case n == -128:
			continue
		case n < 0:
			if i >= len(src) {
				return ErrPackBitsCorrupted
			}
			val := src[i]
			i++
			end := dstPos - n + 1
			if end > len(dst) {
				end = len(dst)
			}
			for ; dstPos < end; dstPos++ {
				dst[dstPos] = val
			}
		default:
			literalLength := n + 1
			if i+literalLength > len(src) {
				return ErrPackBitsCorrupted
			}
			dstPos += copy(dst[dstPos:], src[i:i+literalLength])
			i += literalLength
		}
	}

	if dstPos != len(dst) {
		return ErrPackBitsCorrupted
	}
	return nil
}
