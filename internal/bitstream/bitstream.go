// Package bitstream provides a bounds-checked, byte-order-aware cursor over
// decoded strip and tile bytes.
//
// TIFF stores multi-byte samples in the byte order declared by the file
// header, while sub-byte samples are always packed most significant bit
// first. Reader handles both: typed reads honor the configured byte order
// and ReadBits consumes bits MSB-first regardless of it.
package bitstream

import (
	"encoding/binary"
	"errors"
	"math"
)

var (
	// ErrShortBuffer is returned when a read cannot complete because the
	// data is exhausted.
	ErrShortBuffer = errors.New("bitstream: buffer too short")

	// ErrNegativeSize is returned when a size or position is negative.
	ErrNegativeSize = errors.New("bitstream: negative size")

	// ErrBitCount is returned when ReadBits is asked for more than 32 bits.
	ErrBitCount = errors.New("bitstream: bit count out of range")
)

// Reader reads typed values and bit fields from a byte slice.
type Reader struct {
	data  []byte
	pos   int // byte position
	bit   int // bits already consumed from data[pos], 0..7
	order binary.ByteOrder
}

// NewReader creates a Reader over data using the given byte order for
// multi-byte reads. A nil order means big-endian.
func NewReader(data []byte, order binary.ByteOrder) *Reader {
	if order == nil {
		order = binary.BigEndian
	}
	return &Reader{data: data, order: order}
}

// ByteOrder returns the byte order used for multi-byte reads.
func (r *Reader) ByteOrder() binary.ByteOrder {
	return r.order
}

// Len returns the number of unread whole bytes.
func (r *Reader) Len() int {
	if r.pos >= len(r.data) {
		return 0
	}
	return len(r.data) - r.pos
}

// Pos returns the current byte position.
func (r *Reader) Pos() int {
	return r.pos
}

// Seek moves the cursor to byte position pos and discards any partially
// consumed byte.
func (r *Reader) Seek(pos int) error {
	if pos < 0 {
		return ErrNegativeSize
	}
	if pos > len(r.data) {
		return ErrShortBuffer
	}
	r.pos = pos
	r.bit = 0
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 {
		return ErrNegativeSize
	}
	return r.Seek(r.pos + n)
}

// Align discards the unread bits of a partially consumed byte.
func (r *Reader) Align() {
	if r.bit != 0 {
		r.bit = 0
		r.pos++
	}
}

// ReadFull fills dst from the current byte position.
func (r *Reader) ReadFull(dst []byte) error {
	r.Align()
	if r.pos+len(dst) > len(r.data) {
		return ErrShortBuffer
	}
	copy(dst, r.data[r.pos:])
	r.pos += len(dst)
	return nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	r.Align()
	if r.pos >= len(r.data) {
		return 0, ErrShortBuffer
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// ReadUint16 reads an unsigned 16-bit integer.
func (r *Reader) ReadUint16() (uint16, error) {
	r.Align()
	if r.pos+2 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadUint32 reads an unsigned 32-bit integer.
func (r *Reader) ReadUint32() (uint32, error) {
	r.Align()
	if r.pos+4 > len(r.data) {
		return 0, ErrShortBuffer
	}
	v := r.order.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadFloat32 reads an IEEE 754 single-precision value.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	return math.Float32frombits(v), err
}

// ReadBits reads an n-bit unsigned field, most significant bit first.
// n must be between 0 and 32.
func (r *Reader) ReadBits(n int) (uint32, error) {
	if n < 0 || n > 32 {
		return 0, ErrBitCount
	}
	if (len(r.data)-r.pos)*8-r.bit < n {
		return 0, ErrShortBuffer
	}
	var v uint32
	for n > 0 {
		avail := 8 - r.bit
		take := n
		if take > avail {
			take = avail
		}
		shift := uint(avail - take)
		chunk := (uint32(r.data[r.pos]) >> shift) & (1<<uint(take) - 1)
		v = v<<uint(take) | chunk
		n -= take
		r.bit += take
		if r.bit == 8 {
			r.bit = 0
			r.pos++
		}
	}
	return v, nil
}

// reversed maps a byte to the byte with its bit order reversed.
var reversed = func() [256]byte {
	var t [256]byte
	for i := range t {
		b := byte(i)
		var v byte
		for k := 0; k < 8; k++ {
			v = v<<1 | b&1
			b >>= 1
		}
		t[i] = v
	}
	return t
}()

// ReverseBits reverses the bit order of every byte of data in place. It
// converts FillOrder 2 (least significant bit first) data to the MSB-first
// order the decoders expect.
func ReverseBits(data []byte) {
	for i, b := range data {
		data[i] = reversed[b]
	}
}
