// Package tifftest builds small classic TIFF files in memory for tests.
package tifftest

import (
	"encoding/binary"
	"sort"
)

// Field types written by Encode.
const (
	Short    = 3
	Long     = 4
	Rational = 5
)

// Field is one directory entry. Rational values hold numerator and
// denominator pairs.
type Field struct {
	Tag    uint16
	Type   uint16
	Values []uint32
}

// Image describes one directory and its stored strips or tiles.
type Image struct {
	Width, Height int
	BitsPerSample []int
	Photometric   int
	Compression   int // 0 means uncompressed
	Planar        bool

	// RowsPerStrip is used when TileWidth is zero. Zero means one strip.
	RowsPerStrip int

	TileWidth, TileHeight int

	// Chunks holds the stored bytes of every strip or tile in index order.
	Chunks [][]byte

	// Offsets and ByteCounts, if set, replace the location written for
	// each chunk.
	Offsets    []uint32
	ByteCounts []uint32

	// Fields are written in addition to the layout fields.
	Fields []Field
}

// Encode returns a classic TIFF file holding images in order.
func Encode(order binary.ByteOrder, images ...Image) []byte {
	return encode(order, false, images)
}

// EncodeBigTIFF returns a BigTIFF file holding images in order.
func EncodeBigTIFF(order binary.ByteOrder, images ...Image) []byte {
	return encode(order, true, images)
}

func encode(order binary.ByteOrder, big bool, images []Image) []byte {
	var buf []byte
	if order == binary.BigEndian {
		buf = append(buf, "MM"...)
	} else {
		buf = append(buf, "II"...)
	}
	next := 4 // where the offset of the next directory goes
	if big {
		buf = append(buf, make([]byte, 14)...)
		order.PutUint16(buf[2:], 43)
		order.PutUint16(buf[4:], 8)
		next = 8
	} else {
		buf = append(buf, make([]byte, 6)...)
		order.PutUint16(buf[2:], 42)
	}

	for _, im := range images {
		offsets := make([]uint32, len(im.Chunks))
		counts := make([]uint32, len(im.Chunks))
		for i, c := range im.Chunks {
			offsets[i] = uint32(len(buf))
			counts[i] = uint32(len(c))
			buf = append(buf, c...)
		}
		if im.Offsets != nil {
			offsets = im.Offsets
		}
		if im.ByteCounts != nil {
			counts = im.ByteCounts
		}
		if len(buf)%2 == 1 {
			buf = append(buf, 0)
		}
		putOffset(buf[next:], order, big, len(buf))
		buf, next = writeIFD(buf, order, big, im.fields(offsets, counts))
	}
	return buf
}

func putOffset(b []byte, order binary.ByteOrder, big bool, off int) {
	if big {
		order.PutUint64(b, uint64(off))
		return
	}
	order.PutUint32(b, uint32(off))
}

func (im *Image) fields(offsets, counts []uint32) []Field {
	bits := make([]uint32, len(im.BitsPerSample))
	for i, b := range im.BitsPerSample {
		bits[i] = uint32(b)
	}
	comp := im.Compression
	if comp == 0 {
		comp = 1
	}
	planar := uint32(1)
	if im.Planar {
		planar = 2
	}
	fs := []Field{
		{256, Long, []uint32{uint32(im.Width)}},
		{257, Long, []uint32{uint32(im.Height)}},
		{258, Short, bits},
		{259, Short, []uint32{uint32(comp)}},
		{262, Short, []uint32{uint32(im.Photometric)}},
		{277, Short, []uint32{uint32(len(im.BitsPerSample))}},
		{284, Short, []uint32{planar}},
	}
	if im.TileWidth > 0 {
		fs = append(fs,
			Field{322, Long, []uint32{uint32(im.TileWidth)}},
			Field{323, Long, []uint32{uint32(im.TileHeight)}},
			Field{324, Long, offsets},
			Field{325, Long, counts},
		)
	} else {
		rows := im.RowsPerStrip
		if rows == 0 {
			rows = im.Height
		}
		fs = append(fs,
			Field{273, Long, offsets},
			Field{278, Long, []uint32{uint32(rows)}},
			Field{279, Long, counts},
		)
	}
	fs = append(fs, im.Fields...)
	sort.SliceStable(fs, func(i, j int) bool { return fs[i].Tag < fs[j].Tag })
	return fs
}

// writeIFD appends a directory for fs and its out-of-line values. It
// returns the position of the next-directory offset.
func writeIFD(buf []byte, order binary.ByteOrder, big bool, fs []Field) ([]byte, int) {
	countSize, entrySize, valueSize := 2, 12, 4
	if big {
		countSize, entrySize, valueSize = 8, 20, 8
	}
	start := len(buf)
	buf = append(buf, make([]byte, countSize+entrySize*len(fs)+valueSize)...)
	if big {
		order.PutUint64(buf[start:], uint64(len(fs)))
	} else {
		order.PutUint16(buf[start:], uint16(len(fs)))
	}
	for i, f := range fs {
		e := start + countSize + entrySize*i
		order.PutUint16(buf[e:], f.Tag)
		order.PutUint16(buf[e+2:], f.Type)
		count := len(f.Values)
		if f.Type == Rational {
			count /= 2
		}
		if big {
			order.PutUint64(buf[e+4:], uint64(count))
		} else {
			order.PutUint32(buf[e+4:], uint32(count))
		}
		value := e + 4 + valueSize
		data := f.bytes(order)
		if len(data) <= valueSize {
			copy(buf[value:value+valueSize], data)
			continue
		}
		off := len(buf)
		buf = append(buf, data...)
		if len(buf)%2 == 1 {
			buf = append(buf, 0)
		}
		putOffset(buf[value:], order, big, off)
	}
	return buf, start + countSize + entrySize*len(fs)
}

func (f *Field) bytes(order binary.ByteOrder) []byte {
	var out []byte
	var tmp [4]byte
	for _, v := range f.Values {
		switch f.Type {
		case Short:
			order.PutUint16(tmp[:], uint16(v))
			out = append(out, tmp[:2]...)
		default:
			order.PutUint32(tmp[:], v)
			out = append(out, tmp[:]...)
		}
	}
	return out
}

// PackRows stores samples the way uncompressed TIFF does: rows start on a
// byte boundary, sub-byte and odd-width samples are packed MSB first and
// byte-aligned 16- and 32-bit samples use order.
func PackRows(w, h int, bits []int, order binary.ByteOrder, sample func(x, y, b int) uint32) []byte {
	bpp := 0
	for _, n := range bits {
		bpp += n
	}
	rowBytes := (w*bpp + 7) / 8
	out := make([]byte, rowBytes*h)
	for y := 0; y < h; y++ {
		row := out[y*rowBytes : (y+1)*rowBytes]
		bit := 0
		for x := 0; x < w; x++ {
			for b, n := range bits {
				v := sample(x, y, b)
				switch {
				case bit%8 == 0 && n == 16:
					order.PutUint16(row[bit/8:], uint16(v))
				case bit%8 == 0 && n == 32:
					order.PutUint32(row[bit/8:], v)
				default:
					for k := n - 1; k >= 0; k-- {
						if v>>uint(k)&1 != 0 {
							row[(bit+n-1-k)/8] |= 0x80 >> uint((bit+n-1-k)%8)
						}
					}
				}
				bit += n
			}
		}
	}
	return out
}
