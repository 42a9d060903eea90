package tiff

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/mrjoshuak/go-tiffraster/compression"
	"github.com/mrjoshuak/go-tiffraster/internal/predictor"
)

func memSource(data []byte, order binary.ByteOrder) ByteSource {
	return NewSource(bytes.NewReader(data), order)
}

func newTestDecompressor(t *testing.T, c Compression, opts DecompressorOptions) Decompressor {
	t.Helper()
	d, err := NewDecompressor(c, opts)
	if err != nil {
		t.Fatalf("NewDecompressor(%s): %v", c, err)
	}
	return d
}

func TestNullDecompressorStride(t *testing.T) {
	data := []byte{0xee, 0xee, 0xee, 0xee, 1, 2, 3, 4, 5, 6}
	c := &Chunk{
		Source:          memSource(data, nil),
		Offset:          4,
		ByteCount:       6,
		Width:           3,
		Height:          2,
		SamplesPerPixel: 1,
		BitsPerSample:   []int{8},
	}
	d := newTestDecompressor(t, CompressionNone, DecompressorOptions{})
	b := make([]byte, 11)
	if err := d.DecodeRaw(c, b, 1, 8, 5); err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 1, 2, 3, 0, 0, 4, 5, 6, 0, 0}
	if !bytes.Equal(b, want) {
		t.Errorf("got %v, want %v", b, want)
	}
}

func TestNullDecompressorFillOrder(t *testing.T) {
	c := &Chunk{
		Source:          memSource([]byte{0x01, 0x80}, nil),
		ByteCount:       2,
		Width:           16,
		Height:          1,
		SamplesPerPixel: 1,
		BitsPerSample:   []int{1},
	}
	d := newTestDecompressor(t, CompressionNone, DecompressorOptions{FillOrder: FillOrderLSB2MSB})
	b := make([]byte, 2)
	if err := d.DecodeRaw(c, b, 0, 1, 2); err != nil {
		t.Fatal(err)
	}
	if b[0] != 0x80 || b[1] != 0x01 {
		t.Errorf("got %#x, want [0x80 0x1]", b)
	}
}

func TestNullDecompressorTruncated(t *testing.T) {
	tests := []struct {
		name      string
		data      []byte
		byteCount int
	}{
		{"byte count too small", make([]byte, 16), 5},
		{"source too short", make([]byte, 5), 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Chunk{
				Source:          memSource(tt.data, nil),
				ByteCount:       tt.byteCount,
				Width:           3,
				Height:          2,
				SamplesPerPixel: 1,
				BitsPerSample:   []int{8},
			}
			d := newTestDecompressor(t, CompressionNone, DecompressorOptions{})
			err := d.DecodeRaw(c, make([]byte, 6), 0, 8, 3)
			if !errors.Is(err, ErrTruncatedSource) {
				t.Errorf("got %v, want ErrTruncatedSource", err)
			}
		})
	}
}

func TestPackBitsDecompressorStride(t *testing.T) {
	raw := []byte{7, 7, 7, 7, 1, 2, 3, 4}
	data := compression.PackBitsCompress(raw)
	c := &Chunk{
		Source:          memSource(data, nil),
		ByteCount:       len(data),
		Width:           4,
		Height:          2,
		SamplesPerPixel: 1,
		BitsPerSample:   []int{8},
	}
	d := newTestDecompressor(t, CompressionPackBits, DecompressorOptions{})
	b := make([]byte, 12)
	if err := d.DecodeRaw(c, b, 0, 8, 6); err != nil {
		t.Fatal(err)
	}
	want := []byte{7, 7, 7, 7, 0, 0, 1, 2, 3, 4, 0, 0}
	if !bytes.Equal(b, want) {
		t.Errorf("got %v, want %v", b, want)
	}
}

func TestDeflateDecompressorPredictor(t *testing.T) {
	tests := []struct {
		name  string
		order binary.ByteOrder
	}{
		{"big-endian", binary.BigEndian},
		{"little-endian", binary.LittleEndian},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			const w, h = 5, 3
			geom := predictor.Row{Width: w, SamplesPerPixel: 1, BitsPerSample: 16, Order: tt.order}
			want := make([]byte, w*h*2)
			for i := 0; i < w*h; i++ {
				tt.order.PutUint16(want[2*i:], uint16(1000+i*37))
			}
			encoded := append([]byte(nil), want...)
			for y := 0; y < h; y++ {
				if err := predictor.EncodeHorizontal(encoded[y*w*2:(y+1)*w*2], geom); err != nil {
					t.Fatal(err)
				}
			}
			data, err := compression.DeflateCompress(encoded)
			if err != nil {
				t.Fatal(err)
			}
			c := &Chunk{
				Source:          memSource(data, tt.order),
				ByteCount:       len(data),
				Width:           w,
				Height:          h,
				SamplesPerPixel: 1,
				BitsPerSample:   []int{16},
			}
			d := newTestDecompressor(t, CompressionAdobeDeflate, DecompressorOptions{Predictor: predictor.Horizontal})
			b := make([]byte, len(want))
			if err := d.DecodeRaw(c, b, 0, 16, w*2); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(b, want) {
				t.Errorf("got %v, want %v", b, want)
			}
		})
	}
}

func TestZstdDecompressor(t *testing.T) {
	want := bytes.Repeat([]byte{1, 2, 3}, 40)
	data, err := compression.ZstdCompress(want)
	if err != nil {
		t.Fatal(err)
	}
	c := &Chunk{
		Source:          memSource(data, nil),
		ByteCount:       len(data),
		Width:           40,
		Height:          1,
		SamplesPerPixel: 3,
		BitsPerSample:   []int{8, 8, 8},
	}
	d := newTestDecompressor(t, CompressionZSTD, DecompressorOptions{})
	b := make([]byte, len(want))
	if err := d.DecodeRaw(c, b, 0, 24, len(want)); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, want) {
		t.Error("decoded bytes differ")
	}
}

func TestCorruptChunk(t *testing.T) {
	c := &Chunk{
		Source:          memSource([]byte{0x80, 0x01}, nil),
		ByteCount:       2,
		Width:           4,
		Height:          1,
		SamplesPerPixel: 1,
		BitsPerSample:   []int{8},
	}
	d := newTestDecompressor(t, CompressionPackBits, DecompressorOptions{})
	err := d.DecodeRaw(c, make([]byte, 4), 0, 8, 4)
	if !errors.Is(err, compression.ErrPackBitsCorrupted) {
		t.Errorf("got %v, want ErrPackBitsCorrupted", err)
	}
}

func TestYCbCrUpsampling(t *testing.T) {
	// 3x2 pixels in 2x2 blocks: two blocks, the second half outside.
	data := []byte{
		10, 11, 20, 21, 100, 200,
		12, 0, 22, 0, 101, 201,
	}
	c := &Chunk{
		Source:          memSource(data, nil),
		ByteCount:       len(data),
		Width:           3,
		Height:          2,
		SamplesPerPixel: 3,
		BitsPerSample:   []int{8, 8, 8},
		Photometric:     PhotometricYCbCr,
	}
	d := newTestDecompressor(t, CompressionNone, DecompressorOptions{YCbCrSubsampling: [2]int{2, 2}})
	b := make([]byte, 18)
	if err := d.DecodeRaw(c, b, 0, 24, 9); err != nil {
		t.Fatal(err)
	}
	want := []byte{
		10, 100, 200, 11, 100, 200, 12, 101, 201,
		20, 100, 200, 21, 100, 200, 22, 101, 201,
	}
	if !bytes.Equal(b, want) {
		t.Errorf("got %v\nwant %v", b, want)
	}
}

func TestNewDecompressorErrors(t *testing.T) {
	tests := []struct {
		name string
		c    Compression
		opts DecompressorOptions
		want error
	}{
		{"jpeg", CompressionJPEG, DecompressorOptions{}, ErrUnsupportedCompression},
		{"old jpeg", CompressionOldJPEG, DecompressorOptions{}, ErrUnsupportedCompression},
		{"unknown", Compression(12345), DecompressorOptions{}, ErrUnsupportedCompression},
		{"2d group 3", CompressionCCITTFax3, DecompressorOptions{T4Options: 1}, ErrUnsupportedCompression},
		{"predictor", CompressionLZW, DecompressorOptions{Predictor: 7}, ErrInvalidConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDecompressor(tt.c, tt.opts)
			if !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecodeRawBufferTooSmall(t *testing.T) {
	c := &Chunk{
		Source:          memSource(make([]byte, 8), nil),
		ByteCount:       8,
		Width:           4,
		Height:          2,
		SamplesPerPixel: 1,
		BitsPerSample:   []int{8},
	}
	d := newTestDecompressor(t, CompressionNone, DecompressorOptions{})
	if err := d.DecodeRaw(c, make([]byte, 7), 0, 8, 4); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("got %v, want ErrInvalidConfiguration", err)
	}
}

func BenchmarkDeflateDecompressor(b *testing.B) {
	const w, h = 256, 64
	raw := make([]byte, w*h)
	for i := range raw {
		raw[i] = byte(i / 7)
	}
	data, err := compression.DeflateCompress(raw)
	if err != nil {
		b.Fatal(err)
	}
	c := &Chunk{
		Source:          memSource(data, nil),
		ByteCount:       len(data),
		Width:           w,
		Height:          h,
		SamplesPerPixel: 1,
		BitsPerSample:   []int{8},
	}
	d, err := NewDecompressor(CompressionDeflate, DecompressorOptions{})
	if err != nil {
		b.Fatal(err)
	}
	dst := make([]byte, len(raw))
	b.SetBytes(int64(len(raw)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := d.DecodeRaw(c, dst, 0, 8, w); err != nil {
			b.Fatal(err)
		}
	}
}
