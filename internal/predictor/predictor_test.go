package predictor

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"
)

func TestDecodeHorizontal8(t *testing.T) {
	// Two RGB pixels per row.
	row := []byte{10, 20, 30, 1, 2, 3}
	geom := Row{Width: 2, SamplesPerPixel: 3, BitsPerSample: 8}
	if err := DecodeHorizontal(row, geom); err != nil {
		t.Fatal(err)
	}
	want := []byte{10, 20, 30, 11, 22, 33}
	if !bytes.Equal(row, want) {
		t.Errorf("got %v, want %v", row, want)
	}
}

func TestDecodeHorizontalGray8Long(t *testing.T) {
	row := make([]byte, 37)
	for i := range row {
		row[i] = 1
	}
	if err := DecodeHorizontal(row, Row{Width: 37, SamplesPerPixel: 1, BitsPerSample: 8}); err != nil {
		t.Fatal(err)
	}
	for i, v := range row {
		if int(v) != i+1 {
			t.Fatalf("row[%d] = %d, want %d", i, v, i+1)
		}
	}
}

func TestHorizontalRoundTrip(t *testing.T) {
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		for _, bps := range []int{8, 16, 32} {
			geom := Row{Width: 5, SamplesPerPixel: 2, BitsPerSample: bps, Order: order}
			row := make([]byte, geom.Bytes())
			for i := range row {
				row[i] = byte(i*37 + 11)
			}
			original := append([]byte(nil), row...)
			if err := EncodeHorizontal(row, geom); err != nil {
				t.Fatal(err)
			}
			if err := DecodeHorizontal(row, geom); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(row, original) {
				t.Errorf("%v %d-bit: round trip mismatch", order, bps)
			}
		}
	}
}

func TestDecodeHorizontalUnsupported(t *testing.T) {
	err := DecodeHorizontal(make([]byte, 8), Row{Width: 4, SamplesPerPixel: 1, BitsPerSample: 12})
	if !errors.Is(err, ErrUnsupported) {
		t.Errorf("12-bit = %v, want ErrUnsupported", err)
	}
}

func TestFloatingPointRoundTrip(t *testing.T) {
	values := []float32{0, 1.5, -2.25, 1e-3, 65504, float32(math.Pi)}
	for _, order := range []binary.ByteOrder{binary.BigEndian, binary.LittleEndian} {
		geom := Row{Width: 3, SamplesPerPixel: 2, BitsPerSample: 32, Order: order}
		row := make([]byte, geom.Bytes())
		for i, v := range values {
			order.PutUint32(row[4*i:], math.Float32bits(v))
		}
		if err := EncodeFloatingPoint(row, geom); err != nil {
			t.Fatal(err)
		}
		if err := DecodeFloatingPoint(row, geom, nil); err != nil {
			t.Fatal(err)
		}
		for i, want := range values {
			if got := math.Float32frombits(order.Uint32(row[4*i:])); got != want {
				t.Errorf("%v value %d = %v, want %v", order, i, got, want)
			}
		}
	}
}

func TestDecodeRows(t *testing.T) {
	geom := Row{Width: 3, SamplesPerPixel: 1, BitsPerSample: 8}
	// Two rows with one byte of padding each.
	data := []byte{1, 1, 1, 0xee, 5, 1, 1, 0xee}
	if err := Decode(Horizontal, data, 2, 4, geom, nil); err != nil {
		t.Fatal(err)
	}
	want := []byte{1, 2, 3, 0xee, 5, 6, 7, 0xee}
	if !bytes.Equal(data, want) {
		t.Errorf("got %v, want %v", data, want)
	}
	if err := Decode(Horizontal, data, 3, 4, geom, nil); err != ErrShortRow {
		t.Errorf("short data = %v, want ErrShortRow", err)
	}
	if err := Decode(7, data, 1, 4, geom, nil); !errors.Is(err, ErrUnsupported) {
		t.Errorf("predictor 7 = %v, want ErrUnsupported", err)
	}
	if err := Decode(None, nil, 5, 4, geom, nil); err != nil {
		t.Errorf("predictor 1 = %v, want nil", err)
	}
}

func BenchmarkDecodeHorizontal8(b *testing.B) {
	geom := Row{Width: 4096, SamplesPerPixel: 1, BitsPerSample: 8}
	row := make([]byte, geom.Bytes())
	b.SetBytes(int64(len(row)))
	for i := 0; i < b.N; i++ {
		DecodeHorizontal(row, geom)
	}
}
