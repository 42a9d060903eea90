package compression

import (
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Zstandard errors
var (
	ErrZstdCorrupted = errors.New("compression: corrupted Zstandard data")
)

// Pooled coders run single-threaded so that an idle coder in the pool
// holds no goroutines. Construction only fails on invalid options.
var zstdEncPool = sync.Pool{
	New: func() any {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
		if err != nil {
			panic("compression: zstd encoder: " + err.Error())
		}
		return enc
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
		if err != nil {
			panic("compression: zstd decoder: " + err.Error())
		}
		return dec
	},
}

// ZstdCompress encodes src as a single Zstandard frame, the payload of
// TIFF compression 50000.
func ZstdCompress(src []byte) ([]byte, error) {
	if len(src) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	enc := zstdEncPool.Get().(*zstd.Encoder)
	defer zstdEncPool.Put(enc)
	enc.Reset(&buf)

	if _, err := enc.Write(src); err != nil {
		_ = enc.Close()
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ZstdDecompressTo decodes the Zstandard stream src into dst. The stream
// must produce at least len(dst) bytes.
func ZstdDecompressTo(dst, src []byte) error {
	if len(src) == 0 {
		if len(dst) != 0 {
			return ErrZstdCorrupted
		}
		return nil
	}

	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	if err := dec.Reset(bytes.NewReader(src)); err != nil {
		return ErrZstdCorrupted
	}

	n, err := io.ReadFull(dec, dst)
	if n != len(dst) {
		return ErrZstdCorrupted
	}
	if err != nil && err != io.EOF {
		return ErrZstdCorrupted
	}
	return nil
}
