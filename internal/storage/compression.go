package storage

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// Codec compresses stored values with zstd once they reach MinSize.
// Values below the threshold are kept as-is; Decode tells them apart by
// the zstd frame magic, which JSON text never starts with.
type Codec struct {
	minSize  int
	encoders sync.Pool
	decoders sync.Pool
}

// NewCodec returns a codec compressing values of at least minSize bytes.
// A negative minSize disables compression.
func NewCodec(minSize int) (*Codec, error) {
	// fail early on bad options instead of inside a pool
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating encoder: %w", err)
	}
	enc.Close()

	return &Codec{
		minSize: minSize,
		encoders: sync.Pool{
			New: func() interface{} {
				enc, _ := zstd.NewWriter(nil,
					zstd.WithEncoderLevel(zstd.SpeedDefault),
					zstd.WithEncoderConcurrency(1),
				)
				return enc
			},
		},
		decoders: sync.Pool{
			New: func() interface{} {
				dec, _ := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
				return dec
			},
		},
	}, nil
}

func (c *Codec) Encode(data []byte) []byte {
	if c == nil || c.minSize < 0 || len(data) < c.minSize {
		return data
	}
	enc := c.encoders.Get().(*zstd.Encoder)
	defer c.encoders.Put(enc)
	return enc.EncodeAll(data, make([]byte, 0, len(data)/2))
}

func (c *Codec) Decode(data []byte) ([]byte, error) {
	if !Compressed(data) {
		return data, nil
	}
	if c == nil {
		return nil, fmt.Errorf("compressed value but no codec configured")
	}
	dec := c.decoders.Get().(*zstd.Decoder)
	defer c.decoders.Put(dec)

	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompressing value: %w", err)
	}
	return out, nil
}

// Compressed reports whether data is a zstd frame.
func Compressed(data []byte) bool {
	return len(data) > 4 && bytes.Equal(data[:4], zstdMagic)
}
