package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Payload markers written in front of every value stored through
// Compressed. A value starting with neither marker predates compression
// and is returned unchanged.
const (
	markerRaw  byte = 0x00
	markerZstd byte = 0x01
)

// DefaultCompressionLevel is zstd level 3.
const DefaultCompressionLevel = 3

var (
	decoderOnce sync.Once
	decoder     *zstd.Decoder
	decoderErr  error
)

// sharedDecoder is safe for concurrent use.
func sharedDecoder() (*zstd.Decoder, error) {
	decoderOnce.Do(func() {
		decoder, decoderErr = zstd.NewReader(nil)
	})
	return decoder, decoderErr
}

// Compressed wraps a SlotStore and stores values zstd-compressed.
type Compressed struct {
	inner   SlotStore
	encoder *zstd.Encoder
}

var _ SlotStore = (*Compressed)(nil)

// NewCompressed wraps inner. Level follows zstd's numeric levels; values
// outside 1-22 fall back to DefaultCompressionLevel.
func NewCompressed(inner SlotStore, level int) (*Compressed, error) {
	if level < 1 || level > 22 {
		level = DefaultCompressionLevel
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
	if err != nil {
		return nil, fmt.Errorf("zstd encoder initialization failed: %w", err)
	}
	if _, err := sharedDecoder(); err != nil {
		return nil, fmt.Errorf("zstd decoder initialization failed: %w", err)
	}
	return &Compressed{inner: inner, encoder: encoder}, nil
}

// Get returns the decompressed value of key.
func (c *Compressed) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.inner.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	return Decompress(data)
}

// Put stores data compressed, or raw when compression does not shrink it.
func (c *Compressed) Put(ctx context.Context, key string, data []byte) error {
	return c.inner.Put(ctx, key, c.compress(data))
}

// Delete removes key from the inner store.
func (c *Compressed) Delete(ctx context.Context, key string) error {
	return c.inner.Delete(ctx, key)
}

// Close closes the encoder and the inner store.
func (c *Compressed) Close() error {
	if err := c.encoder.Close(); err != nil {
		return err
	}
	return c.inner.Close()
}

func (c *Compressed) compress(data []byte) []byte {
	out := make([]byte, 1, len(data)/2+1)
	out[0] = markerZstd
	out = c.encoder.EncodeAll(data, out)
	if len(out) > len(data) {
		raw := make([]byte, 0, len(data)+1)
		raw = append(raw, markerRaw)
		return append(raw, data...)
	}
	return out
}

// Decompress decodes a value written by Compressed. Unmarked values are
// returned as they are. A damaged zstd frame yields an error wrapping
// ErrSlotCorrupt.
func Decompress(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return data, nil
	}

	switch data[0] {
	case markerRaw:
		return data[1:], nil
	case markerZstd:
		dec, err := sharedDecoder()
		if err != nil {
			return nil, err
		}
		out, err := dec.DecodeAll(data[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd decompress: %w", ErrSlotCorrupt, err)
		}
		return out, nil
	default:
		return data, nil
	}
}
