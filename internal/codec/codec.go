// Package codec provides pluggable compression for entry payloads
// relocated by the cleaner. Each codec has a one-byte Tag naming it;
// the compressed output itself carries no tag, so the caller must know
// which codec produced a payload to decode it.
package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Tag identifies the codec a compressed payload was produced with.
type Tag byte

const (
	// None leaves the payload untouched.
	None Tag = 0
	// Snappy compresses with snappy.Encode/Decode.
	Snappy Tag = 1
	// LZ4 compresses with the lz4 streaming reader/writer.
	LZ4 Tag = 2
	// Zstd compresses with klauspost/compress/zstd.
	Zstd Tag = 3
)

func (t Tag) String() string {
	switch t {
	case None:
		return "none"
	case Snappy:
		return "snappy"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return "unknown"
	}
}

// ParseTag resolves a config string ("none", "snappy", "lz4", "zstd")
// to its Tag, or an error if unrecognized.
func ParseTag(name string) (Tag, error) {
	switch name {
	case "", "none":
		return None, nil
	case "snappy":
		return Snappy, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("codec: unknown codec %q", name)
	}
}

// Codec compresses and decompresses entry payloads.
type Codec interface {
	Tag() Tag
	Compress(payload []byte) ([]byte, error)
	Decompress(compressed []byte) ([]byte, error)
}

// ForTag returns the Codec implementation for tag.
func ForTag(tag Tag) (Codec, error) {
	switch tag {
	case None:
		return noneCodec{}, nil
	case Snappy:
		return snappyCodec{}, nil
	case LZ4:
		return lz4Codec{}, nil
	case Zstd:
		return zstdCodec{}, nil
	default:
		return nil, fmt.Errorf("codec: unsupported tag %d", tag)
	}
}

type noneCodec struct{}

func (noneCodec) Tag() Tag                                { return None }
func (noneCodec) Compress(p []byte) ([]byte, error)        { return p, nil }
func (noneCodec) Decompress(p []byte) ([]byte, error)      { return p, nil }

type snappyCodec struct{}

func (snappyCodec) Tag() Tag { return Snappy }

func (snappyCodec) Compress(p []byte) ([]byte, error) {
	return snappy.Encode(nil, p), nil
}

func (snappyCodec) Decompress(p []byte) ([]byte, error) {
	out, err := snappy.Decode(nil, p)
	if err != nil {
		return nil, fmt.Errorf("codec: snappy decompress: %w", err)
	}
	return out, nil
}

type lz4Codec struct{}

func (lz4Codec) Tag() Tag { return LZ4 }

func (lz4Codec) Compress(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := lz4.NewWriter(&buf)
	if _, err := w.Write(p); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: lz4 compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (lz4Codec) Decompress(p []byte) ([]byte, error) {
	r := lz4.NewReader(bytes.NewReader(p))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("codec: lz4 decompress: %w", err)
	}
	return out, nil
}

type zstdCodec struct{}

func (zstdCodec) Tag() Tag { return Zstd }

func (zstdCodec) Compress(p []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd compress: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(p, nil), nil
}

func (zstdCodec) Decompress(p []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(p, nil)
	if err != nil {
		return nil, fmt.Errorf("codec: zstd decompress: %w", err)
	}
	return out, nil
}
