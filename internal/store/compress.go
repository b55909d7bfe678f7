package store

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/roach88/isaac/internal/ir"
)

// Compression identifies how a stored value is encoded. The value is the
// tag byte written ahead of the payload and must not change.
type Compression uint8

const (
	// CompressionNone stores chronicle bytes as-is.
	CompressionNone Compression = 0

	// CompressionLZ4 stores chronicle bytes as an LZ4 block.
	CompressionLZ4 Compression = 1
)

// String returns the configuration name of c.
func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCompression parses a configuration name.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	default:
		return 0, fmt.Errorf("unknown compression: %q", name)
	}
}

var errIncompressible = errors.New("data is incompressible")

// valueHeaderLength is tag:1 plus uncompressed length:4.
const valueHeaderLength = 5

// encodeValue frames data as [tag:1][uncompressed length:4][payload].
// Incompressible data falls back to CompressionNone.
func encodeValue(data []byte, c Compression) ([]byte, error) {
	payload := data
	tag := CompressionNone
	if c == CompressionLZ4 {
		compressed, err := compressLZ4(data)
		switch {
		case err == nil:
			payload, tag = compressed, CompressionLZ4
		case !errors.Is(err, errIncompressible):
			return nil, err
		}
	}

	out := make([]byte, valueHeaderLength+len(payload))
	out[0] = byte(tag)
	binary.BigEndian.PutUint32(out[1:valueHeaderLength], uint32(len(data)))
	copy(out[valueHeaderLength:], payload)
	return out, nil
}

// decodeValue reverses encodeValue.
func decodeValue(value []byte) ([]byte, error) {
	if len(value) < valueHeaderLength {
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "stored value is %d bytes", len(value))
	}
	tag := Compression(value[0])
	size := int(binary.BigEndian.Uint32(value[1:valueHeaderLength]))
	payload := value[valueHeaderLength:]

	switch tag {
	case CompressionNone:
		if len(payload) != size {
			return nil, ir.Errorf(ir.ErrCodeCorruptRecord,
				"stored value holds %d bytes, header says %d", len(payload), size)
		}
		return payload, nil
	case CompressionLZ4:
		return decompressLZ4(payload, size)
	default:
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "unknown compression tag %d", uint8(tag))
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, size int) ([]byte, error) {
	destination := make([]byte, size)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "lz4 decompress: %v", err)
	}
	if read != size {
		return nil, ir.Errorf(ir.ErrCodeCorruptRecord, "lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return destination, nil
}
