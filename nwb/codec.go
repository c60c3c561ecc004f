package nwb

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/golang/snappy"
)

// Dataset compression codecs recorded on disk.
const (
	compressionNone   = "none"
	compressionSnappy = "snappy"
)

func encodeFloats(values []float64, compression string) ([]byte, error) {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], math.Float64bits(v))
	}
	switch compression {
	case compressionNone:
		return raw, nil
	case compressionSnappy:
		return snappy.Encode(nil, raw), nil
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
}

func decodeFloats(payload []byte, compression string) ([]float64, error) {
	raw := payload
	switch compression {
	case compressionNone:
	case compressionSnappy:
		var err error
		raw, err = snappy.Decode(nil, payload)
		if err != nil {
			return nil, fmt.Errorf("snappy decode: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown compression %q", compression)
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("float dataset has %d bytes, not a multiple of 8", len(raw))
	}
	values := make([]float64, len(raw)/8)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(raw[8*i:]))
	}
	return values, nil
}

func encodeInts(values []int64) []byte {
	raw := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(raw[8*i:], uint64(v))
	}
	return raw
}

func decodeInts(payload []byte) ([]int64, error) {
	if len(payload)%8 != 0 {
		return nil, fmt.Errorf("int dataset has %d bytes, not a multiple of 8", len(payload))
	}
	values := make([]int64, len(payload)/8)
	for i := range values {
		values[i] = int64(binary.LittleEndian.Uint64(payload[8*i:]))
	}
	return values, nil
}
