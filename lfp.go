package ecephys

import (
	"encoding/binary"
	"fmt"
	"os"
)

// ContinuousFile reads one probe's subsampled continuous LFP data: a
// flat little-endian int16 binary with samples interleaved across
// TotalChannels, plus an NPY timestamp array with one entry per sample.
type ContinuousFile struct {
	DataPath       string
	TimestampsPath string
	TotalChannels  int
}

// Load reads the full data block into a row-major samples x channels
// float64 buffer and its timestamps.
func (c ContinuousFile) Load() (data []float64, timestamps []float64, numSamples int, err error) {
	if c.TotalChannels <= 0 {
		return nil, nil, 0, fmt.Errorf("continuous file %s: channel count %d", c.DataPath, c.TotalChannels)
	}
	raw, err := os.ReadFile(c.DataPath)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load continuous data: %w", err)
	}
	if len(raw)%2 != 0 {
		return nil, nil, 0, fmt.Errorf("continuous file %s has odd byte count %d", c.DataPath, len(raw))
	}
	total := len(raw) / 2
	if total%c.TotalChannels != 0 {
		return nil, nil, 0, fmt.Errorf("continuous file %s: %d values do not divide into %d channels", c.DataPath, total, c.TotalChannels)
	}

	data = make([]float64, total)
	for i := range data {
		data[i] = float64(int16(binary.LittleEndian.Uint16(raw[2*i:])))
	}

	timestamps, _, err = readNpyFloats(c.TimestampsPath)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("load continuous timestamps: %w", err)
	}
	return data, timestamps, total / c.TotalChannels, nil
}
