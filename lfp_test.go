package ecephys

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeContinuousData(t *testing.T, path string, values []int16) {
	t.Helper()
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, values); err != nil {
		t.Fatalf("encode continuous data: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write continuous data: %v", err)
	}
}

func TestContinuousFileLoad(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "lfp.dat")
	timestampsPath := filepath.Join(dir, "lfp_timestamps.npy")

	// 3 samples x 2 channels
	writeContinuousData(t, dataPath, []int16{1, -1, 2, -2, 3, -3})
	writeNpy(t, timestampsPath, "<f8", []int{3}, []float64{0.0, 0.4, 0.8})

	data, timestamps, numSamples, err := ContinuousFile{
		DataPath:       dataPath,
		TimestampsPath: timestampsPath,
		TotalChannels:  2,
	}.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if numSamples != 3 {
		t.Fatalf("sample count: got %d", numSamples)
	}
	if !floatsEqual(data, []float64{1, -1, 2, -2, 3, -3}) {
		t.Fatalf("data: got %v", data)
	}
	if !floatsEqual(timestamps, []float64{0.0, 0.4, 0.8}) {
		t.Fatalf("timestamps: got %v", timestamps)
	}
}

func TestContinuousFileLoadRejectsRaggedBlock(t *testing.T) {
	dir := t.TempDir()
	dataPath := filepath.Join(dir, "lfp.dat")
	timestampsPath := filepath.Join(dir, "lfp_timestamps.npy")

	writeContinuousData(t, dataPath, []int16{1, 2, 3})
	writeNpy(t, timestampsPath, "<f8", []int{1}, []float64{0.0})

	_, _, _, err := ContinuousFile{
		DataPath:       dataPath,
		TimestampsPath: timestampsPath,
		TotalChannels:  2,
	}.Load()
	if err == nil || !strings.Contains(err.Error(), "do not divide") {
		t.Fatalf("expected divisibility error, got %v", err)
	}
}
