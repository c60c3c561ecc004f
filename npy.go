package ecephys

import (
	"fmt"
	"os"
	"strings"

	"github.com/sbinet/npyio"
)

// readNpyFloats loads an NPY file as float64 values plus its shape as
// declared in the header.
func readNpyFloats(path string) ([]float64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	shape := r.Header.Descr.Shape

	switch dtypeKind(r.Header.Descr.Type) {
	case "f8":
		var data []float64
		if err := r.Read(&data); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return data, shape, nil
	case "f4":
		var raw []float32
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		data := make([]float64, len(raw))
		for i, v := range raw {
			data[i] = float64(v)
		}
		return data, shape, nil
	default:
		ints, _, err := readNpyIntsFrom(r, path)
		if err != nil {
			return nil, nil, err
		}
		data := make([]float64, len(ints))
		for i, v := range ints {
			data[i] = float64(v)
		}
		return data, shape, nil
	}
}

// readNpyInts loads an NPY file of any integer dtype as int64 values
// plus its declared shape.
func readNpyInts(path string) ([]int64, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r, err := npyio.NewReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
	}
	return readNpyIntsFrom(r, path)
}

func readNpyIntsFrom(r *npyio.Reader, path string) ([]int64, []int, error) {
	shape := r.Header.Descr.Shape
	switch dtypeKind(r.Header.Descr.Type) {
	case "i8":
		var data []int64
		if err := r.Read(&data); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return data, shape, nil
	case "i4":
		var raw []int32
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return widen(raw), shape, nil
	case "i2":
		var raw []int16
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return widen(raw), shape, nil
	case "i1":
		var raw []int8
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return widen(raw), shape, nil
	case "u8":
		var raw []uint64
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return widen(raw), shape, nil
	case "u4":
		var raw []uint32
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return widen(raw), shape, nil
	case "u2":
		var raw []uint16
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return widen(raw), shape, nil
	case "u1":
		var raw []uint8
		if err := r.Read(&raw); err != nil {
			return nil, nil, fmt.Errorf("read npy %s: %w", path, err)
		}
		return widen(raw), shape, nil
	default:
		return nil, nil, fmt.Errorf("read npy %s: unsupported dtype %q", path, r.Header.Descr.Type)
	}
}

func widen[T int8 | int16 | int32 | uint8 | uint16 | uint32 | uint64](raw []T) []int64 {
	out := make([]int64, len(raw))
	for i, v := range raw {
		out[i] = int64(v)
	}
	return out
}

// dtypeKind strips the byte-order prefix from an NPY descr type.
func dtypeKind(descr string) string {
	return strings.TrimLeft(descr, "<>|=")
}
