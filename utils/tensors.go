package utils

import (
	"encoding/binary"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"sort"
	"unsafe"
)

func RefPointer[T any](v T) *T {
	return &v
}

func DerefPointer[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// BytesToT32 reinterprets raw little-endian bytes as a slice of 4-byte values.
func BytesToT32[T float32 | int32 | uint32](data []byte) []T {
	out := make([]T, len(data)/4)
	for i := range out {
		bits := binary.LittleEndian.Uint32(data[i*4 : i*4+4])
		out[i] = *(*T)(unsafe.Pointer(&bits))
	}
	return out
}

func VStack(tensors []*tensor.Dense) (*tensor.Dense, error) {
	var nonEmptyTensors []*tensor.Dense
	for _, t := range tensors {
		if t.Shape()[0] > 0 {
			nonEmptyTensors = append(nonEmptyTensors, t)
		}
	}

	if len(nonEmptyTensors) == 0 {
		return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 1)), nil
	}
	if len(nonEmptyTensors) == 1 {
		return nonEmptyTensors[0], nil
	}

	result, err := nonEmptyTensors[0].Concat(0, nonEmptyTensors[1:]...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stack tensors along axis 0")
	}
	return result, nil
}

func HStack(tensors []*tensor.Dense) (*tensor.Dense, error) {
	var nonEmptyTensors []*tensor.Dense
	for _, t := range tensors {
		if t.Shape()[0] > 0 {
			nonEmptyTensors = append(nonEmptyTensors, t)
		}
	}

	if len(nonEmptyTensors) == 0 {
		return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 1)), nil
	}
	if len(nonEmptyTensors) == 1 {
		return nonEmptyTensors[0], nil
	}

	result, err := nonEmptyTensors[0].Concat(1, nonEmptyTensors[1:]...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stack tensors along axis 1")
	}
	return result, nil
}

// ArgSortDescending returns the indices that sort a 1D tensor by value in
// descending order. Equal values keep ascending index order so the result
// is deterministic.
func ArgSortDescending(t *tensor.Dense) ([]int, error) {
	shape := t.Shape()
	if len(shape) != 1 {
		return nil, errors.Errorf("expected a 1D tensor, got shape %v", shape)
	}

	data := t.Float32s()
	indices := make([]int, len(data))
	for i := range indices {
		indices[i] = i
	}

	sort.Slice(indices, func(i, j int) bool {
		if data[indices[i]] == data[indices[j]] {
			return indices[i] < indices[j]
		}
		return data[indices[i]] > data[indices[j]]
	})

	return indices, nil
}

func SelectRows1D(t *tensor.Dense, indices []int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 1 {
		return nil, errors.Errorf("expected a 1D tensor, got shape %v", shape)
	}

	data := t.Float32s()
	selected := make([]float32, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(data) {
			return nil, errors.Errorf("index %d is out of bounds for %d rows", idx, len(data))
		}
		selected = append(selected, data[idx])
	}

	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(len(indices)), tensor.WithBacking(selected)), nil
}

func SelectRows2D(t *tensor.Dense, indices []int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("expected a 2D tensor, got shape %v", shape)
	}
	numRows, numCols := shape[0], shape[1]

	data := t.Float32s()
	selected := make([]float32, 0, len(indices)*numCols)
	for _, idx := range indices {
		if idx < 0 || idx >= numRows {
			return nil, errors.Errorf("index %d is out of bounds for %d rows", idx, numRows)
		}
		selected = append(selected, data[idx*numCols:(idx+1)*numCols]...)
	}

	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(len(indices), numCols), tensor.WithBacking(selected)), nil
}

func TensorByIndices(t *tensor.Dense, indices []int) (*tensor.Dense, error) {
	shape := t.Shape()
	if len(shape) != 1 {
		return nil, errors.Errorf("expected a 1D tensor, got shape %v", shape)
	}

	resultData := make([]float32, len(indices))
	for i, idx := range indices {
		if idx < 0 || idx >= shape[0] {
			return nil, errors.Errorf("index %d is out of bounds for %d rows", idx, shape[0])
		}
		resultData[i] = t.GetF32(idx)
	}

	return tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(len(indices)), tensor.WithBacking(resultData)), nil
}
