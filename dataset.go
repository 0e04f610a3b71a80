package go_rpn_pipeline

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Sample is one annotated training image: an RGB (H, W, 3) float32 image
// tensor, a (M, 4) tensor of ground truth boxes in normalized [0, 1]
// coordinates, and one class id per box.
type Sample struct {
	Image  *tensor.Dense `json:"image"`
	Boxes  *tensor.Dense `json:"boxes"`
	Labels []int         `json:"labels"`
}

// Dataset serves annotated samples by index.
type Dataset interface {
	Len() int
	At(index int) (*Sample, error)
}

// SliceDataset serves samples held in memory.
type SliceDataset struct {
	samples []*Sample
}

func NewSliceDataset(samples []*Sample) *SliceDataset {
	return &SliceDataset{samples: samples}
}

func (d *SliceDataset) Len() int {
	return len(d.samples)
}

func (d *SliceDataset) At(index int) (*Sample, error) {
	if index < 0 || index >= len(d.samples) {
		return nil, errors.Errorf("sample index %d is out of bounds for %d samples", index, len(d.samples))
	}
	sample := d.samples[index]
	if sample == nil {
		return nil, errors.Errorf("sample %d is nil", index)
	}
	return sample, nil
}
