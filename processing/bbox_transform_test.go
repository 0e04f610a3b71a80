package processing

import (
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
	"testing"
)

func TestDeltasFromBoxes(t *testing.T) {
	anchors := newBoxTensor(
		[4]float32{0.0, 0.0, 0.5, 0.5},
		[4]float32{0.5, 0.5, 1.0, 1.0},
		[4]float32{0.0, 0.5, 0.5, 1.0},
	)
	gtBoxes := newBoxTensor(
		[4]float32{0.25, 0.25, 0.75, 0.75},
		[4]float32{0.0, 0.0, 1.0, 1.0},
	)

	deltas, err := DeltasFromBoxes(anchors, gtBoxes, []int{0, 2}, []int{0, 1})
	assert.NoError(t, err)
	assert.Equal(t, tensor.Shape{3, 4}, deltas.Shape())

	// Anchor 0 -> gt 0: same extent, center shifted by +0.25 on both axes
	assert.InDelta(t, 0.5, deltas.GetF32(0), 1e-6)
	assert.InDelta(t, 0.5, deltas.GetF32(1), 1e-6)
	assert.InDelta(t, 0.0, deltas.GetF32(2), 1e-6)
	assert.InDelta(t, 0.0, deltas.GetF32(3), 1e-6)

	// Anchor 1 is unmatched, its row stays zero
	for col := range 4 {
		assert.Equal(t, float32(0), deltas.GetF32(4+col))
	}

	// Anchor 2 -> gt 1: double extent
	assert.InDelta(t, float64(math32.Log(2)), float64(deltas.GetF32(10)), 1e-6)
	assert.InDelta(t, float64(math32.Log(2)), float64(deltas.GetF32(11)), 1e-6)
}

func TestDeltasFromBoxes_NoMatches(t *testing.T) {
	anchors := newBoxTensor([4]float32{0.0, 0.0, 0.5, 0.5})
	gtBoxes := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 4))

	deltas, err := DeltasFromBoxes(anchors, gtBoxes, nil, nil)
	assert.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 0, 0}, deltas.Float32s())
}

func TestDeltasFromBoxes_Invalid(t *testing.T) {
	anchors := newBoxTensor([4]float32{0.0, 0.0, 0.5, 0.5})
	gtBoxes := newBoxTensor([4]float32{0.25, 0.25, 0.75, 0.75})

	_, err := DeltasFromBoxes(anchors, gtBoxes, []int{0}, []int{0, 0})
	assert.Error(t, err)

	_, err = DeltasFromBoxes(anchors, gtBoxes, []int{5}, []int{0})
	assert.Error(t, err)

	// Zero-extent ground truth cannot be encoded
	degenerate := newBoxTensor([4]float32{0.3, 0.3, 0.3, 0.3})
	_, err = DeltasFromBoxes(anchors, degenerate, []int{0}, []int{0})
	assert.Error(t, err)
}

func TestBoxesFromDeltas_ZeroDeltas(t *testing.T) {
	anchors := newBoxTensor(
		[4]float32{0.0, 0.0, 0.5, 0.5},
		[4]float32{0.25, 0.25, 0.75, 0.75},
	)
	deltas := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 4), tensor.WithBacking(make([]float32, 8)))

	boxes, err := BoxesFromDeltas(anchors, deltas)
	assert.NoError(t, err)
	for i, v := range anchors.Float32s() {
		assert.InDelta(t, float64(v), float64(boxes.Float32s()[i]), 1e-6)
	}
}

func TestBoxesFromDeltas_RoundTrip(t *testing.T) {
	anchors := newBoxTensor(
		[4]float32{0.0, 0.0, 0.5, 0.5},
		[4]float32{0.5, 0.5, 1.0, 1.0},
		[4]float32{0.1, 0.2, 0.4, 0.9},
	)
	gtBoxes := newBoxTensor(
		[4]float32{0.25, 0.25, 0.75, 0.75},
		[4]float32{0.4, 0.1, 0.9, 0.7},
		[4]float32{0.05, 0.3, 0.5, 0.8},
	)

	deltas, err := DeltasFromBoxes(anchors, gtBoxes, []int{0, 1, 2}, []int{0, 1, 2})
	assert.NoError(t, err)

	decoded, err := BoxesFromDeltas(anchors, deltas)
	assert.NoError(t, err)
	for i, v := range gtBoxes.Float32s() {
		assert.InDelta(t, float64(v), float64(decoded.Float32s()[i]), 1e-5)
	}
}

func TestBoxesFromDeltas_ShapeMismatch(t *testing.T) {
	anchors := newBoxTensor([4]float32{0.0, 0.0, 0.5, 0.5})
	deltas := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 4), tensor.WithBacking(make([]float32, 8)))

	_, err := BoxesFromDeltas(anchors, deltas)
	assert.Error(t, err)
}

func TestClipBoxes(t *testing.T) {
	boxes := newBoxTensor([4]float32{-0.2, 0.3, 1.4, 0.9})

	clipped, err := ClipBoxes(boxes)
	assert.NoError(t, err)
	assert.Equal(t, []float32{0, 0.3, 1, 0.9}, clipped.Float32s())

	vec := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(4), tensor.WithBacking(make([]float32, 4)))
	_, err = ClipBoxes(vec)
	assert.Error(t, err)
}
