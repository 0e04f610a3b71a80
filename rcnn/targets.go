package rcnn

import (
	"github.com/okieraised/go-rpn-pipeline/processing"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const (
	LabelIgnore     float32 = -1
	LabelBackground float32 = 0
	LabelObject     float32 = 1
)

// ObjectnessLabels builds the flat (N) label vector: 1 for positive
// anchors, 0 for negative anchors, -1 everywhere else.
func ObjectnessLabels(anchorCount int, samples *AnchorSamples) (*tensor.Dense, error) {
	backing := make([]float32, anchorCount)
	for i := range backing {
		backing[i] = LabelIgnore
	}
	for _, idx := range samples.Negative {
		if idx < 0 || idx >= anchorCount {
			return nil, errors.Errorf("negative anchor index %d is out of bounds for %d anchors", idx, anchorCount)
		}
		backing[idx] = LabelBackground
	}
	for _, m := range samples.Positive {
		if m.AnchorIndex < 0 || m.AnchorIndex >= anchorCount {
			return nil, errors.Errorf("positive anchor index %d is out of bounds for %d anchors", m.AnchorIndex, anchorCount)
		}
		backing[m.AnchorIndex] = LabelObject
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(anchorCount),
		tensor.WithBacking(backing),
	), nil
}

// RegressionTargets scatters the regression deltas of every positive
// anchor into a zero-filled (N, 4) tensor.
func RegressionTargets(anchors, gtBoxes *tensor.Dense, samples *AnchorSamples) (*tensor.Dense, error) {
	return processing.DeltasFromBoxes(anchors, gtBoxes, samples.AnchorIndices(), samples.GTIndices())
}

// OneHotLabels builds the (N, numClasses+1) multi-class label tensor.
// Every row starts as background (last column set), positive anchors flip
// to the class of their matched ground truth box. gtLabels holds one class
// id per ground truth box.
func OneHotLabels(anchorCount int, gtLabels []int, samples *AnchorSamples, numClasses int) (*tensor.Dense, error) {
	if numClasses <= 0 {
		return nil, errors.Errorf("class count must be positive, got %d", numClasses)
	}

	cols := numClasses + 1
	backing := make([]float32, anchorCount*cols)
	for i := range anchorCount {
		backing[i*cols+numClasses] = 1
	}

	for _, m := range samples.Positive {
		if m.AnchorIndex < 0 || m.AnchorIndex >= anchorCount {
			return nil, errors.Errorf("positive anchor index %d is out of bounds for %d anchors", m.AnchorIndex, anchorCount)
		}
		if m.GTIndex < 0 || m.GTIndex >= len(gtLabels) {
			return nil, errors.Errorf("ground truth index %d is out of bounds for %d labels", m.GTIndex, len(gtLabels))
		}
		class := gtLabels[m.GTIndex]
		if class < 0 || class >= numClasses {
			return nil, errors.Errorf("class id %d is out of range for %d classes", class, numClasses)
		}
		backing[m.AnchorIndex*cols+class] = 1
		backing[m.AnchorIndex*cols+numClasses] = 0
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(anchorCount, cols),
		tensor.WithBacking(backing),
	), nil
}

// FeatureMapLabels reshapes flat (N) labels into feature map layout
// (outH, outW, A). Relies on the row-major anchor ordering.
func FeatureMapLabels(labels *tensor.Dense, outputHeight, outputWidth, anchorCount int) (*tensor.Dense, error) {
	shape := labels.Shape()
	if len(shape) != 1 || shape[0] != outputHeight*outputWidth*anchorCount {
		return nil, errors.Errorf("expected %d flat labels, got shape %v", outputHeight*outputWidth*anchorCount, shape)
	}

	reshaped := labels.Clone().(*tensor.Dense)
	err := reshaped.Reshape(outputHeight, outputWidth, anchorCount)
	if err != nil {
		return nil, err
	}
	return reshaped, nil
}

// FeatureMapDeltas reshapes (N, 4) regression deltas into feature map
// layout (outH, outW, A*4).
func FeatureMapDeltas(deltas *tensor.Dense, outputHeight, outputWidth, anchorCount int) (*tensor.Dense, error) {
	shape := deltas.Shape()
	if len(shape) != 2 || shape[1] != 4 || shape[0] != outputHeight*outputWidth*anchorCount {
		return nil, errors.Errorf("expected a (%d, 4) delta tensor, got shape %v", outputHeight*outputWidth*anchorCount, shape)
	}

	reshaped := deltas.Clone().(*tensor.Dense)
	err := reshaped.Reshape(outputHeight, outputWidth, anchorCount*4)
	if err != nil {
		return nil, err
	}
	return reshaped, nil
}
