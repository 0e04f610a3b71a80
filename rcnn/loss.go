package rcnn

import (
	"github.com/chewxy/math32"
	"github.com/okieraised/go-rpn-pipeline/utils"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

const lossEpsilon float32 = 1e-7

func clampProbability(p float32) float32 {
	return math32.Min(1-lossEpsilon, math32.Max(lossEpsilon, p))
}

// RPNClassificationLoss is the mean binary cross entropy between objectness
// labels and predicted scores, computed only over entries whose label is
// not ignore. Both tensors must share a shape; 0 is returned when every
// entry is ignored.
func RPNClassificationLoss(yTrue, yPred *tensor.Dense) (float32, error) {
	if !yTrue.Shape().Eq(yPred.Shape()) {
		return 0, errors.Errorf("label and prediction shapes differ: %v vs %v", yTrue.Shape(), yPred.Shape())
	}

	trueData := yTrue.Float32s()
	predData := yPred.Float32s()

	var sum float32
	count := 0
	for i, v := range trueData {
		if v == LabelIgnore {
			continue
		}
		p := clampProbability(predData[i])
		sum += -(v*math32.Log(p) + (1-v)*math32.Log(1-p))
		count++
	}
	if count == 0 {
		return 0, nil
	}
	return sum / float32(count), nil
}

// RPNRegressionLoss is the mean smooth L1 (Huber, delta 1) distance between
// target and predicted deltas, computed only over components whose target
// is non-zero. The zero-fill of unmatched rows keeps them out of the loss.
// 0 is returned when no positive components exist.
func RPNRegressionLoss(yTrue, yPred *tensor.Dense) (float32, error) {
	if !yTrue.Shape().Eq(yPred.Shape()) {
		return 0, errors.Errorf("target and prediction shapes differ: %v vs %v", yTrue.Shape(), yPred.Shape())
	}

	flatTrue := yTrue.Clone().(*tensor.Dense)
	err := flatTrue.Reshape(yTrue.Shape().TotalSize())
	if err != nil {
		return 0, err
	}
	flatPred := yPred.Clone().(*tensor.Dense)
	err = flatPred.Reshape(yPred.Shape().TotalSize())
	if err != nil {
		return 0, err
	}

	indices := make([]int, 0, flatTrue.Shape()[0])
	for i, v := range flatTrue.Float32s() {
		if v != 0 {
			indices = append(indices, i)
		}
	}
	if len(indices) == 0 {
		return 0, nil
	}

	target, err := utils.SelectRows1D(flatTrue, indices)
	if err != nil {
		return 0, err
	}
	output, err := utils.SelectRows1D(flatPred, indices)
	if err != nil {
		return 0, err
	}

	targetData := target.Float32s()
	outputData := output.Float32s()

	var sum float32
	for i := range targetData {
		diff := math32.Abs(targetData[i] - outputData[i])
		if diff <= 1 {
			sum += 0.5 * diff * diff
		} else {
			sum += diff - 0.5
		}
	}
	return sum / float32(len(indices)), nil
}

// ClassificationLoss is the mean categorical cross entropy between one-hot
// class labels and predicted class probabilities over all anchors.
func ClassificationLoss(yTrue, yPred *tensor.Dense) (float32, error) {
	shape := yTrue.Shape()
	if len(shape) != 2 {
		return 0, errors.Errorf("expected a (N, C) label tensor, got shape %v", shape)
	}
	if !yTrue.Shape().Eq(yPred.Shape()) {
		return 0, errors.Errorf("label and prediction shapes differ: %v vs %v", yTrue.Shape(), yPred.Shape())
	}

	rows, cols := shape[0], shape[1]
	if rows == 0 {
		return 0, nil
	}

	trueData := yTrue.Float32s()
	predData := yPred.Float32s()

	var sum float32
	for i := range rows {
		for j := range cols {
			t := trueData[i*cols+j]
			if t == 0 {
				continue
			}
			sum += -t * math32.Log(clampProbability(predData[i*cols+j]))
		}
	}
	return sum / float32(rows), nil
}
