package rcnn

import (
	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"
	"testing"
)

func newVector(values []float32) *tensor.Dense {
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(values)),
		tensor.WithBacking(values),
	)
}

func TestRPNClassificationLoss(t *testing.T) {
	yTrue := newVector([]float32{1, 0, -1, 1})
	yPred := newVector([]float32{0.9, 0.1, 0.5, 0.8})

	loss, err := RPNClassificationLoss(yTrue, yPred)
	assert.NoError(t, err)

	// mean of -ln(0.9), -ln(0.9), -ln(0.8); the ignored entry contributes
	// nothing
	expected := (-math32.Log(0.9) - math32.Log(0.9) - math32.Log(0.8)) / 3
	assert.InDelta(t, expected, loss, 1e-5)
}

func TestRPNClassificationLoss_AllIgnored(t *testing.T) {
	yTrue := newVector([]float32{-1, -1, -1})
	yPred := newVector([]float32{0.2, 0.5, 0.9})

	loss, err := RPNClassificationLoss(yTrue, yPred)
	assert.NoError(t, err)
	assert.Equal(t, float32(0), loss)
}

func TestRPNClassificationLoss_ClampsExtremes(t *testing.T) {
	yTrue := newVector([]float32{1})
	yPred := newVector([]float32{0})

	loss, err := RPNClassificationLoss(yTrue, yPred)
	assert.NoError(t, err)
	assert.False(t, math32.IsNaN(loss))
	assert.InDelta(t, 16.118, loss, 0.01)
}

func TestRPNClassificationLoss_FeatureMapShape(t *testing.T) {
	yTrue := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 2, 2),
		tensor.WithBacking([]float32{1, -1, 0, 1}),
	)
	yPred := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(1, 2, 2),
		tensor.WithBacking([]float32{0.9, 0.3, 0.1, 0.8}),
	)

	loss, err := RPNClassificationLoss(yTrue, yPred)
	assert.NoError(t, err)

	expected := (-math32.Log(0.9) - math32.Log(0.9) - math32.Log(0.8)) / 3
	assert.InDelta(t, expected, loss, 1e-5)
}

func TestRPNClassificationLoss_ShapeMismatch(t *testing.T) {
	_, err := RPNClassificationLoss(newVector(make([]float32, 3)), newVector(make([]float32, 4)))
	assert.Error(t, err)
}

func TestRPNRegressionLoss(t *testing.T) {
	yTrue := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 4),
		tensor.WithBacking([]float32{
			0.5, 0, 0, 0,
			0, 0, 0, -2,
		}),
	)
	yPred := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 4),
		tensor.WithBacking(make([]float32, 8)),
	)

	loss, err := RPNRegressionLoss(yTrue, yPred)
	assert.NoError(t, err)

	// diff 0.5 falls in the quadratic zone (0.125), diff 2 in the linear
	// zone (1.5)
	assert.InDelta(t, 0.8125, loss, 1e-6)
}

func TestRPNRegressionLoss_Perfect(t *testing.T) {
	backing := []float32{0.1, -0.2, 0.3, 0.4}
	yTrue := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 4), tensor.WithBacking(backing))
	yPred := yTrue.Clone().(*tensor.Dense)

	loss, err := RPNRegressionLoss(yTrue, yPred)
	assert.NoError(t, err)
	assert.Equal(t, float32(0), loss)
}

func TestRPNRegressionLoss_OnlyTargetComponentsCount(t *testing.T) {
	yTrue := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 4), tensor.WithBacking(make([]float32, 8)))
	yPred := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 4),
		tensor.WithBacking([]float32{3, 3, 3, 3, 3, 3, 3, 3}),
	)

	// Zero-filled targets mark unmatched anchors, so predictions there are
	// not penalized
	loss, err := RPNRegressionLoss(yTrue, yPred)
	assert.NoError(t, err)
	assert.Equal(t, float32(0), loss)
}

func TestRPNRegressionLoss_ShapeMismatch(t *testing.T) {
	yTrue := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 4), tensor.WithBacking(make([]float32, 8)))
	yPred := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(1, 4), tensor.WithBacking(make([]float32, 4)))
	_, err := RPNRegressionLoss(yTrue, yPred)
	assert.Error(t, err)
}

func TestClassificationLoss(t *testing.T) {
	yTrue := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 2),
		tensor.WithBacking([]float32{1, 0, 0, 1}),
	)
	yPred := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 2),
		tensor.WithBacking([]float32{0.8, 0.2, 0.3, 0.7}),
	)

	loss, err := ClassificationLoss(yTrue, yPred)
	assert.NoError(t, err)

	expected := (-math32.Log(0.8) - math32.Log(0.7)) / 2
	assert.InDelta(t, expected, loss, 1e-5)
}

func TestClassificationLoss_SkipsZeroTargets(t *testing.T) {
	yTrue := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 2),
		tensor.WithBacking([]float32{0, 1, 0, 1}),
	)
	yPred := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(2, 2),
		tensor.WithBacking([]float32{0.5, 0.5, 0.5, 0.5}),
	)

	loss, err := ClassificationLoss(yTrue, yPred)
	assert.NoError(t, err)
	assert.InDelta(t, -math32.Log(0.5), loss, 1e-5)
}

func TestClassificationLoss_Empty(t *testing.T) {
	yTrue := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 3))
	yPred := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(0, 3))

	loss, err := ClassificationLoss(yTrue, yPred)
	assert.NoError(t, err)
	assert.Equal(t, float32(0), loss)
}

func TestClassificationLoss_Invalid(t *testing.T) {
	_, err := ClassificationLoss(newVector(make([]float32, 4)), newVector(make([]float32, 4)))
	assert.Error(t, err)

	yTrue := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 2), tensor.WithBacking(make([]float32, 4)))
	yPred := tensor.New(tensor.Of(tensor.Float32), tensor.WithShape(2, 3), tensor.WithBacking(make([]float32, 6)))
	_, err = ClassificationLoss(yTrue, yPred)
	assert.Error(t, err)
}
