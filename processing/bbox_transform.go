package processing

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// DeltasFromBoxes scatters regression deltas (dy, dx, dh, dw) for each
// matched (anchor, ground truth) pair into a zero-filled (N, 4) tensor.
// Rows of unmatched anchors stay zero, which is what the regression loss
// masks on.
func DeltasFromBoxes(anchors, gtBoxes *tensor.Dense, anchorIndices, gtIndices []int) (*tensor.Dense, error) {
	if len(anchorIndices) != len(gtIndices) {
		return nil, errors.Errorf("anchor and ground truth index counts differ: %d vs %d", len(anchorIndices), len(gtIndices))
	}
	anchorShape := anchors.Shape()
	if len(anchorShape) != 2 || anchorShape[1] != 4 {
		return nil, errors.Errorf("expected a (N, 4) anchor tensor, got shape %v", anchorShape)
	}

	backing := make([]float32, anchorShape[0]*4)
	for i := range anchorIndices {
		anc, err := BoxAt(anchors, anchorIndices[i])
		if err != nil {
			return nil, err
		}
		gt, err := BoxAt(gtBoxes, gtIndices[i])
		if err != nil {
			return nil, err
		}

		if anc.Width() <= 0 || anc.Height() <= 0 {
			return nil, errors.Errorf("anchor %d has a non-positive extent", anchorIndices[i])
		}
		if gt.Width() <= 0 || gt.Height() <= 0 {
			return nil, errors.Errorf("ground truth box %d has a non-positive extent", gtIndices[i])
		}

		ancCtrY, ancCtrX := anc.Center()
		gtCtrY, gtCtrX := gt.Center()

		offset := anchorIndices[i] * 4
		backing[offset+0] = (gtCtrY - ancCtrY) / anc.Height()
		backing[offset+1] = (gtCtrX - ancCtrX) / anc.Width()
		backing[offset+2] = math32.Log(gt.Height() / anc.Height())
		backing[offset+3] = math32.Log(gt.Width() / anc.Width())
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(anchorShape[0], 4),
		tensor.WithBacking(backing),
	), nil
}

// BoxesFromDeltas applies regression deltas to every anchor and returns the
// resulting boxes. Inverse of DeltasFromBoxes for matched rows.
func BoxesFromDeltas(anchors, deltas *tensor.Dense) (*tensor.Dense, error) {
	anchorShape := anchors.Shape()
	if len(anchorShape) != 2 || anchorShape[1] != 4 {
		return nil, errors.Errorf("expected a (N, 4) anchor tensor, got shape %v", anchorShape)
	}
	if !anchors.Shape().Eq(deltas.Shape()) {
		return nil, errors.Errorf("anchor and delta shapes differ: %v vs %v", anchors.Shape(), deltas.Shape())
	}

	ancData := anchors.Float32s()
	deltaData := deltas.Float32s()

	backing := make([]float32, len(ancData))
	for i := range anchorShape[0] {
		anc := Box{ancData[i*4], ancData[i*4+1], ancData[i*4+2], ancData[i*4+3]}
		ancCtrY, ancCtrX := anc.Center()

		height := math32.Exp(deltaData[i*4+2]) * anc.Height()
		width := math32.Exp(deltaData[i*4+3]) * anc.Width()
		ctrY := deltaData[i*4+0]*anc.Height() + ancCtrY
		ctrX := deltaData[i*4+1]*anc.Width() + ancCtrX

		backing[i*4+0] = ctrY - 0.5*height
		backing[i*4+1] = ctrX - 0.5*width
		backing[i*4+2] = backing[i*4+0] + height
		backing[i*4+3] = backing[i*4+1] + width
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(anchorShape[0], 4),
		tensor.WithBacking(backing),
	), nil
}

// ClipBoxes clamps normalized box coordinates into [0, 1] in place and
// returns the tensor.
func ClipBoxes(boxes *tensor.Dense) (*tensor.Dense, error) {
	shape := boxes.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return nil, errors.Errorf("expected a (N, 4) box tensor, got shape %v", shape)
	}

	data := boxes.Float32s()
	for i := range data {
		data[i] = math32.Max(0, math32.Min(1, data[i]))
	}
	return boxes, nil
}
