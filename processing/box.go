package processing

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Box is an axis-aligned bounding box in (y1, x1, y2, x2) order. Boxes fed
// through the training pipeline are normalized to [0, 1] by image height
// and width.
type Box struct {
	YMin, XMin, YMax, XMax float32
}

func (b Box) Width() float32 {
	return b.XMax - b.XMin
}

func (b Box) Height() float32 {
	return b.YMax - b.YMin
}

func (b Box) Area() float32 {
	return b.Width() * b.Height()
}

// Center returns the (y, x) center point of the box.
func (b Box) Center() (float32, float32) {
	return b.YMin + 0.5*b.Height(), b.XMin + 0.5*b.Width()
}

// IoU computes the intersection over union of two boxes. Boxes with an
// empty intersection or an empty union yield 0.
func (b Box) IoU(other Box) float32 {
	yTop := math32.Max(b.YMin, other.YMin)
	xTop := math32.Max(b.XMin, other.XMin)
	yBottom := math32.Min(b.YMax, other.YMax)
	xBottom := math32.Min(b.XMax, other.XMax)

	if yBottom <= yTop || xBottom <= xTop {
		return 0
	}
	intersection := (yBottom - yTop) * (xBottom - xTop)

	union := b.Area() + other.Area() - intersection
	if union <= 0 {
		return 0
	}
	return intersection / union
}

// BoxAt reads one row of a (N, 4) box tensor.
func BoxAt(boxes *tensor.Dense, row int) (Box, error) {
	shape := boxes.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return Box{}, errors.Errorf("expected a (N, 4) box tensor, got shape %v", shape)
	}
	if row < 0 || row >= shape[0] {
		return Box{}, errors.Errorf("row %d is out of bounds for %d boxes", row, shape[0])
	}
	data := boxes.Float32s()
	return Box{
		YMin: data[row*4],
		XMin: data[row*4+1],
		YMax: data[row*4+2],
		XMax: data[row*4+3],
	}, nil
}

// BoxesToTensor packs boxes into a (N, 4) tensor in (y1, x1, y2, x2) order.
func BoxesToTensor(boxes []Box) *tensor.Dense {
	backing := make([]float32, 0, len(boxes)*4)
	for _, b := range boxes {
		backing = append(backing, b.YMin, b.XMin, b.YMax, b.XMax)
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(boxes), 4),
		tensor.WithBacking(backing),
	)
}

// IoUMap computes the pairwise (N, M) IoU matrix between anchors and ground
// truth boxes. Rows follow the anchor order, columns the ground truth order.
func IoUMap(anchors, gtBoxes *tensor.Dense) (*tensor.Dense, error) {
	anchorShape := anchors.Shape()
	if len(anchorShape) != 2 || anchorShape[1] != 4 {
		return nil, errors.Errorf("expected a (N, 4) anchor tensor, got shape %v", anchorShape)
	}
	gtShape := gtBoxes.Shape()
	if len(gtShape) != 2 || gtShape[1] != 4 {
		return nil, errors.Errorf("expected a (M, 4) ground truth tensor, got shape %v", gtShape)
	}

	anchorCount, gtCount := anchorShape[0], gtShape[0]
	ancData := anchors.Float32s()
	gtData := gtBoxes.Float32s()

	backing := make([]float32, anchorCount*gtCount)
	for i := range anchorCount {
		anc := Box{ancData[i*4], ancData[i*4+1], ancData[i*4+2], ancData[i*4+3]}
		for j := range gtCount {
			gt := Box{gtData[j*4], gtData[j*4+1], gtData[j*4+2], gtData[j*4+3]}
			backing[i*gtCount+j] = anc.IoU(gt)
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(anchorCount, gtCount),
		tensor.WithBacking(backing),
	), nil
}

// NormalizeBoxes scales pixel-coordinate boxes into [0, 1] by image height
// and width. A new tensor is returned, the input is left untouched.
func NormalizeBoxes(boxes *tensor.Dense, height, width int) (*tensor.Dense, error) {
	shape := boxes.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return nil, errors.Errorf("expected a (N, 4) box tensor, got shape %v", shape)
	}
	if height <= 0 || width <= 0 {
		return nil, errors.Errorf("image dimensions must be positive, got %dx%d", height, width)
	}

	data := boxes.Float32s()
	backing := make([]float32, len(data))
	h, w := float32(height), float32(width)
	for i := range shape[0] {
		backing[i*4+0] = data[i*4+0] / h
		backing[i*4+1] = data[i*4+1] / w
		backing[i*4+2] = data[i*4+2] / h
		backing[i*4+3] = data[i*4+3] / w
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(shape[0], 4),
		tensor.WithBacking(backing),
	), nil
}
