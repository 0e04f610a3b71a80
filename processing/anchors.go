package processing

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// FeatureMapSize returns the backbone output size for an image under the
// given stride.
func FeatureMapSize(imgHeight, imgWidth, stride int) (int, int) {
	return imgHeight / stride, imgWidth / stride
}

// GenerateBaseAnchors builds the anchor templates shared by every feature
// map location. Anchors are centered on the first grid cell, in pixel
// coordinates and (y1, x1, y2, x2) order, one row per (scale, ratio) pair
// with the scale loop outermost.
func GenerateBaseAnchors(stride int, ratios, scales []float32) (*tensor.Dense, error) {
	if stride <= 0 {
		return nil, errors.Errorf("stride must be positive, got %d", stride)
	}
	if len(ratios) == 0 || len(scales) == 0 {
		return nil, errors.New("at least one ratio and one scale are required")
	}

	center := float32(stride / 2)
	backing := make([]float32, 0, len(ratios)*len(scales)*4)
	for _, scale := range scales {
		for _, ratio := range ratios {
			if ratio <= 0 {
				return nil, errors.Errorf("anchor ratio must be positive, got %f", ratio)
			}
			area := scale * scale
			w := math32.Round(math32.Sqrt(area / ratio))
			h := math32.Round(w * ratio)
			if w <= 0 || h <= 0 {
				return nil, errors.Errorf("degenerate anchor for scale %f ratio %f", scale, ratio)
			}
			backing = append(backing,
				center-h/2,
				center-w/2,
				center+h/2,
				center+w/2,
			)
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(len(ratios)*len(scales), 4),
		tensor.WithBacking(backing),
	), nil
}

// GenerateAnchors tiles the base anchors over the feature map grid of an
// image and normalizes the result by the image size. The output is (N, 4)
// with N = outH*outW*A, ordered row-major over grid cells with the base
// anchors innermost: anchor ((row*outW)+col)*A + k belongs to grid cell
// (row, col). Every reshape to feature map layout depends on this order.
func GenerateAnchors(imgHeight, imgWidth, stride int, ratios, scales []float32) (*tensor.Dense, error) {
	baseAnchors, err := GenerateBaseAnchors(stride, ratios, scales)
	if err != nil {
		return nil, err
	}
	if imgHeight <= 0 || imgWidth <= 0 {
		return nil, errors.Errorf("image dimensions must be positive, got %dx%d", imgHeight, imgWidth)
	}

	outputHeight, outputWidth := FeatureMapSize(imgHeight, imgWidth, stride)
	if outputHeight == 0 || outputWidth == 0 {
		return nil, errors.Errorf("image %dx%d is smaller than stride %d", imgHeight, imgWidth, stride)
	}

	// The grid hugs the image center when the stride does not divide the
	// image size evenly.
	heightPadding := float32(imgHeight-outputHeight*stride) / 2
	widthPadding := float32(imgWidth-outputWidth*stride) / 2

	anchorCount := baseAnchors.Shape()[0]
	baseData := baseAnchors.Float32s()

	backing := make([]float32, outputHeight*outputWidth*anchorCount*4)
	for row := range outputHeight {
		shiftY := heightPadding + float32(row*stride)
		for col := range outputWidth {
			shiftX := widthPadding + float32(col*stride)
			for k := range anchorCount {
				offset := (((row*outputWidth)+col)*anchorCount + k) * 4
				backing[offset+0] = baseData[k*4+0] + shiftY
				backing[offset+1] = baseData[k*4+1] + shiftX
				backing[offset+2] = baseData[k*4+2] + shiftY
				backing[offset+3] = baseData[k*4+3] + shiftX
			}
		}
	}

	anchors := tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(outputHeight*outputWidth*anchorCount, 4),
		tensor.WithBacking(backing),
	)

	return NormalizeBoxes(anchors, imgHeight, imgWidth)
}
