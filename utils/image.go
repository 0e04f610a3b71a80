package utils

import (
	"fmt"
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
	"image"
	"image/color"
)

// ImageToOpenCV converts the raw image into OpenCV Matrix
func ImageToOpenCV(bImage []byte) (*gocv.Mat, error) {
	dstMat := gocv.Mat{}
	srcMat, err := gocv.IMDecode(bImage, gocv.IMReadUnchanged)
	if err != nil {
		return &gocv.Mat{}, err
	}

	// Add the rows, columns, and number of channel to the dimension
	dimension := []int{}
	dimension = append(dimension, srcMat.Size()...)
	dimension = append(dimension, srcMat.Channels())

	if len(dimension) < 3 {
		return &dstMat, errors.Errorf("invalid number of dimension: %d", len(dimension))
	}

	if dimension[2] == 4 { // RGBA
		gocv.CvtColor(srcMat, &dstMat, gocv.ColorBGRAToBGR)
	} else if dimension[2] == 1 { // Grayscale
		gocv.CvtColor(srcMat, &dstMat, gocv.ColorGrayToBGR)
	} else {
		dstMat = srcMat
	}
	return &dstMat, nil
}

// ImageToTensor converts a BGR OpenCV matrix into an RGB (H, W, 3) float32
// tensor.
func ImageToTensor(img *gocv.Mat) (*tensor.Dense, error) {
	imgShape := img.Size()
	if len(imgShape) != 2 || img.Channels() != 3 {
		return nil, errors.Errorf("expected a 2D 3-channel matrix, got size %v with %d channels", imgShape, img.Channels())
	}
	height, width := imgShape[0], imgShape[1]

	backing := make([]float32, height*width*3)
	for y := range height {
		for x := range width {
			pixel := img.GetVecbAt(y, x)
			for z := range 3 {
				backing[(y*width+x)*3+z] = float32(pixel[2-z])
			}
		}
	}

	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(height, width, 3),
		tensor.WithBacking(backing),
	), nil
}

// BatchTensor prepends a batch dimension of one.
func BatchTensor(t *tensor.Dense) (*tensor.Dense, error) {
	batched := t.Clone().(*tensor.Dense)
	newShape := append([]int{1}, t.Shape()...)
	err := batched.Reshape(newShape...)
	if err != nil {
		return nil, err
	}
	return batched, nil
}

// DrawBoxes overlays normalized (y1, x1, y2, x2) boxes on the image. Scores
// may be nil, otherwise one score is printed above each box.
func DrawBoxes(img *gocv.Mat, boxes *tensor.Dense, scores []float32) error {
	shape := boxes.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return errors.Errorf("expected a (N, 4) box tensor, got shape %v", shape)
	}
	if scores != nil && len(scores) != shape[0] {
		return errors.Errorf("expected %d scores, got %d", shape[0], len(scores))
	}

	imgShape := img.Size()
	height, width := float32(imgShape[0]), float32(imgShape[1])
	green := color.RGBA{G: 255, A: 255}

	data := boxes.Float32s()
	for i := range shape[0] {
		yMin := int(math32.Round(data[i*4+0] * height))
		xMin := int(math32.Round(data[i*4+1] * width))
		yMax := int(math32.Round(data[i*4+2] * height))
		xMax := int(math32.Round(data[i*4+3] * width))

		gocv.Rectangle(img, image.Rect(xMin, yMin, xMax, yMax), green, 2)
		if scores != nil {
			gocv.PutText(img, fmt.Sprintf("%.2f", scores[i]), image.Pt(xMin, yMin-4), gocv.FontHersheyPlain, 1.0, green, 1)
		}
	}
	return nil
}
