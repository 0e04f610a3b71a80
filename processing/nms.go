package processing

import (
	"github.com/okieraised/go-rpn-pipeline/utils"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// NMS runs greedy non-max suppression over scored boxes. Boxes are visited
// in descending score order; each kept box suppresses every remaining box
// whose IoU with it exceeds the threshold. topN bounds the keep list, nil
// keeps everything. The returned indices reference rows of the input tensor
// in selection order.
func NMS(boxes, scores *tensor.Dense, iouThreshold float32, topN *int) ([]int, error) {
	boxShape := boxes.Shape()
	if len(boxShape) != 2 || boxShape[1] != 4 {
		return nil, errors.Errorf("expected a (N, 4) box tensor, got shape %v", boxShape)
	}
	scoreShape := scores.Shape()
	if len(scoreShape) != 1 || scoreShape[0] != boxShape[0] {
		return nil, errors.Errorf("expected %d scores, got shape %v", boxShape[0], scoreShape)
	}

	budget := boxShape[0]
	if topN != nil {
		budget = utils.DerefPointer(topN)
	}
	keep := make([]int, 0)
	if budget <= 0 {
		return keep, nil
	}

	order, err := utils.ArgSortDescending(scores)
	if err != nil {
		return nil, err
	}

	data := boxes.Float32s()
	suppressed := make([]bool, boxShape[0])

	for pos, i := range order {
		if suppressed[i] {
			continue
		}
		keep = append(keep, i)
		if len(keep) >= budget {
			break
		}

		kept := Box{data[i*4], data[i*4+1], data[i*4+2], data[i*4+3]}
		for _, j := range order[pos+1:] {
			if suppressed[j] {
				continue
			}
			candidate := Box{data[j*4], data[j*4+1], data[j*4+2], data[j*4+3]}
			if kept.IoU(candidate) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return keep, nil
}
