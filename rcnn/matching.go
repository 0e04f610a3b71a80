package rcnn

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"
	"gorgonia.org/tensor"
	"gorgonia.org/tensor/native"
	"sort"
)

// AnchorMatch pairs a positive anchor with the ground truth box it is
// responsible for.
type AnchorMatch struct {
	AnchorIndex int
	GTIndex     int
}

// AnchorSamples holds the sampled anchor sets for one image. Anchors in
// neither set are ignored during training.
type AnchorSamples struct {
	Positive []AnchorMatch
	Negative []int
}

// AnchorIndices returns the positive anchor indices in selection order.
func (s *AnchorSamples) AnchorIndices() []int {
	indices := make([]int, len(s.Positive))
	for i, m := range s.Positive {
		indices[i] = m.AnchorIndex
	}
	return indices
}

// GTIndices returns the matched ground truth index of every positive
// anchor, parallel to AnchorIndices.
func (s *AnchorSamples) GTIndices() []int {
	indices := make([]int, len(s.Positive))
	for i, m := range s.Positive {
		indices[i] = m.GTIndex
	}
	return indices
}

// SampleAnchors splits anchors into positive, negative, and implicit ignore
// sets from a pairwise (N, M) IoU map.
//
// Every ground truth column first claims its best-overlapping free anchor,
// so no box is left without a positive regardless of threshold. The rest of
// the positive budget goes to the free anchors with the highest best IoU.
// Anchors whose best IoU stays under the negative threshold become
// background candidates and are subsampled without replacement down to the
// positive count. A map with no ground truth columns yields no positives
// and up to totalPositive negatives.
func SampleAnchors(iouMap *tensor.Dense, totalPositive int, negativeThreshold float32, src rand.Source) (*AnchorSamples, error) {
	shape := iouMap.Shape()
	if len(shape) != 2 {
		return nil, errors.Errorf("expected a (N, M) IoU map, got shape %v", shape)
	}
	if totalPositive <= 0 {
		return nil, errors.Errorf("positive anchor budget must be positive, got %d", totalPositive)
	}

	anchorCount, gtCount := shape[0], shape[1]
	bestCol := make([]int, anchorCount)
	bestIoU := make([]float32, anchorCount)
	claimed := make([]bool, anchorCount)
	samples := &AnchorSamples{
		Positive: []AnchorMatch{},
		Negative: []int{},
	}

	if gtCount > 0 {
		rows, err := native.MatrixF32(iouMap)
		if err != nil {
			return nil, err
		}

		for i := range anchorCount {
			row := rows[i]
			best := 0
			for j := 1; j < gtCount; j++ {
				if row[j] > row[best] {
					best = j
				}
			}
			bestCol[i] = best
			bestIoU[i] = row[best]
		}

		// Each ground truth box claims its best free anchor. Ties go to
		// the lowest anchor index, zero-overlap columns claim nothing.
		for col := range gtCount {
			bestAnchor := -1
			var bestVal float32
			for i := range anchorCount {
				if claimed[i] {
					continue
				}
				if rows[i][col] > bestVal {
					bestVal = rows[i][col]
					bestAnchor = i
				}
			}
			if bestAnchor < 0 {
				continue
			}
			claimed[bestAnchor] = true
			if len(samples.Positive) < totalPositive {
				samples.Positive = append(samples.Positive, AnchorMatch{AnchorIndex: bestAnchor, GTIndex: col})
			}
		}

		// Fill the remaining budget with the best overlapping free
		// anchors, each keeping its best-matching box.
		if remaining := totalPositive - len(samples.Positive); remaining > 0 {
			candidates := make([]int, 0, anchorCount)
			for i := range anchorCount {
				if !claimed[i] && bestIoU[i] > 0 {
					candidates = append(candidates, i)
				}
			}
			sort.Slice(candidates, func(a, b int) bool {
				if bestIoU[candidates[a]] == bestIoU[candidates[b]] {
					return candidates[a] < candidates[b]
				}
				return bestIoU[candidates[a]] > bestIoU[candidates[b]]
			})
			if len(candidates) > remaining {
				candidates = candidates[:remaining]
			}
			for _, i := range candidates {
				claimed[i] = true
				samples.Positive = append(samples.Positive, AnchorMatch{AnchorIndex: i, GTIndex: bestCol[i]})
			}
		}
	}

	negCandidates := make([]int, 0, anchorCount)
	for i := range anchorCount {
		if !claimed[i] && bestIoU[i] < negativeThreshold {
			negCandidates = append(negCandidates, i)
		}
	}

	target := len(samples.Positive)
	if target == 0 {
		target = totalPositive
	}

	if len(negCandidates) > target {
		picked := make([]int, target)
		sampleuv.WithoutReplacement(picked, len(negCandidates), src)
		negatives := make([]int, target)
		for i, p := range picked {
			negatives[i] = negCandidates[p]
		}
		sort.Ints(negatives)
		samples.Negative = negatives
	} else {
		samples.Negative = negCandidates
	}

	return samples, nil
}
