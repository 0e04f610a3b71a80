package modules

import (
	"github.com/okieraised/go-rpn-pipeline/config"
	"github.com/okieraised/go-rpn-pipeline/processing"
	"github.com/okieraised/go-rpn-pipeline/rcnn"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

// RPNTargets holds the training targets of one image in feature map
// layout: Labels is (outH, outW, A) with values 1/0/-1 and Deltas is
// (outH, outW, A*4) with the regression targets of positive anchors.
type RPNTargets struct {
	Labels       *tensor.Dense
	Deltas       *tensor.Dense
	Positive     []rcnn.AnchorMatch
	Negative     []int
	Anchors      *tensor.Dense
	OutputHeight int
	OutputWidth  int
}

type TargetGenerationClient struct {
	ModelParams *config.RPNTargetParams
	anchorCache *processing.AnchorCache
}

func NewTargetGenerationClient(cfg *config.RPNTargetParams) (*TargetGenerationClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	// Fail fast on anchor parameters that only blow up at inference time
	_, err = processing.GenerateBaseAnchors(cfg.Anchors.Stride, cfg.Anchors.Ratios, cfg.Anchors.Scales)
	if err != nil {
		return nil, err
	}

	client := &TargetGenerationClient{}
	client.ModelParams = cfg
	client.anchorCache = processing.NewAnchorCache(cfg.CacheSize, cfg.Anchors.Stride, cfg.Anchors.Ratios, cfg.Anchors.Scales)

	return client, nil
}

// Anchors returns the normalized anchor set for an image size, reusing
// cached tensors across calls. The result is shared and must not be
// mutated.
func (c *TargetGenerationClient) Anchors(imageHeight, imageWidth int) (*tensor.Dense, error) {
	return c.anchorCache.Anchors(imageHeight, imageWidth)
}

// Infer computes the RPN training targets for one image. gtBoxes is a
// (M, 4) tensor of [yMin, xMin, yMax, xMax] rows in coordinates
// normalized to [0, 1]. Sampling is seeded from the configured seed, so
// repeated calls with the same inputs return the same targets.
func (c *TargetGenerationClient) Infer(imageHeight, imageWidth int, gtBoxes *tensor.Dense) (*RPNTargets, error) {
	return c.InferWithSource(imageHeight, imageWidth, gtBoxes, rand.NewSource(c.ModelParams.Seed))
}

// InferWithSource is Infer with caller-controlled randomness for the
// background subsampling.
func (c *TargetGenerationClient) InferWithSource(imageHeight, imageWidth int, gtBoxes *tensor.Dense, src rand.Source) (*RPNTargets, error) {
	if gtBoxes == nil {
		return nil, errors.New("ground truth boxes tensor is nil")
	}

	anchors, err := c.anchorCache.Anchors(imageHeight, imageWidth)
	if err != nil {
		return nil, err
	}

	iouMap, err := processing.IoUMap(anchors, gtBoxes)
	if err != nil {
		return nil, err
	}

	samples, err := rcnn.SampleAnchors(iouMap, c.ModelParams.TotalPositiveAnchors, c.ModelParams.NegativeOverlapThreshold, src)
	if err != nil {
		return nil, err
	}

	anchorCount := anchors.Shape()[0]
	labels, err := rcnn.ObjectnessLabels(anchorCount, samples)
	if err != nil {
		return nil, err
	}

	deltas, err := rcnn.RegressionTargets(anchors, gtBoxes, samples)
	if err != nil {
		return nil, err
	}

	outputHeight, outputWidth := processing.FeatureMapSize(imageHeight, imageWidth, c.ModelParams.Anchors.Stride)
	perCell := c.ModelParams.Anchors.AnchorCount()

	labelMap, err := rcnn.FeatureMapLabels(labels, outputHeight, outputWidth, perCell)
	if err != nil {
		return nil, err
	}
	deltaMap, err := rcnn.FeatureMapDeltas(deltas, outputHeight, outputWidth, perCell)
	if err != nil {
		return nil, err
	}

	return &RPNTargets{
		Labels:       labelMap,
		Deltas:       deltaMap,
		Positive:     samples.Positive,
		Negative:     samples.Negative,
		Anchors:      anchors,
		OutputHeight: outputHeight,
		OutputWidth:  outputWidth,
	}, nil
}

// InferOneHot computes the same targets as Infer plus a flat
// (N, numClasses+1) one-hot class tensor, where gtLabels assigns each
// ground truth box a class id from the catalog and the last column marks
// background.
func (c *TargetGenerationClient) InferOneHot(imageHeight, imageWidth int, gtBoxes *tensor.Dense, gtLabels []int, catalog *config.ClassCatalog) (*RPNTargets, *tensor.Dense, error) {
	if catalog == nil {
		return nil, nil, errors.New("class catalog is nil")
	}
	err := catalog.Validate()
	if err != nil {
		return nil, nil, err
	}
	if gtBoxes == nil {
		return nil, nil, errors.New("ground truth boxes tensor is nil")
	}
	if gtBoxes.Shape()[0] != len(gtLabels) {
		return nil, nil, errors.Errorf("got %d ground truth boxes but %d labels", gtBoxes.Shape()[0], len(gtLabels))
	}

	targets, err := c.Infer(imageHeight, imageWidth, gtBoxes)
	if err != nil {
		return nil, nil, err
	}

	anchorCount := targets.Anchors.Shape()[0]
	samples := &rcnn.AnchorSamples{Positive: targets.Positive, Negative: targets.Negative}
	oneHot, err := rcnn.OneHotLabels(anchorCount, gtLabels, samples, catalog.NumClasses())
	if err != nil {
		return nil, nil, err
	}

	return targets, oneHot, nil
}
