package config

import (
	"github.com/pkg/errors"
	"time"
)

// PascalVOCClasses holds the 20 Pascal VOC 2007 object classes in sorted
// order. The background class is not part of the list, it always occupies
// the last column of one-hot label tensors.
var PascalVOCClasses = []string{
	"aeroplane", "bicycle", "bird", "boat", "bottle",
	"bus", "car", "cat", "chair", "cow",
	"diningtable", "dog", "horse", "motorbike", "person",
	"pottedplant", "sheep", "sofa", "train", "tvmonitor",
}

const BackgroundClassName = "background"

type ClassCatalog struct {
	Names []string `json:"names" toml:"names"`
}

var DefaultClassCatalog = &ClassCatalog{
	Names: PascalVOCClasses,
}

func NewClassCatalog(names []string) *ClassCatalog {
	return &ClassCatalog{
		Names: names,
	}
}

func (c *ClassCatalog) NumClasses() int {
	return len(c.Names)
}

// BackgroundIndex returns the column reserved for the background class in
// one-hot label tensors.
func (c *ClassCatalog) BackgroundIndex() int {
	return len(c.Names)
}

func (c *ClassCatalog) Name(classID int) string {
	if classID == c.BackgroundIndex() {
		return BackgroundClassName
	}
	if classID < 0 || classID >= len(c.Names) {
		return ""
	}
	return c.Names[classID]
}

func (c *ClassCatalog) ID(name string) int {
	for idx, n := range c.Names {
		if n == name {
			return idx
		}
	}
	return -1
}

func (c *ClassCatalog) Validate() error {
	if len(c.Names) == 0 {
		return errors.New("class catalog must contain at least one class")
	}
	seen := make(map[string]struct{}, len(c.Names))
	for idx, n := range c.Names {
		if n == "" {
			return errors.Errorf("class name at index %d is empty", idx)
		}
		if n == BackgroundClassName {
			return errors.Errorf("class name at index %d collides with the implicit background class", idx)
		}
		if _, ok := seen[n]; ok {
			return errors.Errorf("duplicate class name %s", n)
		}
		seen[n] = struct{}{}
	}
	return nil
}

type AnchorParams struct {
	Stride int       `json:"stride" toml:"stride"`
	Ratios []float32 `json:"ratios" toml:"ratios"`
	Scales []float32 `json:"scales" toml:"scales"`
}

var DefaultAnchorParams = &AnchorParams{
	Stride: 16,
	Ratios: []float32{0.5, 1.0, 2.0},
	Scales: []float32{128, 256, 512},
}

func NewAnchorParams(stride int, ratios, scales []float32) *AnchorParams {
	return &AnchorParams{
		Stride: stride,
		Ratios: ratios,
		Scales: scales,
	}
}

// AnchorCount is the number of anchors tiled at every feature map location.
func (p *AnchorParams) AnchorCount() int {
	return len(p.Ratios) * len(p.Scales)
}

func (p *AnchorParams) Validate() error {
	if p.Stride <= 0 {
		return errors.Errorf("stride must be positive, got %d", p.Stride)
	}
	if len(p.Ratios) == 0 {
		return errors.New("at least one anchor ratio is required")
	}
	if len(p.Scales) == 0 {
		return errors.New("at least one anchor scale is required")
	}
	for idx, r := range p.Ratios {
		if r <= 0 {
			return errors.Errorf("anchor ratio at index %d must be positive, got %f", idx, r)
		}
	}
	for idx, s := range p.Scales {
		if s <= 0 {
			return errors.Errorf("anchor scale at index %d must be positive, got %f", idx, s)
		}
	}
	return nil
}

type RPNTargetParams struct {
	Anchors                  *AnchorParams `json:"anchors" toml:"anchors"`
	TotalPositiveAnchors     int           `json:"total_positive_anchors" toml:"total_positive_anchors"`
	NegativeOverlapThreshold float32       `json:"negative_overlap_threshold" toml:"negative_overlap_threshold"`
	Seed                     uint64        `json:"seed" toml:"seed"`
	CacheSize                int           `json:"cache_size" toml:"cache_size"`
}

var DefaultRPNTargetParams = &RPNTargetParams{
	Anchors:                  DefaultAnchorParams,
	TotalPositiveAnchors:     64,
	NegativeOverlapThreshold: 0.3,
	Seed:                     42,
	CacheSize:                8,
}

func NewRPNTargetParams(anchors *AnchorParams, totalPositiveAnchors int, negativeOverlapThreshold float32, seed uint64, cacheSize int) *RPNTargetParams {
	return &RPNTargetParams{
		Anchors:                  anchors,
		TotalPositiveAnchors:     totalPositiveAnchors,
		NegativeOverlapThreshold: negativeOverlapThreshold,
		Seed:                     seed,
		CacheSize:                cacheSize,
	}
}

func (p *RPNTargetParams) Validate() error {
	if p.Anchors == nil {
		return errors.New("anchor params are required")
	}
	if err := p.Anchors.Validate(); err != nil {
		return err
	}
	if p.TotalPositiveAnchors <= 0 {
		return errors.Errorf("total positive anchors must be positive, got %d", p.TotalPositiveAnchors)
	}
	if p.NegativeOverlapThreshold <= 0 || p.NegativeOverlapThreshold >= 1 {
		return errors.Errorf("negative overlap threshold must be in (0, 1), got %f", p.NegativeOverlapThreshold)
	}
	if p.CacheSize <= 0 {
		return errors.Errorf("cache size must be positive, got %d", p.CacheSize)
	}
	return nil
}

type ProposalParams struct {
	ModelName      string        `json:"model_name" toml:"model_name"`
	Timeout        time.Duration `json:"timeout" toml:"timeout"`
	Anchors        *AnchorParams `json:"anchors" toml:"anchors"`
	ScoreThreshold float32       `json:"score_threshold" toml:"score_threshold"`
	IOUThreshold   float32       `json:"iou_threshold" toml:"iou_threshold"`
	TopN           int           `json:"top_n" toml:"top_n"`
}

var DefaultProposalParams = &ProposalParams{
	ModelName:      "rpn_vgg16",
	Timeout:        20 * time.Second,
	Anchors:        DefaultAnchorParams,
	ScoreThreshold: 0.5,
	IOUThreshold:   0.5,
	TopN:           300,
}

func NewProposalParams(modelName string, timeout time.Duration, anchors *AnchorParams, scoreThreshold, iouThreshold float32, topN int) *ProposalParams {
	return &ProposalParams{
		ModelName:      modelName,
		Timeout:        timeout,
		Anchors:        anchors,
		ScoreThreshold: scoreThreshold,
		IOUThreshold:   iouThreshold,
		TopN:           topN,
	}
}

func (p *ProposalParams) Validate() error {
	if p.ModelName == "" {
		return errors.New("model name is required")
	}
	if p.Timeout <= 0 {
		return errors.Errorf("timeout must be positive, got %v", p.Timeout)
	}
	if p.Anchors == nil {
		return errors.New("anchor params are required")
	}
	if err := p.Anchors.Validate(); err != nil {
		return err
	}
	if p.ScoreThreshold < 0 || p.ScoreThreshold >= 1 {
		return errors.Errorf("score threshold must be in [0, 1), got %f", p.ScoreThreshold)
	}
	if p.IOUThreshold <= 0 || p.IOUThreshold >= 1 {
		return errors.Errorf("iou threshold must be in (0, 1), got %f", p.IOUThreshold)
	}
	if p.TopN <= 0 {
		return errors.Errorf("top n must be positive, got %d", p.TopN)
	}
	return nil
}

type PipelineParams struct {
	Shuffle bool   `json:"shuffle" toml:"shuffle"`
	Workers int    `json:"workers" toml:"workers"`
	Seed    uint64 `json:"seed" toml:"seed"`
}

var DefaultPipelineParams = &PipelineParams{
	Shuffle: true,
	Workers: 4,
	Seed:    42,
}

func NewPipelineParams(shuffle bool, workers int, seed uint64) *PipelineParams {
	return &PipelineParams{
		Shuffle: shuffle,
		Workers: workers,
		Seed:    seed,
	}
}

func (p *PipelineParams) Validate() error {
	if p.Workers <= 0 {
		return errors.Errorf("workers must be positive, got %d", p.Workers)
	}
	return nil
}
