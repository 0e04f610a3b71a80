package go_rpn_pipeline

import (
	"github.com/okieraised/go-rpn-pipeline/config"
	"github.com/okieraised/go-rpn-pipeline/modules"
	"github.com/okieraised/go-rpn-pipeline/utils"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
	"sync"
)

// TrainingExample is one dataset sample prepared for training: the
// batched input image and its anchor targets in feature map layout.
type TrainingExample struct {
	Index  int           `json:"index"`
	Input  *tensor.Dense `json:"input"`
	Labels *tensor.Dense `json:"labels"`
	Deltas *tensor.Dense `json:"deltas"`
}

type TrainingPipeline struct {
	dataset          Dataset
	targetGeneration *modules.TargetGenerationClient
	params           *config.PipelineParams
}

// NewTrainingPipeline initializes a target generation pipeline over a
// dataset.
func NewTrainingPipeline(dataset Dataset, targetParams *config.RPNTargetParams, pipelineParams *config.PipelineParams) (*TrainingPipeline, error) {
	if dataset == nil {
		return nil, errors.New("dataset is nil")
	}
	err := pipelineParams.Validate()
	if err != nil {
		return nil, err
	}

	client := &TrainingPipeline{}
	client.dataset = dataset
	client.params = pipelineParams

	targetGeneration, err := modules.NewTargetGenerationClient(targetParams)
	if err != nil {
		return nil, err
	}
	client.targetGeneration = targetGeneration

	return client, nil
}

// Epoch computes the training examples of one full pass over the dataset.
// The visit order is shuffled deterministically from the pipeline seed and
// the epoch number, and samples are processed by the configured number of
// workers. Anchor sampling is seeded per sample, so the returned targets
// do not depend on the visit order or worker scheduling.
func (c *TrainingPipeline) Epoch(epoch int) ([]*TrainingExample, error) {
	if epoch < 0 {
		return nil, errors.Errorf("epoch must not be negative, got %d", epoch)
	}

	total := c.dataset.Len()
	results := make([]*TrainingExample, total)
	if total == 0 {
		return results, nil
	}

	order := make([]int, total)
	for i := range order {
		order[i] = i
	}
	if c.params.Shuffle {
		rng := rand.New(rand.NewSource(c.params.Seed ^ uint64(epoch)))
		rng.Shuffle(total, func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	}

	workers := c.params.Workers
	if workers > total {
		workers = total
	}

	sampleErrs := make([]error, total)
	positions := make(chan int)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range positions {
				example, err := c.buildExample(order[pos])
				if err != nil {
					sampleErrs[pos] = err
					continue
				}
				results[pos] = example
			}
		}()
	}

	for pos := range total {
		positions <- pos
	}
	close(positions)
	wg.Wait()

	for _, err := range sampleErrs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

func (c *TrainingPipeline) buildExample(index int) (*TrainingExample, error) {
	sample, err := c.dataset.At(index)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load sample %d", index)
	}
	if sample.Image == nil {
		return nil, errors.Errorf("sample %d has no image", index)
	}

	imgShape := sample.Image.Shape()
	if len(imgShape) != 3 || imgShape[2] != 3 {
		return nil, errors.Errorf("sample %d: expected a (H, W, 3) image tensor, got shape %v", index, imgShape)
	}

	// Background subsampling is seeded by dataset index, keeping every
	// sample's targets stable across epochs and worker schedules
	src := rand.NewSource(c.targetGeneration.ModelParams.Seed + uint64(index))
	targets, err := c.targetGeneration.InferWithSource(imgShape[0], imgShape[1], sample.Boxes, src)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to generate targets for sample %d", index)
	}

	input, err := utils.BatchTensor(sample.Image)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to batch sample %d", index)
	}

	return &TrainingExample{
		Index:  index,
		Input:  input,
		Labels: targets.Labels,
		Deltas: targets.Deltas,
	}, nil
}
