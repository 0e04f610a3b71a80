package modules

import (
	"github.com/okieraised/go-rpn-pipeline/config"
	"github.com/okieraised/go-rpn-pipeline/processing"
	"github.com/okieraised/go-rpn-pipeline/utils"
	gotritonclient "github.com/okieraised/go-triton-client"
	"github.com/okieraised/go-triton-client/triton_proto"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"gorgonia.org/tensor"
)

const proposalAnchorCacheSize = 8

// Proposal is one region proposal in normalized [0, 1] coordinates.
type Proposal struct {
	Box   processing.Box
	Score float32
}

type ProposalClient struct {
	tritonClient *gotritonclient.TritonGRPCClient
	ModelParams  *config.ProposalParams
	ModelConfig  *triton_proto.ModelConfigResponse
	anchorCache  *processing.AnchorCache
}

func NewProposalClient(tritonClient *gotritonclient.TritonGRPCClient, cfg *config.ProposalParams) (*ProposalClient, error) {
	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	inferenceConfig, err := tritonClient.GetModelConfiguration(cfg.Timeout, cfg.ModelName, "")
	if err != nil {
		return nil, err
	}

	client := &ProposalClient{}
	client.tritonClient = tritonClient
	client.ModelParams = cfg
	client.ModelConfig = inferenceConfig
	client.anchorCache = processing.NewAnchorCache(proposalAnchorCacheSize, cfg.Anchors.Stride, cfg.Anchors.Ratios, cfg.Anchors.Scales)

	return client, nil
}

// Infer runs the proposal model on one image and decodes its outputs into
// scored, suppressed proposals.
func (c *ProposalClient) Infer(img gocv.Mat) ([]Proposal, error) {
	imgShape := img.Size()

	imgTensor, err := utils.ImageToTensor(&img)
	if err != nil {
		return nil, err
	}
	batched, err := utils.BatchTensor(imgTensor)
	if err != nil {
		return nil, err
	}

	modelRequest := &triton_proto.ModelInferRequest{
		ModelName: c.ModelParams.ModelName,
	}

	batchedShape := batched.Shape()
	inputShape := make([]int64, 0, len(batchedShape))
	for _, dim := range batchedShape {
		inputShape = append(inputShape, int64(dim))
	}

	modelInputs := make([]*triton_proto.ModelInferRequest_InferInputTensor, 0)
	for _, inputCfg := range c.ModelConfig.Config.Input {
		modelInput := &triton_proto.ModelInferRequest_InferInputTensor{
			Name:     inputCfg.Name,
			Datatype: inputCfg.DataType.String()[5:],
			Shape:    inputShape,
			Contents: &triton_proto.InferTensorContents{
				Fp32Contents: batched.Float32s(),
			},
		}
		modelInputs = append(modelInputs, modelInput)
	}
	modelRequest.Inputs = modelInputs

	inferResp, err := c.tritonClient.ModelGRPCInfer(c.ModelParams.Timeout, modelRequest)
	if err != nil {
		return nil, err
	}

	// The objectness head ends in A channels, the regression head in A*4,
	// which tells the two outputs apart regardless of declaration order.
	perCell := c.ModelParams.Anchors.AnchorCount()
	var scores, deltas *tensor.Dense
	for idx, out := range inferResp.Outputs {
		outShape := make([]int, 0, len(out.Shape))
		for _, dim := range out.Shape {
			outShape = append(outShape, int(dim))
		}
		outTensor := tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(outShape...),
			tensor.WithBacking(utils.BytesToT32[float32](inferResp.RawOutputContents[idx])),
		)
		switch outShape[len(outShape)-1] {
		case perCell * 4:
			deltas = outTensor
		case perCell:
			scores = outTensor
		}
	}
	if scores == nil || deltas == nil {
		return nil, errors.Errorf("model %s returned no recognizable score and delta outputs", c.ModelParams.ModelName)
	}

	return c.Postprocess(deltas, scores, imgShape[0], imgShape[1])
}

// Postprocess turns raw model outputs into proposals: deltas are applied
// to the anchors of the image size, boxes are clipped to the image, low
// scores are dropped, and the survivors go through non-maximum
// suppression capped at TopN. Any tensor shapes are accepted as long as
// the element counts match the anchor set.
func (c *ProposalClient) Postprocess(deltas, scores *tensor.Dense, imageHeight, imageWidth int) ([]Proposal, error) {
	anchors, err := c.anchorCache.Anchors(imageHeight, imageWidth)
	if err != nil {
		return nil, err
	}
	anchorCount := anchors.Shape()[0]

	if deltas.Shape().TotalSize() != anchorCount*4 {
		return nil, errors.Errorf("expected %d delta values, got shape %v", anchorCount*4, deltas.Shape())
	}
	flatDeltas := deltas.Clone().(*tensor.Dense)
	err = flatDeltas.Reshape(anchorCount, 4)
	if err != nil {
		return nil, err
	}

	if scores.Shape().TotalSize() != anchorCount {
		return nil, errors.Errorf("expected %d score values, got shape %v", anchorCount, scores.Shape())
	}
	flatScores := scores.Clone().(*tensor.Dense)
	err = flatScores.Reshape(anchorCount)
	if err != nil {
		return nil, err
	}

	boxes, err := processing.BoxesFromDeltas(anchors, flatDeltas)
	if err != nil {
		return nil, err
	}
	_, err = processing.ClipBoxes(boxes)
	if err != nil {
		return nil, err
	}

	keep := make([]int, 0, anchorCount)
	for i, s := range flatScores.Float32s() {
		if s >= c.ModelParams.ScoreThreshold {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return []Proposal{}, nil
	}

	candidateBoxes, err := utils.SelectRows2D(boxes, keep)
	if err != nil {
		return nil, err
	}
	candidateScores, err := utils.TensorByIndices(flatScores, keep)
	if err != nil {
		return nil, err
	}

	kept, err := processing.NMS(candidateBoxes, candidateScores, c.ModelParams.IOUThreshold, utils.RefPointer(c.ModelParams.TopN))
	if err != nil {
		return nil, err
	}

	proposals := make([]Proposal, 0, len(kept))
	for _, idx := range kept {
		box, err := processing.BoxAt(candidateBoxes, idx)
		if err != nil {
			return nil, err
		}
		proposals = append(proposals, Proposal{Box: box, Score: candidateScores.GetF32(idx)})
	}

	return proposals, nil
}

// ProposalsToTensor stacks proposal boxes into a (N, 4) tensor.
func ProposalsToTensor(proposals []Proposal) (*tensor.Dense, error) {
	rows := make([]*tensor.Dense, 0, len(proposals))
	for _, p := range proposals {
		rows = append(rows, tensor.New(
			tensor.Of(tensor.Float32),
			tensor.WithShape(1, 4),
			tensor.WithBacking([]float32{p.Box.YMin, p.Box.XMin, p.Box.YMax, p.Box.XMax}),
		))
	}
	return utils.VStack(rows)
}

// DrawProposals overlays proposals and their scores on the image.
func DrawProposals(img *gocv.Mat, proposals []Proposal) error {
	if len(proposals) == 0 {
		return nil
	}

	boxes, err := ProposalsToTensor(proposals)
	if err != nil {
		return err
	}
	scores := make([]float32, len(proposals))
	for i, p := range proposals {
		scores[i] = p.Score
	}
	return utils.DrawBoxes(img, boxes, scores)
}
