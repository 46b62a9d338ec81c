package pipeline

import (
	"context"

	"mrireg/pkg/fault"
	"mrireg/pkg/segmentation"
)

// SegmentStep produces an anatomical region mask from the fixed
// modality, preferring the standardized image when an earlier step
// produced one.
type SegmentStep struct {
	BaseStep
	segmentor segmentation.Segmentor
}

// NewSegmentStep creates the segmentation step.
func NewSegmentStep(segmentor segmentation.Segmentor) *SegmentStep {
	return &SegmentStep{segmentor: segmentor}
}

// Name implements Step.
func (s *SegmentStep) Name() string { return "segment" }

// Requires implements Step.
func (s *SegmentStep) Requires() []string { return []string{KeyFixedImage} }

// Execute implements Step.
func (s *SegmentStep) Execute(_ context.Context, run *Context) (map[string]any, error) {
	input, _ := run.Volume(KeyFixedStandardized, KeyFixedImage)

	mask, err := s.segmentor.Segment(input)
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "segmentation failed")
	}

	return map[string]any{KeySegmentationMask: mask}, nil
}
