package pipeline

import (
	"context"

	"mrireg/pkg/fault"
	"mrireg/pkg/imaging"
	"mrireg/pkg/standardize"
)

// StandardizeStep maps both input modalities onto a common intensity
// scale. The fixed modality uses the configured method; when a shared
// pre-trained model is injected it is used read-only, otherwise a
// per-item model is fit on the fly. The moving modality always uses
// per-image z-score, matching its quantitative nature.
type StandardizeStep struct {
	BaseStep
	lib    imaging.Library
	method string
	robust bool
	shared standardize.Standardizer
}

// NewStandardizeStep creates the standardization step. shared may be
// nil, in which case each run falls back to per-item standardization.
func NewStandardizeStep(lib imaging.Library, method string, robust bool, shared standardize.Standardizer) *StandardizeStep {
	return &StandardizeStep{lib: lib, method: method, robust: robust, shared: shared}
}

// Name implements Step.
func (s *StandardizeStep) Name() string { return "standardize" }

// Requires implements Step.
func (s *StandardizeStep) Requires() []string { return []string{KeyFixedImage} }

// Execute implements Step.
func (s *StandardizeStep) Execute(_ context.Context, run *Context) (map[string]any, error) {
	fixed, _ := run.Volume(KeyFixedImage)
	produced := make(map[string]any, 2)

	std, err := s.fixedStandardizer(fixed)
	if err != nil {
		return nil, err
	}

	arr, _ := s.lib.ToArray(fixed)
	mapped, err := std.Transform(arr)
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "fixed standardization failed")
	}
	vol, err := s.lib.FromArray(mapped, fixed)
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "fixed standardization produced a bad array")
	}
	produced[KeyFixedStandardized] = vol

	if moving, ok := run.Volume(KeyMovingImage); ok {
		// Untrained z-score, so statistics come from this image alone.
		arr, _ := s.lib.ToArray(moving)
		mapped, err := standardize.NewZScore(s.robust).Transform(arr)
		if err != nil {
			return nil, fault.Wrap(fault.Execution, err, "moving standardization failed")
		}
		vol, err := s.lib.FromArray(mapped, moving)
		if err != nil {
			return nil, fault.Wrap(fault.Execution, err, "moving standardization produced a bad array")
		}
		produced[KeyMovingStandardized] = vol
	}

	return produced, nil
}

// fixedStandardizer picks the model for the fixed modality: the shared
// trained model when available, otherwise a model fit on this image
// alone.
func (s *StandardizeStep) fixedStandardizer(fixed *imaging.Volume) (standardize.Standardizer, error) {
	if s.shared != nil && s.shared.Trained() {
		return s.shared, nil
	}

	switch s.method {
	case standardize.MethodNyul:
		arr, _ := s.lib.ToArray(fixed)
		n := standardize.NewNyul()
		if err := n.Train([][]float64{arr}); err != nil {
			return nil, fault.Wrap(fault.Execution, err, "single-image nyul training failed")
		}
		return n, nil
	case standardize.MethodZScore:
		return standardize.NewZScore(s.robust), nil
	default:
		return nil, fault.New(fault.Configuration, "unknown standardization method %q", s.method)
	}
}
