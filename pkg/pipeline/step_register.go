package pipeline

import (
	"context"

	"mrireg/pkg/fault"
	"mrireg/pkg/registration"
)

// RegisterStep aligns the moving modality to the fixed modality
// through the registration engine, preferring the most refined
// available version of each side (ROI, then standardized, then raw).
type RegisterStep struct {
	BaseStep
	engine registration.Engine
}

// NewRegisterStep creates the registration step.
func NewRegisterStep(engine registration.Engine) *RegisterStep {
	return &RegisterStep{engine: engine}
}

// Name implements Step.
func (s *RegisterStep) Name() string { return "register" }

// Requires implements Step.
func (s *RegisterStep) Requires() []string {
	return []string{KeyFixedImage, KeyMovingImage}
}

// Execute implements Step.
func (s *RegisterStep) Execute(ctx context.Context, run *Context) (map[string]any, error) {
	fixed, _ := run.Volume(KeyFixedROI, KeyFixedStandardized, KeyFixedImage)
	moving, _ := run.Volume(KeyMovingROI, KeyMovingStandardized, KeyMovingImage)

	result, err := s.engine.Register(ctx, fixed, moving)
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "registration failed")
	}

	return map[string]any{
		KeyRegisteredImage: result.Registered,
		KeyTransform:       result.Transform,
	}, nil
}
