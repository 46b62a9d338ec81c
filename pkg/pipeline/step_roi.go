package pipeline

import (
	"context"

	"mrireg/pkg/fault"
	"mrireg/pkg/imaging"
	"mrireg/pkg/segmentation"
)

// ROIStep crops the standardized volumes to the padded bounding box of
// the segmentation mask so that registration works on the anatomy of
// interest rather than the whole field of view.
type ROIStep struct {
	BaseStep
	padding int
}

// NewROIStep creates the ROI cropping step with the given padding in
// voxels.
func NewROIStep(padding int) *ROIStep {
	return &ROIStep{padding: padding}
}

// Name implements Step.
func (s *ROIStep) Name() string { return "roi_crop" }

// Requires implements Step.
func (s *ROIStep) Requires() []string { return []string{KeySegmentationMask} }

// Execute implements Step.
func (s *ROIStep) Execute(_ context.Context, run *Context) (map[string]any, error) {
	mask, _ := run.Volume(KeySegmentationMask)

	var images []*imaging.Volume
	var keys []string
	if fixed, ok := run.Volume(KeyFixedStandardized, KeyFixedImage); ok {
		images = append(images, fixed)
		keys = append(keys, KeyFixedROI)
	}
	if moving, ok := run.Volume(KeyMovingStandardized, KeyMovingImage); ok {
		// Cropping the moving image with the fixed-frame box assumes
		// both inputs share a field of view, which holds for the
		// paired acquisitions this pipeline processes.
		if moving.Width == mask.Width && moving.Height == mask.Height && moving.Depth == mask.Depth {
			images = append(images, moving)
			keys = append(keys, KeyMovingROI)
		}
	}

	roiMask, roiImages, err := segmentation.ExtractROI(mask, s.padding, images...)
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "ROI extraction failed")
	}

	produced := map[string]any{KeyROIMask: roiMask}
	for i, key := range keys {
		produced[key] = roiImages[i]
	}
	return produced, nil
}
