package batch

import (
	"path/filepath"

	"mrireg/internal/logging"
	"mrireg/internal/models"
	"mrireg/pkg/fault"
	"mrireg/pkg/imaging"
	"mrireg/pkg/standardize"
)

// ParameterFilename is where trained standardizer parameters are
// saved under the batch output directory.
const ParameterFilename = "nyul_parameters.json"

// TrainOptions configures the pre-batch training phase.
type TrainOptions struct {
	// Library performs volume I/O.
	Library imaging.Library

	// Method selects the standardizer. Only nyul needs pre-training;
	// zscore returns nil so each run uses per-image statistics.
	Method string

	// Modality names the input used for training (the fixed
	// modality).
	Modality string

	// SampleCap bounds how many items contribute training images.
	// Zero means the default of 20.
	SampleCap int

	// OutputDir receives the trained parameter file; empty skips
	// saving.
	OutputDir string

	// Log receives progress output.
	Log *logging.Logger
}

// TrainSharedStandardizer fits the shared standardization model on the
// discovered items' fixed-modality images. This runs strictly before
// batch fan-out: afterwards the returned model is shared read-only by
// every concurrent run.
//
// Items whose training image cannot be loaded are skipped with a
// warning; training fails only when no image loads at all.
func TrainSharedStandardizer(items []models.WorkItem, opts TrainOptions) (standardize.Standardizer, error) {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}
	if opts.Method != standardize.MethodNyul {
		return nil, nil
	}
	sample := opts.SampleCap
	if sample <= 0 {
		sample = 20
	}
	if sample > len(items) {
		sample = len(items)
	}

	opts.Log.Info("training nyul standardization on up to %d %s images", sample, opts.Modality)

	var images [][]float64
	for _, item := range items[:sample] {
		path, ok := item.Path(opts.Modality)
		if !ok {
			continue
		}
		vol, err := opts.Library.ReadImage(path)
		if err != nil {
			opts.Log.Warn("skipping training image for %s: %v", item.ID, err)
			continue
		}
		arr, _ := opts.Library.ToArray(vol)
		images = append(images, arr)
	}

	if len(images) == 0 {
		return nil, fault.New(fault.Execution, "no usable training images among %d items", len(items))
	}

	model := standardize.NewNyul()
	if err := model.Train(images); err != nil {
		return nil, err
	}
	opts.Log.Info("training completed on %d images", len(images))

	if opts.OutputDir != "" {
		paramPath := filepath.Join(opts.OutputDir, ParameterFilename)
		if err := standardize.SaveParameters(model.Parameters(), paramPath); err != nil {
			return nil, err
		}
		opts.Log.Info("saved standardization parameters to %s", paramPath)
	}

	return model, nil
}
