package batch

import (
	"context"
	"path/filepath"
	"sort"
	"time"

	"mrireg/internal/logging"
	"mrireg/internal/models"
	"mrireg/pkg/fault"
	"mrireg/pkg/imaging"
	"mrireg/pkg/pipeline"
	"mrireg/pkg/registration"
	"mrireg/pkg/segmentation"
	"mrireg/pkg/standardize"
)

// ProcessorOptions configures the per-item pipeline built for each
// work item.
type ProcessorOptions struct {
	// Library performs all volume I/O.
	Library imaging.Library

	// Registration is the engine used by the register step; nil skips
	// registration.
	Registration registration.Engine

	// Segmentor drives the segment and ROI steps; nil skips both.
	Segmentor segmentation.Segmentor

	// Shared is a pre-trained standardizer injected read-only into
	// every run. Training must complete strictly before fan-out
	// begins; no run may mutate it. Nil means per-item fallback
	// standardization.
	Shared standardize.Standardizer

	// Method and Robust configure the per-item fallback.
	Method string
	Robust bool

	// ROIPadding is the crop padding in voxels.
	ROIPadding int

	// ContinueOnError lets a run attempt later steps after a failure.
	ContinueOnError bool

	// OutputDir is the batch output root; each item gets its own
	// subdirectory named after its ID.
	OutputDir string

	// FixedName and MovingName are the modality names on work items.
	FixedName  string
	MovingName string

	// Log is the batch logger; per-item loggers derive from it.
	Log *logging.Logger
}

// Keys persisted to the per-item output directory on success, with
// their output filenames.
var savedVolumeKeys = map[string]string{
	pipeline.KeyFixedStandardized:  "fixed_standardized.mrv",
	pipeline.KeyMovingStandardized: "moving_standardized.mrv",
	pipeline.KeySegmentationMask:   "segmentation_mask.mrv",
	pipeline.KeyFixedROI:           "fixed_roi.mrv",
	pipeline.KeyMovingROI:          "moving_roi.mrv",
	pipeline.KeyRegisteredImage:    "registered_image.mrv",
}

const transformFilename = "transform.json"

// NewProcessFunc builds the per-item processing function the executor
// fans out: load inputs, run the step chain, and persist the surviving
// artifacts to the item's output directory before the run context is
// discarded.
func NewProcessFunc(opts ProcessorOptions) ProcessFunc {
	if opts.Log == nil {
		opts.Log = logging.Discard()
	}

	return func(ctx context.Context, item models.WorkItem) *models.RunResult {
		itemLog := opts.Log.WithPrefix(item.ID)
		outputDir := filepath.Join(opts.OutputDir, item.ID)

		result := processItem(ctx, item, outputDir, itemLog, opts)
		result.ItemID = item.ID
		result.OutputDir = outputDir
		return result
	}
}

func processItem(ctx context.Context, item models.WorkItem, outputDir string, log *logging.Logger, opts ProcessorOptions) *models.RunResult {
	seed, err := loadInputs(item, opts)
	if err != nil {
		log.Error("%v", err)
		return &models.RunResult{Status: models.StatusFailed, Kind: fault.KindOf(err), Error: err.Error()}
	}

	engine := pipeline.NewEngine(log,
		pipeline.NewStandardizeStep(opts.Library, opts.Method, opts.Robust, opts.Shared))
	if opts.Segmentor != nil {
		engine.AddStep(pipeline.NewSegmentStep(opts.Segmentor))
		engine.AddStep(pipeline.NewROIStep(opts.ROIPadding))
	}
	if opts.Registration != nil {
		engine.AddStep(pipeline.NewRegisterStep(opts.Registration))
	}

	result, err := engine.Execute(ctx, seed, opts.ContinueOnError)
	if err != nil {
		return result
	}

	saved, err := persistArtifacts(result.Snapshot, outputDir, opts.Library)
	if err != nil {
		log.Error("failed to persist artifacts: %v", err)
		result.Status = models.StatusFailed
		result.Kind = fault.KindOf(err)
		result.Error = err.Error()
		result.Snapshot = nil
		return result
	}
	result.SavedArtifacts = saved

	log.Info("completed in %s, saved %d artifacts", result.Duration.Round(time.Millisecond), len(saved))
	return result
}

// loadInputs reads the item's modalities and seeds the run context. A
// registration-capable run needs both modalities; a missing moving
// modality is only fatal when registration is enabled.
func loadInputs(item models.WorkItem, opts ProcessorOptions) (map[string]any, error) {
	if opts.Registration != nil && !item.RegistrationReady(opts.FixedName, opts.MovingName) {
		return nil, fault.New(fault.Validation,
			"work item %s lacks the %s/%s pair required for registration",
			item.ID, opts.FixedName, opts.MovingName)
	}

	seed := make(map[string]any, 2)

	fixedPath, ok := item.Path(opts.FixedName)
	if !ok {
		return nil, fault.New(fault.Validation, "work item %s has no %s modality", item.ID, opts.FixedName)
	}
	fixed, err := opts.Library.ReadImage(fixedPath)
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "failed to load %s volume", opts.FixedName)
	}
	seed[pipeline.KeyFixedImage] = fixed

	movingPath, ok := item.Path(opts.MovingName)
	if !ok {
		return seed, nil
	}
	moving, err := opts.Library.ReadImage(movingPath)
	if err != nil {
		return nil, fault.Wrap(fault.Execution, err, "failed to load %s volume", opts.MovingName)
	}
	seed[pipeline.KeyMovingImage] = moving

	return seed, nil
}

// persistArtifacts writes the run's surviving volumes and transform to
// the item output directory and returns the artifact names saved, in
// sorted order.
func persistArtifacts(snapshot map[string]any, outputDir string, lib imaging.Library) ([]string, error) {
	var saved []string

	for key, filename := range savedVolumeKeys {
		vol, ok := snapshot[key].(*imaging.Volume)
		if !ok {
			continue
		}
		if err := lib.WriteImage(vol, filepath.Join(outputDir, filename)); err != nil {
			return nil, fault.Wrap(fault.Execution, err, "failed to save %s", filename)
		}
		saved = append(saved, filename)
	}

	if t, ok := snapshot[pipeline.KeyTransform].(*imaging.Transform); ok {
		if err := imaging.SaveTransform(t, filepath.Join(outputDir, transformFilename)); err != nil {
			return nil, fault.Wrap(fault.Execution, err, "failed to save transform")
		}
		saved = append(saved, transformFilename)
	}

	sort.Strings(saved)
	return saved, nil
}
