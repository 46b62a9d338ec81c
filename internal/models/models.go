// Package models defines the shared value types that flow between the
// discovery, pipeline, batch, and reporting layers.
package models

import (
	"time"

	"mrireg/pkg/fault"
)

// Status describes the lifecycle state of a pipeline run or of one of
// its steps.
type Status string

const (
	// StatusPending means the run or step has not started yet.
	StatusPending Status = "pending"

	// StatusRunning means execution is in progress.
	StatusRunning Status = "running"

	// StatusCompleted means execution finished without error.
	StatusCompleted Status = "completed"

	// StatusFailed means execution finished with an error.
	StatusFailed Status = "failed"

	// StatusSkipped means the step was never attempted because an
	// earlier step aborted the run.
	StatusSkipped Status = "skipped"
)

// WorkItem is one patient's complete set of required input modalities,
// discovered and validated before processing. Items are immutable once
// created by discovery.
type WorkItem struct {
	// ID is the patient identifier, taken from the directory name.
	ID string

	// Dir is the patient's input directory.
	Dir string

	// Modalities maps a modality name (for example "t2w" or "adc")
	// to the path of its input volume.
	Modalities map[string]string
}

// Path returns the input path registered for the given modality.
func (w WorkItem) Path(modality string) (string, bool) {
	p, ok := w.Modalities[modality]
	return p, ok
}

// RegistrationReady reports whether the item carries both modalities
// required for a registration-capable run.
func (w WorkItem) RegistrationReady(fixed, moving string) bool {
	_, okF := w.Modalities[fixed]
	_, okM := w.Modalities[moving]
	return okF && okM
}

// StepOutcome records what happened to a single pipeline step. It is
// immutable once recorded by the engine.
type StepOutcome struct {
	// Name is the step name.
	Name string

	// Status is one of completed, failed, or skipped.
	Status Status

	// Duration is the wall-clock time the step took.
	Duration time.Duration

	// ProducedKeys lists the context keys the step added.
	ProducedKeys []string

	// Kind classifies the failure when Status is failed.
	Kind fault.Kind

	// Error holds the failure detail when Status is failed.
	Error string
}

// RunResult is the full accounting of one pipeline run against one
// work item.
type RunResult struct {
	// RunID uniquely identifies this run.
	RunID string

	// ItemID is the work item the run processed.
	ItemID string

	// Status is the overall run status. It is failed if any step
	// failed, even when the run continued past the failure.
	Status Status

	// Outcomes holds the per-step outcomes in execution order.
	Outcomes []StepOutcome

	// Duration is the total wall-clock time of the run.
	Duration time.Duration

	// StartTime and EndTime bracket the run.
	StartTime time.Time
	EndTime   time.Time

	// Snapshot holds the final context contents on success. It is nil
	// when the run failed.
	Snapshot map[string]any

	// OutputDir is the per-item directory where artifacts were saved.
	OutputDir string

	// SavedArtifacts lists the artifact names persisted to OutputDir.
	SavedArtifacts []string

	// Kind classifies the failure when Status is failed, so reports
	// can group failures without parsing message text.
	Kind fault.Kind

	// Error holds the run-level failure detail when Status is failed.
	Error string
}

// Failed reports whether the run ended in failure.
func (r *RunResult) Failed() bool {
	return r.Status == StatusFailed
}

// BatchResult aggregates the per-item run results of one batch.
type BatchResult struct {
	// Results maps work item ID to its run result. Every submitted
	// item has exactly one entry.
	Results map[string]*RunResult

	// Succeeded and Failed count the items by final status.
	Succeeded int
	Failed    int

	// StartTime and EndTime bracket the batch.
	StartTime time.Time
	EndTime   time.Time
}

// Total returns the number of items the batch processed.
func (b *BatchResult) Total() int {
	return b.Succeeded + b.Failed
}

// SuccessRate returns the fraction of items that succeeded, or 0 for
// an empty batch.
func (b *BatchResult) SuccessRate() float64 {
	if b.Total() == 0 {
		return 0
	}
	return float64(b.Succeeded) / float64(b.Total())
}
