// Package report folds a batch result into durable reports: a summary
// JSON, a per-item results CSV, and an error log restricted to failed
// items. Aggregation performs no recomputation and cannot fail the
// batch; writing the files is the only fallible part.
package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"mrireg/internal/models"
	"mrireg/pkg/fault"
)

// Filenames written under the reports directory.
const (
	ReportsDirName  = "reports"
	SummaryFilename = "batch_summary.json"
	ResultsFilename = "batch_results.csv"
	ErrorsFilename  = "error_log.csv"
)

// Summary is the machine-readable batch summary.
type Summary struct {
	Timestamp     string            `json:"timestamp"`
	TotalItems    int               `json:"total_items"`
	Succeeded     int               `json:"succeeded"`
	Failed        int               `json:"failed"`
	SuccessRate   float64           `json:"success_rate"`
	BatchDuration string            `json:"batch_duration"`
	Configuration map[string]string `json:"configuration"`
}

// Paths lists the report files an aggregation produced.
type Paths struct {
	Summary string
	Results string
	Errors  string
}

// Aggregator writes batch reports under OutputDir/reports.
type Aggregator struct {
	// OutputDir is the batch output root.
	OutputDir string

	// Configuration is echoed verbatim into the summary so a report
	// is self-describing.
	Configuration map[string]string
}

// Write produces all reports for the batch. The error log is written
// only when at least one item failed.
func (a *Aggregator) Write(batch *models.BatchResult) (*Paths, error) {
	reportsDir := filepath.Join(a.OutputDir, ReportsDirName)
	if err := os.MkdirAll(reportsDir, 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create reports directory")
	}

	paths := &Paths{
		Summary: filepath.Join(reportsDir, SummaryFilename),
		Results: filepath.Join(reportsDir, ResultsFilename),
	}

	if err := a.writeSummary(batch, paths.Summary); err != nil {
		return nil, err
	}
	if err := a.writeResults(batch, paths.Results); err != nil {
		return nil, err
	}
	if batch.Failed > 0 {
		paths.Errors = filepath.Join(reportsDir, ErrorsFilename)
		if err := a.writeErrors(batch, paths.Errors); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

func (a *Aggregator) writeSummary(batch *models.BatchResult, path string) error {
	summary := Summary{
		Timestamp:     time.Now().Format(time.RFC3339),
		TotalItems:    batch.Total(),
		Succeeded:     batch.Succeeded,
		Failed:        batch.Failed,
		SuccessRate:   batch.SuccessRate(),
		BatchDuration: batch.EndTime.Sub(batch.StartTime).Round(time.Millisecond).String(),
		Configuration: a.Configuration,
	}

	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal batch summary")
	}
	return errors.Wrap(os.WriteFile(path, data, 0644), "unable to write batch summary")
}

func (a *Aggregator) writeResults(batch *models.BatchResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create results CSV")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ItemID", "Status", "Duration", "SavedArtifacts", "Error"}); err != nil {
		return errors.Wrap(err, "unable to write results CSV header")
	}

	for _, id := range sortedIDs(batch) {
		r := batch.Results[id]
		row := []string{
			id,
			string(r.Status),
			fmt.Sprintf("%.3f", r.Duration.Seconds()),
			strings.Join(r.SavedArtifacts, ";"),
			r.Error,
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "unable to write results CSV row")
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "unable to flush results CSV")
}

func (a *Aggregator) writeErrors(batch *models.BatchResult, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "unable to create error log")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"ItemID", "FailedStep", "Kind", "Error"}); err != nil {
		return errors.Wrap(err, "unable to write error log header")
	}

	for _, id := range sortedIDs(batch) {
		r := batch.Results[id]
		if !r.Failed() {
			continue
		}
		if err := w.Write([]string{id, failedStep(r), failureKind(r), r.Error}); err != nil {
			return errors.Wrap(err, "unable to write error log row")
		}
	}

	w.Flush()
	return errors.Wrap(w.Error(), "unable to flush error log")
}

// failureKind returns the machine-readable classification of a failed
// run, falling back to the first failed step's kind when the run-level
// one is missing.
func failureKind(r *models.RunResult) string {
	if r.Kind != "" {
		return string(r.Kind)
	}
	for _, o := range r.Outcomes {
		if o.Status == models.StatusFailed && o.Kind != "" {
			return string(o.Kind)
		}
	}
	return string(fault.Execution)
}

// failedStep names the first failed step of a run, or empty when the
// run failed before any step executed.
func failedStep(r *models.RunResult) string {
	for _, o := range r.Outcomes {
		if o.Status == models.StatusFailed {
			return o.Name
		}
	}
	return ""
}

func sortedIDs(batch *models.BatchResult) []string {
	ids := make([]string, 0, len(batch.Results))
	for id := range batch.Results {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
