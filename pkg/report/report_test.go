package report

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrireg/internal/models"
	"mrireg/pkg/fault"
)

func sampleBatch() *models.BatchResult {
	start := time.Now().Add(-90 * time.Second)
	return &models.BatchResult{
		Results: map[string]*models.RunResult{
			"patient02": {
				ItemID:   "patient02",
				Status:   models.StatusFailed,
				Duration: 3 * time.Second,
				Outcomes: []models.StepOutcome{
					{Name: "standardize", Status: models.StatusCompleted},
					{Name: "register", Status: models.StatusFailed, Kind: fault.Execution, Error: "optimizer diverged"},
				},
				Kind:  fault.Execution,
				Error: "optimizer diverged",
			},
			"patient01": {
				ItemID:         "patient01",
				Status:         models.StatusCompleted,
				Duration:       12 * time.Second,
				SavedArtifacts: []string{"fixed_standardized.mrv", "registered_image.mrv"},
			},
			"patient03": {
				ItemID:   "patient03",
				Status:   models.StatusCompleted,
				Duration: 8 * time.Second,
			},
		},
		Succeeded: 2,
		Failed:    1,
		StartTime: start,
		EndTime:   start.Add(90 * time.Second),
	}
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestAggregatorWritesAllReports(t *testing.T) {
	outDir := t.TempDir()
	agg := &Aggregator{
		OutputDir:     outDir,
		Configuration: map[string]string{"standardization.method": "nyul", "processing.workers": "4"},
	}

	paths, err := agg.Write(sampleBatch())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "reports", SummaryFilename), paths.Summary)

	var summary Summary
	data, err := os.ReadFile(paths.Summary)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 3, summary.TotalItems)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)
	assert.InDelta(t, 2.0/3.0, summary.SuccessRate, 1e-9)
	assert.Equal(t, "1m30s", summary.BatchDuration)
	assert.Equal(t, "nyul", summary.Configuration["standardization.method"])

	ts, err := time.Parse(time.RFC3339, summary.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ts, time.Minute)
}

func TestResultsCSVRows(t *testing.T) {
	agg := &Aggregator{OutputDir: t.TempDir()}
	paths, err := agg.Write(sampleBatch())
	require.NoError(t, err)

	rows := readCSV(t, paths.Results)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"ItemID", "Status", "Duration", "SavedArtifacts", "Error"}, rows[0])

	// Rows come out in sorted item order.
	assert.Equal(t, "patient01", rows[1][0])
	assert.Equal(t, "completed", rows[1][1])
	assert.Equal(t, "12.000", rows[1][2])
	assert.Equal(t, "fixed_standardized.mrv;registered_image.mrv", rows[1][3])
	assert.Empty(t, rows[1][4])

	assert.Equal(t, "patient02", rows[2][0])
	assert.Equal(t, "failed", rows[2][1])
	assert.Equal(t, "optimizer diverged", rows[2][4])
}

func TestErrorLogOnlyListsFailures(t *testing.T) {
	agg := &Aggregator{OutputDir: t.TempDir()}
	paths, err := agg.Write(sampleBatch())
	require.NoError(t, err)
	require.NotEmpty(t, paths.Errors)

	rows := readCSV(t, paths.Errors)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"ItemID", "FailedStep", "Kind", "Error"}, rows[0])
	assert.Equal(t, []string{"patient02", "register", "execution", "optimizer diverged"}, rows[1])
}

func TestErrorLogKindFallsBackToStepKind(t *testing.T) {
	batch := sampleBatch()
	batch.Results["patient02"].Kind = ""
	batch.Results["patient02"].Outcomes[1].Kind = fault.Validation

	agg := &Aggregator{OutputDir: t.TempDir()}
	paths, err := agg.Write(batch)
	require.NoError(t, err)

	rows := readCSV(t, paths.Errors)
	require.Len(t, rows, 2)
	assert.Equal(t, "validation", rows[1][2])
}

func TestErrorLogSkippedWhenAllSucceed(t *testing.T) {
	batch := sampleBatch()
	batch.Results["patient02"].Status = models.StatusCompleted
	batch.Succeeded, batch.Failed = 3, 0

	agg := &Aggregator{OutputDir: t.TempDir()}
	paths, err := agg.Write(batch)
	require.NoError(t, err)
	assert.Empty(t, paths.Errors)

	_, statErr := os.Stat(filepath.Join(agg.OutputDir, ReportsDirName, ErrorsFilename))
	assert.True(t, os.IsNotExist(statErr))
}
