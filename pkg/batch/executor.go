// Package batch fans per-patient pipeline runs out across a bounded
// worker pool. Every submitted item yields exactly one outcome;
// failures are isolated per item and never abort siblings or the
// pool.
package batch

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"mrireg/internal/logging"
	"mrireg/internal/models"
	"mrireg/pkg/fault"
)

// ProcessFunc processes one work item and returns its run result.
// Implementations report failures through the result status, not
// through panics; the executor still converts a panic into a failure
// record as a last line of defense.
type ProcessFunc func(ctx context.Context, item models.WorkItem) *models.RunResult

// Executor runs work items with at most Workers concurrently in
// flight.
type Executor struct {
	// Workers bounds the number of in-flight items. Workers == 1
	// means strict in-order sequential processing.
	Workers int

	// Log receives progress output.
	Log *logging.Logger
}

// NewExecutor creates an executor with the given worker bound.
func NewExecutor(workers int, log *logging.Logger) *Executor {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logging.Discard()
	}
	return &Executor{Workers: workers, Log: log}
}

// Run processes every item and returns the full batch accounting. It
// never returns early on per-item failure; results are collected in
// completion order, so callers must not assume any ordering beyond
// one result per item.
func (e *Executor) Run(ctx context.Context, items []models.WorkItem, process ProcessFunc) *models.BatchResult {
	batch := &models.BatchResult{
		Results:   make(map[string]*models.RunResult, len(items)),
		StartTime: time.Now(),
	}

	if e.Workers == 1 || len(items) <= 1 {
		e.runSequential(ctx, items, process, batch)
	} else {
		e.runConcurrent(ctx, items, process, batch)
	}

	batch.EndTime = time.Now()
	e.Log.Info("batch complete: %d/%d succeeded (%.1f%%)",
		batch.Succeeded, batch.Total(), batch.SuccessRate()*100)
	return batch
}

func (e *Executor) runSequential(ctx context.Context, items []models.WorkItem, process ProcessFunc, batch *models.BatchResult) {
	for i, item := range items {
		e.Log.Info("[%d/%d] processing %s", i+1, len(items), item.ID)
		e.record(batch, e.processSafely(ctx, item, process))
	}
}

func (e *Executor) runConcurrent(ctx context.Context, items []models.WorkItem, process ProcessFunc, batch *models.BatchResult) {
	e.Log.Info("processing %d items with up to %d workers", len(items), e.Workers)

	results := make(chan *models.RunResult, len(items))
	grp, grpCtx := errgroup.WithContext(ctx)
	grp.SetLimit(e.Workers)

	for _, item := range items {
		item := item
		grp.Go(func() error {
			results <- e.processSafely(grpCtx, item, process)
			return nil
		})
	}

	// Workers never return errors; Wait only serves as the barrier.
	_ = grp.Wait()
	close(results)

	completed := 0
	for result := range results {
		completed++
		e.Log.Debug("[%d/%d] finished %s: %s", completed, len(items), result.ItemID, result.Status)
		e.record(batch, result)
	}
}

// processSafely invokes process and converts a panic into a failure
// record for that item alone.
func (e *Executor) processSafely(ctx context.Context, item models.WorkItem, process ProcessFunc) (result *models.RunResult) {
	defer func() {
		if r := recover(); r != nil {
			err := fault.New(fault.Execution, "panic while processing %s: %v", item.ID, r)
			e.Log.Error("%v", err)
			result = &models.RunResult{
				ItemID: item.ID,
				Status: models.StatusFailed,
				Kind:   fault.Execution,
				Error:  err.Error(),
			}
		}
	}()

	result = process(ctx, item)
	if result == nil {
		result = &models.RunResult{
			ItemID: item.ID,
			Status: models.StatusFailed,
			Kind:   fault.Execution,
			Error:  fmt.Sprintf("processing %s returned no result", item.ID),
		}
	}
	return result
}

func (e *Executor) record(batch *models.BatchResult, result *models.RunResult) {
	batch.Results[result.ItemID] = result
	if result.Failed() {
		batch.Failed++
	} else {
		batch.Succeeded++
	}
}
