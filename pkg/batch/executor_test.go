package batch

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrireg/internal/models"
	"mrireg/pkg/fault"
)

func makeItems(n int) []models.WorkItem {
	items := make([]models.WorkItem, n)
	for i := range items {
		items[i] = models.WorkItem{ID: fmt.Sprintf("patient%02d", i)}
	}
	return items
}

func okResult(item models.WorkItem) *models.RunResult {
	return &models.RunResult{ItemID: item.ID, Status: models.StatusCompleted}
}

func TestExecutorBoundsConcurrency(t *testing.T) {
	const workers = 3
	var inFlight, peak int64

	process := func(ctx context.Context, item models.WorkItem) *models.RunResult {
		n := atomic.AddInt64(&inFlight, 1)
		for {
			p := atomic.LoadInt64(&peak)
			if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return okResult(item)
	}

	exec := NewExecutor(workers, nil)
	batch := exec.Run(context.Background(), makeItems(10), process)

	assert.Equal(t, 10, batch.Total())
	assert.Equal(t, 10, batch.Succeeded)
	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(workers))
}

func TestExecutorOneResultPerItem(t *testing.T) {
	var mu sync.Mutex
	calls := map[string]int{}

	process := func(ctx context.Context, item models.WorkItem) *models.RunResult {
		mu.Lock()
		calls[item.ID]++
		mu.Unlock()
		return okResult(item)
	}

	items := makeItems(8)
	batch := NewExecutor(4, nil).Run(context.Background(), items, process)

	require.Len(t, batch.Results, len(items))
	for _, item := range items {
		assert.Equal(t, 1, calls[item.ID])
		require.Contains(t, batch.Results, item.ID)
		assert.Equal(t, item.ID, batch.Results[item.ID].ItemID)
	}
}

func TestExecutorIsolatesFailures(t *testing.T) {
	process := func(ctx context.Context, item models.WorkItem) *models.RunResult {
		if item.ID == "patient05" {
			return &models.RunResult{ItemID: item.ID, Status: models.StatusFailed, Error: "bad input"}
		}
		return okResult(item)
	}

	batch := NewExecutor(3, nil).Run(context.Background(), makeItems(10), process)

	assert.Equal(t, 9, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, models.StatusFailed, batch.Results["patient05"].Status)
	assert.Equal(t, models.StatusCompleted, batch.Results["patient06"].Status)
	assert.InDelta(t, 0.9, batch.SuccessRate(), 1e-9)
}

func TestExecutorRecoversFromPanic(t *testing.T) {
	process := func(ctx context.Context, item models.WorkItem) *models.RunResult {
		if item.ID == "patient02" {
			panic("corrupt volume")
		}
		return okResult(item)
	}

	batch := NewExecutor(2, nil).Run(context.Background(), makeItems(4), process)

	require.Len(t, batch.Results, 4)
	failed := batch.Results["patient02"]
	assert.Equal(t, models.StatusFailed, failed.Status)
	assert.Equal(t, fault.Execution, failed.Kind)
	assert.Contains(t, failed.Error, "corrupt volume")
	assert.Equal(t, 3, batch.Succeeded)
}

func TestExecutorNilResultBecomesFailure(t *testing.T) {
	process := func(ctx context.Context, item models.WorkItem) *models.RunResult {
		return nil
	}

	batch := NewExecutor(1, nil).Run(context.Background(), makeItems(1), process)
	result := batch.Results["patient00"]
	require.NotNil(t, result)
	assert.Equal(t, models.StatusFailed, result.Status)
}

func TestExecutorSequentialOrder(t *testing.T) {
	var order []string
	process := func(ctx context.Context, item models.WorkItem) *models.RunResult {
		order = append(order, item.ID)
		return okResult(item)
	}

	items := makeItems(5)
	NewExecutor(1, nil).Run(context.Background(), items, process)

	want := make([]string, len(items))
	for i, item := range items {
		want[i] = item.ID
	}
	assert.Equal(t, want, order)
}

func TestExecutorClampsWorkers(t *testing.T) {
	exec := NewExecutor(0, nil)
	assert.Equal(t, 1, exec.Workers)
}

func TestExecutorEmptyBatch(t *testing.T) {
	batch := NewExecutor(4, nil).Run(context.Background(), nil, func(ctx context.Context, item models.WorkItem) *models.RunResult {
		t.Fatal("process must not be called")
		return nil
	})
	assert.Equal(t, 0, batch.Total())
	assert.Equal(t, 0.0, batch.SuccessRate())
}
