package pipeline

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"mrireg/internal/logging"
	"mrireg/internal/models"
	"mrireg/pkg/fault"
)

// Engine executes a fixed, ordered chain of steps against one run
// context. Steps never reorder and never run in parallel within one
// run.
type Engine struct {
	steps []Step
	log   *logging.Logger
}

// NewEngine creates an engine over the given step chain.
func NewEngine(log *logging.Logger, steps ...Step) *Engine {
	if log == nil {
		log = logging.Discard()
	}
	return &Engine{steps: steps, log: log}
}

// AddStep appends a step to the chain.
func (e *Engine) AddStep(s Step) {
	e.steps = append(e.steps, s)
	e.log.Debug("added step: %s", s.Name())
}

// Execute runs the step chain against a fresh context seeded from the
// input map.
//
// On a step failure with continueOnError false, the run aborts
// immediately: the failure is recorded, later steps never execute, and
// the error is returned. With continueOnError true every step is
// attempted, but the run status is still failed if any step failed.
// The final context snapshot is included only on success; callers must
// persist anything they want retained before the run result is
// discarded.
func (e *Engine) Execute(ctx context.Context, seed map[string]any, continueOnError bool) (*models.RunResult, error) {
	result := &models.RunResult{
		RunID:     uuid.NewString(),
		Status:    models.StatusRunning,
		StartTime: time.Now(),
	}
	run := NewContext(seed)

	var firstErr error
	for i, step := range e.steps {
		e.log.Debug("executing step %d/%d: %s", i+1, len(e.steps), step.Name())

		outcome, err := e.executeStep(ctx, step, run)
		result.Outcomes = append(result.Outcomes, outcome)

		if cerr := step.Cleanup(); cerr != nil {
			e.log.Warn("cleanup failed for step %s: %v", step.Name(), cerr)
		}

		if err != nil {
			e.log.Error("step %s failed: %v", step.Name(), err)
			if firstErr == nil {
				firstErr = err
			}
			if !continueOnError {
				break
			}
			// Continue to the next step with the context unchanged by
			// the failed step.
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	if firstErr != nil {
		result.Status = models.StatusFailed
		result.Kind = fault.KindOf(firstErr)
		result.Error = firstErr.Error()
		return result, firstErr
	}

	result.Status = models.StatusCompleted
	result.Snapshot = run.Snapshot()
	e.log.Debug("run %s completed with context keys %v", result.RunID, run.Keys())
	return result, nil
}

// executeStep validates, runs, and times one step, merging its
// produced keys into the run context on success.
func (e *Engine) executeStep(ctx context.Context, step Step, run *Context) (models.StepOutcome, error) {
	outcome := models.StepOutcome{Name: step.Name(), Status: models.StatusRunning}
	start := time.Now()

	fail := func(err error) (models.StepOutcome, error) {
		outcome.Duration = time.Since(start)
		outcome.Status = models.StatusFailed
		outcome.Kind = fault.KindOf(err)
		outcome.Error = err.Error()
		return outcome, err
	}

	for _, key := range step.Requires() {
		if !run.Has(key) {
			return fail(fault.New(fault.Validation,
				"step %s requires missing context key %q", step.Name(), key))
		}
	}

	produced, err := step.Execute(ctx, run)
	if err != nil {
		return fail(err)
	}

	for key, value := range produced {
		run.Set(key, value)
		outcome.ProducedKeys = append(outcome.ProducedKeys, key)
	}
	sort.Strings(outcome.ProducedKeys)

	outcome.Duration = time.Since(start)
	outcome.Status = models.StatusCompleted
	return outcome, nil
}
