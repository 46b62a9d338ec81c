package pipeline

import (
	"context"
)

// Step is the uniform unit of work the engine executes. Steps are
// stateless between runs except where a shared read-only model is
// injected at construction time.
type Step interface {
	// Name identifies the step in outcomes and logs.
	Name() string

	// Requires lists the context keys that must be present before the
	// step runs. A missing key is a validation failure, treated
	// identically to an execution failure.
	Requires() []string

	// Execute performs the work and returns the artifacts to merge
	// into the run context.
	Execute(ctx context.Context, run *Context) (map[string]any, error)

	// Cleanup releases per-execution resources. It is invoked after
	// every execution regardless of outcome; a cleanup failure is
	// logged but never aborts the run.
	Cleanup() error
}

// BaseStep provides a no-op Cleanup for steps without per-execution
// resources.
type BaseStep struct{}

// Cleanup implements Step.
func (BaseStep) Cleanup() error { return nil }
