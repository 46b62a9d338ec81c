// Package pipeline implements the sequential step execution engine:
// a per-run context of named artifacts, a uniform step contract, and
// an engine that runs a fixed step chain with per-step error
// isolation, timing, and outcome recording.
package pipeline

import (
	"sort"

	"mrireg/pkg/imaging"
)

// Well-known context keys produced and consumed by the built-in steps.
const (
	KeyFixedImage         = "fixed_image"
	KeyMovingImage        = "moving_image"
	KeyFixedStandardized  = "fixed_standardized"
	KeyMovingStandardized = "moving_standardized"
	KeySegmentationMask   = "segmentation_mask"
	KeyROIMask            = "roi_mask"
	KeyFixedROI           = "fixed_roi"
	KeyMovingROI          = "moving_roi"
	KeyRegisteredImage    = "registered_image"
	KeyTransform          = "transform"
)

// Context is the mutable artifact map owned by exactly one pipeline
// run. Steps read and add keys; keys are never removed within a run.
// It is not safe for concurrent use - each run owns its context
// exclusively.
type Context struct {
	values map[string]any
}

// NewContext creates a context seeded with a copy of the input map.
func NewContext(seed map[string]any) *Context {
	values := make(map[string]any, len(seed))
	for k, v := range seed {
		values[k] = v
	}
	return &Context{values: values}
}

// Get returns the artifact stored under key.
func (c *Context) Get(key string) (any, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether the key is present.
func (c *Context) Has(key string) bool {
	_, ok := c.values[key]
	return ok
}

// Set stores an artifact under key. Existing keys may be replaced but
// never removed.
func (c *Context) Set(key string, value any) {
	c.values[key] = value
}

// Keys returns the present keys in sorted order.
func (c *Context) Keys() []string {
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot returns a shallow copy of the context contents.
func (c *Context) Snapshot() map[string]any {
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Volume returns the first of the given keys that holds a volume.
// Steps use this to prefer refined artifacts (ROI, standardized) over
// raw inputs.
func (c *Context) Volume(keys ...string) (*imaging.Volume, bool) {
	for _, key := range keys {
		if v, ok := c.values[key]; ok {
			if vol, ok := v.(*imaging.Volume); ok {
				return vol, true
			}
		}
	}
	return nil, false
}
