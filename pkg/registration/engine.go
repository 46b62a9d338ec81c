// Package registration defines the narrow boundary to the external
// registration optimizer. The core never implements registration
// itself: it hands a fixed and a moving volume to an Engine and gets
// back the registered volume and the geometric transform that aligned
// it.
package registration

import (
	"context"

	"mrireg/pkg/imaging"
)

// Result is the output of one registration: the moving volume
// resampled into the fixed volume's frame, plus the transform that
// produced it.
type Result struct {
	Registered *imaging.Volume
	Transform  *imaging.Transform
}

// Engine performs cross-modality registration. Register blocks until
// the optimizer finishes or ctx expires; a timeout fails only the item
// being registered, never the batch.
type Engine interface {
	Register(ctx context.Context, fixed, moving *imaging.Volume) (*Result, error)
}
