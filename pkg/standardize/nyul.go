package standardize

import (
	"mrireg/pkg/fault"
)

// Default Nyul configuration: decile landmarks mapped onto a 0-100
// standard scale.
var defaultLandmarkPercentiles = []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

const (
	defaultScaleMin = 0.0
	defaultScaleMax = 100.0
)

// Nyul implements landmark-based histogram matching. Training learns a
// standard landmark vector; Transform maps each image piecewise
// linearly between its own landmarks and the standard ones.
//
// The standard landmark vector is a deliberate simplification of the
// published method: the first and last entries are pinned to the scale
// bounds and the interior entries are re-spaced evenly between them,
// overriding the averaged percentile intensities.
type Nyul struct {
	percentiles []float64
	scaleMin    float64
	scaleMax    float64

	standard []float64
	trained  bool
}

// NyulOption configures a Nyul standardizer.
type NyulOption func(*Nyul)

// WithLandmarkPercentiles overrides the default decile landmarks. The
// list must be ordered and include 0 and 100.
func WithLandmarkPercentiles(pcts []float64) NyulOption {
	return func(n *Nyul) {
		n.percentiles = pcts
	}
}

// WithStandardScale overrides the target intensity range.
func WithStandardScale(min, max float64) NyulOption {
	return func(n *Nyul) {
		n.scaleMin = min
		n.scaleMax = max
	}
}

// NewNyul creates an untrained Nyul standardizer.
func NewNyul(opts ...NyulOption) *Nyul {
	n := &Nyul{
		percentiles: defaultLandmarkPercentiles,
		scaleMin:    defaultScaleMin,
		scaleMax:    defaultScaleMax,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Train learns the standard landmark vector from a set of training
// images. Re-training replaces any previously learned parameters.
func (n *Nyul) Train(images [][]float64) error {
	if len(images) == 0 {
		return fault.New(fault.Execution, "nyul training requires at least one image")
	}

	numLandmarks := len(n.percentiles)
	sum := make([]float64, numLandmarks)
	for i, img := range images {
		fg := foreground(img)
		if len(fg) == 0 {
			return fault.New(fault.Execution, "training image %d has no non-background voxels", i)
		}
		landmarks := percentiles(fg, n.percentiles)
		for j, v := range landmarks {
			sum[j] += v
		}
	}

	standard := make([]float64, numLandmarks)
	for j := range standard {
		standard[j] = sum[j] / float64(len(images))
	}

	// Pin the extremes to the standard scale and re-space the interior
	// landmarks evenly between them.
	standard[0] = n.scaleMin
	standard[numLandmarks-1] = n.scaleMax
	for j := 1; j < numLandmarks-1; j++ {
		frac := float64(j) / float64(numLandmarks-1)
		standard[j] = n.scaleMin + (n.scaleMax-n.scaleMin)*frac
	}

	n.standard = standard
	n.trained = true
	return nil
}

// Transform maps the image intensities onto the standard scale. It
// fails if the model has not been trained.
//
// Voxels whose value falls in a degenerate source interval (upper ==
// lower) are left at 0; this matches the behavior of the reference
// implementation and is covered by the background rule below for the
// common case of a flat low tail.
func (n *Nyul) Transform(image []float64) ([]float64, error) {
	if !n.trained {
		return nil, fault.New(fault.Execution, "nyul standardizer is not trained")
	}

	fg := foreground(image)
	if len(fg) == 0 {
		// Nothing but background: the output is all zeros.
		return make([]float64, len(image)), nil
	}
	landmarks := percentiles(fg, n.percentiles)

	out := make([]float64, len(image))
	for i := 0; i < len(landmarks)-1; i++ {
		lower, upper := landmarks[i], landmarks[i+1]
		if upper <= lower {
			continue
		}
		slope := (n.standard[i+1] - n.standard[i]) / (upper - lower)
		for j, v := range image {
			if v >= lower && v < upper {
				out[j] = n.standard[i] + slope*(v-lower)
			}
		}
	}

	top := landmarks[len(landmarks)-1]
	topStd := n.standard[len(n.standard)-1]
	for j, v := range image {
		if v >= top {
			out[j] = topStd
		}
	}

	// Background stays background, overriding any piecewise result.
	for j, v := range image {
		if v == 0 {
			out[j] = 0
		}
	}

	return out, nil
}

// Trained reports whether the standard landmarks have been learned.
func (n *Nyul) Trained() bool {
	return n.trained
}

// Parameters returns the trained model in serializable form.
func (n *Nyul) Parameters() Parameters {
	p := Parameters{Method: MethodNyul}
	p.LandmarkPercentiles = append(p.LandmarkPercentiles, n.percentiles...)
	p.StandardLandmarks = append(p.StandardLandmarks, n.standard...)
	return p
}

// Restore loads previously saved parameters into the model, marking it
// as trained.
func (n *Nyul) Restore(p Parameters) error {
	if p.Method != MethodNyul {
		return fault.New(fault.Configuration, "parameters are for method %q, not nyul", p.Method)
	}
	if len(p.LandmarkPercentiles) < 2 || len(p.LandmarkPercentiles) != len(p.StandardLandmarks) {
		return fault.New(fault.Configuration, "nyul parameters are malformed: %d percentiles, %d landmarks",
			len(p.LandmarkPercentiles), len(p.StandardLandmarks))
	}
	n.percentiles = append([]float64(nil), p.LandmarkPercentiles...)
	n.standard = append([]float64(nil), p.StandardLandmarks...)
	n.scaleMin = n.standard[0]
	n.scaleMax = n.standard[len(n.standard)-1]
	n.trained = true
	return nil
}
