// Package standardize implements intensity standardization for MRI
// voxel arrays. Two methods are provided: Nyul landmark-based
// histogram matching and z-score normalization. Both operate on raw
// voxel buffers and treat zero-valued voxels as background.
package standardize

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Method names used in configuration and parameter files.
const (
	MethodNyul   = "nyul"
	MethodZScore = "zscore"
)

// Standardizer maps the intensities of a voxel array onto a common
// scale. Implementations are safe for concurrent read-only use after
// Train has completed.
type Standardizer interface {
	// Train learns standardization parameters from a set of voxel
	// arrays. Calling Train again replaces the previous parameters.
	Train(images [][]float64) error

	// Transform applies the learned mapping to a voxel array and
	// returns a new array of the same length.
	Transform(image []float64) ([]float64, error)

	// Trained reports whether parameters have been learned or loaded.
	Trained() bool

	// Parameters returns the serializable model parameters.
	Parameters() Parameters
}

// foreground extracts the non-background (value > 0) voxels of an
// image.
func foreground(image []float64) []float64 {
	out := make([]float64, 0, len(image))
	for _, v := range image {
		if v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// percentiles computes the given percentile values (0-100) over the
// data using linear interpolation between samples.
func percentiles(data []float64, pcts []float64) []float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)

	out := make([]float64, len(pcts))
	for i, p := range pcts {
		out[i] = stat.Quantile(p/100, stat.LinInterp, sorted, nil)
	}
	return out
}

// median computes the 50th percentile of the data.
func median(data []float64) float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.LinInterp, sorted, nil)
}
