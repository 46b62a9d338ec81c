package standardize

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"mrireg/pkg/fault"
)

// madScale converts a median absolute deviation into a
// standard-deviation-consistent scale estimate.
const madScale = 1.4826

// epsilon guards the division when the scale estimate is near zero.
const epsilon = 1e-8

// ZScore implements z-score normalization over non-background voxels.
// In robust mode the center/scale pair is median and 1.4826 x MAD
// instead of mean and standard deviation.
//
// Unlike Nyul, an untrained ZScore is still usable: Transform falls
// back to statistics computed from the single input image. This is the
// intended per-image mode, not an error path.
type ZScore struct {
	robust  bool
	center  float64
	scale   float64
	trained bool
}

// NewZScore creates a z-score standardizer. When robust is set,
// median/MAD statistics are used instead of mean/stddev.
func NewZScore(robust bool) *ZScore {
	return &ZScore{robust: robust}
}

// Train pools the non-background voxels of all training images and
// stores the global center and scale. Re-training replaces any
// previously learned statistics.
func (z *ZScore) Train(images [][]float64) error {
	var pooled []float64
	for _, img := range images {
		pooled = append(pooled, foreground(img)...)
	}
	if len(pooled) == 0 {
		return fault.New(fault.Execution, "z-score training requires non-background voxels")
	}

	z.center, z.scale = z.statistics(pooled)
	z.trained = true
	return nil
}

// Transform normalizes the image. Trained models use the stored global
// statistics; untrained ones compute statistics from this image alone.
func (z *ZScore) Transform(image []float64) ([]float64, error) {
	center, scale := z.center, z.scale
	if !z.trained {
		fg := foreground(image)
		if len(fg) == 0 {
			return make([]float64, len(image)), nil
		}
		center, scale = z.statistics(fg)
	}

	out := make([]float64, len(image))
	for i, v := range image {
		if v > 0 {
			out[i] = (v - center) / (scale + epsilon)
		}
	}
	return out, nil
}

// statistics returns the center/scale pair over the given values
// according to the robust flag.
func (z *ZScore) statistics(values []float64) (center, scale float64) {
	if z.robust {
		center = median(values)
		dev := make([]float64, len(values))
		for i, v := range values {
			dev[i] = math.Abs(v - center)
		}
		scale = median(dev) * madScale
		return center, scale
	}
	center = stat.Mean(values, nil)
	scale = stat.PopStdDev(values, nil)
	return center, scale
}

// Trained reports whether global statistics have been learned.
func (z *ZScore) Trained() bool {
	return z.trained
}

// Parameters returns the trained model in serializable form.
func (z *ZScore) Parameters() Parameters {
	return Parameters{
		Method: MethodZScore,
		Center: z.center,
		Scale:  z.scale,
		Robust: z.robust,
	}
}

// Restore loads previously saved parameters into the model, marking it
// as trained.
func (z *ZScore) Restore(p Parameters) error {
	if p.Method != MethodZScore {
		return fault.New(fault.Configuration, "parameters are for method %q, not zscore", p.Method)
	}
	z.center = p.Center
	z.scale = p.Scale
	z.robust = p.Robust
	z.trained = true
	return nil
}
