// Package segmentation provides the anatomical region segmentation
// used ahead of ROI cropping. The default segmentor is a
// threshold-based fallback (smoothing followed by Otsu thresholding);
// model-based inference is an external collaborator behind the same
// interface.
package segmentation

import (
	"math"

	"mrireg/pkg/fault"
	"mrireg/pkg/imaging"
)

// Segmentor produces a binary mask (voxels 0 or 1) for a volume.
type Segmentor interface {
	Segment(v *imaging.Volume) (*imaging.Volume, error)
}

// ThresholdSegmentor is the fallback segmentor: a light box smoothing
// pass followed by Otsu thresholding over the non-background voxels.
type ThresholdSegmentor struct {
	// Bins is the histogram resolution for the Otsu scan.
	Bins int
}

// NewThresholdSegmentor returns a segmentor with the default histogram
// resolution.
func NewThresholdSegmentor() *ThresholdSegmentor {
	return &ThresholdSegmentor{Bins: 256}
}

// Segment computes a binary mask of the bright anatomical region.
func (s *ThresholdSegmentor) Segment(v *imaging.Volume) (*imaging.Volume, error) {
	if err := v.Validate(); err != nil {
		return nil, fault.Wrap(fault.Execution, err, "segmentation input is invalid")
	}

	smoothed := boxSmooth(v)

	threshold, ok := otsuThreshold(smoothed.Data, s.Bins)
	if !ok {
		return nil, fault.New(fault.Execution, "segmentation found no non-background voxels")
	}

	mask := imaging.NewVolume(v.Width, v.Height, v.Depth)
	mask.Spacing = v.Spacing
	for i, val := range smoothed.Data {
		if val > threshold {
			mask.Data[i] = 1
		}
	}
	return mask, nil
}

// boxSmooth applies a 3x3x3 mean filter, skipping background voxels so
// the smoothing does not bleed intensity into the background.
func boxSmooth(v *imaging.Volume) *imaging.Volume {
	out := imaging.NewVolume(v.Width, v.Height, v.Depth)
	out.Spacing = v.Spacing
	for z := 0; z < v.Depth; z++ {
		for y := 0; y < v.Height; y++ {
			for x := 0; x < v.Width; x++ {
				if v.At(x, y, z) == 0 {
					continue
				}
				var sum float64
				var count int
				for dz := -1; dz <= 1; dz++ {
					for dy := -1; dy <= 1; dy++ {
						for dx := -1; dx <= 1; dx++ {
							nx, ny, nz := x+dx, y+dy, z+dz
							if nx < 0 || nx >= v.Width || ny < 0 || ny >= v.Height || nz < 0 || nz >= v.Depth {
								continue
							}
							sum += v.At(nx, ny, nz)
							count++
						}
					}
				}
				out.Set(x, y, z, sum/float64(count))
			}
		}
	}
	return out
}

// otsuThreshold finds the threshold over the non-background voxels
// that maximizes the between-class variance. Returns false when the
// data holds no non-background voxels.
func otsuThreshold(data []float64, bins int) (float64, bool) {
	minV, maxV := math.Inf(1), math.Inf(-1)
	var total int
	for _, v := range data {
		if v <= 0 {
			continue
		}
		total++
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if total == 0 {
		return 0, false
	}
	if maxV <= minV {
		return minV, true
	}

	hist := make([]int, bins)
	width := (maxV - minV) / float64(bins)
	for _, v := range data {
		if v <= 0 {
			continue
		}
		b := int((v - minV) / width)
		if b >= bins {
			b = bins - 1
		}
		hist[b]++
	}

	// Cumulative sums for the between-class variance scan.
	var sumAll float64
	for b, c := range hist {
		sumAll += float64(b) * float64(c)
	}

	var best float64
	bestBin := 0
	var wB int
	var sumB float64
	for b := 0; b < bins; b++ {
		wB += hist[b]
		if wB == 0 {
			continue
		}
		wF := total - wB
		if wF == 0 {
			break
		}
		sumB += float64(b) * float64(hist[b])
		mB := sumB / float64(wB)
		mF := (sumAll - sumB) / float64(wF)
		between := float64(wB) * float64(wF) * (mB - mF) * (mB - mF)
		if between > best {
			best = between
			bestBin = b
		}
	}

	return minV + (float64(bestBin)+0.5)*width, true
}
