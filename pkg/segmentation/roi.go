package segmentation

import (
	"mrireg/pkg/fault"
	"mrireg/pkg/imaging"
)

// BoundingBox returns the start coordinates and size of the smallest
// box containing all non-zero mask voxels, expanded by padding voxels
// on every side and clamped to the volume bounds. It fails when the
// mask is empty.
func BoundingBox(mask *imaging.Volume, padding int) (start, size [3]int, err error) {
	minC := [3]int{mask.Width, mask.Height, mask.Depth}
	maxC := [3]int{-1, -1, -1}

	for z := 0; z < mask.Depth; z++ {
		for y := 0; y < mask.Height; y++ {
			for x := 0; x < mask.Width; x++ {
				if mask.At(x, y, z) == 0 {
					continue
				}
				c := [3]int{x, y, z}
				for i := 0; i < 3; i++ {
					if c[i] < minC[i] {
						minC[i] = c[i]
					}
					if c[i] > maxC[i] {
						maxC[i] = c[i]
					}
				}
			}
		}
	}

	if maxC[0] < 0 {
		return start, size, fault.New(fault.Execution, "cannot compute bounding box of an empty mask")
	}

	dims := [3]int{mask.Width, mask.Height, mask.Depth}
	for i := 0; i < 3; i++ {
		start[i] = minC[i] - padding
		if start[i] < 0 {
			start[i] = 0
		}
		end := maxC[i] + padding + 1
		if end > dims[i] {
			end = dims[i]
		}
		size[i] = end - start[i]
	}
	return start, size, nil
}

// Crop extracts the sub-volume at start with the given size. The
// caller must ensure the region lies within the volume.
func Crop(v *imaging.Volume, start, size [3]int) *imaging.Volume {
	out := imaging.NewVolume(size[0], size[1], size[2])
	out.Spacing = v.Spacing
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				out.Set(x, y, z, v.At(start[0]+x, start[1]+y, start[2]+z))
			}
		}
	}
	return out
}

// ExtractROI crops the mask and each image to the mask's padded
// bounding box. Images must share the mask's dimensions.
func ExtractROI(mask *imaging.Volume, padding int, images ...*imaging.Volume) (roiMask *imaging.Volume, roiImages []*imaging.Volume, err error) {
	start, size, err := BoundingBox(mask, padding)
	if err != nil {
		return nil, nil, err
	}
	roiImages = make([]*imaging.Volume, len(images))
	for i, img := range images {
		roiImages[i] = Crop(img, start, size)
	}
	return Crop(mask, start, size), roiImages, nil
}
