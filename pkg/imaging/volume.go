// Package imaging provides the image library boundary used by the
// pipeline: a volumetric image type, a file codec, geometric
// transforms, and array conversion helpers. The pipeline core only
// consumes this boundary; it never implements resampling or
// interpolation itself beyond what the default library offers.
package imaging

import (
	"fmt"
)

// Volume represents a 3D volumetric image.
type Volume struct {
	// Data is the voxel data as a 1D array in row-major order:
	// index = z*Width*Height + y*Width + x.
	Data []float64

	// Width, Height, Depth are the volume dimensions in voxels.
	Width  int
	Height int
	Depth  int

	// Spacing is the physical size of each voxel in mm.
	Spacing struct {
		X, Y, Z float64
	}
}

// NewVolume allocates a zero-filled volume with unit spacing.
func NewVolume(width, height, depth int) *Volume {
	v := &Volume{
		Data:   make([]float64, width*height*depth),
		Width:  width,
		Height: height,
		Depth:  depth,
	}
	v.Spacing.X, v.Spacing.Y, v.Spacing.Z = 1, 1, 1
	return v
}

// Validate checks that the data length matches the declared dimensions.
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("invalid volume dimensions %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if want := v.Width * v.Height * v.Depth; len(v.Data) != want {
		return fmt.Errorf("volume data length %d does not match dimensions %dx%dx%d (want %d)",
			len(v.Data), v.Width, v.Height, v.Depth, want)
	}
	return nil
}

// Index returns the flat data index for the given voxel coordinates.
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// At returns the voxel value at the given coordinates.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Index(x, y, z)]
}

// Set writes the voxel value at the given coordinates.
func (v *Volume) Set(x, y, z int, val float64) {
	v.Data[v.Index(x, y, z)] = val
}

// Clone returns a deep copy of the volume.
func (v *Volume) Clone() *Volume {
	out := &Volume{
		Data:   make([]float64, len(v.Data)),
		Width:  v.Width,
		Height: v.Height,
		Depth:  v.Depth,
	}
	out.Spacing = v.Spacing
	copy(out.Data, v.Data)
	return out
}

// CopyGeometry copies dimensions and spacing from ref without touching
// the voxel data.
func (v *Volume) CopyGeometry(ref *Volume) {
	v.Width = ref.Width
	v.Height = ref.Height
	v.Depth = ref.Depth
	v.Spacing = ref.Spacing
}
