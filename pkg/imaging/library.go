package imaging

import (
	"fmt"
	"math"
)

// ArrayMeta carries the shape and spacing metadata that accompanies a
// raw voxel buffer extracted from a volume.
type ArrayMeta struct {
	Width, Height, Depth int
	Spacing              struct {
		X, Y, Z float64
	}
}

// Library is the narrow image I/O and geometry interface the pipeline
// consumes. The default implementation is FileLibrary; tests may
// substitute their own.
type Library interface {
	// ReadImage loads a volume from disk.
	ReadImage(path string) (*Volume, error)

	// WriteImage saves a volume to disk.
	WriteImage(v *Volume, path string) error

	// ToArray extracts the raw voxel buffer and its metadata.
	ToArray(v *Volume) ([]float64, ArrayMeta)

	// FromArray builds a volume from a voxel buffer, copying geometry
	// from the reference volume.
	FromArray(data []float64, ref *Volume) (*Volume, error)

	// ApplyTransform resamples a volume through a transform.
	ApplyTransform(v *Volume, t *Transform) (*Volume, error)
}

// FileLibrary is the default Library backed by the package codec.
type FileLibrary struct{}

// NewFileLibrary returns the default library implementation.
func NewFileLibrary() *FileLibrary {
	return &FileLibrary{}
}

// ReadImage loads a volume from disk.
func (FileLibrary) ReadImage(path string) (*Volume, error) {
	return ReadVolume(path)
}

// WriteImage saves a volume to disk.
func (FileLibrary) WriteImage(v *Volume, path string) error {
	return WriteVolume(v, path)
}

// ToArray returns the voxel buffer of the volume together with its
// shape and spacing. The buffer is a copy; mutating it does not affect
// the source volume.
func (FileLibrary) ToArray(v *Volume) ([]float64, ArrayMeta) {
	data := make([]float64, len(v.Data))
	copy(data, v.Data)
	meta := ArrayMeta{Width: v.Width, Height: v.Height, Depth: v.Depth}
	meta.Spacing = v.Spacing
	return data, meta
}

// FromArray builds a volume from a voxel buffer, taking dimensions and
// spacing from the reference volume.
func (FileLibrary) FromArray(data []float64, ref *Volume) (*Volume, error) {
	if want := ref.Width * ref.Height * ref.Depth; len(data) != want {
		return nil, fmt.Errorf("array length %d does not match reference dimensions %dx%dx%d",
			len(data), ref.Width, ref.Height, ref.Depth)
	}
	out := &Volume{Data: make([]float64, len(data))}
	out.CopyGeometry(ref)
	copy(out.Data, data)
	return out, nil
}

// ApplyTransform resamples the volume through the given transform
// using nearest-neighbor sampling. Identity returns a copy; a
// translation shifts by the physical offsets rounded to whole voxels.
func (FileLibrary) ApplyTransform(v *Volume, t *Transform) (*Volume, error) {
	switch t.Type {
	case TransformIdentity:
		return v.Clone(), nil
	case TransformTranslation:
		if len(t.Parameters) != 3 {
			return nil, fmt.Errorf("translation transform needs 3 parameters, got %d", len(t.Parameters))
		}
		dx := int(math.Round(t.Parameters[0] / v.Spacing.X))
		dy := int(math.Round(t.Parameters[1] / v.Spacing.Y))
		dz := int(math.Round(t.Parameters[2] / v.Spacing.Z))

		out := NewVolume(v.Width, v.Height, v.Depth)
		out.Spacing = v.Spacing
		for z := 0; z < v.Depth; z++ {
			for y := 0; y < v.Height; y++ {
				for x := 0; x < v.Width; x++ {
					sx, sy, sz := x-dx, y-dy, z-dz
					if sx < 0 || sx >= v.Width || sy < 0 || sy >= v.Height || sz < 0 || sz >= v.Depth {
						continue
					}
					out.Set(x, y, z, v.At(sx, sy, sz))
				}
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported transform type %q", t.Type)
	}
}
