package imaging

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// File format: 4-byte magic, uint32 version, three int64 dimensions,
// three float64 spacings, then width*height*depth little-endian
// float64 voxels.
var codecMagic = [4]byte{'M', 'R', 'V', 'L'}

const codecVersion uint32 = 1

type codecHeader struct {
	Magic    [4]byte
	Version  uint32
	Width    int64
	Height   int64
	Depth    int64
	SpacingX float64
	SpacingY float64
	SpacingZ float64
}

// ReadVolume loads a volume from the given path.
func ReadVolume(path string) (*Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open volume %s: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var hdr codecHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read volume header from %s: %w", path, err)
	}
	if hdr.Magic != codecMagic {
		return nil, fmt.Errorf("%s is not a volume file (bad magic)", path)
	}
	if hdr.Version != codecVersion {
		return nil, fmt.Errorf("unsupported volume version %d in %s", hdr.Version, path)
	}
	if hdr.Width <= 0 || hdr.Height <= 0 || hdr.Depth <= 0 {
		return nil, fmt.Errorf("invalid volume dimensions %dx%dx%d in %s",
			hdr.Width, hdr.Height, hdr.Depth, path)
	}

	v := NewVolume(int(hdr.Width), int(hdr.Height), int(hdr.Depth))
	v.Spacing.X = hdr.SpacingX
	v.Spacing.Y = hdr.SpacingY
	v.Spacing.Z = hdr.SpacingZ
	if err := binary.Read(r, binary.LittleEndian, v.Data); err != nil {
		return nil, fmt.Errorf("failed to read voxel data from %s: %w", path, err)
	}

	return v, nil
}

// WriteVolume saves a volume to the given path, creating parent
// directories as needed.
func WriteVolume(v *Volume, path string) error {
	if err := v.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create volume file %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	hdr := codecHeader{
		Magic:    codecMagic,
		Version:  codecVersion,
		Width:    int64(v.Width),
		Height:   int64(v.Height),
		Depth:    int64(v.Depth),
		SpacingX: v.Spacing.X,
		SpacingY: v.Spacing.Y,
		SpacingZ: v.Spacing.Z,
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("failed to write volume header to %s: %w", path, err)
	}
	if err := binary.Write(w, binary.LittleEndian, v.Data); err != nil {
		return fmt.Errorf("failed to write voxel data to %s: %w", path, err)
	}
	return w.Flush()
}
