package imaging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Transform types understood by the default library. The external
// registration engine may produce either.
const (
	TransformIdentity    = "identity"
	TransformTranslation = "translation"
)

// Transform describes a geometric transform produced by registration.
// Parameters are interpreted according to Type: a translation carries
// three physical offsets (x, y, z) in mm; an identity carries none.
type Transform struct {
	Type       string    `json:"type"`
	Parameters []float64 `json:"parameters"`
}

// SaveTransform writes the transform as JSON.
func SaveTransform(t *Transform, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create transform directory: %w", err)
	}
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transform: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write transform file %s: %w", path, err)
	}
	return nil
}

// LoadTransform reads a transform JSON file.
func LoadTransform(path string) (*Transform, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read transform file %s: %w", path, err)
	}
	t := &Transform{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse transform file %s: %w", path, err)
	}
	return t, nil
}
