package standardize

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"mrireg/pkg/fault"
)

// Parameters holds the trained values of a standardizer in a form that
// round-trips exactly through JSON.
type Parameters struct {
	// Method is "nyul" or "zscore".
	Method string `json:"method"`

	// LandmarkPercentiles and StandardLandmarks carry the Nyul model:
	// the percentile positions and the target intensity each maps to.
	LandmarkPercentiles []float64 `json:"landmark_percentiles,omitempty"`
	StandardLandmarks   []float64 `json:"standard_landmarks,omitempty"`

	// Center and Scale carry the z-score model (mean/std or
	// median/MAD-based scale when Robust is set).
	Center float64 `json:"center,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
	Robust bool    `json:"robust,omitempty"`
}

// SaveParameters writes model parameters as JSON.
func SaveParameters(p Parameters, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(err, "unable to create parameter directory")
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to marshal standardizer parameters")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "unable to write parameter file %s", path)
	}
	return nil
}

// LoadParameters reads model parameters from a JSON file.
func LoadParameters(path string) (Parameters, error) {
	var p Parameters
	data, err := os.ReadFile(path)
	if err != nil {
		return p, errors.Wrapf(err, "unable to read parameter file %s", path)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, errors.Wrapf(err, "unable to parse parameter file %s", path)
	}
	return p, nil
}

// FromParameters reconstructs a trained standardizer from saved
// parameters.
func FromParameters(p Parameters) (Standardizer, error) {
	switch p.Method {
	case MethodNyul:
		s := NewNyul()
		if err := s.Restore(p); err != nil {
			return nil, err
		}
		return s, nil
	case MethodZScore:
		s := NewZScore(p.Robust)
		if err := s.Restore(p); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fault.New(fault.Configuration, "unknown standardization method %q", p.Method)
	}
}
