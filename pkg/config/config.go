// Package config provides configuration loading and management for
// mrireg. It handles loading configuration from YAML files, provides
// default values, and validates resolvable dependencies at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"mrireg/pkg/fault"
	"mrireg/pkg/standardize"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters
	Processing struct {
		// Workers bounds the number of concurrently processed items.
		Workers int `yaml:"workers"`

		// Sequential forces strict in-order processing regardless of
		// the worker count.
		Sequential bool `yaml:"sequential"`

		// ContinueOnError lets a run attempt later steps after a step
		// failure.
		ContinueOnError bool `yaml:"continueOnError"`
	} `yaml:"processing"`

	// Modality names expected on each work item.
	Modalities struct {
		// Fixed is the reference modality (unchanged by registration).
		Fixed string `yaml:"fixed"`

		// Moving is the modality aligned onto the fixed one.
		Moving string `yaml:"moving"`
	} `yaml:"modalities"`

	// Standardization parameters
	Standardization struct {
		// Method selects the algorithm: "nyul" or "zscore".
		Method string `yaml:"method"`

		// Robust switches z-score statistics to median/MAD.
		Robust bool `yaml:"robust"`

		// TrainingSampleCap bounds how many items contribute to
		// pre-batch training.
		TrainingSampleCap int `yaml:"trainingSampleCap"`

		// ParameterFile loads a previously trained model instead of
		// training before the batch.
		ParameterFile string `yaml:"parameterFile"`
	} `yaml:"standardization"`

	// Segmentation parameters
	Segmentation struct {
		// Enabled turns the segment and ROI-crop steps on.
		Enabled bool `yaml:"enabled"`

		// ROIPadding is the crop padding around the mask in voxels.
		ROIPadding int `yaml:"roiPadding"`
	} `yaml:"segmentation"`

	// Registration parameters
	Registration struct {
		// Enabled turns the registration step on.
		Enabled bool `yaml:"enabled"`

		// ExecutablePath locates the external registration tool.
		ExecutablePath string `yaml:"executablePath"`

		// ParameterFile is the optimizer parameter file passed to the
		// tool.
		ParameterFile string `yaml:"parameterFile"`

		// TimeoutSeconds bounds one registration call.
		TimeoutSeconds int `yaml:"timeoutSeconds"`
	} `yaml:"registration"`

	// Output parameters
	Output struct {
		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`

		// LogFile appends all log output to a file when set.
		LogFile string `yaml:"logFile"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.Workers = runtime.NumCPU()
	cfg.Processing.Sequential = false
	cfg.Processing.ContinueOnError = false

	cfg.Modalities.Fixed = "t2w"
	cfg.Modalities.Moving = "adc"

	cfg.Standardization.Method = standardize.MethodNyul
	cfg.Standardization.Robust = true
	cfg.Standardization.TrainingSampleCap = 20

	cfg.Segmentation.Enabled = true
	cfg.Segmentation.ROIPadding = 10

	cfg.Registration.Enabled = false
	cfg.Registration.TimeoutSeconds = 1800

	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file.
// If the file doesn't exist, it returns the default configuration.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file.
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration is internally consistent and
// that every external dependency resolves. Failures are fatal at
// startup: the batch must not start with an unresolvable setup.
func (cfg *Config) Validate() error {
	if cfg.Processing.Workers < 1 {
		return fault.New(fault.Configuration, "workers must be at least 1, got %d", cfg.Processing.Workers)
	}
	if cfg.Modalities.Fixed == "" || cfg.Modalities.Moving == "" {
		return fault.New(fault.Configuration, "both fixed and moving modality names must be set")
	}

	switch cfg.Standardization.Method {
	case standardize.MethodNyul, standardize.MethodZScore:
	default:
		return fault.New(fault.Configuration, "unknown standardization method %q", cfg.Standardization.Method)
	}
	if cfg.Standardization.ParameterFile != "" {
		if _, err := os.Stat(cfg.Standardization.ParameterFile); err != nil {
			return fault.Wrap(fault.Configuration, err,
				"standardization parameter file not found at %s", cfg.Standardization.ParameterFile)
		}
	}

	if cfg.Registration.Enabled {
		if cfg.Registration.ExecutablePath == "" {
			return fault.New(fault.Configuration, "registration is enabled but no executable path is set")
		}
		if _, err := os.Stat(cfg.Registration.ExecutablePath); err != nil {
			return fault.Wrap(fault.Configuration, err,
				"registration executable not found at %s", cfg.Registration.ExecutablePath)
		}
		if cfg.Registration.TimeoutSeconds <= 0 {
			return fault.New(fault.Configuration, "registration timeout must be positive, got %d",
				cfg.Registration.TimeoutSeconds)
		}
	}

	return nil
}

// Echo returns the configuration as flat key/value pairs for the
// batch summary report.
func (cfg *Config) Echo() map[string]string {
	return map[string]string{
		"workers":                fmt.Sprintf("%d", cfg.Processing.Workers),
		"sequential":             fmt.Sprintf("%t", cfg.Processing.Sequential),
		"continue_on_error":      fmt.Sprintf("%t", cfg.Processing.ContinueOnError),
		"fixed_modality":         cfg.Modalities.Fixed,
		"moving_modality":        cfg.Modalities.Moving,
		"standardization_method": cfg.Standardization.Method,
		"segmentation_enabled":   fmt.Sprintf("%t", cfg.Segmentation.Enabled),
		"registration_enabled":   fmt.Sprintf("%t", cfg.Registration.Enabled),
	}
}
