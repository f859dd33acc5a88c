// Package config provides configuration loading and management for
// tomogo. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Processing parameters for the job distributor.
	Processing struct {
		// NumWorkers caps concurrent workers; 0 uses every CPU.
		NumWorkers int `yaml:"numWorkers"`

		// ChunkSize is the partition length along the sharded axis;
		// 0 divides the extent evenly among the workers.
		ChunkSize int `yaml:"chunkSize"`
	} `yaml:"processing"`

	// Reconstruction parameters shared by all solvers.
	Reconstruction struct {
		// Method selects the solver: art, mlem or gridrec.
		Method string `yaml:"method"`

		// Iterations is the sweep count for the iterative solvers.
		Iterations int `yaml:"iterations"`

		// GridSize is the reconstruction grid side; 0 derives
		// floor(pixels/sqrt(2)).
		GridSize int `yaml:"gridSize"`
	} `yaml:"reconstruction"`

	// Gridrec parameters for the direct Fourier solver.
	Gridrec struct {
		// KernelWidth is the gridding kernel support in grid cells.
		KernelWidth int `yaml:"kernelWidth"`

		// Oversampling is the Cartesian frequency-grid oversampling
		// ratio.
		Oversampling float64 `yaml:"oversampling"`

		// Filter names the radial filter: ramp, shepp, cosine,
		// hamming, hann or none.
		Filter string `yaml:"filter"`
	} `yaml:"gridrec"`

	// Center parameters for the rotation-center search.
	Center struct {
		// Tolerance is the optimizer convergence tolerance in pixels.
		Tolerance float64 `yaml:"tolerance"`
	} `yaml:"center"`

	// Output parameters.
	Output struct {
		// Verbose enables debug-level logging.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumWorkers = runtime.NumCPU()
	cfg.Processing.ChunkSize = 0

	cfg.Reconstruction.Method = "gridrec"
	cfg.Reconstruction.Iterations = 1
	cfg.Reconstruction.GridSize = 0

	cfg.Gridrec.KernelWidth = 4
	cfg.Gridrec.Oversampling = 2.0
	cfg.Gridrec.Filter = "ramp"

	cfg.Center.Tolerance = 0.5

	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file. If the file doesn't
// exist, it returns the default configuration.
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

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
