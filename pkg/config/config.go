// Package config provides configuration loading and management for
// neurosurf. It handles loading configuration from YAML files and
// provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML.
type Config struct {
	// Subjects parameters
	Subjects struct {
		// Dir is the FreeSurfer subjects directory holding per-subject
		// surface files and the morph-maps directory.
		Dir string `yaml:"dir"`

		// IcoFile is the BEM file bundling the canonical icosphere
		// surfaces (ids 9000+grade). When empty the icosphere is
		// generated by tessellation instead.
		IcoFile string `yaml:"icoFile"`
	} `yaml:"subjects"`

	// SourceSpace parameters
	SourceSpace struct {
		// Spacing is the resampling strategy: "all", "ico<grade>" or
		// "oct<grade>".
		Spacing string `yaml:"spacing"`

		// NearestNeighbor selects the spatial-search strategy,
		// "brute" (deterministic tie-breaking) or "kdtree".
		NearestNeighbor string `yaml:"nearestNeighbor"`
	} `yaml:"sourceSpace"`

	// Geometry parameters
	Geometry struct {
		// AddGeometry controls whether decoded surfaces are completed
		// with derived geometry (normals, areas, adjacency).
		AddGeometry bool `yaml:"addGeometry"`

		// NeighborVert additionally derives vertex-to-vertex neighbor
		// lists during completion.
		NeighborVert bool `yaml:"neighborVert"`
	} `yaml:"geometry"`

	// Output parameters
	Output struct {
		// STLFile is where the exported mesh is written when STL export
		// is requested.
		STLFile string `yaml:"stlFile"`

		// Verbose controls the level of logging output.
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Subjects.Dir = os.Getenv("SUBJECTS_DIR")

	cfg.SourceSpace.Spacing = "ico5"
	cfg.SourceSpace.NearestNeighbor = "brute"

	cfg.Geometry.AddGeometry = true
	cfg.Geometry.NeighborVert = false

	cfg.Output.STLFile = ""
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

// CreateDefaultConfigFile creates a default configuration file at the
// specified path.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
