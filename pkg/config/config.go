// Package config holds the plasmoquant run configuration: analysis margins,
// output options, worker count, logging and the list of units, read from
// and written to YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Unit lists the input files of one analysis unit
type Unit struct {
	// Basename prefixes every output file of the unit
	Basename string `yaml:"basename"`

	// OriWalls is the original cell wall channel
	OriWalls string `yaml:"oriWalls"`

	// OriPDs is the original plasmodesmata channel
	OriPDs string `yaml:"oriPDs"`

	// ScaledWalls is the (possibly downscaled) wall image the ROIs were drawn on
	ScaledWalls string `yaml:"scaledWalls"`

	// SegmentedPDs is the binary PD segmentation mask
	SegmentedPDs string `yaml:"segmentedPDs"`

	// Rois is the RoiSet (.zip) or single .roi with the cell outlines
	Rois string `yaml:"rois"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Analysis parameters
	Analysis struct {
		// WallMargin is the enlargement in pixels applied to walls before counting PDs
		WallMargin int `yaml:"wallMargin"`

		// PDMargin is the enlargement in pixels applied to each PD before sampling its signal
		PDMargin int `yaml:"pdMargin"`

		// Separator splits ROI names into tag and the rest
		Separator string `yaml:"separator"`

		// CountPDsInEnlargedWalls counts PDs on the enlarged walls instead of the drawn ones
		CountPDsInEnlargedWalls bool `yaml:"countPDsInEnlargedWalls"`
	} `yaml:"analysis"`

	// Output parameters
	Output struct {
		// Dir is where results are written
		Dir string `yaml:"dir"`

		// LUT is the lookup table used for colour map previews
		LUT string `yaml:"lut"`

		// Legend draws a calibration bar on colour map previews
		Legend bool `yaml:"legend"`
	} `yaml:"output"`

	// Processing parameters
	Processing struct {
		// Workers is how many units are analysed concurrently
		Workers int `yaml:"workers"`
	} `yaml:"processing"`

	// Logging parameters
	Logging struct {
		// Level is a logrus level name
		Level string `yaml:"level"`

		// Format is "text" or "json"
		Format string `yaml:"format"`
	} `yaml:"logging"`

	// Units are the analysis units to process
	Units []Unit `yaml:"units"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Analysis.WallMargin = 2
	cfg.Analysis.PDMargin = 1
	cfg.Analysis.Separator = "_"
	cfg.Analysis.CountPDsInEnlargedWalls = false

	cfg.Output.Dir = "results"
	cfg.Output.LUT = "Fire"
	cfg.Output.Legend = true

	cfg.Processing.Workers = 1

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"

	return cfg
}

// Validate checks the values a run depends on
func (c *Config) Validate() error {
	if c.Analysis.Separator == "" {
		return fmt.Errorf("analysis.separator must not be empty")
	}
	if c.Processing.Workers < 1 {
		return fmt.Errorf("processing.workers must be at least 1, got %d", c.Processing.Workers)
	}
	if _, err := logrus.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}
	for i, u := range c.Units {
		if u.Basename == "" {
			return fmt.Errorf("units[%d].basename must not be empty", i)
		}
	}
	return nil
}

// LoadConfig reads a YAML file over the defaults, so keys left out keep
// their default value. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory if needed.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", configPath, err)
	}
	return nil
}

// CreateDefaultConfigFile writes the defaults to configPath, as a starting
// point for listing units.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}
