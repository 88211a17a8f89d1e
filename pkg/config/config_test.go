package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Analysis.WallMargin != 2 {
		t.Errorf("Expected wall margin 2, got %d", cfg.Analysis.WallMargin)
	}
	if cfg.Analysis.PDMargin != 1 {
		t.Errorf("Expected PD margin 1, got %d", cfg.Analysis.PDMargin)
	}
	if cfg.Analysis.Separator != "_" {
		t.Errorf("Expected separator _, got %q", cfg.Analysis.Separator)
	}
	if cfg.Output.LUT != "Fire" {
		t.Errorf("Expected LUT Fire, got %s", cfg.Output.LUT)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Expected default config to be valid, got %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Analysis.WallMargin != 2 {
		t.Errorf("Expected defaults, got wall margin %d", cfg.Analysis.WallMargin)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Analysis.WallMargin = 3
	cfg.Analysis.Separator = "-"
	cfg.Processing.Workers = 4
	cfg.Units = []Unit{{
		Basename:     "plant1",
		OriWalls:     "walls.tif",
		OriPDs:       "pds.tif",
		ScaledWalls:  "walls_small.tif",
		SegmentedPDs: "mask.tif",
		Rois:         "RoiSet.zip",
	}}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if got.Analysis.WallMargin != 3 || got.Analysis.Separator != "-" || got.Processing.Workers != 4 {
		t.Errorf("Expected saved values back, got %+v", got.Analysis)
	}
	if len(got.Units) != 1 || got.Units[0] != cfg.Units[0] {
		t.Errorf("Expected unit %+v, got %+v", cfg.Units, got.Units)
	}
}

func TestPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("analysis:\n  pdMargin: 4\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Analysis.PDMargin != 4 {
		t.Errorf("Expected PD margin 4, got %d", cfg.Analysis.PDMargin)
	}
	if cfg.Analysis.WallMargin != 2 || cfg.Output.LUT != "Fire" {
		t.Errorf("Expected untouched defaults, got wall margin %d and LUT %s", cfg.Analysis.WallMargin, cfg.Output.LUT)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"EmptySeparator", func(c *Config) { c.Analysis.Separator = "" }},
		{"NoWorkers", func(c *Config) { c.Processing.Workers = 0 }},
		{"BadLevel", func(c *Config) { c.Logging.Level = "loud" }},
		{"BadFormat", func(c *Config) { c.Logging.Format = "xml" }},
		{"UnnamedUnit", func(c *Config) { c.Units = []Unit{{OriWalls: "a.tif"}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Expected config file to exist: %v", err)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("analysis: [unclosed"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected error for malformed YAML")
	}
	if _, err := LoadConfig(dir); err == nil {
		t.Error("Expected error when the path is a directory")
	}
}
