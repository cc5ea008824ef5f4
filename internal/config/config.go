// Package config handles configuration loading for the slidekit tools.
// It reads YAML files and provides default values for everything a file
// leaves unset.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config carries the defaults the CLI and the tool server apply when a
// request does not specify them.
type Config struct {
	// Region controls how regions are extracted.
	Region struct {
		// Kernel is the interpolation kernel: "lanczos" or "nearest".
		Kernel string `yaml:"kernel"`

		// Pipeline is the crop/resize strategy: "box" or "crop".
		Pipeline string `yaml:"pipeline"`

		// ApplyColorProfile requests sRGB normalization of output regions.
		ApplyColorProfile bool `yaml:"applyColorProfile"`
	} `yaml:"region"`

	// Slide controls how slides are opened.
	Slide struct {
		// Backend selects the backend by name; empty auto-detects.
		Backend string `yaml:"backend"`

		// OverwriteMPP overrides the slide spacing in microns per pixel,
		// for files that carry none. Zero means "use the file's spacing".
		OverwriteMPP [2]float64 `yaml:"overwriteMpp"`
	} `yaml:"slide"`

	// Thumbnail controls thumbnail generation.
	Thumbnail struct {
		// Width and Height bound the generated thumbnail.
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"thumbnail"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Region.Kernel = "lanczos"
	cfg.Region.Pipeline = "box"
	cfg.Thumbnail.Width = 512
	cfg.Thumbnail.Height = 512
	return cfg
}

// Load reads configuration from a YAML file, falling back to defaults for
// missing values. A missing file is not an error: the defaults apply.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Region.Kernel == "" {
		cfg.Region.Kernel = "lanczos"
	}
	if cfg.Region.Pipeline == "" {
		cfg.Region.Pipeline = "box"
	}
	if cfg.Thumbnail.Width <= 0 {
		cfg.Thumbnail.Width = 512
	}
	if cfg.Thumbnail.Height <= 0 {
		cfg.Thumbnail.Height = 512
	}
}
