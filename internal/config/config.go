// Package config loads the codescan configuration file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/scan"
)

// Config represents the complete codescan configuration
type Config struct {
	Scanner   ScannerConfig   `yaml:"scanner" mapstructure:"scanner"`
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`
	Capture   CaptureConfig   `yaml:"capture" mapstructure:"capture"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ScannerConfig contains polling loop settings
type ScannerConfig struct {
	Interval         time.Duration `yaml:"interval" mapstructure:"interval"`                   // 50ms-5s (default: 400ms)
	AdaptiveInterval bool          `yaml:"adaptive_interval" mapstructure:"adaptive_interval"` // slow down after repeated misses
	Quality          string        `yaml:"quality" mapstructure:"quality"`                     // low, medium, high
	DeviceID         string        `yaml:"device_id" mapstructure:"device_id"`                 // empty = best-ranked camera
}

// DetectionConfig selects the decoder backends
type DetectionConfig struct {
	Native    bool     `yaml:"native" mapstructure:"native"`
	Software  bool     `yaml:"software" mapstructure:"software"`
	Enhance   bool     `yaml:"enhance" mapstructure:"enhance"` // binarized software retry
	Heuristic bool     `yaml:"heuristic" mapstructure:"heuristic"`
	Formats   []string `yaml:"formats,omitempty" mapstructure:"formats"` // empty = all supported
}

// CaptureConfig contains camera acquisition settings
type CaptureConfig struct {
	OpenTimeout     time.Duration `yaml:"open_timeout" mapstructure:"open_timeout"` // per stream request, 0 = unbounded
	VirtualKeywords []string      `yaml:"virtual_keywords" mapstructure:"virtual_keywords"`
	RearKeywords    []string      `yaml:"rear_keywords" mapstructure:"rear_keywords"`
	FrontKeywords   []string      `yaml:"front_keywords" mapstructure:"front_keywords"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // text, json
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	kw := capture.DefaultKeywords()
	return &Config{
		Scanner: ScannerConfig{
			Interval: scan.DefaultInterval,
			Quality:  capture.TierMedium.String(),
		},
		Detection: DetectionConfig{
			Native:    true,
			Software:  true,
			Enhance:   true,
			Heuristic: true,
		},
		Capture: CaptureConfig{
			OpenTimeout:     10 * time.Second,
			VirtualKeywords: kw.Virtual,
			RearKeywords:    kw.Rear,
			FrontKeywords:   kw.Front,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/codescan/config.yaml.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "codescan", "config.yaml")
}

// Load reads and parses a YAML configuration file. Keys missing from the
// file keep their Default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Write stores cfg as YAML at path, creating parent directories.
func Write(path string, cfg *Config) error {
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
