package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: CODESCAN_SCANNER_INTERVAL=250ms.
const EnvPrefix = "CODESCAN"

// NewViper returns a viper instance seeded with Default values and bound to
// CODESCAN_* environment variables. Flags are bound by the caller.
func NewViper() *viper.Viper {
	v := viper.New()

	d := Default()
	v.SetDefault("scanner.interval", d.Scanner.Interval)
	v.SetDefault("scanner.adaptive_interval", d.Scanner.AdaptiveInterval)
	v.SetDefault("scanner.quality", d.Scanner.Quality)
	v.SetDefault("scanner.device_id", d.Scanner.DeviceID)
	v.SetDefault("detection.native", d.Detection.Native)
	v.SetDefault("detection.software", d.Detection.Software)
	v.SetDefault("detection.enhance", d.Detection.Enhance)
	v.SetDefault("detection.heuristic", d.Detection.Heuristic)
	v.SetDefault("detection.formats", d.Detection.Formats)
	v.SetDefault("capture.open_timeout", d.Capture.OpenTimeout)
	v.SetDefault("capture.virtual_keywords", d.Capture.VirtualKeywords)
	v.SetDefault("capture.rear_keywords", d.Capture.RearKeywords)
	v.SetDefault("capture.front_keywords", d.Capture.FrontKeywords)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigType("yaml")
	return v
}

// ReadFile merges the YAML file at path into v. A missing file is not an
// error unless required is set.
func ReadFile(v *viper.Viper, path string, required bool) error {
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return nil
}

// FromViper decodes and validates the layered configuration.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
