package config

import (
	"fmt"
	"strings"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/scan"
)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Scanner
	if cfg.Scanner.Interval == 0 {
		cfg.Scanner.Interval = scan.DefaultInterval
	}
	if cfg.Scanner.Interval < scan.MinInterval || cfg.Scanner.Interval > scan.MaxInterval {
		return fmt.Errorf("scanner.interval must be %v-%v, got %v",
			scan.MinInterval, scan.MaxInterval, cfg.Scanner.Interval)
	}
	if _, err := capture.ParseTier(cfg.Scanner.Quality); err != nil {
		return fmt.Errorf("scanner.quality: %w", err)
	}

	// Detection
	d := cfg.Detection
	if !d.Native && !d.Software && !d.Enhance && !d.Heuristic {
		return fmt.Errorf("detection: at least one backend must be enabled")
	}
	if _, err := detect.ParseFormats(d.Formats); err != nil {
		return fmt.Errorf("detection.formats: %w", err)
	}

	// Capture
	if cfg.Capture.OpenTimeout < 0 {
		return fmt.Errorf("capture.open_timeout must be >= 0, got %v", cfg.Capture.OpenTimeout)
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level '%s' (must be debug, info, warn or error)", cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format: unknown format '%s' (must be 'text' or 'json')", cfg.Log.Format)
	}

	return nil
}

// Keywords returns the ranking keywords, falling back per list to the
// defaults when a list is empty.
func (c *Config) Keywords() capture.Keywords {
	kw := capture.DefaultKeywords()
	if len(c.Capture.VirtualKeywords) > 0 {
		kw.Virtual = c.Capture.VirtualKeywords
	}
	if len(c.Capture.RearKeywords) > 0 {
		kw.Rear = c.Capture.RearKeywords
	}
	if len(c.Capture.FrontKeywords) > 0 {
		kw.Front = c.Capture.FrontKeywords
	}
	return kw
}
