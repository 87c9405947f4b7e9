package codescanner

import (
	"fmt"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/scan"
)

const (
	// DefaultInterval is the default polling period
	DefaultInterval = scan.DefaultInterval
	// MinInterval and MaxInterval bound Config.Interval
	MinInterval = scan.MinInterval
	MaxInterval = scan.MaxInterval
)

// Config configures a Scanner.
type Config struct {
	// Interval is the polling period (0 = DefaultInterval)
	Interval time.Duration
	// Adaptive slows polling down after repeated misses
	Adaptive bool
	// Quality is the first resolution tier requested (0 = QualityMedium)
	Quality Quality
	// OpenTimeout bounds each single stream request (0 = unbounded)
	OpenTimeout time.Duration
	// Keywords rank cameras by label (zero value = defaults)
	Keywords Keywords
	// Backends select the decoders of the standard chain
	Backends BackendOptions
}

// DefaultConfig returns a 400ms, medium-quality scanner with every decoder.
func DefaultConfig() Config {
	return Config{
		Interval:    DefaultInterval,
		Quality:     QualityMedium,
		OpenTimeout: 10 * time.Second,
		Keywords:    capture.DefaultKeywords(),
		Backends:    detect.DefaultOptions(),
	}
}

// Validate fills defaults and checks ranges.
func (c *Config) Validate() error {
	if c.Interval == 0 {
		c.Interval = DefaultInterval
	}
	if c.Interval < MinInterval || c.Interval > MaxInterval {
		return fmt.Errorf("%w: interval %v outside %v-%v", ErrInvalidConfig, c.Interval, MinInterval, MaxInterval)
	}
	if c.Quality == 0 {
		c.Quality = QualityMedium
	}
	if c.Quality < QualityLow || c.Quality > QualityHigh {
		return fmt.Errorf("%w: unknown quality %d", ErrInvalidConfig, c.Quality)
	}
	if c.OpenTimeout < 0 {
		return fmt.Errorf("%w: negative open timeout %v", ErrInvalidConfig, c.OpenTimeout)
	}
	return nil
}

func (c *Config) backendsEnabled() bool {
	b := c.Backends
	return b.Native || b.Software || b.Enhance || b.Heuristic
}
