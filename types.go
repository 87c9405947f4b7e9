package codescanner

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/scan"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/warmup"
)

// Platform enumerates cameras and opens constrained streams.
type Platform = capture.Platform

// Stream is one open camera stream of a Platform.
type Stream = capture.Stream

// Constraints describe one stream request.
type Constraints = capture.Constraints

// Frame is an RGB24 snapshot of a camera stream.
type Frame = capture.Frame

// CameraDevice is an enumerated video input.
type CameraDevice = capture.Device

// Facing is the guessed orientation of a camera.
type Facing = capture.Facing

const (
	FacingUnknown = capture.FacingUnknown
	FacingRear    = capture.FacingRear
	FacingFront   = capture.FacingFront
	FacingVirtual = capture.FacingVirtual
)

// Keywords drive camera ranking by label.
type Keywords = capture.Keywords

// Quality is the requested capture resolution tier.
type Quality = capture.Tier

const (
	QualityLow    = capture.TierLow
	QualityMedium = capture.TierMedium
	QualityHigh   = capture.TierHigh
)

// ParseQuality parses "low", "medium" or "high".
func ParseQuality(s string) (Quality, error) {
	return capture.ParseTier(s)
}

// Format is a barcode symbology.
type Format = detect.Format

// ParseFormats parses symbology names such as "qr", "ean-13" or "code_128".
func ParseFormats(names []string) ([]Format, error) {
	return detect.ParseFormats(names)
}

// Backend is one decoder of the detection chain.
type Backend = detect.Backend

// BackendOptions select the decoders of the standard chain.
type BackendOptions = detect.Options

// Status is the scan lifecycle state.
type Status = scan.Status

const (
	StatusIdle         = scan.StatusIdle
	StatusInitializing = scan.StatusInitializing
	StatusScanning     = scan.StatusScanning
	StatusDetected     = scan.StatusDetected
	StatusFailed       = scan.StatusFailed
)

// ScanSession is a snapshot of the scan lifecycle state.
type ScanSession = scan.Session

// WarmupStats describe the frame delivery of a probed camera.
type WarmupStats = warmup.Stats

// Detection is one confirmed code.
type Detection struct {
	Value  string
	Format Format
	// Backend names the decoder that produced the value
	Backend string
	// SessionID is the scan session that confirmed it (empty for still images)
	SessionID  string
	DetectedAt time.Time
}

func toDetection(r detect.Result, sessionID string) Detection {
	return Detection{
		Value:      r.Value,
		Format:     r.Format,
		Backend:    string(r.Source),
		SessionID:  sessionID,
		DetectedAt: time.Now(),
	}
}

// Stats aggregate the counters of every layer.
type Stats struct {
	Capture  capture.Stats
	Scan     scan.Stats
	Backends []detect.BackendStats
}
