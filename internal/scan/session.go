package scan

import (
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
)

// Status is the scan session lifecycle state.
type Status int

const (
	// StatusIdle means no timer and no capture session
	StatusIdle Status = iota
	// StatusInitializing means the camera is being opened
	StatusInitializing
	// StatusScanning means the polling loop is running
	StatusScanning
	// StatusDetected means a new value was confirmed and the run ended
	StatusDetected
	// StatusFailed means the run ended on an unrecoverable capture error
	StatusFailed
)

// String returns a human-readable string representation of the status
func (s Status) String() string {
	switch s {
	case StatusInitializing:
		return "initializing"
	case StatusScanning:
		return "scanning"
	case StatusDetected:
		return "detected"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Active reports whether a run owns the camera.
func (s Status) Active() bool {
	return s == StatusInitializing || s == StatusScanning
}

// Guidance is the hint derived from the most recent decode cycle.
type Guidance int

const (
	// GuidanceNone means no hint (nothing evaluated yet, or a code is in view)
	GuidanceNone Guidance = iota
	// GuidanceNoCodeVisible means nothing code-like is in frame
	GuidanceNoCodeVisible
	// GuidanceMoveCloser means bar structure is visible but undecodable
	GuidanceMoveCloser
)

// String returns a human-readable string representation of the guidance
func (g Guidance) String() string {
	switch g {
	case GuidanceNoCodeVisible:
		return "no code visible"
	case GuidanceMoveCloser:
		return "move closer"
	default:
		return "none"
	}
}

// Session is the orchestrator's state for the current scan attempt. Only
// the orchestrator mutates it; callers get copies.
type Session struct {
	ID         string
	Status     Status
	LastValue  string
	LastFormat detect.Format
	Attempts   int
	Guidance   Guidance
	Err        error
	StartedAt  time.Time
}

// isDuplicate reports whether a decoded value repeats the last confirmed one.
func (s *Session) isDuplicate(value string) bool {
	return s.LastValue != "" && s.LastValue == value
}
