package codescanner

import (
	"errors"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/scan"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/warmup"
)

var (
	// ErrNoDeviceFound is returned when no camera is enumerable.
	ErrNoDeviceFound = capture.ErrNoDeviceFound

	// ErrCaptureUnavailable is returned when every fallback rung failed.
	// The wrapped error carries the last platform failure.
	ErrCaptureUnavailable = capture.ErrCaptureUnavailable

	// ErrFrameNotReady is returned before a stream produced its first frame.
	ErrFrameNotReady = capture.ErrFrameNotReady

	// ErrSessionClosed is returned when reading from a released session.
	ErrSessionClosed = capture.ErrSessionClosed

	// ErrBackendDecode wraps an error or panic raised by one decoder.
	ErrBackendDecode = detect.ErrBackendDecode

	// ErrNativeUnavailable is returned when the native decoder is not
	// compiled in.
	ErrNativeUnavailable = detect.ErrNativeUnavailable

	// ErrSessionAlreadyActive is returned by Start and Probe while a scan
	// is initializing or scanning.
	ErrSessionAlreadyActive = scan.ErrSessionAlreadyActive

	// ErrUnstable is returned by Probe (with stats) for irregular delivery.
	ErrUnstable = warmup.ErrUnstable

	// ErrNoMatch is returned by DecodeImage when no decoder found a code.
	ErrNoMatch = errors.New("no code found")

	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("invalid scanner configuration")
)

// ErrorCategory classifies camera failures (permission, busy, ...).
type ErrorCategory = capture.ErrorCategory

// ClassifyError categorizes a camera failure for display and telemetry.
func ClassifyError(err error) ErrorCategory {
	return capture.ClassifyError(err)
}
