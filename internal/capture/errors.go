package capture

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDeviceFound is returned when no camera is enumerable.
	ErrNoDeviceFound = errors.New("no camera device found")

	// ErrCaptureUnavailable is returned when every ladder rung failed.
	ErrCaptureUnavailable = errors.New("camera capture unavailable")

	// ErrFrameNotReady is returned until the stream decoded its first frame.
	ErrFrameNotReady = errors.New("frame not ready")

	// ErrSessionClosed is returned when reading from a released session.
	ErrSessionClosed = errors.New("capture session closed")
)

// UnavailableError carries the last underlying failure of an exhausted
// fallback ladder. errors.Is(err, ErrCaptureUnavailable) holds.
type UnavailableError struct {
	// Attempts is the number of stream requests made
	Attempts int
	// Rung is the last rung tried
	Rung string
	// Category classifies Err
	Category ErrorCategory
	// Err is the last underlying error (nil if no attempt was possible)
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: no stream request could be made", ErrCaptureUnavailable)
	}
	return fmt.Sprintf("%s after %d attempts (last rung %s, %s): %v",
		ErrCaptureUnavailable, e.Attempts, e.Rung, e.Category, e.Err)
}

// Is makes the error match ErrCaptureUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrCaptureUnavailable
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// ErrorCategory represents the classification of camera errors for telemetry
type ErrorCategory int

const (
	// ErrCategoryPermission indicates access was denied (user must grant it)
	ErrCategoryPermission ErrorCategory = iota
	// ErrCategoryBusy indicates another process holds the device
	ErrCategoryBusy
	// ErrCategoryNotFound indicates the device vanished or never existed
	ErrCategoryNotFound
	// ErrCategoryFormat indicates the constraints could not be negotiated
	ErrCategoryFormat
	// ErrCategoryUnknown indicates unclassified errors
	ErrCategoryUnknown
)

// String returns a human-readable string representation of the error category
func (e ErrorCategory) String() string {
	switch e {
	case ErrCategoryPermission:
		return "permission"
	case ErrCategoryBusy:
		return "busy"
	case ErrCategoryNotFound:
		return "not-found"
	case ErrCategoryFormat:
		return "format"
	default:
		return "unknown"
	}
}

// ClassifyError categorizes a stream open failure.
//
// Platforms report failures as free text (GStreamer GError messages, errno
// strings), so classification relies on keyword matching, most specific
// category first.
func ClassifyError(err error) ErrorCategory {
	if err == nil {
		return ErrCategoryUnknown
	}
	msg := strings.ToLower(err.Error())

	switch {
	case matchesAny(msg, permissionKeywords):
		return ErrCategoryPermission
	case matchesAny(msg, busyKeywords):
		return ErrCategoryBusy
	case matchesAny(msg, formatKeywords):
		return ErrCategoryFormat
	case matchesAny(msg, notFoundKeywords):
		return ErrCategoryNotFound
	default:
		return ErrCategoryUnknown
	}
}

var (
	permissionKeywords = []string{
		"permission denied",
		"not permitted",
		"not authorized",
		"notallowederror",
		"access denied",
		"eacces",
	}
	busyKeywords = []string{
		"busy",
		"in use",
		"ebusy",
		"notreadableerror",
	}
	formatKeywords = []string{
		"not negotiated",
		"not-negotiated",
		"negotiation",
		"caps",
		"format",
		"overconstrained",
		"resolution",
	}
	notFoundKeywords = []string{
		"no such file",
		"no such device",
		"not found",
		"cannot identify device",
		"unknown device",
		"enoent",
		"enodev",
	}
)

func matchesAny(msg string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(msg, kw) {
			return true
		}
	}
	return false
}
