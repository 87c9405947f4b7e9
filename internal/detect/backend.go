package detect

import (
	"errors"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

var (
	// ErrBackendDecode wraps any error or panic raised inside a backend.
	ErrBackendDecode = errors.New("backend decode error")

	// ErrNativeUnavailable is returned when no native decoder is compiled in.
	ErrNativeUnavailable = errors.New("native decoder unavailable")
)

// BackendID names a backend in results, logs and stats.
type BackendID string

const (
	BackendNative    BackendID = "native"
	BackendSoftware  BackendID = "software"
	BackendEnhanced  BackendID = "software+binarized"
	BackendHeuristic BackendID = "heuristic"
)

// Kind is the outcome of one detection attempt.
type Kind int

const (
	// KindNoMatch means nothing was recognised
	KindNoMatch Kind = iota
	// KindMatch means a symbol was decoded
	KindMatch
	// KindPatternOnly means bar-like structure is visible but undecodable
	KindPatternOnly
)

// String returns a human-readable string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindMatch:
		return "match"
	case KindPatternOnly:
		return "pattern-only"
	default:
		return "no-match"
	}
}

// Result is produced by a single backend invocation.
type Result struct {
	Kind   Kind
	Value  string
	Format Format
	Source BackendID
}

// Matched reports whether the result carries a decoded value.
func (r Result) Matched() bool {
	return r.Kind == KindMatch && r.Value != ""
}

// NoMatch returns the sentinel result for a backend.
func NoMatch(id BackendID) Result {
	return Result{Kind: KindNoMatch, Source: id}
}

// Backend decodes one frame.
//
// Implementations must guarantee:
//   - Detect() is a pure function of the frame (no state carried between calls)
//   - Detect() has bounded, predictable cost per frame
//   - Detect() never retains the frame after returning
//   - a miss is NoMatch with a nil error; errors are reserved for failures
type Backend interface {
	// ID identifies the backend.
	ID() BackendID

	// Detect attempts to decode a symbol from the frame.
	Detect(frame capture.Frame) (Result, error)
}
