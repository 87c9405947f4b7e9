//go:build !gocv

package detect

import "github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"

// NativeBackend is unavailable without the gocv build tag.
type NativeBackend struct{}

// NewNativeBackend reports ErrNativeUnavailable; build with -tags gocv to
// enable the OpenCV decoder.
func NewNativeBackend() (*NativeBackend, error) {
	return nil, ErrNativeUnavailable
}

// ID implements Backend.
func (*NativeBackend) ID() BackendID {
	return BackendNative
}

// Detect implements Backend.
func (*NativeBackend) Detect(capture.Frame) (Result, error) {
	return Result{}, ErrNativeUnavailable
}
