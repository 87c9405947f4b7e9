//go:build gocv

package detect

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// NativeBackend decodes QR codes with OpenCV's detector.
type NativeBackend struct{}

// NewNativeBackend returns the OpenCV-backed decoder.
func NewNativeBackend() (*NativeBackend, error) {
	return &NativeBackend{}, nil
}

// ID implements Backend.
func (*NativeBackend) ID() BackendID {
	return BackendNative
}

// Detect implements Backend.
func (*NativeBackend) Detect(frame capture.Frame) (Result, error) {
	rgb, err := gocv.NewMatFromBytes(frame.Height, frame.Width, gocv.MatTypeCV8UC3, frame.Pix)
	if err != nil {
		return Result{}, fmt.Errorf("wrap frame: %w", err)
	}
	defer rgb.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)

	detector := gocv.NewQRCodeDetector()
	defer detector.Close()

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	text := detector.DetectAndDecode(bgr, &points, &straight)
	if text == "" {
		return NoMatch(BackendNative), nil
	}
	return Result{
		Kind:   KindMatch,
		Value:  text,
		Format: FormatQRCode,
		Source: BackendNative,
	}, nil
}
