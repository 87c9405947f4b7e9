package codescanner

import (
	"fmt"
	"image"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
)

// Decoder runs the detection chain over still images, without a camera.
type Decoder struct {
	chain *detect.Chain
}

// NewDecoder builds the standard chain selected by backends, or the
// WithBackends chain when given.
func NewDecoder(backends BackendOptions, opts ...Option) (*Decoder, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		chain *detect.Chain
		err   error
	)
	if len(o.backends) > 0 {
		chain, err = detect.NewChain(o.backends...)
	} else {
		chain, err = detect.Build(backends)
	}
	if err != nil {
		return nil, fmt.Errorf("code-scanner: %w: %w", ErrInvalidConfig, err)
	}
	return &Decoder{chain: chain}, nil
}

// Decode returns the first value any decoder finds in img.
//
// Returns ErrNoMatch when nothing decodes; when the heuristic saw bar
// structure the error says so.
func (d *Decoder) Decode(img image.Image) (Detection, error) {
	return decodeImage(d.chain, img)
}

func decodeImage(chain *detect.Chain, img image.Image) (Detection, error) {
	if img == nil || img.Bounds().Empty() {
		return Detection{}, fmt.Errorf("code-scanner: %w: empty image", ErrNoMatch)
	}

	res := chain.Detect(capture.FrameFromImage(img))

	switch {
	case res.Matched():
		return toDetection(res, ""), nil
	case res.Kind == detect.KindPatternOnly:
		return Detection{}, fmt.Errorf("code-scanner: %w: barcode-like pattern seen but not decoded", ErrNoMatch)
	default:
		return Detection{}, fmt.Errorf("code-scanner: %w", ErrNoMatch)
	}
}
