package detect

import "github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"

// binarizeThreshold is 50% luminance on a 0-255 scale.
const binarizeThreshold = 128

// Binarize returns a high-contrast copy of the frame: every pixel whose
// channel mean is above 50% becomes white, the rest black. The input is
// not modified.
func Binarize(frame capture.Frame) capture.Frame {
	out := frame
	out.Pix = make([]byte, len(frame.Pix))

	n := frame.Width * frame.Height
	for i := 0; i < n; i++ {
		o := i * 3
		mean := (int(frame.Pix[o]) + int(frame.Pix[o+1]) + int(frame.Pix[o+2])) / 3
		var v byte
		if mean > binarizeThreshold {
			v = 255
		}
		out.Pix[o], out.Pix[o+1], out.Pix[o+2] = v, v, v
	}
	return out
}

// Gray returns the per-pixel channel mean, row-major.
func Gray(frame capture.Frame) []uint8 {
	n := frame.Width * frame.Height
	gray := make([]uint8, n)
	for i := 0; i < n; i++ {
		o := i * 3
		gray[i] = uint8((int(frame.Pix[o]) + int(frame.Pix[o+1]) + int(frame.Pix[o+2])) / 3)
	}
	return gray
}
