package capture

import (
	"image"
	"image/draw"
	"time"
)

// Frame is an immutable RGB snapshot taken from an open session.
//
// Pix holds interleaved RGB (RGBRGB...), Width × Height × 3 bytes. A frame
// never aliases stream memory: platforms copy each sample before handing
// it out, so holding a Frame does not pin a pipeline buffer.
type Frame struct {
	// Seq is the per-stream monotonic sequence number
	Seq uint64
	// Timestamp is when the sample left the platform pipeline
	Timestamp time.Time
	// Width in pixels
	Width int
	// Height in pixels
	Height int
	// Pix contains the RGB pixel data
	Pix []byte
	// TraceID identifies the frame in logs
	TraceID string
}

// Valid reports whether the frame carries a decodable raster.
func (f Frame) Valid() bool {
	return f.Width > 0 && f.Height > 0 && len(f.Pix) >= f.Width*f.Height*3
}

// RGBAt returns the pixel at (x, y). Callers must stay inside the bounds.
func (f Frame) RGBAt(x, y int) (r, g, b uint8) {
	i := (y*f.Width + x) * 3
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Image converts the frame to an RGBA image (copy).
func (f Frame) Image() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	for i := 0; i < f.Width*f.Height; i++ {
		img.Pix[i*4+0] = f.Pix[i*3+0]
		img.Pix[i*4+1] = f.Pix[i*3+1]
		img.Pix[i*4+2] = f.Pix[i*3+2]
		img.Pix[i*4+3] = 255
	}
	return img
}

// FrameFromImage builds a frame from a decoded still image.
func FrameFromImage(img image.Image) Frame {
	b := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	}

	w, h := b.Dx(), b.Dy()
	pix := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			o := (y*w + x) * 3
			pix[o+0] = row[x*4+0]
			pix[o+1] = row[x*4+1]
			pix[o+2] = row[x*4+2]
		}
	}

	return Frame{
		Timestamp: time.Now(),
		Width:     w,
		Height:    h,
		Pix:       pix,
	}
}
