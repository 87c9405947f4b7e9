package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"

	codescanner "github.com/e7canasta/orion-care-sensor/modules/code-scanner"
)

var (
	valueColor = color.New(color.FgGreen, color.Bold)
	labelColor = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	faintColor = color.New(color.Faint)
)

func printDetection(w io.Writer, d codescanner.Detection) {
	fmt.Fprintf(w, "%s  %s  %s\n",
		valueColor.Sprint(d.Value),
		labelColor.Sprint(d.Format),
		faintColor.Sprintf("(%s, %s)", d.Backend, d.DetectedAt.Format("15:04:05.000")),
	)
}

func facingColor(f codescanner.Facing) *color.Color {
	switch f {
	case codescanner.FacingRear:
		return color.New(color.FgGreen)
	case codescanner.FacingVirtual:
		return faintColor
	default:
		return color.New(color.Reset)
	}
}

// hint turns a capture failure into an actionable sentence.
func hint(err error) string {
	switch {
	case errors.Is(err, codescanner.ErrNoDeviceFound):
		return "no camera found: connect a camera or pass --device"
	case errors.Is(err, codescanner.ErrCaptureUnavailable):
		switch codescanner.ClassifyError(err).String() {
		case "permission":
			return "camera access denied: check the video group or sandbox permissions"
		case "busy":
			return "camera in use by another application"
		case "format":
			return "camera rejected every resolution: try --quality low"
		}
		return "no camera configuration could be opened"
	}
	return ""
}

func printHint(w io.Writer, err error) {
	if h := hint(err); h != "" {
		fmt.Fprintf(w, "%s %s\n", warnColor.Sprint("hint:"), h)
	}
}
