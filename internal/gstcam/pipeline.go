package gstcam

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// TestSourcePrefix selects a synthetic videotestsrc instead of a camera.
const TestSourcePrefix = "test:"

// pipelineElements holds references needed for callbacks and cleanup.
type pipelineElements struct {
	Pipeline *gst.Pipeline
	AppSink  *app.Sink
	Source   *gst.Element
}

// sizeCaps returns the raw-video caps requested from the source, or "" when
// the constraints leave the resolution open.
func sizeCaps(c capture.Constraints) string {
	if c.Width <= 0 || c.Height <= 0 {
		return ""
	}
	return fmt.Sprintf("video/x-raw,width=%d,height=%d", c.Width, c.Height)
}

// rgbCaps locks the appsink input to packed RGB.
const rgbCaps = "video/x-raw,format=RGB"

// createPipeline builds a camera pipeline for one stream request.
//
// Pipeline structure:
//
//	source → [capsfilter(size)] → videoconvert → capsfilter(RGB) → appsink
//
// The pipeline is configured but NOT started (state remains NULL).
func createPipeline(src *gst.Element, c capture.Constraints) (*pipelineElements, error) {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	elements := []*gst.Element{src}

	if caps := sizeCaps(c); caps != "" {
		sizeFilter, err := gst.NewElement("capsfilter")
		if err != nil {
			return nil, fmt.Errorf("failed to create size capsfilter: %w", err)
		}
		sizeFilter.SetProperty("caps", gst.NewCapsFromString(caps))
		elements = append(elements, sizeFilter)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // 0 = auto-detect cores

	rgbFilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create RGB capsfilter: %w", err)
	}
	rgbFilter.SetProperty("caps", gst.NewCapsFromString(rgbCaps))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)    // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	elements = append(elements, converter, rgbFilter, appsink.Element)

	if err := pipeline.AddMany(elements...); err != nil {
		return nil, fmt.Errorf("failed to add pipeline elements: %w", err)
	}
	if err := gst.ElementLinkMany(elements...); err != nil {
		return nil, fmt.Errorf("failed to link pipeline elements (%s): %w", c, err)
	}

	slog.Debug("gstcam: pipeline created",
		"source", src.GetName(),
		"size_caps", sizeCaps(c),
	)

	return &pipelineElements{
		Pipeline: pipeline,
		AppSink:  appsink,
		Source:   src,
	}, nil
}

// newSourceElement creates the element feeding a pipeline.
//
//   - ""          → autovideosrc (platform default)
//   - "test:..."  → live videotestsrc
//   - "/dev/..."  → v4l2src on that node
//   - other IDs   → element created from the enumerated device
func (p *Platform) newSourceElement(deviceID string) (*gst.Element, error) {
	switch {
	case deviceID == "":
		return gst.NewElement("autovideosrc")

	case strings.HasPrefix(deviceID, TestSourcePrefix):
		src, err := gst.NewElement("videotestsrc")
		if err != nil {
			return nil, err
		}
		src.SetProperty("is-live", true)
		return src, nil

	case strings.HasPrefix(deviceID, "/dev/"):
		src, err := gst.NewElement("v4l2src")
		if err != nil {
			return nil, err
		}
		src.SetProperty("device", deviceID)
		return src, nil
	}

	p.mu.Lock()
	dev, ok := p.devices[deviceID]
	p.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown device %q: not found", deviceID)
	}

	src := dev.CreateElement("")
	if src == nil {
		return nil, fmt.Errorf("device %q: cannot create source element", deviceID)
	}
	return src, nil
}

// destroyPipeline stops the pipeline and releases the device.
func destroyPipeline(elements *pipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}
	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}
	return nil
}
