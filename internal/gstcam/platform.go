// Package gstcam implements capture.Platform on GStreamer.
package gstcam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// defaultPlayingTimeout bounds the wait for PLAYING when ctx has no deadline.
const defaultPlayingTimeout = 5 * time.Second

// Platform enumerates cameras with a GStreamer device monitor and opens
// them as appsink pipelines.
type Platform struct {
	mu sync.Mutex
	// devices from the last enumeration, by ID
	devices map[string]*gst.Device
}

// New creates the platform with fail-fast validation of the GStreamer
// runtime.
func New() (*Platform, error) {
	if err := checkGStreamerAvailable(); err != nil {
		return nil, fmt.Errorf("gstcam: GStreamer not available: %w", err)
	}
	return &Platform{devices: make(map[string]*gst.Device)}, nil
}

// Devices implements capture.Platform.
func (p *Platform) Devices(ctx context.Context) ([]capture.Device, error) {
	monitor := gst.NewDeviceMonitor()
	if monitor == nil {
		return nil, fmt.Errorf("gstcam: cannot create device monitor")
	}
	monitor.AddFilter("Video/Source", gst.NewCapsFromString("video/x-raw"))
	if !monitor.Start() {
		return nil, fmt.Errorf("gstcam: device monitor failed to start")
	}
	defer monitor.Stop()

	found := monitor.GetDevices()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices = make(map[string]*gst.Device, len(found))

	devices := make([]capture.Device, 0, len(found))
	for _, d := range found {
		id := deviceID(d)
		if _, dup := p.devices[id]; dup {
			continue
		}
		p.devices[id] = d
		devices = append(devices, capture.Device{
			ID:    id,
			Label: d.GetDisplayName(),
		})
	}

	slog.Debug("gstcam: devices enumerated", "count", len(devices))
	return devices, nil
}

// Open implements capture.Platform.
func (p *Platform) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	src, err := p.newSourceElement(c.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w", err)
	}

	elements, err := createPipeline(src, c)
	if err != nil {
		return nil, fmt.Errorf("gstcam: %w", err)
	}

	s := newStream(elements, c)
	if err := s.start(ctx); err != nil {
		destroyPipeline(elements)
		return nil, fmt.Errorf("gstcam: %s: %w", c, err)
	}
	return s, nil
}

// deviceID prefers the device node path so IDs survive re-enumeration.
func deviceID(d *gst.Device) string {
	if props := d.GetProperties(); props != nil {
		for _, key := range []string{"api.v4l2.path", "device.path", "object.path"} {
			if v, err := props.GetValue(key); err == nil {
				if s, ok := v.(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return d.GetDisplayName()
}

// checkGStreamerAvailable verifies GStreamer can create elements.
func checkGStreamerAvailable() error {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	elem, err := gst.NewElement("fakesrc")
	if err != nil {
		return fmt.Errorf("GStreamer not available or not properly installed: %w", err)
	}
	elem.SetState(gst.StateNull)
	return nil
}
