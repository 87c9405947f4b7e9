package gstcam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// stream is one running camera pipeline. The appsink callback keeps only
// the latest frame; Snapshot hands out copies of it.
type stream struct {
	elements    *pipelineElements
	constraints capture.Constraints

	latest   atomic.Pointer[capture.Frame]
	seq      atomic.Uint64
	fatal    atomic.Pointer[error]
	received atomic.Uint64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started time.Time

	stopped atomic.Bool
}

func newStream(elements *pipelineElements, c capture.Constraints) *stream {
	ctx, cancel := context.WithCancel(context.Background())
	return &stream{
		elements:    elements,
		constraints: c,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// start plays the pipeline and waits until it is PLAYING or fails.
func (s *stream) start(ctx context.Context) error {
	s.elements.AppSink.SetCallbacks(&app.SinkCallbacks{
		NewSampleFunc: s.onNewSample,
	})

	s.started = time.Now()
	if err := s.elements.Pipeline.SetState(gst.StatePlaying); err != nil {
		s.cancel()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}

	if err := s.waitPlaying(ctx); err != nil {
		s.cancel()
		return err
	}

	s.wg.Add(1)
	go s.monitorBus()

	slog.Info("gstcam: camera pipeline playing",
		"constraints", s.constraints.String(),
		"startup", time.Since(s.started),
	)
	return nil
}

func (s *stream) waitPlaying(ctx context.Context) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultPlayingTimeout)
	}

	bus := s.elements.Pipeline.GetPipelineBus()
	pipelineName := s.elements.Pipeline.GetName()

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageError:
			gerr := msg.ParseError()
			return fmt.Errorf("%s (%s)", gerr.Error(), gerr.DebugString())

		case gst.MessageStateChanged:
			if msg.Source() != pipelineName {
				continue
			}
			if _, newState := msg.ParseStateChanged(); newState == gst.StatePlaying {
				return nil
			}
		}
	}
	return fmt.Errorf("pipeline did not reach PLAYING within timeout")
}

// monitorBus watches for errors after startup. A fatal error is kept and
// reported by Snapshot so the scan loop ends instead of polling a dead
// camera forever.
func (s *stream) monitorBus() {
	defer s.wg.Done()

	bus := s.elements.Pipeline.GetPipelineBus()
	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Poll for messages with short timeout for responsive shutdown
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			err := errors.New("camera stream ended (EOS)")
			s.fatal.Store(&err)
			slog.Warn("gstcam: end of stream", "constraints", s.constraints.String())
			return

		case gst.MessageError:
			gerr := msg.ParseError()
			err := fmt.Errorf("camera pipeline error: %s", gerr.Error())
			s.fatal.Store(&err)
			slog.Error("gstcam: pipeline error",
				"error", gerr.Error(),
				"debug", gerr.DebugString(),
				"category", capture.ClassifyError(err).String(),
				"uptime", time.Since(s.started),
				"frames_received", s.received.Load(),
			)
			return
		}
	}
}

// onNewSample copies the sample into the latest-frame slot.
func (s *stream) onNewSample(sink *app.Sink) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		slog.Warn("gstcam: failed to pull sample from appsink, skipping frame")
		return gst.FlowOK
	}

	width, height := s.constraints.Width, s.constraints.Height
	if caps := sample.GetCaps(); caps != nil {
		if st := caps.GetStructureAt(0); st != nil {
			if v, err := st.GetValue("width"); err == nil {
				if w, ok := v.(int); ok {
					width = w
				}
			}
			if v, err := st.GetValue("height"); err == nil {
				if h, ok := v.(int); ok {
					height = h
				}
			}
		}
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return gst.FlowOK
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 || width <= 0 || height <= 0 {
		buffer.Unmap()
		return gst.FlowOK
	}

	// Copy frame data (GStreamer will reuse buffer). RGB rows may be padded
	// to 4 bytes, so copy row by row.
	pix := make([]byte, width*height*3)
	stride := len(data) / height
	rowBytes := width * 3
	if stride < rowBytes {
		buffer.Unmap()
		slog.Warn("gstcam: sample smaller than caps, skipping frame",
			"size_bytes", len(data),
			"width", width,
			"height", height,
		)
		return gst.FlowOK
	}
	for y := 0; y < height; y++ {
		copy(pix[y*rowBytes:(y+1)*rowBytes], data[y*stride:y*stride+rowBytes])
	}
	buffer.Unmap()

	frame := &capture.Frame{
		Seq:       s.seq.Add(1),
		Timestamp: time.Now(),
		Width:     width,
		Height:    height,
		Pix:       pix,
		TraceID:   uuid.New().String(),
	}
	s.latest.Store(frame)
	s.received.Add(1)

	return gst.FlowOK
}

// Snapshot implements capture.Stream.
func (s *stream) Snapshot() (capture.Frame, error) {
	if s.stopped.Load() {
		return capture.Frame{}, capture.ErrSessionClosed
	}
	if err := s.fatal.Load(); err != nil {
		return capture.Frame{}, *err
	}

	f := s.latest.Load()
	if f == nil {
		return capture.Frame{}, capture.ErrFrameNotReady
	}
	out := *f
	out.Pix = append([]byte(nil), f.Pix...)
	return out, nil
}

// Stop implements capture.Stream. Idempotent.
func (s *stream) Stop() error {
	if !s.stopped.CompareAndSwap(false, true) {
		return nil
	}

	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		slog.Warn("gstcam: stop timeout exceeded, bus monitor may still be running")
	}

	err := destroyPipeline(s.elements)

	slog.Info("gstcam: camera pipeline stopped",
		"frames_received", s.received.Load(),
		"uptime", time.Since(s.started),
	)
	return err
}
