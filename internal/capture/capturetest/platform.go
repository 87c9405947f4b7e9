// Package capturetest provides an in-memory capture.Platform for tests.
package capturetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
)

// Platform is a scripted capture.Platform.
//
// Open consults Fail (keyed by device ID, "" for the defaults request)
// and, if the key is absent, hands out a Stream that serves Frames.
type Platform struct {
	mu sync.Mutex

	// Devices returned by Devices
	DeviceList []capture.Device
	// DevicesErr is returned by Devices when set
	DevicesErr error
	// Fail maps device IDs to open errors
	Fail map[string]error
	// FailUnconstrained fails requests without a resolution
	FailUnconstrained error
	// Frame is served by every stream opened (zero value = not ready)
	Frame capture.Frame
	// Gate, when set, blocks Open until it is closed or ctx is done
	Gate chan struct{}
	// Opening is signalled (non-blocking) when Open starts waiting on Gate
	Opening chan struct{}

	requests []capture.Constraints
	streams  []*Stream

	stops atomic.Int64
}

// NewPlatform returns a platform with the given devices and a 4x4 frame.
func NewPlatform(devices ...capture.Device) *Platform {
	return &Platform{
		DeviceList: devices,
		Fail:       map[string]error{},
		Frame:      SolidFrame(4, 4, 0),
	}
}

// Devices implements capture.Platform.
func (p *Platform) Devices(ctx context.Context) ([]capture.Device, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.DevicesErr != nil {
		return nil, p.DevicesErr
	}
	out := make([]capture.Device, len(p.DeviceList))
	copy(out, p.DeviceList)
	return out, nil
}

// Open implements capture.Platform.
func (p *Platform) Open(ctx context.Context, c capture.Constraints) (capture.Stream, error) {
	if p.Gate != nil {
		if p.Opening != nil {
			select {
			case p.Opening <- struct{}{}:
			default:
			}
		}
		select {
		case <-p.Gate:
		case <-ctx.Done():
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, c)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err, ok := p.Fail[c.DeviceID]; ok {
		return nil, err
	}
	if p.FailUnconstrained != nil && c.Width == 0 && c.Height == 0 {
		return nil, p.FailUnconstrained
	}

	s := &Stream{platform: p, constraints: c}
	f := p.Frame
	s.frame.Store(&f)
	p.streams = append(p.streams, s)
	return s, nil
}

// Requests returns every constraint set passed to Open, in order.
func (p *Platform) Requests() []capture.Constraints {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]capture.Constraints, len(p.requests))
	copy(out, p.requests)
	return out
}

// Streams returns the streams opened so far.
func (p *Platform) Streams() []*Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Stream, len(p.streams))
	copy(out, p.streams)
	return out
}

// Live returns the number of streams opened and not stopped.
func (p *Platform) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams) - int(p.stops.Load())
}

// Stream is a fake capture.Stream.
type Stream struct {
	platform    *Platform
	constraints capture.Constraints

	frame   atomic.Pointer[capture.Frame]
	err     atomic.Pointer[error]
	seq     atomic.Uint64
	stopped atomic.Bool
	stops   atomic.Int64
}

// Constraints returns what the stream was opened with.
func (s *Stream) Constraints() capture.Constraints {
	return s.constraints
}

// SetFrame replaces the served frame.
func (s *Stream) SetFrame(f capture.Frame) {
	s.frame.Store(&f)
}

// SetError makes every following Snapshot fail with err.
func (s *Stream) SetError(err error) {
	s.err.Store(&err)
}

// Snapshot implements capture.Stream.
func (s *Stream) Snapshot() (capture.Frame, error) {
	if s.stopped.Load() {
		return capture.Frame{}, errors.New("stream stopped")
	}
	if err := s.err.Load(); err != nil {
		return capture.Frame{}, *err
	}
	f := *s.frame.Load()
	if !f.Valid() {
		return capture.Frame{}, capture.ErrFrameNotReady
	}
	f.Seq = s.seq.Add(1)
	f.Pix = append([]byte(nil), f.Pix...)
	return f, nil
}

// Stop implements capture.Stream. Every call is counted so tests can
// detect double release.
func (s *Stream) Stop() error {
	s.stops.Add(1)
	if s.stopped.CompareAndSwap(false, true) {
		s.platform.stops.Add(1)
	}
	return nil
}

// StopCalls returns how many times Stop was called.
func (s *Stream) StopCalls() int64 {
	return s.stops.Load()
}

// SolidFrame returns a w×h frame filled with one gray level.
func SolidFrame(w, h int, level byte) capture.Frame {
	pix := make([]byte, w*h*3)
	for i := range pix {
		pix[i] = level
	}
	return capture.Frame{Width: w, Height: h, Pix: pix}
}
