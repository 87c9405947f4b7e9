package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// State is the capture source lifecycle state.
type State int

const (
	// StateClosed means no hardware is held
	StateClosed State = iota
	// StateOpening means the fallback ladder is being walked
	StateOpening
	// StateOpen means exactly one session holds a stream
	StateOpen
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	default:
		return "closed"
	}
}

// Config configures a Source.
type Config struct {
	// Keywords drive device ranking (zero value = DefaultKeywords)
	Keywords Keywords
	// OpenTimeout bounds each single stream request (0 = no bound)
	OpenTimeout time.Duration
}

// Stats are the source's lifetime counters.
type Stats struct {
	Opens    uint64
	Closes   uint64
	Attempts uint64

	// Failed stream requests by category
	ErrorsPermission uint64
	ErrorsBusy       uint64
	ErrorsNotFound   uint64
	ErrorsFormat     uint64
	ErrorsUnknown    uint64
}

// Session is one open hardware grab. It is owned by the Source that opened
// it and must be released through Source.Close.
type Session struct {
	ID       string
	DeviceID string
	Width    int
	Height   int
	// Rung is the fallback ladder rung that produced the stream
	Rung string

	stream Stream
	closed atomic.Bool
}

// Closed reports whether the session has been released.
func (s *Session) Closed() bool {
	return s.closed.Load()
}

// Source owns the device list and the single active session.
type Source struct {
	platform    Platform
	keywords    Keywords
	openTimeout time.Duration

	// openMu serializes Open so two ladders never overlap
	openMu sync.Mutex

	mu      sync.Mutex
	state   State
	current *Session

	opens    atomic.Uint64
	closes   atomic.Uint64
	attempts atomic.Uint64

	errorsPermission atomic.Uint64
	errorsBusy       atomic.Uint64
	errorsNotFound   atomic.Uint64
	errorsFormat     atomic.Uint64
	errorsUnknown    atomic.Uint64
}

// NewSource creates a capture source on top of a platform.
func NewSource(p Platform, cfg Config) (*Source, error) {
	if p == nil {
		return nil, fmt.Errorf("capture: platform is required")
	}
	if cfg.OpenTimeout < 0 {
		return nil, fmt.Errorf("capture: invalid open timeout %v", cfg.OpenTimeout)
	}

	kw := cfg.Keywords
	if len(kw.Virtual) == 0 && len(kw.Rear) == 0 && len(kw.Front) == 0 {
		kw = DefaultKeywords()
	}

	return &Source{
		platform:    p,
		keywords:    kw,
		openTimeout: cfg.OpenTimeout,
	}, nil
}

// ListDevices enumerates cameras ranked for scanning (see Keywords.Rank).
func (s *Source) ListDevices(ctx context.Context) ([]Device, error) {
	devices, err := s.platform.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, ErrNoDeviceFound
	}
	return s.keywords.Rank(devices), nil
}

// Open acquires a stream by walking the fallback ladder.
//
// An already open session is released first, so two hardware grabs never
// overlap. An empty deviceID selects the best-ranked device. The first
// attempt that succeeds wins; when every rung fails the returned error
// matches ErrCaptureUnavailable and wraps the last platform error.
func (s *Source) Open(ctx context.Context, deviceID string, tier Tier) (*Session, error) {
	s.openMu.Lock()
	defer s.openMu.Unlock()
	tier = tier.OrDefault()

	s.mu.Lock()
	prev := s.current
	s.mu.Unlock()
	if prev != nil {
		slog.Info("capture: releasing previous session before open", "session_id", prev.ID)
		s.Close(prev)
	}

	s.setState(StateOpening)

	ranked, err := s.ListDevices(ctx)
	switch {
	case errors.Is(err, ErrNoDeviceFound):
		s.setState(StateClosed)
		return nil, err
	case err != nil:
		// Enumeration can fail while opening still works (e.g. no device
		// monitor support); the defaults rung covers that case.
		slog.Warn("capture: device enumeration failed, continuing with ladder", "error", err)
	}

	target := s.pickTarget(deviceID, ranked)
	ladder := BuildLadder(target, ranked, tier)

	slog.Info("capture: opening camera",
		"device_id", target.ID,
		"facing", target.Facing.String(),
		"tier", tier.String(),
		"devices", len(ranked),
	)

	var (
		lastErr  error
		lastRung string
		attempts int
	)
	for _, rung := range ladder {
		for _, c := range rung.Attempts {
			if err := ctx.Err(); err != nil {
				s.setState(StateClosed)
				return nil, fmt.Errorf("capture: open cancelled: %w", err)
			}

			attempts++
			lastRung = rung.Name
			s.attempts.Add(1)

			stream, err := s.openOnce(ctx, c)
			if err != nil && ctx.Err() != nil {
				// Caller gave up; not a camera error.
				s.setState(StateClosed)
				return nil, fmt.Errorf("capture: open cancelled: %w", ctx.Err())
			}
			if err != nil {
				lastErr = err
				category := ClassifyError(err)
				s.countError(category)
				slog.Warn("capture: stream request failed",
					"rung", rung.Name,
					"constraints", c.String(),
					"category", category.String(),
					"error", err,
				)
				continue
			}

			sess := &Session{
				ID:       uuid.New().String(),
				DeviceID: c.DeviceID,
				Width:    c.Width,
				Height:   c.Height,
				Rung:     rung.Name,
				stream:   stream,
			}

			s.mu.Lock()
			s.current = sess
			s.state = StateOpen
			s.mu.Unlock()
			s.opens.Add(1)

			slog.Info("capture: session opened",
				"session_id", sess.ID,
				"rung", rung.Name,
				"constraints", c.String(),
				"attempts", attempts,
			)
			return sess, nil
		}
	}

	s.setState(StateClosed)

	uerr := &UnavailableError{
		Attempts: attempts,
		Rung:     lastRung,
		Category: ClassifyError(lastErr),
		Err:      lastErr,
	}
	slog.Error("capture: fallback ladder exhausted",
		"attempts", attempts,
		"last_rung", lastRung,
		"category", uerr.Category.String(),
		"error", lastErr,
	)
	return nil, uerr
}

// Close stops the session's stream. Closing a closed (or nil) session is a
// no-op.
func (s *Source) Close(sess *Session) error {
	if sess == nil || !sess.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := sess.stream.Stop()
	s.closes.Add(1)

	s.mu.Lock()
	if s.current == sess {
		s.current = nil
		if s.state == StateOpen {
			s.state = StateClosed
		}
	}
	s.mu.Unlock()

	if err != nil {
		slog.Warn("capture: stream stop reported error", "session_id", sess.ID, "error", err)
		return fmt.Errorf("capture: stop stream: %w", err)
	}
	slog.Info("capture: session closed", "session_id", sess.ID)
	return nil
}

// CaptureFrame takes one snapshot from an open session.
func (s *Source) CaptureFrame(sess *Session) (Frame, error) {
	if sess == nil || sess.closed.Load() {
		return Frame{}, ErrSessionClosed
	}

	frame, err := sess.stream.Snapshot()
	if err != nil {
		return Frame{}, err
	}
	if !frame.Valid() {
		return Frame{}, ErrFrameNotReady
	}
	if frame.TraceID == "" {
		frame.TraceID = uuid.New().String()
	}
	return frame, nil
}

// State returns the current lifecycle state.
func (s *Source) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns the lifetime counters.
//
// Thread-safe - uses atomic operations for counters.
func (s *Source) Stats() Stats {
	return Stats{
		Opens:            s.opens.Load(),
		Closes:           s.closes.Load(),
		Attempts:         s.attempts.Load(),
		ErrorsPermission: s.errorsPermission.Load(),
		ErrorsBusy:       s.errorsBusy.Load(),
		ErrorsNotFound:   s.errorsNotFound.Load(),
		ErrorsFormat:     s.errorsFormat.Load(),
		ErrorsUnknown:    s.errorsUnknown.Load(),
	}
}

func (s *Source) openOnce(ctx context.Context, c Constraints) (Stream, error) {
	if s.openTimeout <= 0 {
		return s.platform.Open(ctx, c)
	}
	actx, cancel := context.WithTimeout(ctx, s.openTimeout)
	defer cancel()
	return s.platform.Open(actx, c)
}

func (s *Source) pickTarget(deviceID string, ranked []Device) Device {
	if deviceID == "" {
		if len(ranked) == 0 {
			return Device{}
		}
		return ranked[0]
	}
	for _, d := range ranked {
		if d.ID == deviceID {
			return d
		}
	}
	// Not enumerated (hot-plugged or enumeration failed): still try it.
	return Device{ID: deviceID}
}

func (s *Source) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *Source) countError(c ErrorCategory) {
	switch c {
	case ErrCategoryPermission:
		s.errorsPermission.Add(1)
	case ErrCategoryBusy:
		s.errorsBusy.Add(1)
	case ErrCategoryNotFound:
		s.errorsNotFound.Add(1)
	case ErrCategoryFormat:
		s.errorsFormat.Add(1)
	default:
		s.errorsUnknown.Add(1)
	}
}
