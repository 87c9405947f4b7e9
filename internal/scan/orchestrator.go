package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
)

var (
	// ErrSessionAlreadyActive is returned by Start while Initializing or Scanning.
	ErrSessionAlreadyActive = errors.New("scan session already active")

	// ErrStopped is returned by Start when Stop was called while the camera
	// was still opening.
	ErrStopped = errors.New("scan stopped during start")
)

const (
	// DefaultInterval is the polling period of the scan loop
	DefaultInterval = 400 * time.Millisecond
	// MinInterval and MaxInterval bound the configurable period
	MinInterval = 50 * time.Millisecond
	MaxInterval = 5 * time.Second

	// After slowAfter / slowerAfter consecutive misses the adaptive loop
	// stretches the period to at least slowInterval / slowerInterval.
	slowAfter      = 15
	slowerAfter    = 30
	slowInterval   = 350 * time.Millisecond
	slowerInterval = 500 * time.Millisecond
)

// Capturer is the part of capture.Source the orchestrator drives.
type Capturer interface {
	Open(ctx context.Context, deviceID string, tier capture.Tier) (*capture.Session, error)
	Close(sess *capture.Session) error
	CaptureFrame(sess *capture.Session) (capture.Frame, error)
}

// Detector is the part of detect.Chain the orchestrator drives.
type Detector interface {
	Detect(frame capture.Frame) detect.Result
}

// Config configures an Orchestrator.
type Config struct {
	// Interval is the polling period (0 = DefaultInterval)
	Interval time.Duration
	// Adaptive slows polling down while nothing is found
	Adaptive bool
	// Tier is the requested capture resolution (0 = capture.TierMedium)
	Tier capture.Tier
}

// Stats are the orchestrator's lifetime counters.
type Stats struct {
	Ticks          uint64 // Timer firings
	TicksSkipped   uint64 // Firings dropped because a cycle was in flight
	FramesNotReady uint64
	Cycles         uint64 // Decode cycles started
	Duplicates     uint64 // Matches equal to the last confirmed value
	PatternHits    uint64 // Cycles that saw undecodable bar structure
	Detections     uint64
	Failures       uint64
	ActiveTimers   int64 // Polling loops currently holding a ticker
}

// run is the state of one Start..end lifecycle. Stale cycles compare their
// run against Orchestrator.run and drop their outcome when it changed.
type run struct {
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	events   chan detect.Result

	// set under Orchestrator.mu before the run is published as Scanning
	sess    *capture.Session
	started bool

	releaseOnce sync.Once
	closeOnce   sync.Once
}

func (r *run) closeEvents() {
	r.closeOnce.Do(func() { close(r.events) })
}

// Orchestrator drives the polling loop: one tick per interval, at most one
// decode cycle in flight, dedup against the last confirmed value, and the
// camera released together with the timer.
type Orchestrator struct {
	capture  Capturer
	detector Detector
	cfg      Config

	mu        sync.Mutex
	session   Session
	run       *run
	onResult  func(detect.Result)
	onFailure func(error)

	// inFlight spans runs so a stale cycle still blocks the next run's ticks
	inFlight atomic.Bool
	misses   atomic.Int64

	ticks          atomic.Uint64
	ticksSkipped   atomic.Uint64
	framesNotReady atomic.Uint64
	cycles         atomic.Uint64
	duplicates     atomic.Uint64
	patternHits    atomic.Uint64
	detections     atomic.Uint64
	failures       atomic.Uint64
	activeTimers   atomic.Int64
}

// New creates an orchestrator with fail-fast validation.
func New(c Capturer, d Detector, cfg Config) (*Orchestrator, error) {
	if c == nil {
		return nil, fmt.Errorf("scan: capturer is required")
	}
	if d == nil {
		return nil, fmt.Errorf("scan: detector is required")
	}
	if cfg.Interval == 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Interval < MinInterval || cfg.Interval > MaxInterval {
		return nil, fmt.Errorf("scan: invalid interval %v (must be %v-%v)", cfg.Interval, MinInterval, MaxInterval)
	}
	cfg.Tier = cfg.Tier.OrDefault()

	return &Orchestrator{
		capture:  c,
		detector: d,
		cfg:      cfg,
	}, nil
}

// OnResult registers the callback invoked once per Detected transition.
func (o *Orchestrator) OnResult(cb func(detect.Result)) {
	o.mu.Lock()
	o.onResult = cb
	o.mu.Unlock()
}

// OnFailure registers the callback invoked when a run fails.
func (o *Orchestrator) OnFailure(cb func(error)) {
	o.mu.Lock()
	o.onFailure = cb
	o.mu.Unlock()
}

// Start opens the camera and starts the polling loop.
//
// It blocks until the camera is open (or the fallback ladder is exhausted).
// The returned channel yields the detected result, if any, and is closed
// when the run ends for any reason. Starting from Detected keeps the last
// value, so a continuous scanner never reports the same code twice in a
// row.
func (o *Orchestrator) Start(ctx context.Context, deviceID string) (<-chan detect.Result, error) {
	o.mu.Lock()
	if o.session.Status.Active() {
		o.mu.Unlock()
		return nil, ErrSessionAlreadyActive
	}

	var last string
	var lastFormat detect.Format
	if o.session.Status == StatusDetected {
		last, lastFormat = o.session.LastValue, o.session.LastFormat
	}

	rctx, cancel := context.WithCancel(ctx)
	r := &run{
		ctx:      rctx,
		cancel:   cancel,
		loopDone: make(chan struct{}),
		events:   make(chan detect.Result, 1),
	}
	o.run = r
	o.session = Session{
		ID:         uuid.New().String(),
		Status:     StatusInitializing,
		LastValue:  last,
		LastFormat: lastFormat,
		StartedAt:  time.Now(),
	}
	sessionID := o.session.ID
	o.mu.Unlock()

	o.misses.Store(0)

	slog.Info("scan: starting",
		"session_id", sessionID,
		"device_id", deviceID,
		"interval", o.cfg.Interval,
		"adaptive", o.cfg.Adaptive,
	)

	sess, err := o.capture.Open(rctx, deviceID, o.cfg.Tier)

	o.mu.Lock()
	if o.run != r {
		o.mu.Unlock()
		if sess != nil {
			o.capture.Close(sess)
		}
		cancel()
		r.closeEvents()
		slog.Info("scan: stopped while opening camera", "session_id", sessionID)
		return nil, ErrStopped
	}

	if err != nil && rctx.Err() != nil {
		o.run = nil
		o.session = Session{Status: StatusIdle}
		o.mu.Unlock()

		cancel()
		r.closeEvents()
		slog.Info("scan: start cancelled while opening camera", "session_id", sessionID)
		return nil, fmt.Errorf("scan: start: %w", err)
	}

	if err != nil {
		o.run = nil
		o.session.Status = StatusFailed
		o.session.Err = err
		cb := o.onFailure
		o.mu.Unlock()

		cancel()
		r.closeEvents()
		o.failures.Add(1)
		slog.Error("scan: camera unavailable", "session_id", sessionID, "error", err)
		if cb != nil {
			cb(err)
		}
		return nil, fmt.Errorf("scan: start: %w", err)
	}

	r.sess = sess
	r.started = true
	o.session.Status = StatusScanning
	go func() {
		o.loop(r)
		o.finish(r)
	}()
	o.mu.Unlock()

	slog.Info("scan: scanning",
		"session_id", sessionID,
		"capture_session_id", sess.ID,
		"rung", sess.Rung,
	)
	return r.events, nil
}

// Stop tears down the timer and the capture session and returns to Idle.
//
// Valid from any state and idempotent. Safe to call from OnResult and
// OnFailure callbacks: it waits for the polling loop but never for an
// in-flight decode cycle.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	r := o.run
	o.run = nil
	prev := o.session.Status
	o.session = Session{Status: StatusIdle}
	o.mu.Unlock()

	if r == nil {
		if prev != StatusIdle {
			slog.Debug("scan: stop after run ended", "status", prev.String())
		}
		return nil
	}

	err := o.release(r)
	r.closeEvents()
	slog.Info("scan: stopped", "previous_status", prev.String())
	return err
}

// Session returns a copy of the current scan session.
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Status returns the current lifecycle state.
func (o *Orchestrator) Status() Status {
	return o.Session().Status
}

// Stats returns the lifetime counters.
//
// Thread-safe - uses atomic operations for counters.
func (o *Orchestrator) Stats() Stats {
	return Stats{
		Ticks:          o.ticks.Load(),
		TicksSkipped:   o.ticksSkipped.Load(),
		FramesNotReady: o.framesNotReady.Load(),
		Cycles:         o.cycles.Load(),
		Duplicates:     o.duplicates.Load(),
		PatternHits:    o.patternHits.Load(),
		Detections:     o.detections.Load(),
		Failures:       o.failures.Load(),
		ActiveTimers:   o.activeTimers.Load(),
	}
}

// loop owns the run's ticker. The first tick fires immediately.
func (o *Orchestrator) loop(r *run) {
	defer close(r.loopDone)

	interval := o.cfg.Interval
	ticker := time.NewTicker(interval)
	o.activeTimers.Add(1)
	defer func() {
		ticker.Stop()
		o.activeTimers.Add(-1)
	}()

	o.tick(r)
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			o.tick(r)
			if next := o.intervalFor(o.misses.Load()); next != interval {
				slog.Debug("scan: adjusting poll interval",
					"from", interval,
					"to", next,
					"misses", o.misses.Load(),
				)
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

// finish ends a run whose context was cancelled from outside (the Start
// ctx). Runs that ended through Detected, Failed or Stop are no longer
// current and are left alone.
func (o *Orchestrator) finish(r *run) {
	o.mu.Lock()
	if o.run != r {
		o.mu.Unlock()
		return
	}
	o.run = nil
	o.session.Status = StatusIdle
	o.mu.Unlock()

	o.release(r)
	r.closeEvents()
	slog.Info("scan: run context done, scanner idle")
}

// tick starts a decode cycle unless one is still running.
func (o *Orchestrator) tick(r *run) {
	o.ticks.Add(1)
	if !o.inFlight.CompareAndSwap(false, true) {
		o.ticksSkipped.Add(1)
		slog.Debug("scan: previous cycle in flight, skipping tick")
		return
	}

	go func() {
		deliver := o.cycle(r)
		o.inFlight.Store(false)
		if deliver != nil {
			deliver()
		}
	}()
}

// cycle captures one frame and runs the chain over it. It returns the
// callback delivery to run once the in-flight guard is released.
func (o *Orchestrator) cycle(r *run) func() {
	if r.ctx.Err() != nil {
		return nil
	}
	o.cycles.Add(1)

	frame, err := o.capture.CaptureFrame(r.sess)
	switch {
	case errors.Is(err, capture.ErrFrameNotReady):
		o.framesNotReady.Add(1)
		return nil
	case err != nil:
		if r.ctx.Err() != nil {
			return nil
		}
		return o.fail(r, err)
	}

	return o.evaluate(r, o.detector.Detect(frame))
}

func (o *Orchestrator) evaluate(r *run, res detect.Result) func() {
	o.mu.Lock()
	if o.run != r {
		o.mu.Unlock()
		return nil
	}
	o.session.Attempts++

	switch {
	case res.Matched() && o.session.isDuplicate(res.Value):
		o.session.Guidance = GuidanceNone
		o.mu.Unlock()
		o.misses.Store(0)
		o.duplicates.Add(1)
		return nil

	case res.Matched():
		o.run = nil
		o.session.Status = StatusDetected
		o.session.LastValue = res.Value
		o.session.LastFormat = res.Format
		o.session.Guidance = GuidanceNone
		sessionID, attempts := o.session.ID, o.session.Attempts
		cb := o.onResult
		o.mu.Unlock()

		o.misses.Store(0)
		o.detections.Add(1)
		o.release(r)

		slog.Info("scan: code detected",
			"session_id", sessionID,
			"format", string(res.Format),
			"backend", string(res.Source),
			"attempts", attempts,
		)
		return func() {
			if cb != nil {
				cb(res)
			}
			r.events <- res
			r.closeEvents()
		}

	case res.Kind == detect.KindPatternOnly:
		o.session.Guidance = GuidanceMoveCloser
		o.mu.Unlock()
		o.patternHits.Add(1)
		o.misses.Add(1)
		return nil

	default:
		o.session.Guidance = GuidanceNoCodeVisible
		o.mu.Unlock()
		o.misses.Add(1)
		return nil
	}
}

func (o *Orchestrator) fail(r *run, err error) func() {
	o.mu.Lock()
	if o.run != r {
		o.mu.Unlock()
		return nil
	}
	o.run = nil
	o.session.Status = StatusFailed
	o.session.Err = err
	sessionID := o.session.ID
	cb := o.onFailure
	o.mu.Unlock()

	o.failures.Add(1)
	o.release(r)

	slog.Error("scan: capture failed, session ended", "session_id", sessionID, "error", err)
	return func() {
		if cb != nil {
			cb(err)
		}
		r.closeEvents()
	}
}

// release stops the run's timer and closes its capture session. The two
// always go together.
func (o *Orchestrator) release(r *run) error {
	var err error
	r.releaseOnce.Do(func() {
		r.cancel()
		if r.started {
			<-r.loopDone
		}
		if r.sess != nil {
			err = o.capture.Close(r.sess)
		}
	})
	return err
}

func (o *Orchestrator) intervalFor(misses int64) time.Duration {
	base := o.cfg.Interval
	if !o.cfg.Adaptive {
		return base
	}
	switch {
	case misses >= slowerAfter:
		return max(base, slowerInterval)
	case misses >= slowAfter:
		return max(base, slowInterval)
	default:
		return base
	}
}
