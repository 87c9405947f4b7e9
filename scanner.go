package codescanner

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/scan"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/warmup"
)

// probePoll is how often Probe samples the camera for new frames.
const probePoll = 5 * time.Millisecond

// Option customizes a Scanner.
type Option func(*options)

type options struct {
	backends []Backend
}

// WithBackends replaces the standard decoder chain with backends, in
// precedence order.
func WithBackends(backends ...Backend) Option {
	return func(o *options) {
		o.backends = backends
	}
}

// Scanner converts a camera feed into at most one Detection per run.
//
// Thread-safe. Start, Stop and Probe may be called from any goroutine;
// Stop is also safe from inside OnResult and OnFailure callbacks.
type Scanner struct {
	cfg    Config
	source *capture.Source
	chain  *detect.Chain
	orch   *scan.Orchestrator

	// mu serializes camera acquisition between Start and Probe
	mu      sync.Mutex
	probing atomic.Bool
}

// New creates a Scanner with fail-fast validation.
//
// Returns error if:
//   - cfg is out of range
//   - platform is nil
//   - no decoder is enabled (or WithBackends got none)
func New(cfg Config, platform Platform, opts ...Option) (*Scanner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("code-scanner: %w", err)
	}
	if platform == nil {
		return nil, fmt.Errorf("code-scanner: %w: platform is required", ErrInvalidConfig)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	var (
		chain *detect.Chain
		err   error
	)
	switch {
	case len(o.backends) > 0:
		chain, err = detect.NewChain(o.backends...)
	case cfg.backendsEnabled():
		chain, err = detect.Build(cfg.Backends)
	default:
		err = fmt.Errorf("no decoder enabled")
	}
	if err != nil {
		return nil, fmt.Errorf("code-scanner: %w: %w", ErrInvalidConfig, err)
	}

	source, err := capture.NewSource(platform, capture.Config{
		Keywords:    cfg.Keywords,
		OpenTimeout: cfg.OpenTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("code-scanner: %w", err)
	}

	orch, err := scan.New(source, chain, scan.Config{
		Interval: cfg.Interval,
		Adaptive: cfg.Adaptive,
		Tier:     cfg.Quality,
	})
	if err != nil {
		return nil, fmt.Errorf("code-scanner: %w", err)
	}

	slog.Debug("code-scanner: created",
		"interval", cfg.Interval,
		"adaptive", cfg.Adaptive,
		"quality", cfg.Quality.String(),
		"backends", chain.Backends(),
	)

	return &Scanner{
		cfg:    cfg,
		source: source,
		chain:  chain,
		orch:   orch,
	}, nil
}

// ListCameras returns the enumerated cameras, best scanning candidates
// first (physical before virtual, rear before front).
func (s *Scanner) ListCameras(ctx context.Context) ([]CameraDevice, error) {
	devices, err := s.source.ListDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("code-scanner: %w", err)
	}
	return devices, nil
}

// Start opens a camera (deviceID empty = best-ranked) and begins scanning.
//
// It blocks until the camera is open. The returned channel yields at most
// one Detection and is closed when the run ends (detection, failure, Stop
// or ctx cancellation).
func (s *Scanner) Start(ctx context.Context, deviceID string) (<-chan Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.probing.Load() {
		return nil, fmt.Errorf("code-scanner: probe in progress: %w", ErrSessionAlreadyActive)
	}

	results, err := s.orch.Start(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("code-scanner: %w", err)
	}
	sessionID := s.orch.Session().ID

	out := make(chan Detection, 1)
	go func() {
		defer close(out)
		for r := range results {
			out <- toDetection(r, sessionID)
		}
	}()
	return out, nil
}

// Stop ends the current run, releases the camera and resets the session
// to Idle. Idempotent.
func (s *Scanner) Stop() error {
	if err := s.orch.Stop(); err != nil {
		return fmt.Errorf("code-scanner: %w", err)
	}
	return nil
}

// OnResult registers a callback invoked once per detection, after the
// camera has been released.
func (s *Scanner) OnResult(cb func(Detection)) {
	if cb == nil {
		s.orch.OnResult(nil)
		return
	}
	s.orch.OnResult(func(r detect.Result) {
		cb(toDetection(r, s.orch.Session().ID))
	})
}

// OnFailure registers a callback invoked when a run fails.
func (s *Scanner) OnFailure(cb func(error)) {
	s.orch.OnFailure(cb)
}

// Status returns the current lifecycle state.
func (s *Scanner) Status() Status {
	return s.orch.Status()
}

// Session returns a snapshot of the scan session.
func (s *Scanner) Session() ScanSession {
	return s.orch.Session()
}

// Stats returns the counters of every layer.
func (s *Scanner) Stats() Stats {
	return Stats{
		Capture:  s.source.Stats(),
		Scan:     s.orch.Stats(),
		Backends: s.chain.Stats(),
	}
}

// DecodeImage runs the decoder chain once over a still image. It never
// touches the camera. See Decoder.Decode for the error contract.
func (s *Scanner) DecodeImage(img image.Image) (Detection, error) {
	return decodeImage(s.chain, img)
}

// Probe opens a camera, measures its frame delivery for duration and
// closes it. Stats are returned alongside an error wrapping ErrUnstable
// when delivery is irregular.
func (s *Scanner) Probe(ctx context.Context, deviceID string, duration time.Duration) (*WarmupStats, error) {
	s.mu.Lock()
	if s.orch.Status().Active() {
		s.mu.Unlock()
		return nil, fmt.Errorf("code-scanner: %w", ErrSessionAlreadyActive)
	}
	if !s.probing.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil, fmt.Errorf("code-scanner: probe in progress: %w", ErrSessionAlreadyActive)
	}
	s.mu.Unlock()
	defer s.probing.Store(false)

	sess, err := s.source.Open(ctx, deviceID, s.cfg.Quality)
	if err != nil {
		return nil, fmt.Errorf("code-scanner: probe: %w", err)
	}
	defer s.source.Close(sess)

	stats, err := warmup.Measure(ctx, func() (warmup.Frame, error) {
		f, err := s.source.CaptureFrame(sess)
		if err != nil {
			return warmup.Frame{}, err
		}
		return warmup.Frame{Seq: f.Seq, Timestamp: f.Timestamp}, nil
	}, duration, probePoll)
	if err != nil {
		return stats, fmt.Errorf("code-scanner: probe %s: %w", sess.DeviceID, err)
	}
	return stats, nil
}

// RecommendedInterval suggests a polling interval for a probed camera: the
// configured one, or slightly above the frame interval when the camera is
// slower than that.
func RecommendedInterval(stats *WarmupStats, configured time.Duration) time.Duration {
	return warmup.RecommendedInterval(stats, configured)
}
