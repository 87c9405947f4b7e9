package scan

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/capture/capturetest"
	"github.com/e7canasta/orion-care-sensor/modules/code-scanner/internal/detect"
)

const (
	testInterval = MinInterval
	waitFor      = 2 * time.Second
	pollEvery    = 5 * time.Millisecond
)

// scriptedDetector returns the same result for every frame, optionally
// blocking until gate is closed, and records the peak concurrency.
type scriptedDetector struct {
	mu     sync.Mutex
	result detect.Result
	gate   chan struct{}

	calls     atomic.Int32
	active    atomic.Int32
	maxActive atomic.Int32
}

func (d *scriptedDetector) set(res detect.Result) {
	d.mu.Lock()
	d.result = res
	d.mu.Unlock()
}

func (d *scriptedDetector) Detect(capture.Frame) detect.Result {
	d.calls.Add(1)
	n := d.active.Add(1)
	defer d.active.Add(-1)
	for {
		peak := d.maxActive.Load()
		if n <= peak || d.maxActive.CompareAndSwap(peak, n) {
			break
		}
	}
	if d.gate != nil {
		<-d.gate
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.result
}

func matchOf(value string) detect.Result {
	return detect.Result{Kind: detect.KindMatch, Value: value, Format: detect.FormatEAN13, Source: detect.BackendSoftware}
}

type harness struct {
	platform *capturetest.Platform
	source   *capture.Source
	det      *scriptedDetector
	orch     *Orchestrator
}

func newHarness(t *testing.T, res detect.Result) *harness {
	t.Helper()
	p := capturetest.NewPlatform(capture.Device{ID: "cam-a", Label: "Back Camera"})
	src, err := capture.NewSource(p, capture.Config{})
	require.NoError(t, err)

	det := &scriptedDetector{result: res}
	orch, err := New(src, det, Config{Interval: testInterval})
	require.NoError(t, err)

	return &harness{platform: p, source: src, det: det, orch: orch}
}

// assertReleased checks resource symmetry: every open matched by a close,
// no live stream, no ticking loop.
func (h *harness) assertReleased(t *testing.T) {
	t.Helper()
	stats := h.source.Stats()
	assert.Equal(t, stats.Opens, stats.Closes, "opens and closes must match")
	assert.Zero(t, h.platform.Live(), "no stream may stay open")
	assert.Zero(t, h.orch.Stats().ActiveTimers, "no timer may keep ticking")
}

func receive(t *testing.T, ch <-chan detect.Result) (detect.Result, bool) {
	t.Helper()
	select {
	case res, ok := <-ch:
		return res, ok
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for scan result")
		return detect.Result{}, false
	}
}

func TestNew_Validation(t *testing.T) {
	src, err := capture.NewSource(capturetest.NewPlatform(), capture.Config{})
	require.NoError(t, err)

	_, err = New(nil, &scriptedDetector{}, Config{})
	assert.Error(t, err)
	_, err = New(src, nil, Config{})
	assert.Error(t, err)
	_, err = New(src, &scriptedDetector{}, Config{Interval: time.Millisecond})
	assert.Error(t, err)
	_, err = New(src, &scriptedDetector{}, Config{Interval: time.Minute})
	assert.Error(t, err)

	o, err := New(src, &scriptedDetector{}, Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultInterval, o.cfg.Interval)
	assert.Equal(t, capture.TierMedium, o.cfg.Tier, "zero tier means medium")
	assert.Equal(t, StatusIdle, o.Status())
}

func TestOrchestrator_Detected(t *testing.T) {
	h := newHarness(t, matchOf("4006381333931"))

	var callbacks atomic.Int32
	h.orch.OnResult(func(detect.Result) { callbacks.Add(1) })

	ch, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)

	res, ok := receive(t, ch)
	require.True(t, ok)
	assert.Equal(t, "4006381333931", res.Value)

	_, ok = receive(t, ch)
	assert.False(t, ok, "channel closes after the single result")

	sess := h.orch.Session()
	assert.Equal(t, StatusDetected, sess.Status)
	assert.Equal(t, "4006381333931", sess.LastValue)
	assert.Equal(t, detect.FormatEAN13, sess.LastFormat)
	assert.EqualValues(t, 1, callbacks.Load())
	assert.EqualValues(t, 1, h.orch.Stats().Detections)

	// timer and camera are released before the result is delivered
	h.assertReleased(t)
}

// TestOrchestrator_Dedup verifies a code held in front of the camera is
// reported once, not once per tick.
func TestOrchestrator_Dedup(t *testing.T) {
	h := newHarness(t, matchOf("A"))

	var callbacks atomic.Int32
	h.orch.OnResult(func(detect.Result) { callbacks.Add(1) })

	ch, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)
	_, ok := receive(t, ch)
	require.True(t, ok)

	// Continuous scanning: restart from Detected keeps the last value.
	ch, err = h.orch.Start(context.Background(), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.orch.Stats().Duplicates >= 3
	}, waitFor, pollEvery)

	assert.Equal(t, StatusScanning, h.orch.Status())
	assert.EqualValues(t, 1, h.orch.Stats().Detections)
	assert.EqualValues(t, 1, callbacks.Load())

	// A different code ends the run.
	h.det.set(matchOf("B"))
	res, ok := receive(t, ch)
	require.True(t, ok)
	assert.Equal(t, "B", res.Value)
	assert.EqualValues(t, 2, callbacks.Load())

	h.assertReleased(t)
}

func TestOrchestrator_StopClearsLastValue(t *testing.T) {
	h := newHarness(t, matchOf("A"))

	ch, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)
	_, ok := receive(t, ch)
	require.True(t, ok)

	require.NoError(t, h.orch.Stop())
	assert.Empty(t, h.orch.Session().LastValue)

	ch, err = h.orch.Start(context.Background(), "")
	require.NoError(t, err)
	res, ok := receive(t, ch)
	require.True(t, ok)
	assert.Equal(t, "A", res.Value)
	assert.EqualValues(t, 2, h.orch.Stats().Detections)
}

// TestOrchestrator_AtMostOneInFlight verifies ticks that fire while a
// decode cycle is running are skipped, not queued.
func TestOrchestrator_AtMostOneInFlight(t *testing.T) {
	h := newHarness(t, detect.NoMatch(""))
	h.det.gate = make(chan struct{})

	_, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.orch.Stats().TicksSkipped >= 3
	}, waitFor, pollEvery)

	assert.EqualValues(t, 1, h.det.calls.Load(), "blocked cycle must not be joined by another")
	assert.EqualValues(t, 1, h.orch.Stats().Cycles)

	close(h.det.gate)
	require.Eventually(t, func() bool {
		return h.det.calls.Load() >= 3
	}, waitFor, pollEvery)
	assert.EqualValues(t, 1, h.det.maxActive.Load())

	require.NoError(t, h.orch.Stop())
	h.assertReleased(t)
}

func TestOrchestrator_Stop_Idempotent(t *testing.T) {
	h := newHarness(t, detect.NoMatch(""))

	require.NoError(t, h.orch.Stop(), "stop before start")

	ch, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, StatusScanning, h.orch.Status())

	require.NoError(t, h.orch.Stop())
	require.NoError(t, h.orch.Stop())

	_, ok := receive(t, ch)
	assert.False(t, ok)
	assert.Equal(t, StatusIdle, h.orch.Status())

	streams := h.platform.Streams()
	require.Len(t, streams, 1)
	assert.EqualValues(t, 1, streams[0].StopCalls(), "no double release")
	h.assertReleased(t)
}

func TestOrchestrator_StopFromCallback(t *testing.T) {
	h := newHarness(t, matchOf("X"))

	stopped := make(chan error, 1)
	h.orch.OnResult(func(detect.Result) { stopped <- h.orch.Stop() })

	ch, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Stop inside OnResult deadlocked")
	}

	res, ok := receive(t, ch)
	require.True(t, ok)
	assert.Equal(t, "X", res.Value)
	assert.Equal(t, StatusIdle, h.orch.Status())
	h.assertReleased(t)
}

func TestOrchestrator_AlreadyActive(t *testing.T) {
	h := newHarness(t, detect.NoMatch(""))

	_, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)

	_, err = h.orch.Start(context.Background(), "")
	assert.ErrorIs(t, err, ErrSessionAlreadyActive)
	assert.EqualValues(t, 1, h.source.Stats().Opens, "rejected start has no side effects")
	assert.Equal(t, StatusScanning, h.orch.Status())

	require.NoError(t, h.orch.Stop())
	h.assertReleased(t)
}

func TestOrchestrator_StartFails(t *testing.T) {
	p := capturetest.NewPlatform()
	src, err := capture.NewSource(p, capture.Config{})
	require.NoError(t, err)
	orch, err := New(src, &scriptedDetector{}, Config{Interval: testInterval})
	require.NoError(t, err)

	var failed error
	orch.OnFailure(func(err error) { failed = err })

	_, err = orch.Start(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, capture.ErrNoDeviceFound)
	assert.ErrorIs(t, failed, capture.ErrNoDeviceFound)

	sess := orch.Session()
	assert.Equal(t, StatusFailed, sess.Status)
	assert.ErrorIs(t, sess.Err, capture.ErrNoDeviceFound)
	assert.EqualValues(t, 1, orch.Stats().Failures)
	assert.Zero(t, orch.Stats().ActiveTimers)

	// Failed is terminal until the consumer acts; Stop returns to Idle.
	require.NoError(t, orch.Stop())
	assert.Equal(t, StatusIdle, orch.Status())
}

func TestOrchestrator_StopDuringOpen(t *testing.T) {
	h := newHarness(t, detect.NoMatch(""))
	h.platform.Gate = make(chan struct{})
	h.platform.Opening = make(chan struct{}, 1)

	errc := make(chan error, 1)
	go func() {
		_, err := h.orch.Start(context.Background(), "")
		errc <- err
	}()

	select {
	case <-h.platform.Opening:
	case <-time.After(waitFor):
		t.Fatal("open never started")
	}
	assert.Equal(t, StatusInitializing, h.orch.Status())

	require.NoError(t, h.orch.Stop())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(waitFor):
		t.Fatal("Start did not return after Stop")
	}

	assert.Equal(t, StatusIdle, h.orch.Status())
	h.assertReleased(t)
}

func TestOrchestrator_CancelDuringOpen(t *testing.T) {
	h := newHarness(t, detect.NoMatch(""))
	h.platform.Gate = make(chan struct{})
	h.platform.Opening = make(chan struct{}, 1)

	var failed atomic.Bool
	h.orch.OnFailure(func(error) { failed.Store(true) })

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := h.orch.Start(ctx, "")
		errc <- err
	}()

	select {
	case <-h.platform.Opening:
	case <-time.After(waitFor):
		t.Fatal("open never started")
	}
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(waitFor):
		t.Fatal("Start did not return after cancel")
	}

	sess := h.orch.Session()
	assert.Equal(t, StatusIdle, sess.Status)
	assert.NoError(t, sess.Err)
	assert.False(t, failed.Load(), "cancellation is not a failure")
	assert.Zero(t, h.orch.Stats().Failures)
	assert.Zero(t, h.source.Stats().ErrorsUnknown)
	h.assertReleased(t)

	// The scanner is reusable right away.
	h.platform.Gate = nil
	_, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)
	require.NoError(t, h.orch.Stop())
}

func TestOrchestrator_FrameNotReadyIsTransient(t *testing.T) {
	h := newHarness(t, matchOf("never"))
	h.platform.Frame = capture.Frame{}

	_, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.orch.Stats().FramesNotReady >= 2
	}, waitFor, pollEvery)
	assert.Equal(t, StatusScanning, h.orch.Status())
	assert.Zero(t, h.det.calls.Load())

	require.NoError(t, h.orch.Stop())
	h.assertReleased(t)
}

func TestOrchestrator_CaptureFailure(t *testing.T) {
	h := newHarness(t, detect.NoMatch(""))

	failures := make(chan error, 1)
	h.orch.OnFailure(func(err error) { failures <- err })

	ch, err := h.orch.Start(context.Background(), "")
	require.NoError(t, err)

	lost := errors.New("device disconnected")
	h.platform.Streams()[0].SetError(lost)

	_, ok := receive(t, ch)
	assert.False(t, ok, "failed run closes the channel without a value")

	select {
	case err := <-failures:
		assert.ErrorIs(t, err, lost)
	case <-time.After(waitFor):
		t.Fatal("OnFailure not called")
	}

	sess := h.orch.Session()
	assert.Equal(t, StatusFailed, sess.Status)
	assert.ErrorIs(t, sess.Err, lost)
	h.assertReleased(t)
}

func TestOrchestrator_ContextCancel(t *testing.T) {
	h := newHarness(t, detect.NoMatch(""))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := h.orch.Start(ctx, "")
	require.NoError(t, err)

	cancel()
	_, ok := receive(t, ch)
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		return h.orch.Status() == StatusIdle
	}, waitFor, pollEvery)
	h.assertReleased(t)
}

func TestOrchestrator_Guidance(t *testing.T) {
	tests := []struct {
		name   string
		result detect.Result
		want   Guidance
		hits   bool
	}{
		{"nothing in frame", detect.NoMatch(""), GuidanceNoCodeVisible, false},
		{"bars but undecodable", detect.Result{Kind: detect.KindPatternOnly, Source: detect.BackendHeuristic}, GuidanceMoveCloser, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.result)

			_, err := h.orch.Start(context.Background(), "")
			require.NoError(t, err)

			require.Eventually(t, func() bool {
				return h.orch.Session().Guidance == tt.want
			}, waitFor, pollEvery)
			assert.Equal(t, tt.hits, h.orch.Stats().PatternHits > 0)
			assert.Greater(t, h.orch.Session().Attempts, 0)

			require.NoError(t, h.orch.Stop())
			h.assertReleased(t)
		})
	}
}

func TestOrchestrator_IntervalFor(t *testing.T) {
	fixed := &Orchestrator{cfg: Config{Interval: 300 * time.Millisecond}}
	assert.Equal(t, 300*time.Millisecond, fixed.intervalFor(100))

	adaptive := &Orchestrator{cfg: Config{Interval: 300 * time.Millisecond, Adaptive: true}}
	tests := []struct {
		misses int64
		want   time.Duration
	}{
		{0, 300 * time.Millisecond},
		{14, 300 * time.Millisecond},
		{15, 350 * time.Millisecond},
		{29, 350 * time.Millisecond},
		{30, 500 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, adaptive.intervalFor(tt.misses), "misses=%d", tt.misses)
	}

	slowBase := &Orchestrator{cfg: Config{Interval: time.Second, Adaptive: true}}
	assert.Equal(t, time.Second, slowBase.intervalFor(40), "never faster than configured")
}
