package warmup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrUnstable is returned (with the stats) when delivery is not stable.
var ErrUnstable = errors.New("warmup: camera frame rate unstable")

// Frame is the part of a snapshot the measurement needs.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
}

// SnapshotFunc returns the most recent frame of a session. It may return
// the same frame several times; only new sequence numbers are counted.
type SnapshotFunc func() (Frame, error)

// Measure samples a session for duration and reports its delivery stats.
//
// Cameras are pull-based here (latest frame wins), so the session is polled
// every poll interval and each distinct Seq is recorded with the timestamp
// the platform assigned to it. Snapshot errors are treated as "no new
// frame" since a camera may still be negotiating at the start.
//
// Returns an error if:
//   - ctx is cancelled
//   - fewer than 2 distinct frames were seen
//   - delivery is unstable (stats are returned alongside ErrUnstable)
func Measure(ctx context.Context, snapshot SnapshotFunc, duration, poll time.Duration) (*Stats, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("warmup: invalid duration %v", duration)
	}
	if poll <= 0 {
		poll = 5 * time.Millisecond
	}

	slog.Info("warmup: measuring camera delivery",
		"duration", duration,
		"poll", poll,
	)

	start := time.Now()
	deadline := time.NewTimer(duration)
	defer deadline.Stop()
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var (
		frameTimes = make([]time.Time, 0, 128)
		lastSeq    uint64
		seen       bool
	)

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("warmup: cancelled: %w", ctx.Err())
		case <-deadline.C:
			return analyze(frameTimes, time.Since(start))
		case <-ticker.C:
			f, err := snapshot()
			if err != nil {
				continue
			}
			if seen && f.Seq == lastSeq {
				continue
			}
			seen = true
			lastSeq = f.Seq
			ts := f.Timestamp
			if ts.IsZero() {
				ts = time.Now()
			}
			frameTimes = append(frameTimes, ts)

			slog.Debug("warmup: frame observed",
				"seq", f.Seq,
				"frames_collected", len(frameTimes),
			)
		}
	}
}

func analyze(frameTimes []time.Time, elapsed time.Duration) (*Stats, error) {
	if len(frameTimes) < 2 {
		return nil, fmt.Errorf(
			"warmup: not enough frames received (got %d, need at least 2)",
			len(frameTimes),
		)
	}

	stats := CalculateFPSStats(frameTimes, elapsed)

	slog.Info("warmup: camera measurement complete",
		"frames", stats.FramesReceived,
		"duration", stats.Duration,
		"fps_mean", fmt.Sprintf("%.2f", stats.FPSMean),
		"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
		"fps_range", fmt.Sprintf("%.1f-%.1f", stats.FPSMin, stats.FPSMax),
		"jitter_mean", fmt.Sprintf("%.3fs", stats.JitterMean),
		"stable", stats.IsStable,
	)

	if !stats.IsStable {
		return stats, fmt.Errorf("%w (mean=%.2f Hz, stddev=%.2f, jitter=%.3fs)",
			ErrUnstable, stats.FPSMean, stats.FPSStdDev, stats.JitterMean)
	}
	return stats, nil
}
