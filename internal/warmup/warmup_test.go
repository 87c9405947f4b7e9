package warmup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evenlySpaced(n int, interval time.Duration) []time.Time {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, n)
	for i := range out {
		out[i] = base.Add(time.Duration(i) * interval)
	}
	return out
}

func TestCalculateFPSStats_Stability(t *testing.T) {
	t.Run("evenly spaced is stable", func(t *testing.T) {
		stats := CalculateFPSStats(evenlySpaced(10, 100*time.Millisecond), time.Second)

		assert.InDelta(t, 10.0, stats.FPSMean, 0.001)
		assert.InDelta(t, 0.0, stats.FPSStdDev, 0.001)
		assert.InDelta(t, 0.0, stats.JitterMean, 0.0001)
		assert.True(t, stats.IsStable)
	})

	t.Run("alternating intervals are unstable", func(t *testing.T) {
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		times := []time.Time{base}
		for i := 0; i < 10; i++ {
			step := 50 * time.Millisecond
			if i%2 == 1 {
				step = 250 * time.Millisecond
			}
			times = append(times, times[len(times)-1].Add(step))
		}

		stats := CalculateFPSStats(times, 1500*time.Millisecond)
		assert.False(t, stats.IsStable)
		assert.InDelta(t, 20.0, stats.FPSMax, 0.001)
		assert.InDelta(t, 4.0, stats.FPSMin, 0.001)
		assert.GreaterOrEqual(t, stats.JitterMax, stats.JitterMean)
	})
}

func TestCalculateFPSStats_EdgeCases(t *testing.T) {
	tests := []struct {
		name       string
		frameTimes []time.Time
		window     time.Duration
	}{
		{"zero frames", nil, time.Second},
		{"one frame", evenlySpaced(1, time.Second), time.Second},
		{"two frames", evenlySpaced(2, time.Second), time.Second},
		{"zero window", evenlySpaced(5, time.Second), 0},
		{"identical timestamps", evenlySpaced(3, 0), time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stats := CalculateFPSStats(tt.frameTimes, tt.window)
			require.NotNil(t, stats)
			assert.False(t, stats.IsStable)
			assert.GreaterOrEqual(t, stats.FPSStdDev, 0.0)
			assert.GreaterOrEqual(t, stats.JitterMean, 0.0)
		})
	}
}

func TestRecommendedInterval(t *testing.T) {
	configured := 400 * time.Millisecond

	assert.Equal(t, configured, RecommendedInterval(nil, configured))
	assert.Equal(t, configured, RecommendedInterval(&Stats{FPSMean: 30}, configured))
	assert.Equal(t, 550*time.Millisecond, RecommendedInterval(&Stats{FPSMean: 2}, configured))
}

func TestMeasure(t *testing.T) {
	t.Run("counts distinct frames", func(t *testing.T) {
		var seq atomic.Uint64
		snapshot := func() (Frame, error) {
			return Frame{Seq: seq.Add(1), Timestamp: time.Now()}, nil
		}

		stats, err := Measure(context.Background(), snapshot, 60*time.Millisecond, time.Millisecond)
		if err != nil {
			assert.ErrorIs(t, err, ErrUnstable)
		}
		require.NotNil(t, stats)
		assert.GreaterOrEqual(t, stats.FramesReceived, 2)
	})

	t.Run("repeated frame is counted once", func(t *testing.T) {
		snapshot := func() (Frame, error) {
			return Frame{Seq: 7, Timestamp: time.Now()}, nil
		}

		_, err := Measure(context.Background(), snapshot, 20*time.Millisecond, time.Millisecond)
		assert.ErrorContains(t, err, "not enough frames")
	})

	t.Run("snapshot errors are skipped", func(t *testing.T) {
		snapshot := func() (Frame, error) {
			return Frame{}, errors.New("frame not ready")
		}

		_, err := Measure(context.Background(), snapshot, 20*time.Millisecond, time.Millisecond)
		assert.ErrorContains(t, err, "got 0")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := Measure(ctx, func() (Frame, error) { return Frame{}, nil }, time.Second, time.Millisecond)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("invalid duration", func(t *testing.T) {
		_, err := Measure(context.Background(), nil, 0, 0)
		assert.Error(t, err)
	})
}
