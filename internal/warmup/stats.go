package warmup

import (
	"math"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum FPS standard deviation as a
	// fraction of mean FPS (30 FPS mean → stable if stddev < 4.5 FPS).
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum mean jitter as a fraction of
	// the expected inter-frame interval.
	jitterStabilityThreshold = 0.20
)

// Stats describes the delivery rate of a camera session.
type Stats struct {
	FramesReceived int           // Distinct frames observed
	Duration       time.Duration // Measurement window
	FPSMean        float64       // Mean FPS across the window
	FPSStdDev      float64       // Standard deviation of instantaneous FPS
	FPSMin         float64       // Minimum instantaneous FPS
	FPSMax         float64       // Maximum instantaneous FPS
	IsStable       bool          // FPS stddev < 15% of mean AND jitter < 20%
	JitterMean     float64       // Mean deviation from the expected interval (seconds)
	JitterStdDev   float64       // Standard deviation of jitter (seconds)
	JitterMax      float64       // Maximum jitter observed (seconds)
}

// CalculateFPSStats derives delivery statistics from frame timestamps.
//
// Stability requires both:
//   - FPS: stddev < 15% of mean FPS
//   - Jitter: mean jitter < 20% of expected interval
func CalculateFPSStats(frameTimes []time.Time, window time.Duration) *Stats {
	n := len(frameTimes)
	stats := &Stats{FramesReceived: n, Duration: window}
	if n == 0 || window <= 0 {
		return stats
	}

	stats.FPSMean = float64(n) / window.Seconds()

	intervals := make([]float64, 0, n-1)
	instant := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		iv := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		intervals = append(intervals, iv)
		if iv > 0 {
			instant = append(instant, 1.0/iv)
		}
	}
	if len(instant) == 0 {
		return stats
	}

	stats.FPSMin, stats.FPSMax = minMax(instant)
	stats.FPSStdDev = stdDevAround(instant, stats.FPSMean)

	expected := 1.0 / stats.FPSMean
	jitters := make([]float64, len(intervals))
	for i, iv := range intervals {
		jitters[i] = math.Abs(iv - expected)
	}
	stats.JitterMean = mean(jitters)
	stats.JitterStdDev = stdDevAround(jitters, stats.JitterMean)
	_, stats.JitterMax = minMax(jitters)

	stats.IsStable = stats.FPSStdDev < stats.FPSMean*fpsStabilityThreshold &&
		stats.JitterMean < expected*jitterStabilityThreshold
	return stats
}

// RecommendedInterval returns the scan interval to use for a camera.
//
// Polling faster than the camera delivers only re-decodes the same frame,
// so when the measured frame interval is longer than configured the scan
// interval is stretched to 110% of it. Without stats the configured
// interval is kept.
func RecommendedInterval(stats *Stats, configured time.Duration) time.Duration {
	if stats == nil || stats.FPSMean <= 0 {
		return configured
	}
	frameInterval := time.Duration(float64(time.Second) / stats.FPSMean)
	if frameInterval <= configured {
		return configured
	}
	return frameInterval * 11 / 10
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stdDevAround(xs []float64, center float64) float64 {
	var sq float64
	for _, x := range xs {
		d := x - center
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(xs)))
}

func minMax(xs []float64) (lo, hi float64) {
	lo, hi = xs[0], xs[0]
	for _, x := range xs[1:] {
		lo = math.Min(lo, x)
		hi = math.Max(hi, x)
	}
	return lo, hi
}
