// Package framestats measures render cadence: frames per second and
// inter-frame jitter over a sliding window of frame timestamps.
package framestats

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation as a fraction of mean FPS.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a fraction of expected interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20

	// DefaultWindow is the number of frame timestamps kept by NewWindow(0).
	DefaultWindow = 120
)

// Stats summarizes frame cadence.
type Stats struct {
	FramesRendered uint64        // Total frames seen since the last Reset
	Span           time.Duration // Time covered by the window
	FPSMean        float64
	FPSStdDev      float64
	FPSMin         float64
	FPSMax         float64
	JitterMean     float64 // Seconds
	JitterStdDev   float64 // Seconds
	JitterMax      float64 // Seconds
	IsStable       bool
}

// Calculate computes cadence statistics from ordered frame timestamps.
//
// This function:
//  1. Calculates mean FPS over the covered span
//  2. Calculates instantaneous FPS for each frame interval
//  3. Finds min/max and standard deviation of instantaneous FPS
//  4. Calculates jitter (deviation from the expected interval)
//  5. Determines stability (stddev < 15% of mean AND jitter < 20% of interval)
func Calculate(frameTimes []time.Time) Stats {
	n := len(frameTimes)
	if n < 2 {
		return Stats{FramesRendered: uint64(n)}
	}

	span := frameTimes[n-1].Sub(frameTimes[0])
	if span <= 0 {
		return Stats{FramesRendered: uint64(n), Span: span}
	}

	fpsMean := float64(n-1) / span.Seconds()

	instantaneousFPS := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneousFPS = append(instantaneousFPS, 1.0/interval)
		}
	}
	if len(instantaneousFPS) == 0 {
		return Stats{FramesRendered: uint64(n), Span: span, FPSMean: fpsMean}
	}

	fpsMin, fpsMax := instantaneousFPS[0], instantaneousFPS[0]
	var sumSquares float64
	for _, fps := range instantaneousFPS {
		fpsMin = math.Min(fpsMin, fps)
		fpsMax = math.Max(fpsMax, fps)
		diff := fps - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(len(instantaneousFPS)))

	expectedInterval := 1.0 / fpsMean

	jitters := make([]float64, 0, n-1)
	var jitterSum, jitterMax float64
	for i := 1; i < n; i++ {
		jitter := math.Abs(frameTimes[i].Sub(frameTimes[i-1]).Seconds() - expectedInterval)
		jitters = append(jitters, jitter)
		jitterSum += jitter
		jitterMax = math.Max(jitterMax, jitter)
	}
	jitterMean := jitterSum / float64(len(jitters))

	var jitterSumSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSumSquares += diff * diff
	}
	jitterStdDev := math.Sqrt(jitterSumSquares / float64(len(jitters)))

	fpsStable := fpsStdDev < fpsMean*fpsStabilityThreshold
	jitterStable := jitterMean < expectedInterval*jitterStabilityThreshold

	return Stats{
		FramesRendered: uint64(n),
		Span:           span,
		FPSMean:        fpsMean,
		FPSStdDev:      fpsStdDev,
		FPSMin:         fpsMin,
		FPSMax:         fpsMax,
		JitterMean:     jitterMean,
		JitterStdDev:   jitterStdDev,
		JitterMax:      jitterMax,
		IsStable:       fpsStable && jitterStable,
	}
}

// Window is a fixed-size ring of the most recent frame timestamps.
//
// Record is called from GStreamer streaming threads; Snapshot from the
// owning player. Both are safe for concurrent use.
type Window struct {
	mu    sync.Mutex
	times []time.Time
	next  int
	full  bool
	total uint64
}

// NewWindow creates a window holding size timestamps (DefaultWindow if size <= 0).
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{times: make([]time.Time, size)}
}

// Record adds a frame timestamp.
func (w *Window) Record(t time.Time) {
	w.mu.Lock()
	w.times[w.next] = t
	w.next = (w.next + 1) % len(w.times)
	if w.next == 0 {
		w.full = true
	}
	w.total++
	w.mu.Unlock()
}

// Snapshot computes Stats over the current window. FramesRendered reports
// the total since the last Reset, not just the window size.
func (w *Window) Snapshot() Stats {
	w.mu.Lock()
	ordered := w.orderedLocked()
	total := w.total
	w.mu.Unlock()

	s := Calculate(ordered)
	s.FramesRendered = total
	return s
}

// Reset discards all recorded timestamps.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.next = 0
	w.full = false
	w.total = 0
}

func (w *Window) orderedLocked() []time.Time {
	if !w.full {
		return append([]time.Time(nil), w.times[:w.next]...)
	}
	out := make([]time.Time, 0, len(w.times))
	out = append(out, w.times[w.next:]...)
	return append(out, w.times[:w.next]...)
}
