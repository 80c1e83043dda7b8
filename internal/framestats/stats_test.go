package framestats

import (
	"math"
	"testing"
	"time"
)

func timestamps(start time.Time, intervals ...time.Duration) []time.Time {
	out := []time.Time{start}
	t := start
	for _, d := range intervals {
		t = t.Add(d)
		out = append(out, t)
	}
	return out
}

func TestCalculate_SteadyStream(t *testing.T) {
	start := time.Now()
	var intervals []time.Duration
	for i := 0; i < 30; i++ {
		intervals = append(intervals, 40*time.Millisecond)
	}

	s := Calculate(timestamps(start, intervals...))

	if math.Abs(s.FPSMean-25) > 0.01 {
		t.Errorf("FPSMean = %.3f, want 25", s.FPSMean)
	}
	if s.FPSStdDev > 0.01 {
		t.Errorf("FPSStdDev = %.3f, want ~0", s.FPSStdDev)
	}
	if !s.IsStable {
		t.Error("steady stream should be stable")
	}
	if s.FramesRendered != 31 {
		t.Errorf("FramesRendered = %d, want 31", s.FramesRendered)
	}
}

func TestCalculate_JitteryStream(t *testing.T) {
	start := time.Now()
	s := Calculate(timestamps(start,
		10*time.Millisecond, 90*time.Millisecond,
		10*time.Millisecond, 90*time.Millisecond,
		10*time.Millisecond, 90*time.Millisecond,
	))

	if s.IsStable {
		t.Errorf("jittery stream reported stable: %+v", s)
	}
	if s.JitterMax <= 0 {
		t.Errorf("JitterMax = %v, want > 0", s.JitterMax)
	}
}

func TestCalculate_EdgeCases(t *testing.T) {
	if s := Calculate(nil); s.FramesRendered != 0 || s.IsStable {
		t.Errorf("empty input: %+v", s)
	}

	now := time.Now()
	if s := Calculate([]time.Time{now}); s.FramesRendered != 1 || s.FPSMean != 0 {
		t.Errorf("single frame: %+v", s)
	}
	if s := Calculate([]time.Time{now, now}); s.FPSMean != 0 {
		t.Errorf("zero span: %+v", s)
	}
}

func TestWindow_WrapsAndKeepsTotal(t *testing.T) {
	w := NewWindow(4)
	start := time.Now()
	for i := 0; i < 10; i++ {
		w.Record(start.Add(time.Duration(i) * 100 * time.Millisecond))
	}

	s := w.Snapshot()
	if s.FramesRendered != 10 {
		t.Errorf("FramesRendered = %d, want 10", s.FramesRendered)
	}
	// window holds the last 4 frames: 3 intervals of 100ms
	if s.Span != 300*time.Millisecond {
		t.Errorf("Span = %v, want 300ms", s.Span)
	}
	if math.Abs(s.FPSMean-10) > 0.01 {
		t.Errorf("FPSMean = %.3f, want 10", s.FPSMean)
	}

	w.Reset()
	if s := w.Snapshot(); s.FramesRendered != 0 {
		t.Errorf("after Reset FramesRendered = %d", s.FramesRendered)
	}
}
