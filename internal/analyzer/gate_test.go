package analyzer

import (
	"testing"
	"time"
)

func ms(n int64) time.Time {
	return time.UnixMilli(1_700_000_000_000 + n)
}

func TestThrottleGate(t *testing.T) {
	t.Run("accepts on interval from last processed", func(t *testing.T) {
		g := NewThrottleGate(time.Second)
		var accepted []int64
		for _, n := range []int64{0, 400, 1000, 1500} {
			if g.Admit(ms(n)) {
				accepted = append(accepted, n)
			}
		}
		if len(accepted) != 2 || accepted[0] != 0 || accepted[1] != 1000 {
			t.Errorf("accepted=%v", accepted)
		}
	})

	t.Run("open does not mutate", func(t *testing.T) {
		g := NewThrottleGate(time.Second)
		if !g.Open(ms(0)) || !g.Open(ms(0)) {
			t.Fatal("gate should be open before first frame")
		}
		if !g.LastProcessedAt().IsZero() {
			t.Errorf("last=%v", g.LastProcessedAt())
		}
	})

	t.Run("never moves backwards", func(t *testing.T) {
		g := NewThrottleGate(time.Second)
		g.MarkProcessed(ms(2000))
		g.MarkProcessed(ms(1000))
		if got := g.LastProcessedAt(); !got.Equal(ms(2000)) {
			t.Errorf("last=%v", got)
		}
	})

	t.Run("default interval", func(t *testing.T) {
		if got := NewThrottleGate(0).MinInterval(); got != DefaultMinInterval {
			t.Errorf("interval=%v", got)
		}
	})
}

func TestShouldProcess(t *testing.T) {
	tests := []struct {
		ts, last int64
		want     bool
	}{
		{1000, 0, true},
		{999, 0, false},
		{1500, 1000, false},
		{2000, 1000, true},
		{500, 1000, false},
	}
	for _, tt := range tests {
		if got := ShouldProcess(ms(tt.ts), ms(tt.last), time.Second); got != tt.want {
			t.Errorf("ShouldProcess(%d, %d)=%v want %v", tt.ts, tt.last, got, tt.want)
		}
	}
	if !ShouldProcess(ms(0), time.Time{}, time.Second) {
		t.Error("zero last must admit")
	}
}

func TestFrameRateTracker(t *testing.T) {
	t.Run("window eviction", func(t *testing.T) {
		tr := NewFrameRateTracker(DefaultFrameRateWindow)
		for i := int64(0); i < 10; i++ {
			tr.Record(ms(i * 100))
		}
		got := tr.Timestamps()
		if len(got) != 8 {
			t.Fatalf("len=%d", len(got))
		}
		for i, ts := range got {
			want := ms(int64(9-i) * 100)
			if !ts.Equal(want) {
				t.Errorf("ts[%d]=%v want %v", i, ts, want)
			}
		}
	})

	t.Run("sentinel until populated", func(t *testing.T) {
		tr := NewFrameRateTracker(DefaultFrameRateWindow)
		if got := tr.FPS(); got != UnknownFPS {
			t.Errorf("empty fps=%v", got)
		}
		tr.Record(ms(0))
		if got := tr.FPS(); got != UnknownFPS {
			t.Errorf("single fps=%v", got)
		}
		tr.Record(ms(0))
		if got := tr.FPS(); got != UnknownFPS {
			t.Errorf("zero span fps=%v", got)
		}
	})

	t.Run("moving average", func(t *testing.T) {
		tr := NewFrameRateTracker(DefaultFrameRateWindow)
		for i := int64(0); i < 8; i++ {
			tr.Record(ms(i * 100))
		}
		want := 1000.0 / (700.0 / 8.0)
		if got := tr.FPS(); got < want-1e-9 || got > want+1e-9 {
			t.Errorf("fps=%v want %v", got, want)
		}
	})
}
