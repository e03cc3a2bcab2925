package daemon

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBackoff_Sequence(t *testing.T) {
	b := NewBackoff(10000*time.Millisecond, 60000*time.Millisecond, 1.5)

	got := []time.Duration{b.Current()}
	for i := 0; i < 6; i++ {
		got = append(got, b.Next())
	}

	want := []time.Duration{
		10000 * time.Millisecond,
		15000 * time.Millisecond,
		22500 * time.Millisecond,
		33750 * time.Millisecond,
		50625 * time.Millisecond,
		60000 * time.Millisecond,
		60000 * time.Millisecond,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("interval sequence mismatch (-want +got):\n%s", diff)
	}

	if got := b.Reset(); got != 10000*time.Millisecond {
		t.Errorf("Reset() = %v, want 10s", got)
	}
	if got := b.Current(); got != 10000*time.Millisecond {
		t.Errorf("Current() after reset = %v, want 10s", got)
	}
}

func TestBackoff_RoundsToMillisecond(t *testing.T) {
	b := NewBackoff(1001*time.Millisecond, time.Minute, 1.5)
	// 1001 * 1.5 = 1501.5 rounds half away from zero.
	if got := b.Next(); got != 1502*time.Millisecond {
		t.Errorf("Next() = %v, want 1.502s", got)
	}
}

func TestBackoff_Bounds(t *testing.T) {
	tests := []struct {
		name       string
		min, max   time.Duration
		multiplier float64
		want       time.Duration
	}{
		{"multiplier one holds at min", time.Second, time.Minute, 1, time.Second},
		{"max below min collapses to min", time.Second, time.Millisecond, 2, time.Second},
		{"large multiplier clamps to max", time.Second, 5 * time.Second, 100, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(tt.min, tt.max, tt.multiplier)
			for i := 0; i < 5; i++ {
				b.Next()
			}
			if got := b.Current(); got != tt.want {
				t.Errorf("Current() = %v, want %v", got, tt.want)
			}
		})
	}
}
