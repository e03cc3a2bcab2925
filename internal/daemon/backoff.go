package daemon

import (
	"math"
	"time"
)

// Backoff is the poll interval controller. It starts at min, resets to min
// whenever the opportunity is seen and otherwise grows geometrically up to
// max. No jitter is applied.
type Backoff struct {
	min        time.Duration
	max        time.Duration
	multiplier float64
	current    time.Duration
}

// NewBackoff returns a Backoff at its minimum interval.
func NewBackoff(min, max time.Duration, multiplier float64) *Backoff {
	if max < min {
		max = min
	}
	return &Backoff{min: min, max: max, multiplier: multiplier, current: min}
}

// Current returns the interval to sleep before the next poll.
func (b *Backoff) Current() time.Duration { return b.current }

// Reset returns the interval to its minimum.
func (b *Backoff) Reset() time.Duration {
	b.current = b.min
	return b.current
}

// Next grows the interval by the multiplier, rounded to the millisecond and
// clamped to [min, max], and returns it.
func (b *Backoff) Next() time.Duration {
	ms := math.Round(float64(b.current) / float64(time.Millisecond) * b.multiplier)
	next := time.Duration(ms) * time.Millisecond
	if next < b.min {
		next = b.min
	}
	if next > b.max {
		next = b.max
	}
	b.current = next
	return next
}
