package dribbble

import (
	"context"
	"sync"
	"time"
)

// DefaultThrottleInterval keeps request spacing well under 60 calls per minute.
const DefaultThrottleInterval = 1100 * time.Millisecond

// Throttle enforces a minimum spacing between outbound calls. It is a pacing floor,
// not a token bucket: there is no burst allowance and no jitter.
type Throttle struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

// NewThrottle builds a throttle with the given minimum interval.
func NewThrottle(interval time.Duration) *Throttle {
	if interval < 0 {
		interval = 0
	}
	return &Throttle{interval: interval, now: time.Now}
}

// Interval returns the configured minimum spacing, 0 for a nil throttle.
func (t *Throttle) Interval() time.Duration {
	if t == nil {
		return 0
	}
	return t.interval
}

// Wait blocks until at least the configured interval has passed since the previous
// call returned. The first call returns immediately.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if remaining := t.interval - t.now().Sub(t.last); remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	t.last = t.now()
	return nil
}
