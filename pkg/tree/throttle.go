package tree

import (
	"sync"
	"time"
)

// DefaultScrollInterval is one frame at 60Hz.
const DefaultScrollInterval = 16 * time.Millisecond

// Throttler runs at most one call per interval on the trailing edge. Calls
// that arrive inside an interval replace each other so only the latest runs.
type Throttler struct {
	interval time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending func()
}

// NewThrottler creates a throttler. A non-positive interval uses
// DefaultScrollInterval.
func NewThrottler(interval time.Duration) *Throttler {
	if interval <= 0 {
		interval = DefaultScrollInterval
	}
	return &Throttler{interval: interval}
}

// Interval returns the throttle interval.
func (t *Throttler) Interval() time.Duration {
	return t.interval
}

// Trigger schedules fn. If an interval is already running, fn replaces the
// call waiting for it.
func (t *Throttler) Trigger(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = fn
	if t.timer == nil {
		t.timer = time.AfterFunc(t.interval, t.fire)
	}
}

func (t *Throttler) fire() {
	t.mu.Lock()
	fn := t.pending
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Flush runs the waiting call now, if any.
func (t *Throttler) Flush() {
	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
	}
	fn := t.pending
	t.pending = nil
	t.timer = nil
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// Cancel drops the waiting call.
func (t *Throttler) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = nil
}
