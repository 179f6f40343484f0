package timer

import (
	"sync"
	"time"
)

// Timer is a periodic countdown. Every full interval since the last start adds a
// pending tick; Elapsed consumes them.
type Timer struct {
	clock    Clock
	mu       sync.Mutex
	interval time.Duration
	start    time.Time
	ticks    uint32
	running  bool
}

func New(clock Clock) *Timer {
	if clock == nil {
		clock = RealClock{}
	}
	return &Timer{clock: clock}
}

// update folds whole elapsed intervals into the tick count.
func (t *Timer) update(now time.Time) {
	if !t.running || t.interval <= 0 {
		return
	}
	n := now.Sub(t.start) / t.interval
	if n <= 0 {
		return
	}
	t.ticks += uint32(n)
	t.start = t.start.Add(n * t.interval)
}

// SetInterval replaces the period. A running timer restarts its countdown from now;
// ticks that elapsed under the old interval stay pending.
func (t *Timer) SetInterval(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.clock.Now()
	t.update(now)
	t.interval = d
	t.start = now
}

func (t *Timer) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interval
}

// Start begins counting from now with no pending ticks.
func (t *Timer) Start() {
	t.mu.Lock()
	t.start = t.clock.Now()
	t.ticks = 0
	t.running = true
	t.mu.Unlock()
}

func (t *Timer) Stop() {
	t.mu.Lock()
	t.running = false
	t.ticks = 0
	t.mu.Unlock()
}

func (t *Timer) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// Retrigger restarts the countdown and makes one tick pending right away.
func (t *Timer) Retrigger() {
	t.mu.Lock()
	t.start = t.clock.Now()
	t.ticks = 1
	t.running = true
	t.mu.Unlock()
}

// Pending returns the number of unconsumed ticks without consuming them.
func (t *Timer) Pending() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.update(t.clock.Now())
	return t.ticks
}

// Elapsed reports whether at least one interval passed and consumes every pending tick.
func (t *Timer) Elapsed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.update(t.clock.Now())
	ready := t.ticks != 0
	t.ticks = 0
	return ready
}

// Remaining is the time until the next tick; zero when a tick is pending or the
// timer is stopped.
func (t *Timer) Remaining() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return 0
	}
	now := t.clock.Now()
	t.update(now)
	if t.ticks != 0 {
		return 0
	}
	return t.interval - now.Sub(t.start)
}
