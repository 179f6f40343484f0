package scheduler

import (
	"log/slog"
	"sync"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/metrics"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/resources/timer"
)

// Config is the uplink cadence: IntervalSec for the first FastCount successful
// uplinks, PermanentSec afterwards.
type Config struct {
	IntervalSec  uint32 `json:"intervalSec"`
	FastCount    uint32 `json:"fastCount"`
	PermanentSec uint32 `json:"permanentSec"`
}

func DefaultConfig() Config {
	return Config{
		IntervalSec:  30,
		FastCount:    10,
		PermanentSec: 8 * 60 * 60,
	}
}

// Scheduler owns the uplink timer and the fast/permanent cadence policy.
type Scheduler struct {
	mu           sync.Mutex
	timer        *timer.Timer
	configured   Config
	intervalSec  uint32
	fastCount    uint32
	permanentSec uint32
	nudge        func()
}

func New(t *timer.Timer, cfg Config) *Scheduler {
	if cfg.IntervalSec == 0 {
		cfg.IntervalSec = DefaultConfig().IntervalSec
	}
	if cfg.PermanentSec == 0 {
		cfg.PermanentSec = DefaultConfig().PermanentSec
	}
	s := &Scheduler{
		timer:        t,
		configured:   cfg,
		intervalSec:  cfg.IntervalSec,
		fastCount:    cfg.FastCount,
		permanentSec: cfg.PermanentSec,
	}
	t.SetInterval(seconds(cfg.IntervalSec))
	s.publish()
	return s
}

// SetNudge registers the function called when a cadence change finds the timer
// already elapsed. It must not block.
func (s *Scheduler) SetNudge(fn func()) {
	s.mu.Lock()
	s.nudge = fn
	s.mu.Unlock()
}

// SetCadence replaces the interval and the fast-cycle count. The running countdown
// is replaced immediately.
func (s *Scheduler) SetCadence(intervalSec, fastCount uint32) {
	if intervalSec == 0 {
		intervalSec = 1
	}
	s.mu.Lock()
	s.configured.IntervalSec = intervalSec
	s.configured.FastCount = fastCount
	s.intervalSec = intervalSec
	s.fastCount = fastCount
	s.timer.SetInterval(seconds(intervalSec))
	elapsed := s.timer.Running() && s.timer.Pending() != 0
	nudge := s.nudge
	s.mu.Unlock()

	slog.Debug("uplink cadence set", "component", "scheduler", "interval_sec", intervalSec, "fast_count", fastCount)
	s.publish()

	if elapsed && nudge != nil {
		nudge()
	}
}

// GetCadence returns the current uplink interval in seconds.
func (s *Scheduler) GetCadence() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intervalSec
}

func (s *Scheduler) FastCyclesRemaining() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fastCount
}

func (s *Scheduler) Permanent() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.permanentSec
}

// Tick is called once per poll and reports whether the interval elapsed.
func (s *Scheduler) Tick() bool {
	return s.timer.Elapsed()
}

// OnCycleCompleted counts one successful uplink. The last fast cycle switches to
// the permanent interval, which stays until the next SetCadence or Reset.
func (s *Scheduler) OnCycleCompleted() {
	s.mu.Lock()
	switch {
	case s.fastCount > 1:
		s.fastCount--
	case s.fastCount == 1:
		s.fastCount = 0
		s.intervalSec = s.permanentSec
		s.timer.SetInterval(seconds(s.permanentSec))
		slog.Info("using permanent uplink interval", "component", "scheduler", "interval_sec", s.permanentSec)
	}
	s.mu.Unlock()
	s.publish()
}

// Reset restores the last configured cadence, restarting the fast phase.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.intervalSec = s.configured.IntervalSec
	s.fastCount = s.configured.FastCount
	s.timer.SetInterval(seconds(s.intervalSec))
	s.mu.Unlock()
	s.publish()
}

func (s *Scheduler) Start() { s.timer.Start() }
func (s *Scheduler) Stop() { s.timer.Stop() }
func (s *Scheduler) Retrigger() { s.timer.Retrigger() }

func (s *Scheduler) Remaining() time.Duration { return s.timer.Remaining() }

func (s *Scheduler) Running() bool { return s.timer.Running() }

// seconds widens before scaling; a uint32 millisecond count wraps after ~49 days.
func seconds(sec uint32) time.Duration {
	return time.Duration(sec) * time.Second
}

func (s *Scheduler) publish() {
	s.mu.Lock()
	interval, fast := s.intervalSec, s.fastCount
	s.mu.Unlock()
	metrics.CadenceSeconds.Set(float64(interval))
	metrics.FastCyclesRemaining.Set(float64(fast))
}
