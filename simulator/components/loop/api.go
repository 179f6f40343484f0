package loop

import (
	"context"
	"strconv"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/logging"
)

// RequestActive asks the loop to enter (true) or leave (false) active mode. The
// latest request wins; it is acted on by the next Poll that can honour it.
func (l *Loop) RequestActive(enable bool) {
	if l.final.Load() {
		l.logger.Log(context.Background(), logging.LevelTrace, "activation request ignored after shutdown", "enable", enable)
		return
	}
	if enable {
		l.request.Store(requestActive)
	} else {
		l.request.Store(requestInactive)
	}
	l.nudge()
}

// SetCadence changes the uplink interval and how many successful uplinks use it
// before the node falls back to the permanent interval.
func (l *Loop) SetCadence(intervalSec, fastCount uint32) {
	if l.final.Load() {
		l.logger.Log(context.Background(), logging.LevelTrace, "cadence change ignored after shutdown")
		return
	}
	l.sched.SetCadence(intervalSec, fastCount)
	l.emitEvent(events.NodeEvent{Type: events.EventCadence, Extra: map[string]string{
		"interval": formatUint(intervalSec),
		"count":    formatUint(fastCount),
	}})
}

func (l *Loop) GetCadence() uint32 {
	return l.sched.GetCadence()
}

func (l *Loop) FastCyclesRemaining() uint32 {
	return l.sched.FastCyclesRemaining()
}

// Shutdown makes the next Poll move to Final. Completions arriving afterwards
// are dropped.
func (l *Loop) Shutdown() {
	l.exit.Store(true)
	l.nudge()
}

func (l *Loop) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotState
}

func (l *Loop) Active() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.snapshotActive
}

// Final reports whether the loop has stopped for good.
func (l *Loop) Final() bool {
	return l.final.Load()
}

// LastFrame returns a copy of the most recently encoded frame, or nil.
func (l *Loop) LastFrame() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.lastFrame == nil {
		return nil
	}
	return append([]byte(nil), l.lastFrame...)
}

func (l *Loop) LastMeasurement() measurement.Measurement {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastMeasurement
}

// Wake signals that the loop wants a Poll sooner than the next regular one.
func (l *Loop) Wake() <-chan struct{} {
	return l.wake
}

func formatUint(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
