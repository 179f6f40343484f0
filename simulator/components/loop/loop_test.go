package loop

import (
	"bytes"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/frame"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/sensors"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/resources/timer"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/scheduler"
)

type fixedVolt struct {
	v     float32
	reads int
}

func (f *fixedVolt) Probe() bool { return true }

func (f *fixedVolt) Voltage() (float32, bool) {
	f.reads++
	return f.v, true
}

type fixedBoot uint32

func (b fixedBoot) BootCount() (uint32, bool) { return uint32(b), true }

type fixedLight float32

func (l fixedLight) Probe() bool { return true }

func (l fixedLight) Lux() (float32, bool) { return float32(l), true }

type fakeRadio struct {
	mu     sync.Mutex
	frames [][]byte
	dones  []func(bool)
}

func (r *fakeRadio) Send(frame []byte, port uint8, done func(ok bool)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
	r.dones = append(r.dones, done)
}

func (r *fakeRadio) sent() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// finish completes the i-th send.
func (r *fakeRadio) finish(i int, ok bool) {
	r.mu.Lock()
	done := r.dones[i]
	r.mu.Unlock()
	done(ok)
}

type countingSleeper struct {
	calls int
}

func (s *countingSleeper) Sleep(time.Duration) { s.calls++ }

type harness struct {
	loop    *Loop
	clock   *timer.FakeClock
	radio   *fakeRadio
	vbat    *fixedVolt
	sleeper *countingSleeper
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T, cfg Config, cadence scheduler.Config, schema *frame.Schema, set sensors.Set) *harness {
	t.Helper()
	clock := timer.NewFakeClock(time.Unix(1700000000, 0))
	h := &harness{
		clock:   clock,
		radio:   &fakeRadio{},
		vbat:    &fixedVolt{v: 3.65},
		sleeper: &countingSleeper{},
	}
	if set.Vbat == nil {
		set.Vbat = h.vbat
	}
	if set.Boot == nil {
		set.Boot = fixedBoot(42)
	}
	h.loop = New(cfg, Deps{
		Clock:     clock,
		Encoder:   frame.NewEncoder(schema, quietLogger()),
		Scheduler: scheduler.New(timer.New(clock), cadence),
		Sensors:   set,
		Radio:     h.radio,
		Sleeper:   h.sleeper,
		Logger:    quietLogger(),
	})
	return h
}

func defaultHarness(t *testing.T) *harness {
	cfg := Config{Active: true, ReportMask: measurement.FlagVbat | measurement.FlagBoot}
	return newHarness(t, cfg, scheduler.Config{IntervalSec: 30, FastCount: 3, PermanentSec: 600}, frame.Model4928, sensors.Set{})
}

func (h *harness) poll(n int) {
	for i := 0; i < n; i++ {
		h.loop.Poll()
	}
}

// cycle waits one interval and polls until the frame has been handed to the radio.
func (h *harness) cycle(t *testing.T) {
	t.Helper()
	h.clock.Advance(time.Duration(h.loop.GetCadence()) * time.Second)
	h.poll(3)
	if h.loop.State() != StateTransmit {
		t.Fatalf("expected Transmit after a cycle, got %v", h.loop.State())
	}
}

func expectState(t *testing.T, l *Loop, want State) {
	t.Helper()
	if got := l.State(); got != want {
		t.Fatalf("expected state %v, got %v", want, got)
	}
}

func TestLoopStartsActive(t *testing.T) {
	h := defaultHarness(t)
	expectState(t, h.loop, StateInitial)
	h.poll(1)
	expectState(t, h.loop, StateSleeping)
	if !h.loop.Active() {
		t.Error("expected node to be active")
	}
}

func TestLoopStartsInactive(t *testing.T) {
	h := newHarness(t, Config{}, scheduler.Config{IntervalSec: 30}, frame.Model4928, sensors.Set{})
	h.poll(1)
	expectState(t, h.loop, StateInactive)

	h.clock.Advance(time.Hour)
	h.poll(5)
	expectState(t, h.loop, StateInactive)
	if h.radio.sent() != 0 {
		t.Fatal("inactive node transmitted")
	}

	h.loop.RequestActive(true)
	h.poll(1)
	expectState(t, h.loop, StateSleeping)
	if !h.loop.Active() {
		t.Error("expected node to be active")
	}
}

func TestLoopOneTransmitPerInterval(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)

	h.clock.Advance(29 * time.Second)
	h.poll(5)
	expectState(t, h.loop, StateSleeping)

	h.clock.Advance(time.Second)
	h.poll(1)
	expectState(t, h.loop, StateWarmup)
	h.poll(1)
	expectState(t, h.loop, StateMeasure)
	h.poll(1)
	expectState(t, h.loop, StateTransmit)

	if h.radio.sent() != 1 {
		t.Fatalf("expected one frame, got %d", h.radio.sent())
	}
	want := []byte{0x2a, 0x05, 0x3a, 0x66, 0x2a}
	if !bytes.Equal(h.radio.frames[0], want) {
		t.Errorf("expected frame % x, got % x", want, h.radio.frames[0])
	}
	if !bytes.Equal(h.loop.LastFrame(), want) {
		t.Errorf("LastFrame mismatch: % x", h.loop.LastFrame())
	}
	if m := h.loop.LastMeasurement(); m.BootCount != 42 || !m.Flags.Has(measurement.FlagVbat) {
		t.Errorf("unexpected last measurement %+v", m)
	}
}

func TestLoopNoMeasureWhileTransmitPending(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)
	h.cycle(t)
	reads := h.vbat.reads

	h.clock.Advance(5 * time.Minute)
	h.poll(20)
	expectState(t, h.loop, StateTransmit)
	if h.vbat.reads != reads || h.radio.sent() != 1 {
		t.Fatalf("measured or sent again while a transmit was pending (reads %d->%d, sent %d)", reads, h.vbat.reads, h.radio.sent())
	}

	h.radio.finish(0, true)
	h.poll(1)
	expectState(t, h.loop, StateSleeping)
}

func TestLoopSwitchesToPermanentCadence(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)

	for i := 0; i < 3; i++ {
		if h.loop.GetCadence() != 30 {
			t.Fatalf("cycle %d: expected fast cadence, got %d", i, h.loop.GetCadence())
		}
		h.cycle(t)
		h.radio.finish(i, true)
		h.poll(1)
		expectState(t, h.loop, StateSleeping)
	}
	if h.loop.GetCadence() != 600 {
		t.Errorf("expected permanent cadence, got %d", h.loop.GetCadence())
	}
	if h.loop.FastCyclesRemaining() != 0 {
		t.Errorf("expected no fast cycles left, got %d", h.loop.FastCyclesRemaining())
	}
}

func TestLoopFailedTransmitKeepsCounter(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)
	h.cycle(t)

	h.radio.finish(0, false)
	h.poll(1)
	expectState(t, h.loop, StateSleeping)
	if h.loop.FastCyclesRemaining() != 3 {
		t.Errorf("failed uplink must not count, got %d remaining", h.loop.FastCyclesRemaining())
	}
}

func TestLoopDeactivateWhileSleeping(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)

	h.clock.Advance(30 * time.Second)
	h.loop.RequestActive(false)
	h.poll(1)
	expectState(t, h.loop, StateInactive)
	if h.loop.Active() {
		t.Error("expected node to be inactive")
	}

	h.clock.Advance(time.Hour)
	h.poll(5)
	if h.radio.sent() != 0 {
		t.Error("deactivated node transmitted")
	}
}

func TestLoopDeactivateDeferredUntilSleeping(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)
	h.cycle(t)

	h.loop.RequestActive(false)
	h.poll(3)
	expectState(t, h.loop, StateTransmit)

	h.radio.finish(0, true)
	h.poll(1)
	expectState(t, h.loop, StateSleeping)
	h.poll(1)
	expectState(t, h.loop, StateInactive)
}

func TestLoopLastRequestWins(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)

	h.loop.RequestActive(false)
	h.loop.RequestActive(true)
	h.poll(2)
	expectState(t, h.loop, StateSleeping)
}

func TestLoopReactivationRestartsFastCadence(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)
	h.cycle(t)
	h.radio.finish(0, true)
	h.poll(1)
	if h.loop.FastCyclesRemaining() != 2 {
		t.Fatalf("expected 2 fast cycles left, got %d", h.loop.FastCyclesRemaining())
	}

	h.loop.RequestActive(false)
	h.poll(1)
	h.loop.RequestActive(true)
	h.poll(1)
	expectState(t, h.loop, StateSleeping)
	if h.loop.FastCyclesRemaining() != 3 {
		t.Errorf("activation should restore the configured cadence, got %d", h.loop.FastCyclesRemaining())
	}
}

func TestLoopLateCallbackAfterFinal(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)
	h.cycle(t)

	h.loop.Shutdown()
	h.poll(1)
	expectState(t, h.loop, StateFinal)
	if !h.loop.Final() {
		t.Error("expected Final")
	}

	h.radio.finish(0, true)
	h.poll(3)
	expectState(t, h.loop, StateFinal)
	if h.loop.FastCyclesRemaining() != 3 {
		t.Error("late completion must not advance the cadence")
	}

	h.loop.RequestActive(false)
	h.poll(1)
	if !h.loop.Active() {
		t.Error("request after Final must be ignored")
	}
}

func TestLoopStaleCallbackIgnored(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)
	h.cycle(t)
	h.radio.finish(0, true)
	h.poll(1)

	h.cycle(t)
	// a duplicate completion of the first send must not finish the second
	h.radio.finish(0, false)
	h.poll(2)
	expectState(t, h.loop, StateTransmit)

	h.radio.finish(1, true)
	h.poll(1)
	expectState(t, h.loop, StateSleeping)
	if h.loop.FastCyclesRemaining() != 1 {
		t.Errorf("expected 1 fast cycle left, got %d", h.loop.FastCyclesRemaining())
	}
}

func TestLoopEncodeErrorDiscardsFrame(t *testing.T) {
	cfg := Config{Active: true, ReportMask: measurement.FlagVbat | measurement.FlagLux}
	h := newHarness(t, cfg, scheduler.Config{IntervalSec: 30, FastCount: 3, PermanentSec: 600}, frame.Catena4610, sensors.Set{Light: fixedLight(250)})
	h.poll(1)
	h.cycle(t)

	h.poll(1)
	expectState(t, h.loop, StateSleeping)
	if h.radio.sent() != 0 {
		t.Error("unencodable frame reached the radio")
	}
	if h.loop.FastCyclesRemaining() != 3 {
		t.Error("discarded frame must not count as an uplink")
	}
}

func TestLoopMeasureOnActivate(t *testing.T) {
	cfg := Config{Active: true, MeasureOnActivate: true}
	h := newHarness(t, cfg, scheduler.Config{IntervalSec: 3600}, frame.Model4928, sensors.Set{})
	h.poll(1)
	h.poll(1)
	expectState(t, h.loop, StateWarmup)
}

func TestLoopWarmup(t *testing.T) {
	cfg := Config{Active: true, WarmupMs: 5000}
	h := newHarness(t, cfg, scheduler.Config{IntervalSec: 30}, frame.Model4928, sensors.Set{})
	h.poll(1)
	h.clock.Advance(30 * time.Second)
	h.poll(1)
	expectState(t, h.loop, StateWarmup)

	h.clock.Advance(4 * time.Second)
	h.poll(3)
	expectState(t, h.loop, StateWarmup)

	h.clock.Advance(time.Second)
	h.poll(1)
	expectState(t, h.loop, StateMeasure)
}

func TestLoopSleepHint(t *testing.T) {
	cfg := Config{Active: true, SleepThresholdMs: 1500}
	h := newHarness(t, cfg, scheduler.Config{IntervalSec: 30}, frame.Model4928, sensors.Set{})
	h.poll(1)
	h.poll(10)
	if h.sleeper.calls != 1 {
		t.Errorf("expected one sleep request per sleep period, got %d", h.sleeper.calls)
	}

	h.clock.Advance(29 * time.Second)
	h.poll(1)
	if h.sleeper.calls != 1 {
		t.Errorf("no sleep expected within the threshold, got %d", h.sleeper.calls)
	}
}

func TestLoopNoSleepOnUSBPower(t *testing.T) {
	cfg := Config{Active: true, SleepThresholdMs: 1500}
	set := sensors.Set{Vbus: &fixedVolt{v: 5.0}}
	h := newHarness(t, cfg, scheduler.Config{IntervalSec: 30, FastCount: 3}, frame.Model4928, set)
	h.poll(1)
	h.cycle(t)
	h.radio.finish(0, true)
	h.poll(5)
	if h.sleeper.calls != 0 {
		t.Errorf("externally powered node requested sleep %d times", h.sleeper.calls)
	}
}

func TestLoopSetCadenceWakes(t *testing.T) {
	h := defaultHarness(t)
	h.poll(1)
	select {
	case <-h.loop.Wake():
	default:
	}

	h.clock.Advance(31 * time.Second)
	h.loop.SetCadence(60, 1)
	select {
	case <-h.loop.Wake():
	default:
		t.Fatal("expected a wake signal for an already elapsed timer")
	}
	if h.loop.GetCadence() != 60 || h.loop.FastCyclesRemaining() != 1 {
		t.Errorf("cadence not applied")
	}

	h.poll(1)
	expectState(t, h.loop, StateWarmup)
}

func TestLoopPublishesEvents(t *testing.T) {
	h := defaultHarness(t)
	broker := events.NewEventBroker(50)
	h.loop.EventBroker = broker
	h.loop.DevAddr = "26011f2a"

	h.poll(1)
	h.cycle(t)
	h.radio.finish(0, true)
	h.poll(1)

	types := map[string]int{}
	for _, e := range broker.History(events.NodeTopic("26011f2a")) {
		types[e.(events.NodeEvent).Type]++
	}
	if types[events.EventState] != 5 || types[events.EventMeasurement] != 1 || types[events.EventUplink] != 1 || types[events.EventTxDone] != 1 {
		t.Errorf("unexpected events %v", types)
	}
}
