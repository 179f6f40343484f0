// Package loop runs the measurement/uplink cycle of a sleep-cycling sensor node:
// wait for the uplink timer, warm up and read the sensors, encode and send the
// frame, then go back to sleep.
package loop

import (
	"context"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/frame"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/radio"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/sensors"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/logging"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/metrics"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/resources/timer"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/scheduler"
)

// Sleeper receives the low-power hint when nothing is due for a while.
type Sleeper interface {
	Sleep(d time.Duration)
}

const (
	requestNone int32 = iota
	requestActive
	requestInactive
)

// usbVoltage is the Vbus level above which the node counts as externally powered.
const usbVoltage = 4.0

type Loop struct {
	cfg     Config
	clock   timer.Clock
	store   *measurement.Store
	encoder *frame.Encoder
	sched   *scheduler.Scheduler
	sensors sensors.Set
	tx      radio.Transmitter
	sleeper Sleeper
	logger  *slog.Logger

	EventBroker *events.EventBroker
	DevAddr     string

	// owned by the polling goroutine
	state          State
	active         bool
	observedReq    int32
	warmupStart    time.Time
	sleepAnnounced bool
	usbPowered     bool
	sendStart      time.Time

	request atomic.Int32
	exit    atomic.Bool
	final   atomic.Bool
	txGen   atomic.Uint64
	txDone  atomic.Uint64
	txOK    atomic.Bool

	mu              sync.RWMutex
	snapshotState   State
	snapshotActive  bool
	lastFrame       []byte
	lastMeasurement measurement.Measurement

	wake chan struct{}
}

// Deps are the collaborators of a Loop. Clock defaults to the wall clock and
// Logger to slog.Default().
type Deps struct {
	Clock     timer.Clock
	Store     *measurement.Store
	Encoder   *frame.Encoder
	Scheduler *scheduler.Scheduler
	Sensors   sensors.Set
	Radio     radio.Transmitter
	Sleeper   Sleeper
	Logger    *slog.Logger
}

func New(cfg Config, deps Deps) *Loop {
	if deps.Clock == nil {
		deps.Clock = timer.RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Store == nil {
		deps.Store = measurement.NewStore()
	}
	if cfg.ReportMask == measurement.FlagNone {
		cfg.ReportMask = deps.Encoder.Schema.Mask()
	}

	l := &Loop{
		cfg:           cfg,
		clock:         deps.Clock,
		store:         deps.Store,
		encoder:       deps.Encoder,
		sched:         deps.Scheduler,
		sensors:       deps.Sensors,
		tx:            deps.Radio,
		sleeper:       deps.Sleeper,
		logger:        deps.Logger.With("component", "loop"),
		state:         StateInitial,
		active:        cfg.Active,
		snapshotState: StateInitial,
		wake:          make(chan struct{}, 1),
	}
	l.snapshotActive = l.active
	l.sched.SetNudge(l.nudge)
	return l
}

// Poll advances the loop by at most one transition. It never blocks and must be
// called from a single goroutine.
func (l *Loop) Poll() {
	in := l.inputs()
	next, act := Transition(l.state, in)

	if act != ActionNone {
		l.logger.Log(context.Background(), logging.LevelTrace, "transition", "state", l.state, "next", next, "actions", act)
	}
	l.execute(act)

	if next != StateNoChange && next != l.state {
		l.setState(next)
	}
}

func (l *Loop) inputs() Inputs {
	req := l.request.Load()
	l.observedReq = req

	in := Inputs{
		Exit:            l.exit.Load(),
		Active:          l.active,
		RequestActive:   req == requestActive,
		RequestInactive: req == requestInactive,
	}
	if in.Exit {
		return in
	}

	switch l.state {
	case StateSleeping:
		if in.RequestInactive {
			break
		}
		in.TimerElapsed = l.sched.Tick()
		if !in.TimerElapsed {
			in.SleepOK = l.sleepOK()
		}
	case StateWarmup:
		in.WarmupElapsed = l.clock.Now().Sub(l.warmupStart) >= l.cfg.warmup()
	case StateTransmit:
		if l.txDone.Load() == l.txGen.Load() {
			in.TxDone = true
			in.TxOK = l.txOK.Load()
		}
	}
	return in
}

func (l *Loop) sleepOK() bool {
	if l.cfg.Operating.Has(OpDisableDeepSleep) || l.usbPowered {
		return false
	}
	return l.sched.Remaining() > l.cfg.sleepThreshold()
}

func (l *Loop) execute(act Action) {
	if act.Has(ActionClearRequests) {
		l.request.CompareAndSwap(l.observedReq, requestNone)
	}
	if act.Has(ActionReset) {
		l.sched.Reset()
	}
	if act.Has(ActionStopTimer) {
		l.sched.Stop()
	}
	if act.Has(ActionStartTimer) {
		l.sched.Start()
		if l.cfg.MeasureOnActivate {
			l.sched.Retrigger()
		}
	}
	if act.Has(ActionSleep) {
		l.sleep()
	}
	if act.Has(ActionWarmup) {
		l.warmup()
	}
	if act.Has(ActionMeasure) {
		l.measure()
	}
	if act.Has(ActionPowerDown) {
		l.sensors.PowerDown()
	}
	if act.Has(ActionTransmit) {
		l.transmit()
	}
	if act.Has(ActionAdvanceCadence) {
		l.sched.OnCycleCompleted()
	}
	if act.Has(ActionRelease) {
		l.release()
	}
}

func (l *Loop) setState(next State) {
	prev := l.state
	l.state = next

	switch {
	case next == StateInactive:
		l.active = false
	case next == StateSleeping && (prev == StateInitial || prev == StateInactive):
		l.active = true
	}
	if prev == StateTransmit && next == StateSleeping {
		l.finishTransmit()
	}
	if next == StateSleeping {
		l.sleepAnnounced = false
	}

	l.mu.Lock()
	l.snapshotState = next
	l.snapshotActive = l.active
	l.mu.Unlock()

	metrics.NodeState.Set(float64(next))
	metrics.StateTransitions.WithLabelValues(prev.String(), next.String()).Inc()
	l.logger.Debug("state changed", "from", prev, "to", next)
	l.emitEvent(events.NodeEvent{Type: events.EventState, From: prev.String(), State: next.String()})
}

func (l *Loop) warmup() {
	l.warmupStart = l.clock.Now()
	l.sensors.PowerUp()
	if l.cfg.Debug.Has(DebugTrace) {
		l.logger.Info("warming up sensors", "warmup", l.cfg.warmup())
	}
}

func (l *Loop) measure() {
	l.store.Reset()
	s := l.sensors

	if s.Vbat != nil && s.Vbat.Probe() {
		if v, ok := s.Vbat.Voltage(); ok {
			l.store.RecordVbat(v)
		}
	}
	if s.Vbus != nil && s.Vbus.Probe() {
		if v, ok := s.Vbus.Voltage(); ok {
			l.store.RecordVbus(v)
		}
	}
	if s.Boot != nil {
		if n, ok := s.Boot.BootCount(); ok {
			l.store.RecordBoot(n)
		}
	}
	if s.Env != nil && s.Env.Probe() {
		if t, rh, p, ok := s.Env.Read(); ok {
			l.store.RecordEnv(measurement.Env{Temperature: t, Humidity: rh, Pressure: p})
		}
	}
	if s.Light != nil && s.Light.Probe() {
		if lux, ok := s.Light.Lux(); ok {
			l.store.RecordLux(lux)
		}
	}
	if s.ProbeOne != nil && s.ProbeOne.Probe() {
		if t, ok := s.ProbeOne.Temperature(); ok {
			l.store.RecordProbeOne(t)
		}
	}
	if s.ProbeTwo != nil && s.ProbeTwo.Probe() {
		if t, ok := s.ProbeTwo.Temperature(); ok {
			l.store.RecordProbeTwo(t)
		}
	}

	m := l.store.Snapshot()
	l.usbPowered = m.Flags.Has(measurement.FlagVbus) && m.Vbus > usbVoltage

	l.mu.Lock()
	l.lastMeasurement = m
	l.mu.Unlock()

	metrics.MeasurementsTotal.Inc()
	l.logger.Debug("measured", "flags", m.Flags, "usb_powered", l.usbPowered)
	l.emitEvent(events.NodeEvent{Type: events.EventMeasurement, Flags: m.Flags.String(), Measurement: &m})
}

// transmit encodes the current measurement and hands it to the radio. Encode
// failures complete the send immediately as a failure.
func (l *Loop) transmit() {
	gen := l.txGen.Add(1)
	l.txOK.Store(false)
	l.sendStart = l.clock.Now()

	m := l.store.Snapshot()
	flags := m.Flags & l.cfg.ReportMask
	b, err := l.encoder.Encode(flags, m)
	if err != nil {
		l.logger.Error("frame discarded", "flags", flags, "error", err)
		metrics.UplinkFailures.WithLabelValues("encode").Inc()
		l.emitErrorEvent(err)
		l.complete(gen, false)
		return
	}

	l.mu.Lock()
	l.lastFrame = b
	l.mu.Unlock()

	port := l.encoder.Schema.Port
	metrics.FrameBytes.Observe(float64(len(b)))
	metrics.UplinksTotal.Inc()
	l.logger.Info("sending uplink", "port", port, "frame", hex.EncodeToString(b))
	l.emitEvent(events.NodeEvent{Type: events.EventUplink, Flags: flags.String(), Payload: hex.EncodeToString(b), FPort: &port})

	l.tx.Send(b, port, func(ok bool) { l.complete(gen, ok) })
}

// complete records a transmit outcome. It may run on any goroutine and ignores
// results from superseded sends or after shutdown.
func (l *Loop) complete(gen uint64, ok bool) {
	if l.final.Load() || gen != l.txGen.Load() {
		return
	}
	l.txOK.Store(ok)
	l.txDone.Store(gen)
	l.nudge()
}

func (l *Loop) finishTransmit() {
	ok := l.txOK.Load()
	if ok {
		l.logger.Info("uplink complete", "took", l.clock.Now().Sub(l.sendStart))
	} else {
		l.logger.Warn("uplink failed")
	}
	l.emitEvent(events.NodeEvent{Type: events.EventTxDone, OK: &ok})
}

func (l *Loop) sleep() {
	if l.sleepAnnounced {
		return
	}
	l.sleepAnnounced = true
	remaining := l.sched.Remaining()
	l.logger.Info("planning to sleep", "duration", remaining)
	metrics.SleepRequests.Inc()
	if l.sleeper != nil {
		l.sleeper.Sleep(remaining)
	}
	l.emitEvent(events.NodeEvent{Type: events.EventSleep, Extra: map[string]string{"duration": remaining.String()}})
}

func (l *Loop) release() {
	l.final.Store(true)
	// invalidate any send still in flight
	l.txGen.Add(1)
	l.logger.Info("measurement loop stopped")
}

func (l *Loop) nudge() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) emitEvent(evt events.NodeEvent) {
	if l.EventBroker == nil {
		return
	}
	evt.Product = l.encoder.Schema.Name
	l.EventBroker.PublishNodeEvent(l.DevAddr, evt)
}

func (l *Loop) emitErrorEvent(err error) {
	l.emitEvent(events.NodeEvent{Type: events.EventError, Extra: map[string]string{"error": err.Error()}})
}
