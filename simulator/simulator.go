package simulator

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/codec"
	"github.com/R3DPanda1/LWN-Sim-Node/models"
	"github.com/R3DPanda1/LWN-Sim-Node/shared"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/frame"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/journal"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/loop"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/radio"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/sensors"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/poller"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/resources/timer"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/scheduler"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/util"
)

// Simulator hosts one simulated sensor node together with its radio, journal and
// event stream.
type Simulator struct {
	State uint8 `json:"-"` // Runtime state: Stopped, Running, Terminated

	Config      *models.ServerConfig
	Schema      *frame.Schema
	EventBroker *events.EventBroker
	Scheduler   *scheduler.Scheduler
	Loop        *loop.Loop
	Radio       *radio.Stack
	Poller      *poller.Poller
	Journal     *journal.Journal // nil when the journal is disabled
	Codecs      *codec.Library
	Executor    *codec.Executor

	devAddr string
	sleeper *hostSleeper
	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	unsub   func()
}

// hostSleeper remembers the last low-power hint. The host process keeps running;
// the hint is only reported.
type hostSleeper struct {
	mu    sync.Mutex
	last  time.Duration
	count uint64
}

func (h *hostSleeper) Sleep(d time.Duration) {
	h.mu.Lock()
	h.last = d
	h.count++
	h.mu.Unlock()
}

func (h *hostSleeper) snapshot() (time.Duration, uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.count
}

// GetInstance assembles a stopped simulator from cfg.
func GetInstance(cfg *models.ServerConfig) (*Simulator, error) {
	shared.DebugPrint("Init new Simulator instance")
	s := &Simulator{State: util.Stopped, Config: cfg, sleeper: &hostSleeper{}}

	schema, ok := frame.Lookup(cfg.Node.Product)
	if !ok {
		return nil, fmt.Errorf("%w: product %q", frame.ErrUnknownFormat, cfg.Node.Product)
	}
	if mask := cfg.Node.Loop.ReportMask; !schema.Supports(mask) {
		return nil, fmt.Errorf("%w: report mask %v on product %s", frame.ErrUnsupportedField, mask&^schema.Mask(), schema.Name)
	}
	s.Schema = schema

	history := cfg.Events.History
	if history <= 0 {
		history = 100
	}
	s.EventBroker = events.NewEventBroker(history)

	if err := s.setupRadio(); err != nil {
		return nil, err
	}
	s.setupLoop()
	s.setupCodecs()

	if cfg.Journal.Enabled {
		j, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			s.Radio.Stop()
			return nil, err
		}
		s.Journal = j
	}

	slog.Info("simulator setup complete", "component", "simulator",
		"product", schema.Name, "dev_addr", s.devAddr, "sink", cfg.Radio.Sink)
	s.EventBroker.PublishSystemEvent(events.SystemEvent{
		Type:    events.SysEventSetup,
		Message: "Simulator setup complete",
	})
	return s, nil
}

func (s *Simulator) setupRadio() error {
	cfg := s.Config.Radio
	cfg.Confirmed = cfg.Confirmed || s.Config.Node.Loop.Operating.Has(loop.OpConfirmedUplink)

	framer, err := radio.NewFramer(cfg.DevAddr, cfg.NwkSKey, cfg.AppSKey, cfg.FCnt, cfg.Confirmed)
	if err != nil {
		return err
	}
	sink, err := radio.NewSink(cfg)
	if err != nil {
		return err
	}
	s.devAddr = framer.DevAddr().String()
	s.Radio = radio.NewStack(framer, sink, cfg)
	s.Radio.SetObserver(s.onRadioResult)
	return nil
}

func (s *Simulator) setupLoop() {
	node := s.Config.Node
	s.Scheduler = scheduler.New(timer.New(timer.RealClock{}), node.Cadence)
	s.Loop = loop.New(node.Loop, loop.Deps{
		Encoder:   frame.NewEncoder(s.Schema, slog.Default()),
		Scheduler: s.Scheduler,
		Sensors:   sensors.NewSimSet(node.Sensors),
		Radio:     s.Radio,
		Sleeper:   s.sleeper,
	})
	s.Loop.EventBroker = s.EventBroker
	s.Loop.DevAddr = s.devAddr

	s.Poller = poller.New(time.Duration(node.PollMs) * time.Millisecond)
	s.Poller.Register(s.Loop)
}

func (s *Simulator) setupCodecs() {
	s.Codecs = codec.NewLibrary()
	s.Codecs.LoadDefaults()
	s.Executor = codec.NewExecutor(&codec.ExecutorConfig{MaxVMs: 2, Timeout: 100 * time.Millisecond})
}

// onRadioResult turns a delivery outcome into a radio event on the node topic.
func (s *Simulator) onRadioResult(r radio.Result) {
	ok := r.OK
	fCnt := r.FCnt
	port := r.FPort
	extra := map[string]string{"duration": r.Duration.String(), "confirmed": strconv.FormatBool(r.Confirmed)}
	if r.Error != "" {
		extra["error"] = r.Error
	}
	s.EventBroker.PublishNodeEvent(s.devAddr, events.NodeEvent{
		Type:       events.EventRadio,
		Product:    s.Schema.Name,
		FCnt:       &fCnt,
		FPort:      &port,
		Payload:    hex.EncodeToString(r.Payload),
		PHYPayload: hex.EncodeToString(r.PHYPayload),
		OK:         &ok,
		Extra:      extra,
	})
}

// Run starts the radio worker, the journal writer and the poll loop.
func (s *Simulator) Run() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State != util.Stopped {
		return
	}
	shared.DebugPrint("Executing Run")

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	if s.Journal != nil {
		ch, _, unsub := s.EventBroker.Subscribe(events.NodeTopic(s.devAddr))
		s.unsub = unsub
		s.wg.Add(1)
		go s.Journal.Writer(ctx, &s.wg, ch)
	}

	s.Radio.Start()
	s.Poller.Start()
	s.State = util.Running

	slog.Info("simulation started", "component", "simulator", "dev_addr", s.devAddr)
	s.EventBroker.PublishSystemEvent(events.SystemEvent{Type: events.SysEventStarted, Message: "Node started"})
}

// Stop shuts the node loop down for good and releases the radio and journal.
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.State == util.Terminated {
		return
	}
	shared.DebugPrint("Executing Stop")

	s.Loop.Shutdown()
	s.Poller.Stop()
	// the poll goroutine is gone, finish on this one
	for i := 0; i < 4 && !s.Loop.Final(); i++ {
		s.Loop.Poll()
	}

	if err := s.Radio.Stop(); err != nil {
		slog.Warn("radio close failed", "component", "simulator", "error", err)
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.unsub != nil {
		s.unsub()
	}
	s.wg.Wait()
	if s.Journal != nil {
		if err := s.Journal.Close(); err != nil {
			slog.Warn("journal close failed", "component", "simulator", "error", err)
		}
	}
	s.Executor.Close()
	s.State = util.Terminated

	slog.Info("simulation stopped", "component", "simulator", "state", s.Loop.State())
	s.EventBroker.PublishSystemEvent(events.SystemEvent{Type: events.SysEventStopped, Message: "Node stopped"})
	// ends live streams; history stays readable
	s.EventBroker.Close()
}

// DevAddr is the LoRaWAN device address of the node.
func (s *Simulator) DevAddr() string {
	return s.devAddr
}
