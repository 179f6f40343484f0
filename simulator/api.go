package simulator

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/codec"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/frame"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/journal"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/util"
)

var (
	// ErrJournalDisabled is returned by journal queries when no journal is configured.
	ErrJournalDisabled = errors.New("uplink journal is disabled")
	// ErrNotRunning is returned by operations that need a live node loop.
	ErrNotRunning = errors.New("node is not running")
	// ErrBadFrame is returned when a frame to decode is not valid hex.
	ErrBadFrame = errors.New("frame is not valid hex")
)

// NodeStatus is the externally visible state of the node.
type NodeStatus struct {
	Simulator           string                  `json:"simulator"`
	Product             string                  `json:"product"`
	FormatTag           string                  `json:"formatTag"`
	DevAddr             string                  `json:"devAddr"`
	State               string                  `json:"state"`
	Active              bool                    `json:"active"`
	Final               bool                    `json:"final"`
	IntervalSec         uint32                  `json:"intervalSec"`
	FastCyclesRemaining uint32                  `json:"fastCyclesRemaining"`
	PermanentSec        uint32                  `json:"permanentSec"`
	NextUplinkIn        string                  `json:"nextUplinkIn"`
	FCnt                uint32                  `json:"fCnt"`
	LastFrame           string                  `json:"lastFrame,omitempty"`
	LastMeasurement     measurement.Measurement `json:"lastMeasurement"`
	LastSleep           string                  `json:"lastSleep,omitempty"`
	SleepRequests       uint64                  `json:"sleepRequests"`
}

// DecodeResult holds both views of a frame: the native decoder's measurement and
// the object returned by the JavaScript decoder.
type DecodeResult struct {
	Format      string                  `json:"format"`
	Flags       string                  `json:"flags"`
	Measurement measurement.Measurement `json:"measurement"`
	Codec       string                  `json:"codec"`
	Object      map[string]interface{}  `json:"object,omitempty"`
	CodecError  string                  `json:"codecError,omitempty"`
}

func (s *Simulator) Status() NodeStatus {
	s.mu.Lock()
	state := s.State
	s.mu.Unlock()

	st := NodeStatus{
		Simulator:           util.StateName(state),
		Product:             s.Schema.Name,
		FormatTag:           fmt.Sprintf("0x%02x", s.Schema.FormatTag),
		DevAddr:             s.devAddr,
		State:               s.Loop.State().String(),
		Active:              s.Loop.Active(),
		Final:               s.Loop.Final(),
		IntervalSec:         s.Loop.GetCadence(),
		FastCyclesRemaining: s.Loop.FastCyclesRemaining(),
		PermanentSec:        s.Scheduler.Permanent(),
		NextUplinkIn:        s.Scheduler.Remaining().Round(time.Millisecond).String(),
		FCnt:                s.Radio.Framer().FCnt(),
		LastMeasurement:     s.Loop.LastMeasurement(),
	}
	if f := s.Loop.LastFrame(); len(f) > 0 {
		st.LastFrame = hex.EncodeToString(f)
	}
	if d, n := s.sleeper.snapshot(); n > 0 {
		st.LastSleep = d.Round(time.Millisecond).String()
		st.SleepRequests = n
	}
	return st
}

// SetActive requests activation or deactivation. The loop applies it on its next
// poll; deactivation waits until the node is sleeping.
func (s *Simulator) SetActive(enable bool) error {
	if s.Loop.Final() {
		return ErrNotRunning
	}
	s.Loop.RequestActive(enable)
	slog.Info("activation requested", "component", "simulator", "active", enable)
	return nil
}

// SetCadence replaces the fast uplink interval and the number of fast cycles.
func (s *Simulator) SetCadence(intervalSec, fastCount uint32) error {
	if s.Loop.Final() {
		return ErrNotRunning
	}
	s.Loop.SetCadence(intervalSec, fastCount)
	return nil
}

func (s *Simulator) LastMeasurement() measurement.Measurement {
	return s.Loop.LastMeasurement()
}

// LastFrame is the last encoded telemetry frame as hex, empty before the first uplink.
func (s *Simulator) LastFrame() string {
	return hex.EncodeToString(s.Loop.LastFrame())
}

// Decode parses a hex frame with the native decoder and runs the named
// JavaScript decoder over it. An empty codec name picks the node's decoder.
// A failing script is reported in the result, not as an error.
func (s *Simulator) Decode(frameHex, codecName string) (DecodeResult, error) {
	b, err := hex.DecodeString(strings.TrimSpace(frameHex))
	if err != nil {
		return DecodeResult{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	d, err := frame.Decode(b)
	if err != nil {
		return DecodeResult{}, err
	}
	res := DecodeResult{
		Format:      d.Schema.Name,
		Flags:       d.Flags.String(),
		Measurement: d.Measurement,
	}

	if codecName == "" {
		codecName = s.Config.Node.Decoder
	}
	if codecName == "" {
		codecName = d.Schema.Name
	}
	c, err := s.Codecs.Get(codecName)
	if err != nil {
		return DecodeResult{}, err
	}
	res.Codec = c.Name

	obj, err := s.Executor.Decode(c.Script, d.Schema.Port, b)
	if err != nil {
		res.CodecError = err.Error()
	} else {
		res.Object = obj
	}
	return res, nil
}

func (s *Simulator) GetCodecs() []codec.CodecMetadata {
	return s.Codecs.List()
}

// AddCodec registers a custom decoder script.
func (s *Simulator) AddCodec(name, script string) (codec.CodecMetadata, error) {
	c := codec.NewCodec(name, script)
	if err := s.Codecs.Add(c); err != nil {
		return codec.CodecMetadata{}, err
	}
	slog.Info("codec added", "component", "simulator", "name", name, "id", c.ID)
	return c.Metadata(), nil
}

func (s *Simulator) Uplinks(ctx context.Context, limit int) ([]journal.Entry, error) {
	if s.Journal == nil {
		return nil, ErrJournalDisabled
	}
	return s.Journal.Recent(ctx, limit)
}

func (s *Simulator) UplinkStats(ctx context.Context) (journal.Stats, error) {
	if s.Journal == nil {
		return journal.Stats{}, ErrJournalDisabled
	}
	return s.Journal.Stats(ctx)
}

// Shutdown stops the node for good. Completions from sends still in flight are
// ignored afterwards.
func (s *Simulator) Shutdown() {
	slog.Info("shutdown requested", "component", "simulator")
	s.Stop()
}
