package sensors

import (
	"math/rand"
	"sync"
)

// walk is a bounded random walk shared by the simulated sensors.
type walk struct {
	mu       sync.Mutex
	rnd      *rand.Rand
	value    float64
	step     float64
	min, max float64
}

func newWalk(seed int64, start, step, min, max float64) *walk {
	return &walk{rnd: rand.New(rand.NewSource(seed)), value: start, step: step, min: min, max: max}
}

func (w *walk) next() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.value += (w.rnd.Float64()*2 - 1) * w.step
	if w.value < w.min {
		w.value = w.min
	}
	if w.value > w.max {
		w.value = w.max
	}
	return w.value
}

// SimConfig describes which simulated sensors a node carries.
type SimConfig struct {
	Seed     int64   `json:"seed"`
	Vbat     float32 `json:"vbat"`
	Vbus     float32 `json:"vbus"`
	Env      bool    `json:"env"`
	Pressure bool    `json:"pressure"`
	Light    bool    `json:"light"`
	ProbeOne bool    `json:"probeOne"`
	ProbeTwo bool    `json:"probeTwo"`
	Boot     uint32  `json:"boot"`
}

// NewSimSet builds simulated sensors; a zero voltage leaves that rail absent.
func NewSimSet(cfg SimConfig) Set {
	var s Set
	if cfg.Vbat > 0 {
		s.Vbat = NewSimVoltage(cfg.Seed, cfg.Vbat)
	}
	if cfg.Vbus > 0 {
		s.Vbus = NewSimVoltage(cfg.Seed+1, cfg.Vbus)
	}
	s.Boot = NewSimBootCounter(cfg.Boot)
	if cfg.Env {
		s.Env = NewSimEnv(cfg.Seed+2, cfg.Pressure)
	}
	if cfg.Light {
		s.Light = NewSimLight(cfg.Seed + 3)
	}
	if cfg.ProbeOne {
		s.ProbeOne = NewSimProbe(cfg.Seed+4, 12)
	}
	if cfg.ProbeTwo {
		s.ProbeTwo = NewSimProbe(cfg.Seed+5, 18)
	}
	return s
}

type SimVoltage struct {
	w *walk
}

func NewSimVoltage(seed int64, nominal float32) *SimVoltage {
	n := float64(nominal)
	return &SimVoltage{w: newWalk(seed, n, 0.01, n*0.9, n*1.05)}
}

func (v *SimVoltage) Probe() bool { return true }

func (v *SimVoltage) Voltage() (float32, bool) {
	return float32(v.w.next()), true
}

// SimEnv simulates a BME280/SHT3x class sensor. Without pressure it reports zero Pa.
type SimEnv struct {
	temp, rh, pa *walk
	pressure     bool
	powered      bool
	mu           sync.Mutex
}

func NewSimEnv(seed int64, pressure bool) *SimEnv {
	return &SimEnv{
		temp:     newWalk(seed, 21, 0.3, -20, 50),
		rh:       newWalk(seed+100, 45, 1, 5, 95),
		pa:       newWalk(seed+200, 101325, 20, 95000, 105000),
		pressure: pressure,
	}
}

func (e *SimEnv) Probe() bool { return true }

func (e *SimEnv) PowerUp() {
	e.mu.Lock()
	e.powered = true
	e.mu.Unlock()
}

func (e *SimEnv) PowerDown() {
	e.mu.Lock()
	e.powered = false
	e.mu.Unlock()
}

func (e *SimEnv) Powered() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.powered
}

func (e *SimEnv) Read() (float32, float32, float32, bool) {
	var pa float32
	if e.pressure {
		pa = float32(e.pa.next())
	}
	return float32(e.temp.next()), float32(e.rh.next()), pa, true
}

type SimLight struct {
	w *walk
}

func NewSimLight(seed int64) *SimLight {
	return &SimLight{w: newWalk(seed, 300, 50, 0, 120000)}
}

func (l *SimLight) Probe() bool { return true }

func (l *SimLight) Lux() (float32, bool) {
	return float32(l.w.next()), true
}

type SimProbe struct {
	w *walk
}

func NewSimProbe(seed int64, start float64) *SimProbe {
	return &SimProbe{w: newWalk(seed, start, 0.2, -40, 85)}
}

func (p *SimProbe) Probe() bool { return true }

func (p *SimProbe) Temperature() (float32, bool) {
	return float32(p.w.next()), true
}

// SimBootCounter increments once per simulated boot.
type SimBootCounter struct {
	mu    sync.Mutex
	count uint32
}

func NewSimBootCounter(start uint32) *SimBootCounter {
	return &SimBootCounter{count: start + 1}
}

func (b *SimBootCounter) BootCount() (uint32, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count, true
}
