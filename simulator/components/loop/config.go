package loop

import (
	"time"

	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
)

// OperatingFlags mirror the persistent operating flags of the node firmware.
type OperatingFlags uint32

const (
	OpUnattended        OperatingFlags = 1 << 0
	OpManufacturingTest OperatingFlags = 1 << 1
	OpConfirmedUplink   OperatingFlags = 1 << 16
	OpDisableDeepSleep  OperatingFlags = 1 << 17
)

func (f OperatingFlags) Has(x OperatingFlags) bool { return f&x == x }

// DebugFlags select extra diagnostic output.
type DebugFlags uint32

const (
	DebugError   DebugFlags = 1 << 0
	DebugWarning DebugFlags = 1 << 1
	DebugTrace   DebugFlags = 1 << 2
	DebugInfo    DebugFlags = 1 << 3
)

func (f DebugFlags) Has(x DebugFlags) bool { return f&x == x }

type Config struct {
	// Active starts the node measuring instead of waiting for activation.
	Active bool `json:"active"`
	// MeasureOnActivate makes the first measurement happen right after activation
	// instead of one interval later.
	MeasureOnActivate bool   `json:"measureOnActivate"`
	WarmupMs          uint32 `json:"warmupMs"`
	SleepThresholdMs  uint32 `json:"sleepThresholdMs"`
	// ReportMask limits which measured fields are sent. Zero means every field of
	// the product format.
	ReportMask measurement.Flags `json:"reportMask"`

	Operating OperatingFlags `json:"operatingFlags"`
	Debug     DebugFlags     `json:"debugFlags"`
}

func DefaultConfig() Config {
	return Config{
		Active:            true,
		MeasureOnActivate: true,
		WarmupMs:          5000,
		SleepThresholdMs:  1500,
		Operating:         OpUnattended,
		Debug:             DebugError | DebugWarning,
	}
}

func (c Config) warmup() time.Duration {
	return time.Duration(c.WarmupMs) * time.Millisecond
}

func (c Config) sleepThreshold() time.Duration {
	return time.Duration(c.SleepThresholdMs) * time.Millisecond
}
