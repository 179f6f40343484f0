package measurement

import (
	"math/bits"
	"strings"
)

// Flags marks which fields of a Measurement are valid. The bit index is also the
// over-the-air field order.
type Flags uint8

const (
	FlagVbat   Flags = 1 << 0 // battery voltage
	FlagVbus   Flags = 1 << 1 // bus (USB) voltage
	FlagBoot   Flags = 1 << 2 // boot count
	FlagEnv    Flags = 1 << 3 // temperature, humidity, pressure
	FlagLux    Flags = 1 << 4 // light
	FlagProbe1 Flags = 1 << 5 // temperature probe one
	FlagProbe2 Flags = 1 << 6 // temperature probe two
)

// FlagNone is the empty set.
const FlagNone Flags = 0

var flagNames = [8]string{"Vbat", "Vbus", "Boot", "Env", "Lux", "Probe1", "Probe2", "Bit7"}

// Has reports whether every bit of f is set.
func (fl Flags) Has(f Flags) bool {
	return fl&f == f && f != 0
}

// Bits returns the indices of the set bits in ascending order.
func (fl Flags) Bits() []int {
	out := make([]int, 0, bits.OnesCount8(uint8(fl)))
	for i := 0; i < 8; i++ {
		if fl&(1<<i) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// Bit returns the single-bit flag for index i.
func Bit(i int) Flags {
	return Flags(1 << uint(i))
}

func (fl Flags) String() string {
	if fl == 0 {
		return "none"
	}
	var names []string
	for _, i := range fl.Bits() {
		names = append(names, flagNames[i])
	}
	return strings.Join(names, "|")
}

// Env holds the environmental readings.
type Env struct {
	Temperature float32 `json:"temperature"` // degrees C
	Humidity    float32 `json:"humidity"`    // % RH
	Pressure    float32 `json:"pressure"`    // Pa, zero when the sensor has none
}

// Measurement is one acquisition cycle's snapshot.
type Measurement struct {
	Flags     Flags   `json:"flags"`
	Vbat      float32 `json:"vBat"`
	Vbus      float32 `json:"vBus"`
	BootCount uint32  `json:"bootCount"`
	Env       Env     `json:"env"`
	Lux       float32 `json:"lux"`
	ProbeOne  float32 `json:"probeOne"`
	ProbeTwo  float32 `json:"probeTwo"`
}
