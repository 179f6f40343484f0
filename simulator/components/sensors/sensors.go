// Package sensors declares the hardware collaborators read by the measurement
// loop, and seeded simulations of them for running on a host.
package sensors

// Voltmeter reads a supply rail in volts.
type Voltmeter interface {
	Probe() bool
	Voltage() (float32, bool)
}

// EnvSensor reads temperature (C), relative humidity (%) and pressure (Pa).
type EnvSensor interface {
	Probe() bool
	Read() (temperature, humidity, pressure float32, ok bool)
}

// LightSensor reads illuminance in lux.
type LightSensor interface {
	Probe() bool
	Lux() (float32, bool)
}

// ProbeSensor reads an external temperature probe in C.
type ProbeSensor interface {
	Probe() bool
	Temperature() (float32, bool)
}

// BootCounter returns the persistent boot count.
type BootCounter interface {
	BootCount() (uint32, bool)
}

// Warmer is implemented by sensors that need power before a reading.
type Warmer interface {
	PowerUp()
	PowerDown()
}

// Set groups the sensors of one node. Nil members are absent hardware.
type Set struct {
	Vbat     Voltmeter
	Vbus     Voltmeter
	Boot     BootCounter
	Env      EnvSensor
	Light    LightSensor
	ProbeOne ProbeSensor
	ProbeTwo ProbeSensor
}

func (s Set) warmers() []Warmer {
	var out []Warmer
	for _, c := range []any{s.Vbat, s.Vbus, s.Boot, s.Env, s.Light, s.ProbeOne, s.ProbeTwo} {
		if w, ok := c.(Warmer); ok {
			out = append(out, w)
		}
	}
	return out
}

// PowerUp powers every sensor that implements Warmer.
func (s Set) PowerUp() {
	for _, w := range s.warmers() {
		w.PowerUp()
	}
}

// PowerDown is the counterpart of PowerUp.
func (s Set) PowerDown() {
	for _, w := range s.warmers() {
		w.PowerDown()
	}
}
