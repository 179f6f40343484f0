package frame

import (
	"fmt"

	m "github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
)

const (
	// FormatModel4928 is the Model 4928 temperature sensor uplink.
	FormatModel4928 byte = 0x2a
	// FormatCatena4610 is the Catena 4610 ThermoSense uplink.
	FormatCatena4610 byte = 0x22

	// UplinkPort is the LoRaWAN port both products send on.
	UplinkPort uint8 = 1
)

var (
	// Model4928: Vbat, Vbus, boot, T+RH, lux, two probes. 18 bytes with all bits set.
	Model4928 = register(NewSchema("model4928", FormatModel4928, 18, UplinkPort,
		vbatField(),
		vbusField(),
		bootField(),
		envTHField(),
		luxField(),
		probeOneField("Probe1"),
		probeTwoField(),
	))

	// Catena4610: Vbat, Vbus, boot, T+P+RH, water probe. Bit 4 has no field in this
	// format. 14 bytes with all bits set.
	Catena4610 = register(NewSchema("catena4610", FormatCatena4610, 14, UplinkPort,
		vbatField(),
		vbusField(),
		bootField(),
		envTPHField(),
		probeOneField("Water"),
	))
)

func vbatField() *FieldSpec {
	return &FieldSpec{
		Bit: 0, Name: "Vbat", Width: 2,
		put:      func(b *Buffer, d m.Measurement) { b.PutV(d.Vbat) },
		describe: func(d m.Measurement) string { return fmt.Sprintf("Vbat:    %d mV", int(d.Vbat*1000)) },
		decode:   func(r *reader, d *m.Measurement) { d.Vbat = r.v() },
	}
}

func vbusField() *FieldSpec {
	return &FieldSpec{
		Bit: 1, Name: "Vbus", Width: 2,
		put:      func(b *Buffer, d m.Measurement) { b.PutV(d.Vbus) },
		describe: func(d m.Measurement) string { return fmt.Sprintf("Vbus:    %d mV", int(d.Vbus*1000)) },
		decode:   func(r *reader, d *m.Measurement) { d.Vbus = r.v() },
	}
}

func bootField() *FieldSpec {
	return &FieldSpec{
		Bit: 2, Name: "Boot", Width: 1,
		put:      func(b *Buffer, d m.Measurement) { b.PutBootCountLsb(d.BootCount) },
		describe: func(d m.Measurement) string { return fmt.Sprintf("Boot:    %d", d.BootCount) },
		decode:   func(r *reader, d *m.Measurement) { d.BootCount = uint32(r.u8()) },
	}
}

// envTHField carries temperature and a two-byte RH fraction.
func envTHField() *FieldSpec {
	return &FieldSpec{
		Bit: 3, Name: "Env", Width: 4,
		put: func(b *Buffer, d m.Measurement) {
			b.PutT(d.Env.Temperature)
			b.Put2uf(d.Env.Humidity / 100 * 65535)
		},
		describe: func(d m.Measurement) string {
			return fmt.Sprintf("Env:     T: %d RH: %d", int(d.Env.Temperature), int(d.Env.Humidity))
		},
		decode: func(r *reader, d *m.Measurement) {
			d.Env.Temperature = r.t()
			d.Env.Humidity = r.rh2()
		},
	}
}

// envTPHField carries temperature, pressure and a one-byte RH.
func envTPHField() *FieldSpec {
	return &FieldSpec{
		Bit: 3, Name: "Env", Width: 5,
		put: func(b *Buffer, d m.Measurement) {
			b.PutT(d.Env.Temperature)
			b.PutP(d.Env.Pressure)
			b.PutRH(d.Env.Humidity)
		},
		describe: func(d m.Measurement) string {
			return fmt.Sprintf("Env:     T: %d P: %d RH: %d",
				int(d.Env.Temperature), int(d.Env.Pressure), int(d.Env.Humidity))
		},
		decode: func(r *reader, d *m.Measurement) {
			d.Env.Temperature = r.t()
			d.Env.Pressure = r.p()
			d.Env.Humidity = r.rh1()
		},
	}
}

func luxField() *FieldSpec {
	return &FieldSpec{
		Bit: 4, Name: "Lux", Width: 3,
		put:      func(b *Buffer, d m.Measurement) { b.Put3f(d.Lux) },
		describe: func(d m.Measurement) string { return fmt.Sprintf("Light:   %d Lux", int(d.Lux)) },
		decode:   func(r *reader, d *m.Measurement) { d.Lux = r.f3() },
	}
}

func probeOneField(name string) *FieldSpec {
	return &FieldSpec{
		Bit: 5, Name: name, Width: 2,
		put:      func(b *Buffer, d m.Measurement) { b.PutT(d.ProbeOne) },
		describe: func(d m.Measurement) string { return fmt.Sprintf("%s:  T: %d C", name, int(d.ProbeOne)) },
		decode:   func(r *reader, d *m.Measurement) { d.ProbeOne = r.t() },
	}
}

func probeTwoField() *FieldSpec {
	return &FieldSpec{
		Bit: 6, Name: "Probe2", Width: 2,
		put:      func(b *Buffer, d m.Measurement) { b.PutT(d.ProbeTwo) },
		describe: func(d m.Measurement) string { return fmt.Sprintf("Probe2:  T: %d C", int(d.ProbeTwo)) },
		decode:   func(r *reader, d *m.Measurement) { d.ProbeTwo = r.t() },
	}
}
