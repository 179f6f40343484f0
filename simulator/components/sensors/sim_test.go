package sensors

import "testing"

func TestSimSetPresence(t *testing.T) {
	s := NewSimSet(SimConfig{Seed: 1, Vbat: 3.7, Env: true})
	if s.Vbat == nil || s.Env == nil || s.Boot == nil {
		t.Fatal("configured sensors missing")
	}
	if s.Vbus != nil || s.Light != nil || s.ProbeOne != nil || s.ProbeTwo != nil {
		t.Error("unconfigured sensors should be absent")
	}
}

func TestSimDeterministic(t *testing.T) {
	a := NewSimVoltage(42, 3.7)
	b := NewSimVoltage(42, 3.7)
	for i := 0; i < 20; i++ {
		va, _ := a.Voltage()
		vb, _ := b.Voltage()
		if va != vb {
			t.Fatalf("same seed diverged at %d: %v != %v", i, va, vb)
		}
	}
}

func TestSimEnvBounds(t *testing.T) {
	e := NewSimEnv(7, false)
	for i := 0; i < 1000; i++ {
		temp, rh, pa, ok := e.Read()
		if !ok {
			t.Fatal("read failed")
		}
		if temp < -20 || temp > 50 || rh < 5 || rh > 95 {
			t.Fatalf("reading out of range: %v %v", temp, rh)
		}
		if pa != 0 {
			t.Fatal("pressure reported without a pressure sensor")
		}
	}
}

func TestSetPower(t *testing.T) {
	env := NewSimEnv(1, true)
	s := Set{Env: env}
	s.PowerUp()
	if !env.Powered() {
		t.Error("PowerUp did not reach the env sensor")
	}
	s.PowerDown()
	if env.Powered() {
		t.Error("PowerDown did not reach the env sensor")
	}
}

func TestBootCounter(t *testing.T) {
	b := NewSimBootCounter(41)
	if n, ok := b.BootCount(); !ok || n != 42 {
		t.Errorf("expected 42, got %d", n)
	}
}
