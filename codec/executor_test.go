package codec

import (
	"errors"
	"math"
	"testing"
	"time"
)

func number(t *testing.T, obj map[string]interface{}, key string) float64 {
	t.Helper()
	v, ok := obj[key]
	if !ok {
		t.Fatalf("missing %q in %v", key, obj)
	}
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		t.Fatalf("%q: expected numeric type, got %T", key, v)
	}
	return 0
}

func TestExecutorSimpleDecode(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	script := `
function Decode(fPort, bytes) {
    return {value: bytes[0], port: fPort};
}
`
	obj, err := executor.Decode(script, 3, []byte{42})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v := number(t, obj, "value"); v != 42 {
		t.Fatalf("value = %v, want 42", v)
	}
	if p := number(t, obj, "port"); p != 3 {
		t.Fatalf("port = %v, want 3", p)
	}
}

func TestExecutorMissingDecode(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	_, err := executor.Decode(`function Other() { return 1; }`, 1, nil)
	if !errors.Is(err, ErrDecodeFunctionNotFound) {
		t.Fatalf("expected ErrDecodeFunctionNotFound, got %v", err)
	}
}

func TestExecutorInvalidScript(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	_, err := executor.Decode(`function Decode(fPort, bytes) {`, 1, nil)
	if !errors.Is(err, ErrInvalidScript) {
		t.Fatalf("expected ErrInvalidScript, got %v", err)
	}
	if m := executor.GetMetrics(); m.TotalErrors != 1 {
		t.Fatalf("TotalErrors = %d, want 1", m.TotalErrors)
	}
}

func TestExecutorInvalidReturnType(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	_, err := executor.Decode(`function Decode(fPort, bytes) { return 5; }`, 1, nil)
	if !errors.Is(err, ErrInvalidReturnType) {
		t.Fatalf("expected ErrInvalidReturnType, got %v", err)
	}
}

func TestExecutorTimeout(t *testing.T) {
	executor := NewExecutor(&ExecutorConfig{MaxVMs: 2, Timeout: 10 * time.Millisecond})
	defer executor.Close()

	script := `
function Decode(fPort, bytes) {
    while (true) {}
}
`
	_, err := executor.Decode(script, 1, []byte{1})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if m := executor.GetMetrics(); m.TotalTimeouts != 1 {
		t.Fatalf("TotalTimeouts = %d, want 1", m.TotalTimeouts)
	}

	// the executor keeps working after an interrupted run
	obj, err := executor.Decode(`function Decode(fPort, bytes) { return {n: bytes.length}; }`, 1, []byte{1, 2})
	if err != nil {
		t.Fatalf("Decode after timeout: %v", err)
	}
	if n := number(t, obj, "n"); n != 2 {
		t.Fatalf("n = %v, want 2", n)
	}
}

func TestExecutorMetrics(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	for i := 0; i < 5; i++ {
		if _, err := executor.Decode(model4928Script, 1, []byte{0x2a, 0x05, 0x3a, 0x66, 0x2a}); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
	}

	m := executor.GetMetrics()
	if m.TotalExecutions != 5 || m.TotalErrors != 0 {
		t.Fatalf("metrics = %+v, want 5 executions and no errors", &m)
	}

	executor.ResetMetrics()
	if m := executor.GetMetrics(); m.TotalExecutions != 0 {
		t.Fatalf("TotalExecutions after reset = %d", m.TotalExecutions)
	}
}

func TestModel4928Decoder(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	obj, err := executor.Decode(model4928Script, 1, []byte{0x2a, 0x05, 0x3a, 0x66, 0x2a})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v := number(t, obj, "vBat"); math.Abs(v-3.65) > 0.001 {
		t.Errorf("vBat = %v, want ~3.65", v)
	}
	if b := number(t, obj, "boot"); b != 42 {
		t.Errorf("boot = %v, want 42", b)
	}
	if _, ok := obj["tempC"]; ok {
		t.Errorf("tempC present without its flag: %v", obj)
	}
}

func TestModel4928DecoderEnvAndLight(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	// flags 0x18: env then lux. 25.5 C is 0x1980, RH 0x8000 is ~50 %,
	// lux 0x3f8000 is 1.5 * 2^0.
	frame := []byte{0x2a, 0x18, 0x19, 0x80, 0x80, 0x00, 0x3f, 0x80, 0x00}
	obj, err := executor.Decode(model4928Script, 1, frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v := number(t, obj, "tempC"); v != 25.5 {
		t.Errorf("tempC = %v, want 25.5", v)
	}
	if v := number(t, obj, "rh"); math.Abs(v-50) > 0.01 {
		t.Errorf("rh = %v, want ~50", v)
	}
	if v := number(t, obj, "tDewC"); v < 14 || v > 15 {
		t.Errorf("tDewC = %v, want about 14.3", v)
	}
	if v := number(t, obj, "lux"); v != 1.5 {
		t.Errorf("lux = %v, want 1.5", v)
	}
	// 77.9 F sits inside the heat index range
	if _, ok := obj["tHeatIndexC"]; !ok {
		t.Errorf("tHeatIndexC missing: %v", obj)
	}
}

func TestCatena4610Decoder(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	// flags 0x28: env (T, P, RH) then water. 101325 Pa / 4 = 25331 = 0x62f3.
	frame := []byte{0x22, 0x28, 0x0a, 0x00, 0x62, 0xf3, 0x80, 0xff, 0x00}
	obj, err := executor.Decode(catena4610Script, 1, frame)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if v := number(t, obj, "tempC"); v != 10 {
		t.Errorf("tempC = %v, want 10", v)
	}
	if v := number(t, obj, "pressureHPa"); math.Abs(v-1013.24) > 0.01 {
		t.Errorf("pressureHPa = %v, want 1013.24", v)
	}
	if v := number(t, obj, "rh"); v != 50 {
		t.Errorf("rh = %v, want 50", v)
	}
	if v := number(t, obj, "tWater"); v != -1 {
		t.Errorf("tWater = %v, want -1", v)
	}
	if _, ok := obj["tHeatIndexC"]; ok {
		t.Errorf("tHeatIndexC present at 10 C: %v", obj)
	}
}

func TestDecoderRejectsForeignFrames(t *testing.T) {
	executor := NewExecutor(nil)
	defer executor.Close()

	cases := []struct {
		name   string
		script string
		port   uint8
		frame  []byte
	}{
		{"wrong port", model4928Script, 2, []byte{0x2a, 0x00}},
		{"wrong tag", model4928Script, 1, []byte{0x22, 0x00}},
		{"bit 4 on 0x22", catena4610Script, 1, []byte{0x22, 0x10, 0, 0, 0}},
		{"truncated", model4928Script, 1, []byte{0x2a, 0x01}},
	}
	for _, c := range cases {
		if _, err := executor.Decode(c.script, c.port, c.frame); err == nil {
			t.Errorf("%s: expected an error", c.name)
		}
	}
}

func TestLibrary(t *testing.T) {
	lib := NewLibrary()
	lib.LoadDefaults()

	if lib.Count() != 2 {
		t.Fatalf("Count = %d, want 2", lib.Count())
	}
	list := lib.List()
	if list[0].Name != "catena4610" || list[1].Name != "model4928" {
		t.Fatalf("List = %v", list)
	}
	if _, err := lib.Get("model4928"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := lib.Get("nope"); !errors.Is(err, ErrCodecNotFound) {
		t.Fatalf("expected ErrCodecNotFound, got %v", err)
	}

	if err := lib.Add(NewCodec("bad", "function OnUplink() {}")); !errors.Is(err, ErrInvalidCodecFormat) {
		t.Fatalf("expected ErrInvalidCodecFormat, got %v", err)
	}

	data, err := lib.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}
	other := NewLibrary()
	if err := other.FromJSON(data); err != nil {
		t.Fatalf("FromJSON: %v", err)
	}
	if other.Count() != 2 {
		t.Fatalf("restored Count = %d", other.Count())
	}

	if err := lib.Remove("model4928"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := lib.Remove("model4928"); !errors.Is(err, ErrCodecNotFound) {
		t.Fatalf("second Remove: %v", err)
	}
}

func BenchmarkModel4928Decode(b *testing.B) {
	executor := NewExecutor(nil)
	defer executor.Close()

	frame := []byte{0x2a, 0x1f, 0x3a, 0x66, 0x50, 0x00, 0x2a, 0x19, 0x80, 0x80, 0x00, 0x3f, 0x80, 0x00}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := executor.Decode(model4928Script, 1, frame); err != nil {
			b.Fatalf("Decode failed: %v", err)
		}
	}
}
