package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/R3DPanda1/LWN-Sim-Node/codec"
	"github.com/R3DPanda1/LWN-Sim-Node/models"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/journal"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/components/measurement"
	"github.com/R3DPanda1/LWN-Sim-Node/simulator/events"
)

type fakeController struct {
	active    *bool
	interval  uint32
	count     uint32
	final     bool
	lastFrame string
}

func (f *fakeController) GetInstance(*models.ServerConfig) error { return nil }
func (f *fakeController) Run() bool { return true }
func (f *fakeController) Stop() bool { f.final = true; return true }

func (f *fakeController) Status() simulator.NodeStatus {
	return simulator.NodeStatus{Product: "model4928", State: "Sleeping", IntervalSec: f.interval, FastCyclesRemaining: f.count}
}

func (f *fakeController) SetActive(enable bool) error {
	if f.final {
		return simulator.ErrNotRunning
	}
	f.active = &enable
	return nil
}

func (f *fakeController) SetCadence(interval, count uint32) error {
	f.interval, f.count = interval, count
	return nil
}

func (f *fakeController) GetMeasurement() measurement.Measurement {
	return measurement.Measurement{Vbat: 3.6}
}

func (f *fakeController) GetLastFrame() string { return f.lastFrame }

func (f *fakeController) Decode(frameHex, codecName string) (simulator.DecodeResult, error) {
	if frameHex != "2a053a662a" {
		return simulator.DecodeResult{}, simulator.ErrBadFrame
	}
	return simulator.DecodeResult{Format: "model4928", Codec: "model4928"}, nil
}

func (f *fakeController) GetCodecs() []codec.CodecMetadata {
	return []codec.CodecMetadata{{ID: "1", Name: "model4928"}}
}

func (f *fakeController) AddCodec(name, script string) (codec.CodecMetadata, error) {
	c := codec.NewCodec(name, script)
	if err := c.Validate(); err != nil {
		return codec.CodecMetadata{}, err
	}
	return c.Metadata(), nil
}

func (f *fakeController) GetUplinks(context.Context, int) ([]journal.Entry, error) {
	return nil, simulator.ErrJournalDisabled
}

func (f *fakeController) GetUplinkStats(context.Context) (journal.Stats, error) {
	return journal.Stats{Frames: 2}, nil
}

func (f *fakeController) GetEventBroker() *events.EventBroker { return nil }
func (f *fakeController) DevAddr() string { return "26011f2a" }

func newTestServer() (*WebServer, *fakeController) {
	ctrl := &fakeController{interval: 30, count: 10}
	return NewWebServer(&models.ServerConfig{Address: "127.0.0.1", Port: 0}, ctrl), ctrl
}

func do(ws *WebServer, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ws.Router.ServeHTTP(rec, req)
	return rec
}

func TestStatus(t *testing.T) {
	ws, _ := newTestServer()
	rec := do(ws, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	var st simulator.NodeStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Product != "model4928" || st.IntervalSec != 30 {
		t.Fatalf("status = %+v", st)
	}
}

func TestSetActive(t *testing.T) {
	ws, ctrl := newTestServer()

	if rec := do(ws, http.MethodPost, "/api/active", `{}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing field: code = %d", rec.Code)
	}
	if rec := do(ws, http.MethodPost, "/api/active", `{"active": false}`); rec.Code != http.StatusAccepted {
		t.Fatalf("code = %d", rec.Code)
	}
	if ctrl.active == nil || *ctrl.active {
		t.Fatalf("controller saw %v", ctrl.active)
	}

	do(ws, http.MethodPost, "/api/shutdown", "")
	if rec := do(ws, http.MethodPost, "/api/active", `{"active": true}`); rec.Code != http.StatusConflict {
		t.Errorf("after shutdown: code = %d", rec.Code)
	}
}

func TestSetCadence(t *testing.T) {
	ws, ctrl := newTestServer()
	rec := do(ws, http.MethodPost, "/api/cadence", `{"intervalSec": 120, "fastCount": 3}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ctrl.interval != 120 || ctrl.count != 3 {
		t.Fatalf("controller cadence = %d/%d", ctrl.interval, ctrl.count)
	}
}

func TestLastFrameAndDecode(t *testing.T) {
	ws, ctrl := newTestServer()
	if rec := do(ws, http.MethodGet, "/api/frame/last", ""); rec.Code != http.StatusNotFound {
		t.Errorf("before first frame: code = %d", rec.Code)
	}

	ctrl.lastFrame = "2a053a662a"
	if rec := do(ws, http.MethodGet, "/api/frame/last", ""); rec.Code != http.StatusOK {
		t.Errorf("code = %d", rec.Code)
	}
	// an empty frame decodes the last one sent
	if rec := do(ws, http.MethodPost, "/api/decode", `{}`); rec.Code != http.StatusOK {
		t.Errorf("decode last: code = %d body %s", rec.Code, rec.Body.String())
	}
	if rec := do(ws, http.MethodPost, "/api/decode", `{"frame": "zz"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("bad frame: code = %d", rec.Code)
	}
}

func TestUplinksAndCodecs(t *testing.T) {
	ws, _ := newTestServer()
	if rec := do(ws, http.MethodGet, "/api/uplinks", ""); rec.Code != http.StatusNotFound {
		t.Errorf("uplinks without journal: code = %d", rec.Code)
	}
	if rec := do(ws, http.MethodGet, "/api/uplinks?limit=x", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad limit: code = %d", rec.Code)
	}
	if rec := do(ws, http.MethodGet, "/api/uplinks/stats", ""); rec.Code != http.StatusOK {
		t.Errorf("stats: code = %d", rec.Code)
	}
	if rec := do(ws, http.MethodGet, "/api/codecs", ""); rec.Code != http.StatusOK {
		t.Errorf("codecs: code = %d", rec.Code)
	}
	rec := do(ws, http.MethodPost, "/api/add-codec", `{"name": "x", "script": "function OnUplink() {}"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid codec: code = %d", rec.Code)
	}
}
