package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/device"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-presence/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-presence/internal/presence"
)

type fakeSink struct{ connected bool }

func (f fakeSink) IsConnected() bool { return f.connected }

// testServer builds a Server over a store seeded with one home and one away device.
func testServer(t *testing.T, sink SinkState) (*Server, *presence.Store) {
	t.Helper()

	store := presence.NewStore()
	store.Put(presence.Record{
		Name: "phone", MAC: "AA:BB:CC:DD:EE:FF", BTType: "bt",
		Confidence: 100, LastSeen: "2026-03-01 12:00:00", State: device.PresenceHome,
	})
	store.Put(presence.Record{
		Name: "watch", MAC: "11:22:33:44:55:66", BTType: "ble",
		Confidence: 0, State: device.PresenceNotHome,
	})

	srv, err := New(Deps{
		Logger:  logging.Discard(),
		Store:   store,
		Sink:    sink,
		Room:    "bedroom",
		Version: "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, store
}

func doGet(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	return rec
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{Store: presence.NewStore()}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: logging.Discard()}); err == nil {
		t.Error("New() without store should fail")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		sink       SinkState
		wantStatus string
		wantSink   bool
	}{
		{"no sink", nil, "ok", false},
		{"connected", fakeSink{connected: true}, "ok", true},
		{"disconnected", fakeSink{connected: false}, "degraded", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := testServer(t, tt.sink)
			rec := doGet(t, srv, "/api/v1/health")
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			var body map[string]any
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %q", body["status"], tt.wantStatus)
			}
			if body["sink_connected"] != tt.wantSink {
				t.Errorf("sink_connected = %v, want %v", body["sink_connected"], tt.wantSink)
			}
			if body["room"] != "bedroom" {
				t.Errorf("room = %v, want bedroom", body["room"])
			}
		})
	}
}

func TestListDevices(t *testing.T) {
	tests := []struct {
		query     string
		wantCode  int
		wantNames []string
	}{
		{"", http.StatusOK, []string{"phone", "watch"}},
		{"?state=home", http.StatusOK, []string{"phone"}},
		{"?state=not_home", http.StatusOK, []string{"watch"}},
		{"?state=away", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			srv, _ := testServer(t, nil)
			rec := doGet(t, srv, "/api/v1/devices"+tt.query)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusOK {
				var apiErr Error
				if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
					t.Fatalf("decoding error body: %v", err)
				}
				if apiErr.Code != ErrCodeBadRequest {
					t.Errorf("code = %q, want %q", apiErr.Code, ErrCodeBadRequest)
				}
				return
			}

			var body DeviceListResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decoding body: %v", err)
			}
			if body.Count != len(tt.wantNames) {
				t.Fatalf("count = %d, want %d", body.Count, len(tt.wantNames))
			}
			for i, want := range tt.wantNames {
				if body.Devices[i].Name != want {
					t.Errorf("devices[%d] = %q, want %q", i, body.Devices[i].Name, want)
				}
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := doGet(t, srv, "/api/v1/devices/phone")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var got presence.Record
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if got.MAC != "AA:BB:CC:DD:EE:FF" || got.Confidence != 100 || got.State != device.PresenceHome {
		t.Errorf("record = %+v", got)
	}

	rec = doGet(t, srv, "/api/v1/devices/tablet")
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing device status = %d, want 404", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv, store := testServer(t, fakeSink{connected: true})
	store.PutCycle(presence.CycleReport{
		ID:        "cycle-1",
		Started:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Elapsed:   1500 * time.Millisecond,
		Broadcast: true,
		Processed: 2,
		Found:     1,
	})

	rec := doGet(t, srv, "/api/v1/metrics")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var m SystemMetrics
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !m.MQTT.Connected {
		t.Error("mqtt.connected = false, want true")
	}
	if m.Cycles.Total != 1 || m.Cycles.LastID != "cycle-1" {
		t.Errorf("cycles = %+v", m.Cycles)
	}
	if m.Cycles.LastElapsedMS != 1500 {
		t.Errorf("last_elapsed_ms = %d, want 1500", m.Cycles.LastElapsedMS)
	}
	if m.Cycles.FoundRatio != 0.5 {
		t.Errorf("found_ratio = %v, want 0.5", m.Cycles.FoundRatio)
	}
	if m.Cycles.LastStarted != "2026-03-01T12:00:00Z" {
		t.Errorf("last_started = %q", m.Cycles.LastStarted)
	}
	if m.Devices.Total != 2 || m.Devices.Home != 1 || m.Devices.NotHome != 1 {
		t.Errorf("devices = %+v", m.Devices)
	}
	if m.Runtime.Goroutines < 1 {
		t.Errorf("goroutines = %d", m.Runtime.Goroutines)
	}
}

func TestRouter_ReadOnly(t *testing.T) {
	srv, _ := testServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/devices/", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST status = %d, want 405", rec.Code)
	}

	rec = doGet(t, srv, "/api/v1/nothing")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	srv, _ := testServer(t, nil)

	rec := doGet(t, srv, "/api/v1/health")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec = httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q, want abc-123", got)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _ := testServer(t, nil)

	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}

func TestStartClose(t *testing.T) {
	srv, _ := testServer(t, nil)
	srv.cfg = config.APIConfig{
		Host:     "127.0.0.1",
		Port:     0,
		Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
	}

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	resp, err := http.Get("http://" + srv.Addr() + "/api/v1/health")
	if err != nil {
		srv.Close()
		t.Fatalf("GET health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
