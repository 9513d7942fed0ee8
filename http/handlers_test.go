package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"diabetesrisk/ml"
	"diabetesrisk/monitoring"
)

func TestHealthHandler(t *testing.T) {
	req, err := http.NewRequest("GET", "/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}

	rr := httptest.NewRecorder()
	h := NewHandlers(ml.NewEngine(), nil, nil)
	http.HandlerFunc(h.handleHealth).ServeHTTP(rr, req)

	if status := rr.Code; status != http.StatusOK {
		t.Errorf("handler returned wrong status code: got %v want %v", status, http.StatusOK)
	}

	expected := `{"status":"ok"}`
	if rr.Body.String() != expected+"\n" && rr.Body.String() != expected {
		t.Errorf("handler returned unexpected body: got %v want %v", rr.Body.String(), expected)
	}
}

func TestFeaturesHandler(t *testing.T) {
	mux, _ := newTestMux(t, &fakeModel{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/features", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload struct {
		Features []struct {
			Name    string   `json:"name"`
			Kind    string   `json:"kind"`
			Default *float64 `json:"default"`
		} `json:"features"`
		Generation uint64 `json:"generation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(payload.Features) != 19 || payload.Generation != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	bmi := payload.Features[3]
	if bmi.Name != "BMI" || bmi.Kind != "continuous" || bmi.Default == nil || *bmi.Default != 28.4 {
		t.Fatalf("unexpected BMI entry: %+v", bmi)
	}
	if payload.Features[0].Kind != "categorical" {
		t.Fatalf("expected HighBP to be categorical, got %s", payload.Features[0].Kind)
	}
}

func TestFeaturesHandlerBeforePublish(t *testing.T) {
	mux := http.NewServeMux()
	RegisterHandlers(mux, NewHandlers(ml.NewEngine(), nil, nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/features", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), `"default"`) {
		t.Fatalf("no defaults expected before publish: %s", w.Body.String())
	}
}

func TestMetricsRoute(t *testing.T) {
	mux, _ := newTestMux(t, &fakeModel{probability: 0.3})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/predict", nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `diabetesrisk_predictions_total{class="0"} 1`) {
		t.Fatalf("expected prediction counter:\n%s", w.Body.String())
	}
}

func TestStatsHandler(t *testing.T) {
	mux, _ := newTestMux(t, &fakeModel{probability: 0.8})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict", nil))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/predict?Sex=2", nil))

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats?recent=2", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var payload struct {
		Stats struct {
			Total        int64            `json:"total"`
			PositiveRate float64          `json:"positive_rate"`
			Errors       map[string]int64 `json:"errors"`
		} `json:"stats"`
		Recent     []json.RawMessage `json:"recent"`
		Generation uint64            `json:"generation"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &payload); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if payload.Stats.Total != 3 || payload.Stats.PositiveRate != 1 {
		t.Fatalf("unexpected stats: %+v", payload.Stats)
	}
	if payload.Stats.Errors["invalid_input"] != 1 {
		t.Fatalf("expected one invalid input error, got %v", payload.Stats.Errors)
	}
	if len(payload.Recent) != 2 || payload.Generation != 1 {
		t.Fatalf("unexpected payload: %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stats?recent=abc", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestMonitorWebSocketRoute(t *testing.T) {
	predictor, err := ml.NewPredictor(&fakeModel{probability: 0.65}, testDefaults(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	engine := ml.NewEngine()
	engine.Publish(predictor)

	monitor := monitoring.NewRealtimeMonitor(0, nil)
	if err := monitor.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer monitor.Stop()
	metrics := monitoring.NewMetrics(engine)
	metrics.AttachRealtime(monitor)

	server := httptest.NewServer(NewRouter(DefaultServerConfig(), NewHandlers(engine, metrics, nil), nil))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http")+"/ws/monitor", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()

	read := func() monitoring.Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg monitoring.Message
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return msg
	}
	if msg := read(); msg.Type != monitoring.SystemStatus {
		t.Fatalf("expected status message, got %s", msg.Type)
	}

	resp, err := http.Get(server.URL + "/predict?BMI=33")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	msg := read()
	if msg.Type != monitoring.PredictionEvent {
		t.Fatalf("expected prediction event, got %s", msg.Type)
	}
	var event monitoring.PredictionMessage
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if event.Probability != 0.65 || event.Class != 1 {
		t.Fatalf("unexpected event: %+v", event)
	}
}

func TestMonitorRouteAbsentWithoutMonitor(t *testing.T) {
	mux, _ := newTestMux(t, &fakeModel{})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws/monitor", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
