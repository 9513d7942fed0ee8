package monitoring

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"diabetesrisk/ml"
)

func dialMonitor(t *testing.T, monitor *RealtimeMonitor) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(monitor.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return msg
}

func TestRealtimeMonitorPushesEvents(t *testing.T) {
	monitor := NewRealtimeMonitor(0, nil)
	if err := monitor.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer monitor.Stop()

	m := NewMetrics(nil)
	m.AttachRealtime(monitor)

	conn := dialMonitor(t, monitor)

	// The status message arrives once the client is registered.
	if msg := readMessage(t, conn); msg.Type != SystemStatus {
		t.Fatalf("expected system status first, got %s", msg.Type)
	}

	m.ObservePrediction(ml.Prediction{Probability: 0.8, Class: 1}, time.Millisecond)
	msg := readMessage(t, conn)
	if msg.Type != PredictionEvent || msg.ID == "" {
		t.Fatalf("unexpected message: %+v", msg)
	}
	var prediction PredictionMessage
	if err := json.Unmarshal(msg.Data, &prediction); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prediction.Probability != 0.8 || prediction.Class != 1 {
		t.Fatalf("unexpected prediction event: %+v", prediction)
	}

	m.ObserveError(ErrorScoring)
	if msg := readMessage(t, conn); msg.Type != PredictionError {
		t.Fatalf("expected prediction error, got %s", msg.Type)
	}

	m.ObserveReload(4, errors.New("bad artifact"))
	msg = readMessage(t, conn)
	var reload ReloadMessage
	if err := json.Unmarshal(msg.Data, &reload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Type != ReloadEvent || reload.Success || reload.Generation != 4 || reload.Error != "bad artifact" {
		t.Fatalf("unexpected reload event: %s %+v", msg.Type, reload)
	}

	if stats := monitor.GetStats(); stats.ConnectedClients != 1 || stats.MessagesSent != 3 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

func TestRealtimeMonitorHeartbeat(t *testing.T) {
	monitor := NewRealtimeMonitor(20*time.Millisecond, nil)
	if err := monitor.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer monitor.Stop()

	conn := dialMonitor(t, monitor)
	readMessage(t, conn)
	if msg := readMessage(t, conn); msg.Type != Heartbeat {
		t.Fatalf("expected heartbeat, got %s", msg.Type)
	}
}

func TestRealtimeMonitorStartStop(t *testing.T) {
	monitor := NewRealtimeMonitor(0, nil)
	if err := monitor.SendHeartbeat(); err == nil {
		t.Fatal("expected error before start")
	}
	if err := monitor.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := monitor.Start(); err == nil {
		t.Fatal("expected error on second start")
	}
	if err := monitor.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := monitor.Stop(); err == nil {
		t.Fatal("expected error on second stop")
	}

	w := httptest.NewRecorder()
	monitor.HandleWebSocket(w, httptest.NewRequest(http.MethodGet, "/ws/monitor", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 once stopped, got %d", w.Code)
	}
}

func TestClientSubscriptions(t *testing.T) {
	c := &Client{subscriptions: make(map[MessageType]bool)}
	if !c.wants(Heartbeat) {
		t.Fatal("a client without subscriptions receives everything")
	}

	c.handleClientMessage(ClientMessage{Type: "subscribe", Topic: ReloadEvent})
	if c.wants(PredictionEvent) || !c.wants(ReloadEvent) {
		t.Fatal("expected only reload events after subscribing")
	}

	c.handleClientMessage(ClientMessage{Type: "unsubscribe", Topic: ReloadEvent})
	if !c.wants(PredictionEvent) {
		t.Fatal("expected all events after unsubscribing")
	}
}
