package broadcast

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"HelixPull/internal/domain/models"
	"HelixPull/pkg/logger"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	hub := NewHub(log, nil)
	e := echo.New()
	e.GET("/ws", hub.Handle)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHubWelcomeFrame(t *testing.T) {
	_, srv := newTestHub(t)
	conn := dial(t, srv)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame map[string]interface{}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	if frame["type"] != "welcome" {
		t.Fatalf("first frame type = %v, want welcome", frame["type"])
	}
	if frame["message"] == "" || frame["timestamp"] == nil {
		t.Fatalf("welcome frame incomplete: %v", frame)
	}
}

func TestHubPublishReachesSubscribers(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var welcome map[string]interface{}
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}

	waitForSubscribers(t, hub, 1)
	hub.Publish(map[string]models.TimeframeUpdate{
		"5m": {
			Timeframe:       "5m",
			BaseDelta:       "1.50",
			ComparisonDelta: "0.25",
			HelixValue:      "1.25",
			CumulativeValue: "3.75",
			Interpretation:  models.InterpretationBase,
			Timestamp:       time.Now().UTC().Format(time.RFC3339),
		},
	})

	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read update: %v", err)
	}
	var update struct {
		Type    string                            `json:"type"`
		Payload map[string]models.TimeframeUpdate `json:"payload"`
	}
	if err := json.Unmarshal(raw, &update); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if update.Type != "update" {
		t.Fatalf("frame type = %q, want update", update.Type)
	}
	got, ok := update.Payload["5m"]
	if !ok {
		t.Fatalf("payload missing 5m entry: %v", update.Payload)
	}
	if got.HelixValue != "1.25" || got.Interpretation != models.InterpretationBase {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestHubDropsClosedSubscriber(t *testing.T) {
	hub, srv := newTestHub(t)
	conn := dial(t, srv)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var welcome map[string]interface{}
	if err := conn.ReadJSON(&welcome); err != nil {
		t.Fatalf("read welcome: %v", err)
	}
	waitForSubscribers(t, hub, 1)

	conn.Close()
	waitForSubscribers(t, hub, 0)

	// Publishing with no subscribers must not panic or block.
	hub.Publish(map[string]models.TimeframeUpdate{})
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Subscribers() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), want)
}
