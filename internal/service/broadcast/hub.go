package broadcast

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/pkg/logger"
)

const welcomeMessage = "Connected to helix stream"

type welcomeFrame struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

type updateFrame struct {
	Type      string                            `json:"type"`
	Payload   map[string]models.TimeframeUpdate `json:"payload"`
	Timestamp int64                             `json:"timestamp"`
}

// Hub fans analytics updates out to websocket subscribers. Delivery is
// best effort: a subscriber that errors on write is dropped, and
// publishing with no subscribers is a no-op.
type Hub struct {
	logger   *logger.Logger
	metrics  domrepo.Metrics // optional
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

func NewHub(log *logger.Logger, metrics domrepo.Metrics) *Hub {
	return &Hub{
		logger:  log,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Handle upgrades an HTTP request and registers the subscriber. The
// welcome frame is sent before the connection joins the broadcast set.
func (h *Hub) Handle(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	welcome := welcomeFrame{
		Type:      "welcome",
		Message:   welcomeMessage,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := conn.WriteJSON(welcome); err != nil {
		_ = conn.Close()
		return nil
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	h.conns[conn] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetSubscribers(n)
	}
	h.logger.Info("subscriber attached", logger.Int("subscribers", n))

	// Reader drains control frames and detects disconnects.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.detach(conn)
				return
			}
		}
	}()
	return nil
}

// Publish serializes the update once and writes it to every
// subscriber. Write failures detach the subscriber silently.
func (h *Hub) Publish(updates map[string]models.TimeframeUpdate) {
	h.mu.Lock()
	if len(h.conns) == 0 {
		h.mu.Unlock()
		return
	}
	targets := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		targets = append(targets, conn)
	}
	h.mu.Unlock()

	frame, err := json.Marshal(updateFrame{
		Type:      "update",
		Payload:   updates,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		h.logger.Error("marshal update frame", logger.Error(err))
		return
	}

	for _, conn := range targets {
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			h.detach(conn)
		}
	}
}

// Subscribers reports the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close detaches all subscribers and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for conn := range h.conns {
		conns = append(conns, conn)
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.SetSubscribers(0)
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (h *Hub) detach(conn *websocket.Conn) {
	h.mu.Lock()
	_, ok := h.conns[conn]
	delete(h.conns, conn)
	n := len(h.conns)
	h.mu.Unlock()
	if ok {
		if h.metrics != nil {
			h.metrics.SetSubscribers(n)
		}
		_ = conn.Close()
	}
}
