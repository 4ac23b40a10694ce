package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	domrepo "HelixPull/internal/domain/repository"
)

// Stream is one websocket subscription to a Binance combined-stream
// endpoint. Candle streams carry a timeframe, trade streams do not.
type Stream struct {
	websocketURL string
	symbol       string
	timeframe    domrepo.Timeframe // empty for trade streams
	pingInterval time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewCandleStream subscribes to kline updates for (symbol, timeframe).
func NewCandleStream(websocketURL, symbol string, tf domrepo.Timeframe, pingInterval time.Duration) domrepo.Stream {
	return &Stream{
		websocketURL: websocketURL,
		symbol:       symbol,
		timeframe:    tf,
		pingInterval: pingInterval,
	}
}

// NewTradeStream subscribes to raw trade ticks for symbol.
func NewTradeStream(websocketURL, symbol string, pingInterval time.Duration) domrepo.Stream {
	return &Stream{
		websocketURL: websocketURL,
		symbol:       symbol,
		pingInterval: pingInterval,
	}
}

// Name identifies the subscription in logs and metrics.
func (s *Stream) Name() string {
	if s.timeframe != "" {
		return fmt.Sprintf("%s@kline_%s", s.symbol, s.timeframe)
	}
	return fmt.Sprintf("%s@trade", s.symbol)
}

func (s *Stream) url() string {
	sym := strings.ToLower(s.symbol)
	if s.timeframe != "" {
		return fmt.Sprintf("%s/%s@kline_%s", s.websocketURL, sym, s.timeframe)
	}
	return fmt.Sprintf("%s/%s@trade", s.websocketURL, sym)
}

// Connect dials the stream endpoint.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.Name(), err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	return nil
}

// Read delivers raw frames until the connection errors or ctx ends.
// Both channels close when the read loop exits.
func (s *Stream) Read(ctx context.Context) (<-chan []byte, <-chan error) {
	frames := make(chan []byte, 256)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	// The ping loop lives exactly as long as the read loop.
	pingCtx, stopPing := context.WithCancel(ctx)

	pingInterval := s.pingInterval
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				c := s.conn
				s.mu.Unlock()
				if c != nil {
					_ = c.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
			}
		}
	}()

	go func() {
		defer stopPing()
		defer close(frames)
		defer close(errs)
		if conn == nil {
			errs <- fmt.Errorf("%s: not connected", s.Name())
			return
		}
		for {
			if ctx.Err() != nil {
				return
			}
			_, b, err := conn.ReadMessage()
			if err != nil {
				s.mu.Lock()
				s.connected = false
				s.mu.Unlock()
				errs <- fmt.Errorf("read %s: %w", s.Name(), err)
				return
			}
			select {
			case frames <- b:
			case <-ctx.Done():
				return
			}
		}
	}()

	return frames, errs
}

// Close tears the connection down.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

// IsConnected reports connection status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}
