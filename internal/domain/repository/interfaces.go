package repository

import (
	"context"
	"time"

	"HelixPull/internal/domain/models"
)

// Stream is one logical upstream subscription (a trade stream for one
// symbol, or a candle stream for one symbol+timeframe). It delivers raw
// frames; normalization belongs to the collector that owns it.
type Stream interface {
	Name() string
	Connect(ctx context.Context) error
	Read(ctx context.Context) (<-chan []byte, <-chan error)
	Close() error
	IsConnected() bool
}

// MarketStore persists trade and candle history.
type MarketStore interface {
	Init(ctx context.Context) error
	StoreTrade(ctx context.Context, t *models.Trade) error
	StoreCandle(ctx context.Context, c *models.Candle) error
	QueryTrades(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Trade, error)
	QueryCandles(ctx context.Context, symbol string, tf Timeframe, from, to time.Time, limit int) ([]*models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

// HelixStore persists the append-only helix series per timeframe and
// serves the latest record back for accumulator recovery.
type HelixStore interface {
	Append(ctx context.Context, r *models.HelixRecord) error
	Latest(ctx context.Context, tf Timeframe) (*models.HelixRecord, error)
	History(ctx context.Context, tf Timeframe, limit int) ([]*models.HelixRecord, error)
}

// LatestStore mirrors the newest value per key for cheap reads outside
// the engine process.
type LatestStore interface {
	SetLatestPrice(ctx context.Context, symbol, price string) error
	SetLatestHelix(ctx context.Context, r *models.HelixRecord) error
	SetLatestClose(ctx context.Context, symbol string, tf Timeframe, closePrice string, closeTime int64) error
	LatestPrice(ctx context.Context, symbol string) (string, error)
	LatestHelix(ctx context.Context, tf Timeframe) (*models.HelixRecord, error)
	Close() error
}

// Publisher hands market events to the streaming persistence backend.
type Publisher interface {
	PublishTrade(ctx context.Context, t *models.Trade) error
	PublishCandle(ctx context.Context, c *models.Candle) error
	Close() error
}

// Broadcaster fans a computed snapshot out to connected subscribers.
type Broadcaster interface {
	Publish(updates map[string]models.TimeframeUpdate)
	Subscribers() int
}

type Metrics interface {
	RecordMessage(stream, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordReconnect(stream string)
	SetSubscribers(n int)
}
