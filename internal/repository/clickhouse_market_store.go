package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/pkg/clickhouse"
)

// Table DDL is idempotent and applied at startup. Candles use a
// ReplacingMergeTree keyed by (symbol, timeframe, open_time) so the
// repeated writes of a still-open period collapse into the final row.
var marketSchema = []string{
	`CREATE TABLE IF NOT EXISTS trades (
		symbol          LowCardinality(String),
		price           Float64,
		quantity        Float64,
		trade_id        Int64,
		trade_time      DateTime64(3),
		is_buyer_maker  UInt8
	) ENGINE = MergeTree()
	ORDER BY (symbol, trade_time)
	TTL toDateTime(trade_time) + INTERVAL 90 DAY`,

	`CREATE TABLE IF NOT EXISTS candles (
		symbol      LowCardinality(String),
		timeframe   LowCardinality(String),
		open_time   DateTime64(3),
		open        Float64,
		high        Float64,
		low         Float64,
		close       Float64,
		volume      Float64,
		close_time  DateTime64(3),
		trades      Int64,
		is_closed   UInt8,
		updated_at  DateTime64(3) DEFAULT now64(3)
	) ENGINE = ReplacingMergeTree(updated_at)
	ORDER BY (symbol, timeframe, open_time)`,
}

// MarketStore persists trades and candles in ClickHouse.
type MarketStore struct {
	client *clickhouse.Client
}

func NewMarketStore(client *clickhouse.Client) *MarketStore {
	return &MarketStore{client: client}
}

var _ domrepo.MarketStore = (*MarketStore)(nil)

func (s *MarketStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, marketSchema)
}

func (s *MarketStore) StoreTrade(ctx context.Context, t *models.Trade) error {
	price, err := strconv.ParseFloat(t.Price, 64)
	if err != nil {
		return fmt.Errorf("trade price %q: %w", t.Price, err)
	}
	qty, err := strconv.ParseFloat(t.Quantity, 64)
	if err != nil {
		return fmt.Errorf("trade quantity %q: %w", t.Quantity, err)
	}

	_, err = s.client.DB().ExecContext(ctx,
		`INSERT INTO trades (symbol, price, quantity, trade_id, trade_time, is_buyer_maker)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.Symbol, price, qty, t.TradeID,
		time.UnixMilli(t.TradeTime), boolToUint8(t.IsBuyerMaker),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *MarketStore) StoreCandle(ctx context.Context, c *models.Candle) error {
	open, err := strconv.ParseFloat(c.Open, 64)
	if err != nil {
		return fmt.Errorf("candle open %q: %w", c.Open, err)
	}
	high, _ := strconv.ParseFloat(c.High, 64)
	low, _ := strconv.ParseFloat(c.Low, 64)
	closePrice, err := strconv.ParseFloat(c.Close, 64)
	if err != nil {
		return fmt.Errorf("candle close %q: %w", c.Close, err)
	}
	volume, _ := strconv.ParseFloat(c.Volume, 64)

	_, err = s.client.DB().ExecContext(ctx,
		`INSERT INTO candles
		 (symbol, timeframe, open_time, open, high, low, close, volume, close_time, trades, is_closed)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Symbol, c.Timeframe, time.UnixMilli(c.OpenTime),
		open, high, low, closePrice, volume,
		time.UnixMilli(c.CloseTime), c.Trades, boolToUint8(c.IsClosed),
	)
	if err != nil {
		return fmt.Errorf("insert candle: %w", err)
	}
	return nil
}

func (s *MarketStore) QueryTrades(ctx context.Context, symbol string, from, to time.Time, limit int) ([]*models.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT symbol, price, quantity, trade_id, trade_time, is_buyer_maker
		 FROM trades
		 WHERE symbol = ? AND trade_time >= ? AND trade_time <= ?
		 ORDER BY trade_time DESC
		 LIMIT ?`,
		symbol, from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*models.Trade
	for rows.Next() {
		var (
			t          models.Trade
			price, qty float64
			tradeTime  time.Time
			buyerMaker uint8
		)
		if err := rows.Scan(&t.Symbol, &price, &qty, &t.TradeID, &tradeTime, &buyerMaker); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Price = formatFloat(price)
		t.Quantity = formatFloat(qty)
		t.TradeTime = tradeTime.UnixMilli()
		t.IsBuyerMaker = buyerMaker != 0
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *MarketStore) QueryCandles(ctx context.Context, symbol string, tf domrepo.Timeframe, from, to time.Time, limit int) ([]*models.Candle, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT symbol, timeframe, open_time, open, high, low, close, volume, close_time, trades, is_closed
		 FROM candles FINAL
		 WHERE symbol = ? AND timeframe = ? AND open_time >= ? AND open_time <= ?
		 ORDER BY open_time DESC
		 LIMIT ?`,
		symbol, string(tf), from, to, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []*models.Candle
	for rows.Next() {
		var (
			c                            models.Candle
			openTime, closeTime          time.Time
			open, high, low, closeP, vol float64
			isClosed                     uint8
		)
		if err := rows.Scan(&c.Symbol, &c.Timeframe, &openTime, &open, &high, &low, &closeP, &vol, &closeTime, &c.Trades, &isClosed); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.OpenTime = openTime.UnixMilli()
		c.CloseTime = closeTime.UnixMilli()
		c.Open = formatFloat(open)
		c.High = formatFloat(high)
		c.Low = formatFloat(low)
		c.Close = formatFloat(closeP)
		c.Volume = formatFloat(vol)
		c.IsClosed = isClosed != 0
		out = append(out, &c)
	}
	return out, rows.Err()
}

func (s *MarketStore) Health(ctx context.Context) error {
	return s.client.Health(ctx)
}

func (s *MarketStore) Close() error {
	return s.client.Close()
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
