package models

// Trade is a single trade tick as delivered by the upstream feed.
// Prices and quantities stay decimal-as-string end to end; parsing
// happens only where arithmetic is needed.
type Trade struct {
	Symbol       string `json:"symbol"`
	Price        string `json:"price"`
	Quantity     string `json:"quantity"`
	TradeTime    int64  `json:"trade_time"` // epoch ms
	TradeID      int64  `json:"trade_id"`
	IsBuyerMaker bool   `json:"is_buyer_maker"`
}

// Candle is one kline update for a (symbol, timeframe) subscription.
// The same candle arrives repeatedly while its period is open; IsClosed
// marks the final update for the period.
type Candle struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	OpenTime  int64  `json:"open_time"` // epoch ms
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	CloseTime int64  `json:"close_time"` // epoch ms
	Trades    int64  `json:"trades"`
	IsClosed  bool   `json:"is_closed"`
}

// OpenPrice is the cached period-open price for a (symbol, timeframe).
type OpenPrice struct {
	Open     string
	OpenTime int64
}
