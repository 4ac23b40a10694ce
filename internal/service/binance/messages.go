package binance

import (
	"encoding/json"
	"fmt"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
)

type klinePayload struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Close     string `json:"c"`
	Volume    string `json:"v"`
	Trades    int64  `json:"n"`
	Closed    bool   `json:"x"`
}

type klineMessage struct {
	EventType string       `json:"e"`
	Symbol    string       `json:"s"`
	Kline     klinePayload `json:"k"`
}

type tradeMessage struct {
	EventType    string `json:"e"`
	Symbol       string `json:"s"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	TradeID      int64  `json:"t"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

// ParseCandle decodes a kline frame. Frames without the open, close or
// open time fields are rejected.
func ParseCandle(raw []byte, symbol string, tf domrepo.Timeframe) (models.Candle, error) {
	var msg klineMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.Candle{}, fmt.Errorf("decode kline: %w", err)
	}
	k := msg.Kline
	if k.OpenTime == 0 || k.Open == "" || k.Close == "" {
		return models.Candle{}, fmt.Errorf("kline %s %s: incomplete payload", symbol, tf)
	}
	return models.Candle{
		Symbol:    symbol,
		Timeframe: string(tf),
		OpenTime:  k.OpenTime,
		Open:      k.Open,
		High:      k.High,
		Low:       k.Low,
		Close:     k.Close,
		Volume:    k.Volume,
		CloseTime: k.CloseTime,
		Trades:    k.Trades,
		IsClosed:  k.Closed,
	}, nil
}

// ParseTrade decodes a trade frame. Frames without price, quantity or
// trade time are rejected.
func ParseTrade(raw []byte, symbol string) (models.Trade, error) {
	var msg tradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return models.Trade{}, fmt.Errorf("decode trade: %w", err)
	}
	if msg.Price == "" || msg.Quantity == "" || msg.TradeTime == 0 {
		return models.Trade{}, fmt.Errorf("trade %s: incomplete payload", symbol)
	}
	return models.Trade{
		Symbol:       symbol,
		Price:        msg.Price,
		Quantity:     msg.Quantity,
		TradeTime:    msg.TradeTime,
		TradeID:      msg.TradeID,
		IsBuyerMaker: msg.IsBuyerMaker,
	}, nil
}
