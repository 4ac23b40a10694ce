package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
)

// TradeStoreHandler drains the trades topic into the market store.
type TradeStoreHandler struct {
	topic string
	store domrepo.MarketStore
}

func NewTradeStoreHandler(topic string, store domrepo.MarketStore) *TradeStoreHandler {
	return &TradeStoreHandler{topic: topic, store: store}
}

func (h *TradeStoreHandler) Topic() string { return h.topic }

func (h *TradeStoreHandler) Handle(ctx context.Context, payload []byte) error {
	var t models.Trade
	if err := json.Unmarshal(payload, &t); err != nil {
		return fmt.Errorf("decode trade payload: %w", err)
	}
	return h.store.StoreTrade(ctx, &t)
}

// CandleStoreHandler drains the candles topic into the market store.
type CandleStoreHandler struct {
	topic string
	store domrepo.MarketStore
}

func NewCandleStoreHandler(topic string, store domrepo.MarketStore) *CandleStoreHandler {
	return &CandleStoreHandler{topic: topic, store: store}
}

func (h *CandleStoreHandler) Topic() string { return h.topic }

func (h *CandleStoreHandler) Handle(ctx context.Context, payload []byte) error {
	var c models.Candle
	if err := json.Unmarshal(payload, &c); err != nil {
		return fmt.Errorf("decode candle payload: %w", err)
	}
	return h.store.StoreCandle(ctx, &c)
}
