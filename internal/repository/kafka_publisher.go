package repository

import (
	"context"
	"fmt"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/pkg/kafka"
)

// KafkaPublisher routes market events through Kafka topics; the store
// consumer on the other side writes them to ClickHouse. Keys are the
// symbol so a partition preserves per-symbol order.
type KafkaPublisher struct {
	producer     *kafka.Producer
	tradesTopic  string
	candlesTopic string
}

func NewKafkaPublisher(producer *kafka.Producer, tradesTopic, candlesTopic string) *KafkaPublisher {
	return &KafkaPublisher{
		producer:     producer,
		tradesTopic:  tradesTopic,
		candlesTopic: candlesTopic,
	}
}

var _ domrepo.Publisher = (*KafkaPublisher)(nil)

func (p *KafkaPublisher) PublishTrade(ctx context.Context, t *models.Trade) error {
	if err := p.producer.Publish(ctx, p.tradesTopic, []byte(t.Symbol), t); err != nil {
		return fmt.Errorf("publish trade: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) PublishCandle(ctx context.Context, c *models.Candle) error {
	if err := p.producer.Publish(ctx, p.candlesTopic, []byte(c.Symbol), c); err != nil {
		return fmt.Errorf("publish candle: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// StorePublisher writes market events straight to the market store,
// used when no broker sits between ingestion and storage.
type StorePublisher struct {
	store domrepo.MarketStore
}

func NewStorePublisher(store domrepo.MarketStore) *StorePublisher {
	return &StorePublisher{store: store}
}

var _ domrepo.Publisher = (*StorePublisher)(nil)

func (p *StorePublisher) PublishTrade(ctx context.Context, t *models.Trade) error {
	return p.store.StoreTrade(ctx, t)
}

func (p *StorePublisher) PublishCandle(ctx context.Context, c *models.Candle) error {
	return p.store.StoreCandle(ctx, c)
}

func (p *StorePublisher) Close() error { return nil }
