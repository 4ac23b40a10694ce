package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
)

const latestTTL = 24 * time.Hour

// LatestStore mirrors the newest value per key into Redis so dashboards
// and sibling services can read without touching the engine or
// ClickHouse. Stale keys age out on TTL.
type LatestStore struct {
	client *redis.Client
}

func NewLatestStore(client *redis.Client) *LatestStore {
	return &LatestStore{client: client}
}

var _ domrepo.LatestStore = (*LatestStore)(nil)

func priceKey(symbol string) string { return "latest:price:" + symbol }

func helixKey(tf domrepo.Timeframe) string { return "latest:helix:" + string(tf) }

func closeKey(symbol string, tf domrepo.Timeframe) string {
	return fmt.Sprintf("latest:close:%s:%s", symbol, tf)
}

func (s *LatestStore) SetLatestPrice(ctx context.Context, symbol, price string) error {
	if err := s.client.Set(ctx, priceKey(symbol), price, latestTTL).Err(); err != nil {
		return fmt.Errorf("set latest price: %w", err)
	}
	return nil
}

func (s *LatestStore) SetLatestHelix(ctx context.Context, r *models.HelixRecord) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal helix record: %w", err)
	}
	if err := s.client.Set(ctx, helixKey(domrepo.Timeframe(r.Timeframe)), b, latestTTL).Err(); err != nil {
		return fmt.Errorf("set latest helix: %w", err)
	}
	return nil
}

func (s *LatestStore) SetLatestClose(ctx context.Context, symbol string, tf domrepo.Timeframe, closePrice string, closeTime int64) error {
	payload, err := json.Marshal(map[string]interface{}{
		"close":     closePrice,
		"closeTime": closeTime,
	})
	if err != nil {
		return fmt.Errorf("marshal latest close: %w", err)
	}
	if err := s.client.Set(ctx, closeKey(symbol, tf), payload, latestTTL).Err(); err != nil {
		return fmt.Errorf("set latest close: %w", err)
	}
	return nil
}

// LatestPrice returns the mirrored price, or "" when absent.
func (s *LatestStore) LatestPrice(ctx context.Context, symbol string) (string, error) {
	v, err := s.client.Get(ctx, priceKey(symbol)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get latest price: %w", err)
	}
	return v, nil
}

// LatestHelix returns the mirrored record, or nil when absent.
func (s *LatestStore) LatestHelix(ctx context.Context, tf domrepo.Timeframe) (*models.HelixRecord, error) {
	b, err := s.client.Get(ctx, helixKey(tf)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest helix: %w", err)
	}
	var r models.HelixRecord
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, fmt.Errorf("decode latest helix: %w", err)
	}
	return &r, nil
}

func (s *LatestStore) Close() error {
	return s.client.Close()
}
