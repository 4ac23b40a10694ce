package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"HelixPull/internal/domain/models"
	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/pkg/clickhouse"
)

var helixSchema = []string{
	`CREATE TABLE IF NOT EXISTS helix (
		timeframe               LowCardinality(String),
		base_delta              Float64,
		comparison_delta        Float64,
		helix_value             Float64,
		cumulative_helix_value  Float64,
		interpretation          LowCardinality(String),
		ts                      DateTime64(3),
		last_update             DateTime64(3)
	) ENGINE = MergeTree()
	ORDER BY (timeframe, ts)
	TTL toDateTime(ts) + INTERVAL 180 DAY`,
}

// HelixStore is the append-only helix history in ClickHouse. One table
// partitioned by ordering key rather than one table per timeframe; the
// (timeframe, ts) primary key gives the same locality.
type HelixStore struct {
	client *clickhouse.Client
}

func NewHelixStore(client *clickhouse.Client) *HelixStore {
	return &HelixStore{client: client}
}

var _ domrepo.HelixStore = (*HelixStore)(nil)

func (s *HelixStore) Init(ctx context.Context) error {
	return s.client.InitSchema(ctx, helixSchema)
}

func (s *HelixStore) Append(ctx context.Context, r *models.HelixRecord) error {
	_, err := s.client.DB().ExecContext(ctx,
		`INSERT INTO helix
		 (timeframe, base_delta, comparison_delta, helix_value, cumulative_helix_value, interpretation, ts, last_update)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.Timeframe, r.BaseDelta, r.ComparisonDelta, r.HelixValue,
		r.CumulativeValue, r.Interpretation, r.Time, r.LastUpdateTime,
	)
	if err != nil {
		return fmt.Errorf("insert helix: %w", err)
	}
	return nil
}

// Latest returns the newest record for tf, or nil when the series is
// empty.
func (s *HelixStore) Latest(ctx context.Context, tf domrepo.Timeframe) (*models.HelixRecord, error) {
	row := s.client.DB().QueryRowContext(ctx,
		`SELECT timeframe, base_delta, comparison_delta, helix_value, cumulative_helix_value, interpretation, ts, last_update
		 FROM helix
		 WHERE timeframe = ?
		 ORDER BY ts DESC
		 LIMIT 1`,
		string(tf),
	)
	var r models.HelixRecord
	err := row.Scan(&r.Timeframe, &r.BaseDelta, &r.ComparisonDelta, &r.HelixValue,
		&r.CumulativeValue, &r.Interpretation, &r.Time, &r.LastUpdateTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query latest helix: %w", err)
	}
	return &r, nil
}

func (s *HelixStore) History(ctx context.Context, tf domrepo.Timeframe, limit int) ([]*models.HelixRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT timeframe, base_delta, comparison_delta, helix_value, cumulative_helix_value, interpretation, ts, last_update
		 FROM helix
		 WHERE timeframe = ?
		 ORDER BY ts DESC
		 LIMIT ?`,
		string(tf), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query helix history: %w", err)
	}
	defer rows.Close()

	var out []*models.HelixRecord
	for rows.Next() {
		var r models.HelixRecord
		if err := rows.Scan(&r.Timeframe, &r.BaseDelta, &r.ComparisonDelta, &r.HelixValue,
			&r.CumulativeValue, &r.Interpretation, &r.Time, &r.LastUpdateTime); err != nil {
			return nil, fmt.Errorf("scan helix record: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}
