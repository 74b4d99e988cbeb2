// README: Congestion data sources backed by Redis (live) and PostgreSQL (monthly index).
package congestion

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const liveSnapshotKeyPrefix = "congestion:live:"

// RedisSnapshots reads live congestion snapshots written by the external
// ingestion pipeline. This process only ever reads the keys.
type RedisSnapshots struct {
	rdb *redis.Client
}

func NewRedisSnapshots(rdb *redis.Client) *RedisSnapshots {
	return &RedisSnapshots{rdb: rdb}
}

func (s *RedisSnapshots) LiveSnapshot(ctx context.Context, region string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, liveSnapshotKeyPrefix+region).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// defaultIndexScores are used when the index table has no data at all
// for a region.
var defaultIndexScores = map[string]float64{
	"T0": 1.0,
	"T1": 2.5,
	"T2": 3.0,
	"T3": 2.0,
	"T4": 2.5,
	"T5": 2.5,
	"T6": 2.5,
}

// IndexStore reads the monthly per-bucket congestion index from
// PostgreSQL. Rows are produced by an offline aggregation job; this
// process only reads them.
type IndexStore struct {
	db      *pgxpool.Pool
	version string
}

func NewIndexStore(db *pgxpool.Pool, version string) *IndexStore {
	return &IndexStore{db: db, version: version}
}

// MonthlyIndex returns the per-bucket scores for (region, month). A
// missing month falls back to the region's latest available month, and
// a region with no rows at all falls back to the default scores.
func (s *IndexStore) MonthlyIndex(ctx context.Context, region string, month int) (map[string]float64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT t0, t1, t2, t3, t4, t5, t6
		FROM congestion_indices
		WHERE month = $1 AND region_code = $2 AND version = $3`,
		month, region, s.version,
	)
	scores, err := scanIndexRow(row)
	if err == nil {
		return scores, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	row = s.db.QueryRow(ctx, `
		SELECT t0, t1, t2, t3, t4, t5, t6
		FROM congestion_indices
		WHERE region_code = $1 AND version = $2
		ORDER BY month DESC
		LIMIT 1`,
		region, s.version,
	)
	scores, err = scanIndexRow(row)
	if err == nil {
		return scores, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	fallback := make(map[string]float64, len(defaultIndexScores))
	for code, score := range defaultIndexScores {
		fallback[code] = score
	}
	return fallback, nil
}

func scanIndexRow(row pgx.Row) (map[string]float64, error) {
	var t0, t1, t2, t3, t4, t5, t6 float64
	if err := row.Scan(&t0, &t1, &t2, &t3, &t4, &t5, &t6); err != nil {
		return nil, err
	}
	return map[string]float64{
		"T0": t0, "T1": t1, "T2": t2, "T3": t3, "T4": t4, "T5": t5, "T6": t6,
	}, nil
}
