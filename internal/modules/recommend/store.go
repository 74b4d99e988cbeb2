// README: Recommendation store backed by PostgreSQL.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"offpeak/internal/congestion"
	"offpeak/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *Recommendation) error {
	alts, err := json.Marshal(r.Alternatives)
	if err != nil {
		return fmt.Errorf("marshal alternatives: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO recommendations (
			id, user_id,
			origin_input, origin_name, origin_lat, origin_lng, origin_region,
			dest_input, dest_name, dest_lat, dest_lng, dest_region,
			window_start, window_end, bucket_code, bucket_name,
			congestion_score, congestion_level, data_precision,
			predicted_duration_min, distance_km, rationale, alternatives,
			search_start, search_end, granularity_min, created_at
		) VALUES (
			$1, $2,
			$3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19,
			$20, $21, $22, $23,
			$24, $25, $26, $27
		)`,
		string(r.ID),
		string(r.UserID),
		r.Origin.Input, r.Origin.Name, r.Origin.Point.Lat, r.Origin.Point.Lng, r.Origin.Region,
		r.Destination.Input, r.Destination.Name, r.Destination.Point.Lat, r.Destination.Point.Lng, r.Destination.Region,
		r.WindowStart, r.WindowEnd, r.BucketCode, r.BucketName,
		r.Score, string(r.Level), string(r.Precision),
		r.PredictedDurationMin, r.DistanceKm, r.Rationale, alts,
		r.SearchStart, r.SearchEnd, r.GranularityMin, r.CreatedAt,
	)
	return err
}

const recommendationColumns = `
		id, user_id,
		origin_input, origin_name, origin_lat, origin_lng, origin_region,
		dest_input, dest_name, dest_lat, dest_lng, dest_region,
		window_start, window_end, bucket_code, bucket_name,
		congestion_score, congestion_level, data_precision,
		predicted_duration_min, distance_km, rationale, alternatives,
		search_start, search_end, granularity_min, created_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Recommendation, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+recommendationColumns+`
		FROM recommendations
		WHERE id = $1`, string(id),
	)
	return scanRecommendation(row)
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID, page types.PageParams) ([]Recommendation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+recommendationColumns+`
		FROM recommendations
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		string(userID), page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func scanRecommendation(row pgx.Row) (*Recommendation, error) {
	var r Recommendation
	var level, precision string
	var alts []byte

	err := row.Scan(
		&r.ID, &r.UserID,
		&r.Origin.Input, &r.Origin.Name, &r.Origin.Point.Lat, &r.Origin.Point.Lng, &r.Origin.Region,
		&r.Destination.Input, &r.Destination.Name, &r.Destination.Point.Lat, &r.Destination.Point.Lng, &r.Destination.Region,
		&r.WindowStart, &r.WindowEnd, &r.BucketCode, &r.BucketName,
		&r.Score, &level, &precision,
		&r.PredictedDurationMin, &r.DistanceKm, &r.Rationale, &alts,
		&r.SearchStart, &r.SearchEnd, &r.GranularityMin, &r.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.Level = congestion.Level(level)
	r.Precision = congestion.Precision(precision)
	if len(alts) > 0 {
		if err := json.Unmarshal(alts, &r.Alternatives); err != nil {
			return nil, fmt.Errorf("unmarshal alternatives: %w", err)
		}
	}
	return &r, nil
}
