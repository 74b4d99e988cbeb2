// README: Trip store backed by PostgreSQL with an optimistic status guard.
package trip

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"offpeak/internal/congestion"
	"offpeak/internal/types"
)

// db is the minimal query interface satisfied by *pgxpool.Pool and
// pgx.Tx; trip starts and arrivals run their statements on the service's
// transaction so the reward credit commits with them.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db db
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{db: pool}
}

func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// Create inserts the trip row. The unique constraint on
// recommendation_id is the claim: when two starts race, the second
// insert fails and surfaces ErrAlreadyStarted.
func (s *Store) Create(ctx context.Context, t *Trip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trips (
			id, user_id, recommendation_id, status, status_version,
			origin_name, origin_region, dest_name, dest_region,
			window_start, window_end, predicted_duration_min,
			started_at, departure_bucket, departure_level, departure_score,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12,
			$13, $14, $15, $16,
			$17, $18
		)`,
		string(t.ID),
		string(t.UserID),
		string(t.RecommendationID),
		string(t.Status),
		t.StatusVersion,
		t.OriginName, t.OriginRegion, t.DestName, t.DestRegion,
		t.WindowStart, t.WindowEnd, t.PredictedDurationMin,
		t.StartedAt, t.DepartureBucket, levelPtr(t.DepartureLevel), t.DepartureScore,
		t.CreatedAt, t.UpdatedAt,
	)
	if claimViolation(err) {
		return ErrAlreadyStarted
	}
	return err
}

const tripColumns = `
		id, user_id, recommendation_id, status, status_version,
		origin_name, origin_region, dest_name, dest_region,
		window_start, window_end, predicted_duration_min,
		started_at, arrived_at, actual_duration_min,
		departure_bucket, departure_level, departure_score,
		created_at, updated_at`

func (s *Store) Get(ctx context.Context, id types.ID) (*Trip, error) {
	row := s.db.QueryRow(ctx, `
		SELECT`+tripColumns+`
		FROM trips
		WHERE id = $1`, string(id),
	)
	return scanTrip(row)
}

// UpdateStatus transitions the trip, guarded by the status and version
// the caller read. Zero rows means another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, arrivedAt *time.Time, actualDurationMin *int, now time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE trips
		SET status = $1,
		    status_version = status_version + 1,
		    arrived_at = COALESCE($2, arrived_at),
		    actual_duration_min = COALESCE($3, actual_duration_min),
		    updated_at = $4
		WHERE id = $5 AND status = $6 AND status_version = $7`,
		string(to),
		arrivedAt,
		actualDurationMin,
		now,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *StatusEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO trip_status_events (id, trip_id, from_status, to_status, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(e.ID),
		string(e.TripID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.OccurredAt,
	)
	return err
}

func (s *Store) EventsByTrip(ctx context.Context, tripID types.ID) ([]StatusEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, from_status, to_status, occurred_at
		FROM trip_status_events
		WHERE trip_id = $1
		ORDER BY occurred_at, id`, string(tripID),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusEvent
	for rows.Next() {
		var e StatusEvent
		if err := rows.Scan(&e.ID, &e.TripID, &e.FromStatus, &e.ToStatus, &e.OccurredAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ListByUser(ctx context.Context, userID types.ID, page types.PageParams) ([]Trip, error) {
	rows, err := s.db.Query(ctx, `
		SELECT`+tripColumns+`
		FROM trips
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		string(userID), page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Trip
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTrip(row pgx.Row) (*Trip, error) {
	var t Trip
	var startedAt, arrivedAt sql.NullTime
	var actualMin sql.NullInt32
	var depBucket, depLevel sql.NullString
	var depScore sql.NullFloat64

	err := row.Scan(
		&t.ID, &t.UserID, &t.RecommendationID, &t.Status, &t.StatusVersion,
		&t.OriginName, &t.OriginRegion, &t.DestName, &t.DestRegion,
		&t.WindowStart, &t.WindowEnd, &t.PredictedDurationMin,
		&startedAt, &arrivedAt, &actualMin,
		&depBucket, &depLevel, &depScore,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	t.StartedAt = toTimePtr(startedAt)
	t.ArrivedAt = toTimePtr(arrivedAt)
	if actualMin.Valid {
		v := int(actualMin.Int32)
		t.ActualDurationMin = &v
	}
	if depBucket.Valid {
		t.DepartureBucket = &depBucket.String
	}
	if depLevel.Valid {
		v := congestion.Level(depLevel.String)
		t.DepartureLevel = &v
	}
	if depScore.Valid {
		t.DepartureScore = &depScore.Float64
	}
	return &t, nil
}

func levelPtr(v *congestion.Level) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

// claimViolation reports a unique-constraint failure on the one-trip-
// per-recommendation index.
func claimViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "trips_recommendation_id_key"
}
