// README: Wallet ledger store backed by PostgreSQL.
package wallet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"offpeak/internal/types"
)

// db is the minimal query interface satisfied by *pgxpool.Pool and
// pgx.Tx. Store methods run single statements; transaction boundaries
// belong to the service layer, which hands a tx-bound store to anything
// that must be atomic with it.
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

// WithTx returns a store that runs its statements on tx. The trip
// service uses this to make reward credits atomic with trip rows.
func (s *Store) WithTx(tx pgx.Tx) *Store {
	return &Store{db: tx}
}

// EnsureWallet creates the zero-balance wallet row on first touch.
func (s *Store) EnsureWallet(ctx context.Context, userID types.ID, currency string, now time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wallets (user_id, balance, currency_code, created_at, updated_at)
		VALUES ($1, 0, $2, $3, $3)
		ON CONFLICT (user_id) DO NOTHING`,
		string(userID), currency, now,
	)
	return err
}

func (s *Store) GetWallet(ctx context.Context, userID types.ID) (*Wallet, error) {
	row := s.db.QueryRow(ctx, `
		SELECT user_id, balance, currency_code, created_at, updated_at
		FROM wallets
		WHERE user_id = $1`, string(userID),
	)

	var w Wallet
	err := row.Scan(&w.UserID, &w.Balance, &w.CurrencyCode, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// creditBalance adds amount to the wallet and returns the new balance.
func (s *Store) creditBalance(ctx context.Context, userID types.ID, amount int64, now time.Time) (int64, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance + $1, updated_at = $2
		WHERE user_id = $3
		RETURNING balance`,
		amount, now, string(userID),
	)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return balance, nil
}

// debitBalance subtracts amount, guarded so the balance can never go
// negative. Zero rows updated means the funds were not there.
func (s *Store) debitBalance(ctx context.Context, userID types.ID, amount int64, now time.Time) (int64, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE wallets
		SET balance = balance - $1, updated_at = $2
		WHERE user_id = $3 AND balance >= $1
		RETURNING balance`,
		amount, now, string(userID),
	)
	var balance int64
	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInsufficientBalance
		}
		return 0, err
	}
	return balance, nil
}

// InsertTransaction appends one ledger row. A duplicate (trip, reward
// kind) pair violates the partial unique index and surfaces as a raw
// unique-violation error; callers decide whether that means replay.
func (s *Store) InsertTransaction(ctx context.Context, t *Transaction) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO wallet_transactions (
			id, user_id, direction, reward_kind, trip_id,
			amount, balance_after, description, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		string(t.ID),
		string(t.UserID),
		string(t.Direction),
		rewardKindPtr(t.RewardKind),
		idPtr(t.TripID),
		t.Amount,
		t.BalanceAfter,
		t.Description,
		t.CreatedAt,
	)
	return err
}

// FindRewardTx returns the reward transaction for (tripID, kind), or
// ErrTransactionNotFound when the reward has not been credited yet.
func (s *Store) FindRewardTx(ctx context.Context, tripID types.ID, kind RewardKind) (*Transaction, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, user_id, direction, reward_kind, trip_id,
		       amount, balance_after, description, created_at
		FROM wallet_transactions
		WHERE trip_id = $1 AND reward_kind = $2`,
		string(tripID), string(kind),
	)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID types.ID, page types.PageParams) ([]Transaction, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, direction, reward_kind, trip_id,
		       amount, balance_after, description, created_at
		FROM wallet_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		string(userID), page.Limit(), page.Offset(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Totals aggregates the ledger for the summary endpoint.
func (s *Store) Totals(ctx context.Context, userID types.ID) (count int, earned, spent int64, err error) {
	row := s.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(amount) FILTER (WHERE direction = 'credit'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE direction = 'debit'), 0)
		FROM wallet_transactions
		WHERE user_id = $1`, string(userID),
	)
	err = row.Scan(&count, &earned, &spent)
	return count, earned, spent, err
}

// SumSigned folds the ledger into the balance it implies.
func (s *Store) SumSigned(ctx context.Context, userID types.ID) (int64, error) {
	row := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN direction = 'credit' THEN amount ELSE -amount END), 0)
		FROM wallet_transactions
		WHERE user_id = $1`, string(userID),
	)
	var sum int64
	err := row.Scan(&sum)
	return sum, err
}

// RecentlyActiveUserIDs lists users with ledger activity since the
// cutoff, for the background consistency sweep.
func (s *Store) RecentlyActiveUserIDs(ctx context.Context, since time.Time, limit int) ([]types.ID, error) {
	rows, err := s.db.Query(ctx, `
		SELECT DISTINCT user_id
		FROM wallet_transactions
		WHERE created_at >= $1
		LIMIT $2`, since, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.ID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, types.ID(id))
	}
	return out, rows.Err()
}

func scanTransaction(row pgx.Row) (*Transaction, error) {
	var t Transaction
	var rewardKind, tripID sql.NullString

	err := row.Scan(
		&t.ID, &t.UserID, &t.Direction, &rewardKind, &tripID,
		&t.Amount, &t.BalanceAfter, &t.Description, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if rewardKind.Valid {
		k := RewardKind(rewardKind.String)
		t.RewardKind = &k
	}
	if tripID.Valid {
		id := types.ID(tripID.String)
		t.TripID = &id
	}
	return &t, nil
}

func rewardKindPtr(k *RewardKind) *string {
	if k == nil {
		return nil
	}
	s := string(*k)
	return &s
}

func idPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	s := string(*id)
	return &s
}

// rewardKeyViolation reports whether err is a duplicate insert on the
// (trip_id, reward_kind) unique index, meaning a lost idempotency race.
func rewardKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == "wallet_transactions_trip_reward_key"
}
