// README: Wallet service: idempotent reward credits, guarded spends, ledger reads.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"offpeak/internal/observability"
	"offpeak/internal/types"
)

var tracer = otel.Tracer("offpeak/wallet")

var (
	ErrNotFound            = errors.New("wallet not found")
	ErrTransactionNotFound = errors.New("wallet transaction not found")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLedgerInconsistent  = errors.New("wallet ledger inconsistent")
	ErrBadRequest          = errors.New("bad request")
)

const (
	consistencySweepInterval = 10 * time.Minute
	consistencySweepWindow   = 24 * time.Hour
	consistencySweepLimit    = 500

	recentOverviewCount = 10
	recentSummaryCount  = 5
)

type Service struct {
	pool    *pgxpool.Pool
	store   *Store
	calc    *Calculator
	metrics *observability.Metrics
	log     *zap.Logger
}

func NewService(pool *pgxpool.Pool, store *Store, calc *Calculator, metrics *observability.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{pool: pool, store: store, calc: calc, metrics: metrics, log: log}
}

// Calculator exposes the pure reward calculator for callers that need
// amounts before crediting (the trip service).
func (s *Service) Calculator() *Calculator {
	return s.calc
}

type CreditCommand struct {
	UserID      types.ID
	TripID      types.ID
	Kind        RewardKind
	Amount      int64
	Description string
}

type CreditResult struct {
	Transaction Transaction
	Replayed    bool
}

func (cmd CreditCommand) validate() error {
	if cmd.UserID == "" || cmd.TripID == "" {
		return ErrBadRequest
	}
	if cmd.Kind != RewardDeparture && cmd.Kind != RewardCompletion {
		return ErrBadRequest
	}
	if cmd.Amount <= 0 {
		return ErrBadRequest
	}
	return nil
}

// Credit applies a reward credit in its own transaction. Replays of the
// same (trip, kind) return the existing transaction unchanged, even when
// two credits race: the loser's transaction aborts on the reward key
// index and the existing row is returned instead.
func (s *Service) Credit(ctx context.Context, cmd CreditCommand) (*CreditResult, error) {
	ctx, span := tracer.Start(ctx, "wallet.Credit")
	defer span.End()

	if err := cmd.validate(); err != nil {
		return nil, err
	}

	var res *CreditResult
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		r, err := s.CreditInTx(ctx, tx, cmd)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if rewardKeyViolation(err) {
		existing, ferr := s.store.FindRewardTx(ctx, cmd.TripID, cmd.Kind)
		if ferr != nil {
			return nil, ferr
		}
		res = &CreditResult{Transaction: *existing, Replayed: true}
	} else if err != nil {
		return nil, err
	}

	s.metrics.IncrRewardCredited(string(cmd.Kind), res.Replayed)
	return res, nil
}

// CreditInTx applies the credit inside the caller's transaction, so trip
// starts and arrivals land the reward atomically with the status change.
// The caller owns commit, rollback, and metrics.
func (s *Service) CreditInTx(ctx context.Context, tx pgx.Tx, cmd CreditCommand) (*CreditResult, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	st := s.store.WithTx(tx)

	existing, err := st.FindRewardTx(ctx, cmd.TripID, cmd.Kind)
	if err == nil {
		s.log.Debug("reward credit replayed",
			zap.String("trip_id", string(cmd.TripID)),
			zap.String("kind", string(cmd.Kind)))
		return &CreditResult{Transaction: *existing, Replayed: true}, nil
	}
	if !errors.Is(err, ErrTransactionNotFound) {
		return nil, err
	}

	now := time.Now()
	if err := st.EnsureWallet(ctx, cmd.UserID, types.CurrencyLCL, now); err != nil {
		return nil, err
	}
	balance, err := st.creditBalance(ctx, cmd.UserID, cmd.Amount, now)
	if err != nil {
		return nil, err
	}

	kind := cmd.Kind
	tripID := cmd.TripID
	t := &Transaction{
		ID:           types.ID(uuid.NewString()),
		UserID:       cmd.UserID,
		Direction:    DirectionCredit,
		RewardKind:   &kind,
		TripID:       &tripID,
		Amount:       cmd.Amount,
		BalanceAfter: balance,
		Description:  cmd.Description,
		CreatedAt:    now,
	}
	if err := st.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return &CreditResult{Transaction: *t, Replayed: false}, nil
}

type SpendCommand struct {
	UserID      types.ID
	Amount      int64
	Description string
}

// Spend debits the wallet, refusing to let the balance go negative. No
// ledger row is written for a refused spend.
func (s *Service) Spend(ctx context.Context, cmd SpendCommand) (*Transaction, error) {
	ctx, span := tracer.Start(ctx, "wallet.Spend")
	defer span.End()

	if cmd.UserID == "" || cmd.Amount <= 0 {
		return nil, ErrBadRequest
	}

	var t *Transaction
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		st := s.store.WithTx(tx)
		now := time.Now()

		if err := st.EnsureWallet(ctx, cmd.UserID, types.CurrencyLCL, now); err != nil {
			return err
		}
		balance, err := st.debitBalance(ctx, cmd.UserID, cmd.Amount, now)
		if err != nil {
			return err
		}

		t = &Transaction{
			ID:           types.ID(uuid.NewString()),
			UserID:       cmd.UserID,
			Direction:    DirectionDebit,
			Amount:       cmd.Amount,
			BalanceAfter: balance,
			Description:  cmd.Description,
			CreatedAt:    now,
		}
		return st.InsertTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Overview returns the wallet (created on first touch) with its most
// recent transactions, for the wallet endpoint.
func (s *Service) Overview(ctx context.Context, userID types.ID) (*Wallet, []Transaction, error) {
	if userID == "" {
		return nil, nil, ErrBadRequest
	}
	if err := s.store.EnsureWallet(ctx, userID, types.CurrencyLCL, time.Now()); err != nil {
		return nil, nil, err
	}
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	recent, err := s.store.ListTransactions(ctx, userID, types.PageParams{Page: 1, PageSize: recentOverviewCount})
	if err != nil {
		return nil, nil, err
	}
	return w, recent, nil
}

func (s *Service) Transactions(ctx context.Context, userID types.ID, page types.PageParams) ([]Transaction, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	return s.store.ListTransactions(ctx, userID, page)
}

func (s *Service) Summary(ctx context.Context, userID types.ID) (*Summary, error) {
	if userID == "" {
		return nil, ErrBadRequest
	}
	if err := s.store.EnsureWallet(ctx, userID, types.CurrencyLCL, time.Now()); err != nil {
		return nil, err
	}
	w, err := s.store.GetWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	count, earned, spent, err := s.store.Totals(ctx, userID)
	if err != nil {
		return nil, err
	}
	recent, err := s.store.ListTransactions(ctx, userID, types.PageParams{Page: 1, PageSize: recentSummaryCount})
	if err != nil {
		return nil, err
	}
	return &Summary{
		Balance:          w.Balance,
		CurrencyCode:     w.CurrencyCode,
		TotalEarned:      earned,
		TotalSpent:       spent,
		TransactionCount: count,
		Recent:           recent,
	}, nil
}

// VerifyConsistency checks that the stored balance equals the signed sum
// of the ledger. A user with no wallet and no rows is consistent.
func (s *Service) VerifyConsistency(ctx context.Context, userID types.ID) error {
	var balance int64
	w, err := s.store.GetWallet(ctx, userID)
	switch {
	case err == nil:
		balance = w.Balance
	case errors.Is(err, ErrNotFound):
		balance = 0
	default:
		return err
	}

	sum, err := s.store.SumSigned(ctx, userID)
	if err != nil {
		return err
	}
	if balance != sum {
		return fmt.Errorf("%w: balance %d, ledger sum %d", ErrLedgerInconsistent, balance, sum)
	}
	return nil
}

// RunConsistencyMonitor periodically re-checks recently active wallets
// until ctx is cancelled. Violations are logged and counted, never
// repaired automatically.
func (s *Service) RunConsistencyMonitor(ctx context.Context) {
	ticker := time.NewTicker(consistencySweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepConsistency(ctx)
		}
	}
}

func (s *Service) sweepConsistency(ctx context.Context) {
	since := time.Now().Add(-consistencySweepWindow)
	ids, err := s.store.RecentlyActiveUserIDs(ctx, since, consistencySweepLimit)
	if err != nil {
		s.log.Warn("consistency sweep: list active wallets", zap.Error(err))
		return
	}

	for _, id := range ids {
		err := s.VerifyConsistency(ctx, id)
		switch {
		case err == nil:
		case errors.Is(err, ErrLedgerInconsistent):
			s.metrics.IncrLedgerViolation()
			s.log.Error("wallet ledger inconsistent", zap.String("user_id", string(id)), zap.Error(err))
		default:
			s.log.Warn("consistency check failed", zap.String("user_id", string(id)), zap.Error(err))
		}
	}
}
