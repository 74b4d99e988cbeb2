// README: Wallet service tests (idempotent credits, spend guard, reads).
package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"offpeak/internal/config"
	"offpeak/internal/observability"
	"offpeak/internal/testutil"
	"offpeak/internal/types"
)

func setupWalletService(t *testing.T) (*Service, *pgxpool.Pool) {
	t.Helper()
	pool := testutil.NewPool(t)
	testutil.Truncate(t, pool, "wallet_transactions", "wallets", "trip_status_events", "trips", "recommendations")

	store := NewStore(pool)
	calc := NewCalculator(config.DefaultRewardConfig())
	svc := NewService(pool, store, calc, observability.NewMetrics(), zap.NewNop())
	return svc, pool
}

// seedTrip inserts the recommendation and trip rows a reward credit
// references. Wallet tests drive the ledger directly, so the rows carry
// minimal placeholder routing data.
func seedTrip(t *testing.T, pool *pgxpool.Pool, userID types.ID) types.ID {
	t.Helper()
	ctx := context.Background()
	recID := types.NewID()
	tripID := types.NewID()
	now := time.Now()

	_, err := pool.Exec(ctx, `
		INSERT INTO recommendations (
			id, user_id, origin_input, origin_name, origin_lat, origin_lng, origin_region,
			dest_input, dest_name, dest_lat, dest_lng, dest_region,
			window_start, window_end, bucket_code, bucket_name,
			congestion_score, congestion_level, data_precision,
			predicted_duration_min, rationale, search_start, search_end, granularity_min
		) VALUES (
			$1, $2, 'A', 'A', 37.49, 127.03, 'gangnam',
			'B', 'B', 37.57, 126.98, 'jongno',
			$3, $4, 'T6', '새벽 시간대',
			2.0, 'very_good', 'low',
			45, 'seeded', $3, $4, 10
		)`,
		string(recID), string(userID), now, now.Add(time.Hour),
	)
	if err != nil {
		t.Fatalf("seed recommendation: %v", err)
	}

	_, err = pool.Exec(ctx, `
		INSERT INTO trips (
			id, user_id, recommendation_id, status,
			origin_name, origin_region, dest_name, dest_region,
			window_start, window_end, predicted_duration_min, started_at
		) VALUES ($1, $2, $3, 'ongoing', 'A', 'gangnam', 'B', 'jongno', $4, $5, 45, $4)`,
		string(tripID), string(userID), string(recID), now, now.Add(time.Hour),
	)
	if err != nil {
		t.Fatalf("seed trip: %v", err)
	}
	return tripID
}

func TestCredit_ThenReplayReturnsExistingTransaction(t *testing.T) {
	svc, pool := setupWalletService(t)
	ctx := context.Background()
	userID := types.ID("u_replay")
	tripID := seedTrip(t, pool, userID)

	cmd := CreditCommand{
		UserID:      userID,
		TripID:      tripID,
		Kind:        RewardDeparture,
		Amount:      220,
		Description: "출발 리워드",
	}

	first, err := svc.Credit(ctx, cmd)
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if first.Replayed {
		t.Fatal("first credit reported replayed")
	}
	if first.Transaction.Amount != 220 || first.Transaction.BalanceAfter != 220 {
		t.Fatalf("first credit = amount %d balance %d, want 220/220",
			first.Transaction.Amount, first.Transaction.BalanceAfter)
	}

	second, err := svc.Credit(ctx, cmd)
	if err != nil {
		t.Fatalf("replay credit: %v", err)
	}
	if !second.Replayed {
		t.Fatal("replay not reported")
	}
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatalf("replay returned a different transaction: %s vs %s",
			second.Transaction.ID, first.Transaction.ID)
	}

	w, err := svc.store.GetWallet(ctx, userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 220 {
		t.Fatalf("balance after replay = %d, want 220", w.Balance)
	}
}

func TestCredit_DepartureAndCompletionAreSeparateKeys(t *testing.T) {
	svc, pool := setupWalletService(t)
	ctx := context.Background()
	userID := types.ID("u_two_kinds")
	tripID := seedTrip(t, pool, userID)

	if _, err := svc.Credit(ctx, CreditCommand{UserID: userID, TripID: tripID, Kind: RewardDeparture, Amount: 220}); err != nil {
		t.Fatalf("departure credit: %v", err)
	}
	res, err := svc.Credit(ctx, CreditCommand{UserID: userID, TripID: tripID, Kind: RewardCompletion, Amount: 80})
	if err != nil {
		t.Fatalf("completion credit: %v", err)
	}
	if res.Replayed {
		t.Fatal("completion credit must not collide with the departure key")
	}

	w, err := svc.store.GetWallet(ctx, userID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if w.Balance != 300 {
		t.Fatalf("balance = %d, want 300", w.Balance)
	}
	if err := svc.VerifyConsistency(ctx, userID); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestCredit_RejectsBadCommands(t *testing.T) {
	svc, _ := setupWalletService(t)
	ctx := context.Background()

	bad := []CreditCommand{
		{TripID: "t1", Kind: RewardDeparture, Amount: 100},
		{UserID: "u1", Kind: RewardDeparture, Amount: 100},
		{UserID: "u1", TripID: "t1", Kind: RewardKind("bogus"), Amount: 100},
		{UserID: "u1", TripID: "t1", Kind: RewardDeparture, Amount: 0},
		{UserID: "u1", TripID: "t1", Kind: RewardDeparture, Amount: -10},
	}
	for _, cmd := range bad {
		if _, err := svc.Credit(ctx, cmd); !errors.Is(err, ErrBadRequest) {
			t.Errorf("Credit(%+v) = %v, want ErrBadRequest", cmd, err)
		}
	}
}

func TestSpend_GuardsBalance(t *testing.T) {
	svc, pool := setupWalletService(t)
	ctx := context.Background()
	userID := types.ID("u_spend")
	tripID := seedTrip(t, pool, userID)

	if _, err := svc.Credit(ctx, CreditCommand{UserID: userID, TripID: tripID, Kind: RewardDeparture, Amount: 150}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	spent, err := svc.Spend(ctx, SpendCommand{UserID: userID, Amount: 100, Description: "쿠폰 구매"})
	if err != nil {
		t.Fatalf("spend: %v", err)
	}
	if spent.Direction != DirectionDebit || spent.BalanceAfter != 50 {
		t.Fatalf("spend tx = %s/%d, want debit with balance 50", spent.Direction, spent.BalanceAfter)
	}

	// The second spend would overdraw; it must leave no trace.
	if _, err := svc.Spend(ctx, SpendCommand{UserID: userID, Amount: 100}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("overdraw = %v, want ErrInsufficientBalance", err)
	}

	count, _, spentTotal, err := svc.store.Totals(ctx, userID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if count != 2 || spentTotal != 100 {
		t.Fatalf("ledger after refused spend = %d rows, %d spent; want 2 rows, 100 spent", count, spentTotal)
	}
	if err := svc.VerifyConsistency(ctx, userID); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

func TestSpend_NewUserHasNothingToSpend(t *testing.T) {
	svc, _ := setupWalletService(t)

	_, err := svc.Spend(context.Background(), SpendCommand{UserID: "u_fresh", Amount: 1})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("spend on fresh wallet = %v, want ErrInsufficientBalance", err)
	}
}

func TestOverview_CreatesWalletOnFirstTouch(t *testing.T) {
	svc, _ := setupWalletService(t)

	w, recent, err := svc.Overview(context.Background(), "u_first_touch")
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if w.Balance != 0 || w.CurrencyCode != types.CurrencyLCL {
		t.Fatalf("fresh wallet = %d %s, want 0 %s", w.Balance, w.CurrencyCode, types.CurrencyLCL)
	}
	if len(recent) != 0 {
		t.Fatalf("fresh wallet has %d transactions, want 0", len(recent))
	}
}

func TestTransactions_NewestFirst(t *testing.T) {
	svc, pool := setupWalletService(t)
	ctx := context.Background()
	userID := types.ID("u_order")

	amounts := []int64{110, 130, 220}
	for _, amount := range amounts {
		tripID := seedTrip(t, pool, userID)
		if _, err := svc.Credit(ctx, CreditCommand{UserID: userID, TripID: tripID, Kind: RewardDeparture, Amount: amount}); err != nil {
			t.Fatalf("credit %d: %v", amount, err)
		}
	}

	txs, err := svc.Transactions(ctx, userID, types.NewPageParams(1, 20))
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	for i, want := range []int64{220, 130, 110} {
		if txs[i].Amount != want {
			t.Errorf("txs[%d].Amount = %d, want %d (newest first)", i, txs[i].Amount, want)
		}
	}
	for i := 1; i < len(txs); i++ {
		if txs[i].CreatedAt.After(txs[i-1].CreatedAt) {
			t.Errorf("transactions out of order at %d", i)
		}
	}
}

func TestSummary_Aggregates(t *testing.T) {
	svc, pool := setupWalletService(t)
	ctx := context.Background()
	userID := types.ID("u_summary")

	tripA := seedTrip(t, pool, userID)
	tripB := seedTrip(t, pool, userID)
	if _, err := svc.Credit(ctx, CreditCommand{UserID: userID, TripID: tripA, Kind: RewardDeparture, Amount: 220}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := svc.Credit(ctx, CreditCommand{UserID: userID, TripID: tripB, Kind: RewardCompletion, Amount: 80}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := svc.Spend(ctx, SpendCommand{UserID: userID, Amount: 100}); err != nil {
		t.Fatalf("spend: %v", err)
	}

	sum, err := svc.Summary(ctx, userID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Balance != 200 || sum.TotalEarned != 300 || sum.TotalSpent != 100 || sum.TransactionCount != 3 {
		t.Fatalf("summary = balance %d earned %d spent %d count %d, want 200/300/100/3",
			sum.Balance, sum.TotalEarned, sum.TotalSpent, sum.TransactionCount)
	}
	if len(sum.Recent) != 3 {
		t.Fatalf("recent = %d, want 3", len(sum.Recent))
	}
}

func TestVerifyConsistency_DetectsDrift(t *testing.T) {
	svc, pool := setupWalletService(t)
	ctx := context.Background()
	userID := types.ID("u_drift")
	tripID := seedTrip(t, pool, userID)

	if _, err := svc.Credit(ctx, CreditCommand{UserID: userID, TripID: tripID, Kind: RewardDeparture, Amount: 100}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := svc.VerifyConsistency(ctx, userID); err != nil {
		t.Fatalf("consistency before drift: %v", err)
	}

	// Corrupt the balance behind the ledger's back.
	if _, err := pool.Exec(ctx, `UPDATE wallets SET balance = balance + 7 WHERE user_id = $1`, string(userID)); err != nil {
		t.Fatalf("corrupt balance: %v", err)
	}
	if err := svc.VerifyConsistency(ctx, userID); !errors.Is(err, ErrLedgerInconsistent) {
		t.Fatalf("consistency after drift = %v, want ErrLedgerInconsistent", err)
	}
}
