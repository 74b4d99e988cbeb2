// README: Concurrency tests for trip claims and arrivals (run with -race).
package trip

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"offpeak/internal/types"
)

// Eight clients race to start the same recommendation. The unique claim
// on recommendation_id must let exactly one through, and exactly one
// departure credit may land.
func TestConcurrentStartsClaimExactlyOnce(t *testing.T) {
	svc, walletSvc, pool := setupTripService(t, quietModel())
	svc.now = func() time.Time { return departAt }
	ctx := context.Background()
	userID := types.ID("u_race_start")
	recID := seedRecommendation(t, pool, userID, departAt.Add(-30*time.Minute), departAt.Add(30*time.Minute), 45)

	const workers = 8
	type outcome struct {
		res *StartResult
		err error
	}
	results := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Start(ctx, StartCommand{UserID: userID, RecommendationID: recID})
			results <- outcome{res: res, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var started, rejected int
	var winner *StartResult
	for out := range results {
		switch {
		case out.err == nil:
			started++
			winner = out.res
		case errors.Is(out.err, ErrAlreadyStarted):
			rejected++
		default:
			t.Errorf("unexpected error: %v", out.err)
		}
	}
	if started != 1 || rejected != workers-1 {
		t.Fatalf("started %d / rejected %d, want 1 / %d", started, rejected, workers-1)
	}

	var tripCount int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips WHERE recommendation_id = $1`, recID).Scan(&tripCount); err != nil {
		t.Fatalf("count trips: %v", err)
	}
	if tripCount != 1 {
		t.Errorf("trips = %d, want 1", tripCount)
	}

	sum, err := walletSvc.Summary(ctx, userID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TransactionCount != 1 || sum.Balance != winner.Transaction.Amount {
		t.Errorf("ledger = %d transactions / balance %d, want 1 / %d", sum.TransactionCount, sum.Balance, winner.Transaction.Amount)
	}
	if err := walletSvc.VerifyConsistency(ctx, userID); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}

// Concurrent arrivals on one ongoing trip: the optimistic status update
// picks a single winner and the completion reward is credited once.
func TestConcurrentArrivalsCompleteExactlyOnce(t *testing.T) {
	svc, walletSvc, pool := setupTripService(t, quietModel())
	svc.now = func() time.Time { return departAt }
	ctx := context.Background()
	userID := types.ID("u_race_arrive")
	recID := seedRecommendation(t, pool, userID, departAt.Add(-30*time.Minute), departAt.Add(30*time.Minute), 45)

	started, err := svc.Start(ctx, StartCommand{UserID: userID, RecommendationID: recID})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	svc.now = func() time.Time { return departAt.Add(40 * time.Minute) }

	const workers = 6
	errs := make(chan error, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Arrive(ctx, ArriveCommand{UserID: userID, TripID: started.Trip.ID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var arrived, lost int
	for err := range errs {
		switch {
		case err == nil:
			arrived++
		case errors.Is(err, ErrConflict), errors.Is(err, ErrInvalidState):
			lost++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if arrived != 1 || lost != workers-1 {
		t.Fatalf("arrived %d / lost %d, want 1 / %d", arrived, lost, workers-1)
	}

	final, err := svc.Get(ctx, userID, started.Trip.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if final.Status != StatusArrived || final.StatusVersion != 2 {
		t.Errorf("final = %s v%d, want arrived v2", final.Status, final.StatusVersion)
	}
	if final.ActualDurationMin == nil || *final.ActualDurationMin != 40 {
		t.Errorf("actual duration = %v, want 40", final.ActualDurationMin)
	}

	// Departure 220 plus completion 50+30 for a 5-minute delta.
	sum, err := walletSvc.Summary(ctx, userID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.TransactionCount != 2 || sum.Balance != 300 {
		t.Errorf("ledger = %d transactions / balance %d, want 2 / 300", sum.TransactionCount, sum.Balance)
	}
	if err := walletSvc.VerifyConsistency(ctx, userID); err != nil {
		t.Fatalf("consistency: %v", err)
	}
}
