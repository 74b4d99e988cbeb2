// README: Trip lifecycle service: atomic claim on start, rewarded arrival.
package trip

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"offpeak/internal/congestion"
	"offpeak/internal/modules/recommend"
	"offpeak/internal/modules/wallet"
	"offpeak/internal/observability"
	"offpeak/internal/timebucket"
	"offpeak/internal/types"
)

var tracer = otel.Tracer("offpeak/trip")

var (
	ErrNotFound               = errors.New("trip not found")
	ErrRecommendationNotFound = errors.New("recommendation not found")
	ErrNotOwner               = errors.New("not the owner")
	ErrAlreadyStarted         = errors.New("recommendation already has a trip")
	ErrInvalidState           = errors.New("invalid trip state")
	ErrConflict               = errors.New("trip state conflict")
	ErrBadRequest             = errors.New("bad request")
)

type RecommendationSource interface {
	Get(ctx context.Context, id types.ID) (*recommend.Recommendation, error)
}

// Ledger credits rewards inside the trip's own transaction, so a failed
// credit rolls the whole start or arrival back.
type Ledger interface {
	CreditInTx(ctx context.Context, tx pgx.Tx, cmd wallet.CreditCommand) (*wallet.CreditResult, error)
}

type Service struct {
	pool       *pgxpool.Pool
	store      *Store
	recs       RecommendationSource
	ledger     Ledger
	calc       *wallet.Calculator
	model      congestion.Model
	classifier *timebucket.Classifier
	metrics    *observability.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func NewService(pool *pgxpool.Pool, store *Store, recs RecommendationSource, ledger Ledger, calc *wallet.Calculator, model congestion.Model, classifier *timebucket.Classifier, metrics *observability.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		pool:       pool,
		store:      store,
		recs:       recs,
		ledger:     ledger,
		calc:       calc,
		model:      model,
		classifier: classifier,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

type StartCommand struct {
	UserID           types.ID
	RecommendationID types.ID
}

// StartResult carries the new trip and its departure credit. Transaction
// and Replayed come straight from the ledger.
type StartResult struct {
	Trip        *Trip
	Reward      wallet.DepartureReward
	Transaction wallet.Transaction
	Replayed    bool
}

type ArriveCommand struct {
	UserID types.ID
	TripID types.ID
}

type ArriveResult struct {
	Trip        *Trip
	Reward      wallet.CompletionReward
	Transaction wallet.Transaction
	Replayed    bool
}

// Start claims the recommendation and creates the trip in one atomic
// unit with its departure credit. The claim is the unique constraint on
// the recommendation id: of N concurrent starts exactly one insert
// commits, every other caller gets ErrAlreadyStarted and no credit.
func (s *Service) Start(ctx context.Context, cmd StartCommand) (*StartResult, error) {
	ctx, span := tracer.Start(ctx, "trip.Start")
	defer span.End()

	if cmd.UserID == "" || cmd.RecommendationID == "" {
		return nil, ErrBadRequest
	}

	rec, err := s.recs.Get(ctx, cmd.RecommendationID)
	if errors.Is(err, recommend.ErrNotFound) {
		return nil, ErrRecommendationNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.UserID != cmd.UserID {
		return nil, ErrNotOwner
	}

	now := s.now()
	bucket := s.classifier.Classify(now)
	sample, hasSample := s.departureSample(ctx, rec.Origin.Region, now)
	reward := s.calc.Departure(wallet.DepartureInput{
		DepartedAt:  now,
		WindowStart: rec.WindowStart,
		WindowEnd:   rec.WindowEnd,
		Bucket:      bucket,
		Level:       sample.Level,
		HasLevel:    hasSample,
	})

	t := &Trip{
		ID:                   types.NewID(),
		UserID:               cmd.UserID,
		RecommendationID:     rec.ID,
		Status:               StatusOngoing,
		StatusVersion:        1,
		OriginName:           rec.Origin.Name,
		OriginRegion:         rec.Origin.Region,
		DestName:             rec.Destination.Name,
		DestRegion:           rec.Destination.Region,
		WindowStart:          rec.WindowStart,
		WindowEnd:            rec.WindowEnd,
		PredictedDurationMin: rec.PredictedDurationMin,
		StartedAt:            &now,
		DepartureBucket:      &bucket.Code,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if hasSample {
		level := sample.Level
		score := sample.Score
		t.DepartureLevel = &level
		t.DepartureScore = &score
	}

	var credit *wallet.CreditResult
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		txStore := s.store.WithTx(tx)
		if err := txStore.Create(ctx, t); err != nil {
			return err
		}
		if err := txStore.AppendEvent(ctx, &StatusEvent{
			ID:         types.NewID(),
			TripID:     t.ID,
			FromStatus: StatusNone,
			ToStatus:   StatusOngoing,
			OccurredAt: now,
		}); err != nil {
			return err
		}
		c, err := s.ledger.CreditInTx(ctx, tx, wallet.CreditCommand{
			UserID:      cmd.UserID,
			TripID:      t.ID,
			Kind:        wallet.RewardDeparture,
			Amount:      reward.Amount,
			Description: reward.Description(t.OriginName, t.DestName),
		})
		if err != nil {
			return err
		}
		credit = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncrTripStarted()
	s.metrics.IncrRewardCredited(string(wallet.RewardDeparture), credit.Replayed)
	s.log.Info("trip started",
		zap.String("trip_id", string(t.ID)),
		zap.String("recommendation_id", string(rec.ID)),
		zap.String("bucket", bucket.Code),
		zap.Int64("reward", credit.Transaction.Amount))

	return &StartResult{
		Trip:        t,
		Reward:      reward,
		Transaction: credit.Transaction,
		Replayed:    credit.Replayed,
	}, nil
}

// Arrive finishes an ongoing trip: the optimistic status update, the
// status event, and the completion credit commit together or not at all.
func (s *Service) Arrive(ctx context.Context, cmd ArriveCommand) (*ArriveResult, error) {
	ctx, span := tracer.Start(ctx, "trip.Arrive")
	defer span.End()

	if cmd.UserID == "" || cmd.TripID == "" {
		return nil, ErrBadRequest
	}

	t, err := s.store.Get(ctx, cmd.TripID)
	if err != nil {
		return nil, err
	}
	if t.UserID != cmd.UserID {
		return nil, ErrNotOwner
	}
	if !CanTransition(t.Status, StatusArrived) || t.StartedAt == nil {
		return nil, ErrInvalidState
	}

	now := s.now()
	actual := int(math.Round(now.Sub(*t.StartedAt).Minutes()))
	if actual < 0 {
		actual = 0
	}
	reward := s.calc.Completion(t.PredictedDurationMin, actual)

	var credit *wallet.CreditResult
	err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		txStore := s.store.WithTx(tx)
		ok, err := txStore.UpdateStatus(ctx, t.ID, t.Status, StatusArrived, t.StatusVersion, &now, &actual, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict
		}
		if err := txStore.AppendEvent(ctx, &StatusEvent{
			ID:         types.NewID(),
			TripID:     t.ID,
			FromStatus: t.Status,
			ToStatus:   StatusArrived,
			OccurredAt: now,
		}); err != nil {
			return err
		}
		c, err := s.ledger.CreditInTx(ctx, tx, wallet.CreditCommand{
			UserID:      cmd.UserID,
			TripID:      t.ID,
			Kind:        wallet.RewardCompletion,
			Amount:      reward.Amount,
			Description: reward.Description(t.OriginName, t.DestName),
		})
		if err != nil {
			return err
		}
		credit = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	t.Status = StatusArrived
	t.StatusVersion++
	t.ArrivedAt = &now
	t.ActualDurationMin = &actual
	t.UpdatedAt = now

	s.metrics.IncrTripArrived()
	s.metrics.IncrRewardCredited(string(wallet.RewardCompletion), credit.Replayed)
	s.log.Info("trip arrived",
		zap.String("trip_id", string(t.ID)),
		zap.Int("actual_min", actual),
		zap.Int("predicted_min", t.PredictedDurationMin),
		zap.Int64("reward", credit.Transaction.Amount))

	return &ArriveResult{
		Trip:        t,
		Reward:      reward,
		Transaction: credit.Transaction,
		Replayed:    credit.Replayed,
	}, nil
}

// Get returns the trip if it belongs to the caller.
func (s *Service) Get(ctx context.Context, userID, tripID types.ID) (*Trip, error) {
	t, err := s.store.Get(ctx, tripID)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, ErrNotOwner
	}
	return t, nil
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID, page types.PageParams) ([]Trip, error) {
	return s.store.ListByUser(ctx, userID, page)
}

// departureSample reads live congestion at departure. A failed read only
// forfeits the low-congestion bonus, never the start itself.
func (s *Service) departureSample(ctx context.Context, region string, at time.Time) (congestion.Sample, bool) {
	if s.model == nil {
		return congestion.Sample{}, false
	}
	sample, err := s.model.EstimateAt(ctx, region, at)
	if err != nil {
		s.log.Debug("departure congestion read failed", zap.String("region", region), zap.Error(err))
		return congestion.Sample{}, false
	}
	return sample, true
}
