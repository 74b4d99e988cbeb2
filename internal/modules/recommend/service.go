// README: Recommendation engine: resolve, route, search, explain, persist.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"offpeak/internal/config"
	"offpeak/internal/congestion"
	"offpeak/internal/maps"
	"offpeak/internal/observability"
	"offpeak/internal/timebucket"
	"offpeak/internal/types"
	"offpeak/internal/window"
)

var tracer = otel.Tracer("offpeak/recommend")

var (
	ErrNotFound          = errors.New("recommendation not found")
	ErrBadRequest        = errors.New("bad request")
	ErrAddressResolution = errors.New("address resolution failed")
	ErrRouteUnavailable  = errors.New("route estimate unavailable")
	ErrNoFeasibleWindow  = errors.New("no feasible departure window")
	ErrUnavailable       = errors.New("recommendation unavailable")
)

const currentTimeLayout = "2006-01-02 15:04"

type AddressResolver interface {
	Resolve(ctx context.Context, address string) (*maps.ResolvedAddress, error)
}

type RouteEstimator interface {
	EstimateRoute(ctx context.Context, origin, dest types.Point, departAt time.Time) (*maps.RouteEstimate, error)
}

type Service struct {
	store      *Store
	resolver   AddressResolver
	routes     RouteEstimator
	model      congestion.Model
	classifier *timebucket.Classifier
	cache      *Cache
	cfg        config.SearchConfig
	metrics    *observability.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func NewService(store *Store, resolver AddressResolver, routes RouteEstimator, model congestion.Model, classifier *timebucket.Classifier, cache *Cache, cfg config.SearchConfig, metrics *observability.Metrics, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:      store,
		resolver:   resolver,
		routes:     routes,
		model:      model,
		classifier: classifier,
		cache:      cache,
		cfg:        cfg,
		metrics:    metrics,
		log:        log,
		now:        time.Now,
	}
}

type CreateCommand struct {
	UserID             types.ID
	OriginAddress      string
	DestinationAddress string
	RegionCode         string
	DepartAfter        time.Time
	HorizonHours       int
}

func (cmd CreateCommand) validate() error {
	if cmd.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrBadRequest)
	}
	if strings.TrimSpace(cmd.OriginAddress) == "" {
		return fmt.Errorf("%w: origin address is required", ErrBadRequest)
	}
	if strings.TrimSpace(cmd.DestinationAddress) == "" {
		return fmt.Errorf("%w: destination address is required", ErrBadRequest)
	}
	if cmd.HorizonHours < 0 {
		return fmt.Errorf("%w: horizon hours must not be negative", ErrBadRequest)
	}
	return nil
}

// Create resolves both addresses, estimates the route, searches the
// horizon for the least congested departure window, and persists the
// recommendation with its rationale and alternatives.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Recommendation, error) {
	ctx, span := tracer.Start(ctx, "recommend.Create")
	defer span.End()

	if err := cmd.validate(); err != nil {
		return nil, err
	}

	origin, err := s.resolver.Resolve(ctx, cmd.OriginAddress)
	if err != nil {
		s.log.Warn("origin address did not resolve", zap.String("address", cmd.OriginAddress), zap.Error(err))
		return nil, fmt.Errorf("%w: origin %q", ErrAddressResolution, cmd.OriginAddress)
	}
	dest, err := s.resolver.Resolve(ctx, cmd.DestinationAddress)
	if err != nil {
		s.log.Warn("destination address did not resolve", zap.String("address", cmd.DestinationAddress), zap.Error(err))
		return nil, fmt.Errorf("%w: destination %q", ErrAddressResolution, cmd.DestinationAddress)
	}

	departAfter := cmd.DepartAfter
	if departAfter.IsZero() {
		departAfter = s.now()
	}
	departAfter = departAfter.In(s.classifier.Location())

	route, err := s.routes.EstimateRoute(ctx, origin.Point, dest.Point, departAfter)
	if err != nil {
		s.log.Warn("route estimate failed",
			zap.String("origin", origin.Normalized),
			zap.String("destination", dest.Normalized),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s → %s", ErrRouteUnavailable, origin.Normalized, dest.Normalized)
	}

	// The caller's explicit region wins; otherwise congestion is scored
	// where the journey begins.
	region := origin.Region
	if cmd.RegionCode != "" {
		region = maps.NormalizeRegion(cmd.RegionCode)
	}

	horizonHours := cmd.HorizonHours
	if horizonHours == 0 {
		horizonHours = s.cfg.HorizonHours
	}

	res, err := window.Search(ctx, s.model, s.classifier, region, window.Params{
		Start:        departAfter,
		Horizon:      time.Duration(horizonHours) * time.Hour,
		Granularity:  time.Duration(s.cfg.GranularityMin) * time.Minute,
		Alternatives: s.cfg.AlternativeCount,
	})
	if errors.Is(err, window.ErrNoSlots) || errors.Is(err, window.ErrBadParams) {
		return nil, fmt.Errorf("%w: region %s", ErrNoFeasibleWindow, region)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	alts := make([]Alternative, 0, len(res.Alternatives))
	for _, slot := range res.Alternatives {
		alts = append(alts, Alternative{
			WindowStart: slot.Start,
			WindowEnd:   slot.End,
			BucketCode:  slot.Bucket.Code,
			BucketName:  slot.Bucket.Name,
			Score:       round2(slot.Score),
			Level:       slot.Level,
		})
	}

	rec := &Recommendation{
		ID:                   types.NewID(),
		UserID:               cmd.UserID,
		Origin:               Place{Input: cmd.OriginAddress, Name: origin.Normalized, Point: origin.Point, Region: origin.Region},
		Destination:          Place{Input: cmd.DestinationAddress, Name: dest.Normalized, Point: dest.Point, Region: dest.Region},
		WindowStart:          res.Best.Start,
		WindowEnd:            res.Best.End,
		BucketCode:           res.Best.Bucket.Code,
		BucketName:           res.Best.Bucket.Name,
		Score:                round2(res.Best.Score),
		Level:                res.Best.Level,
		Precision:            res.Precision,
		PredictedDurationMin: route.DurationMin,
		DistanceKm:           route.DistanceKm,
		Rationale:            Rationale(departAfter, res.Best.Start, res.Best.Bucket.Name, res.Best.Level),
		Alternatives:         alts,
		SearchStart:          res.SearchStart,
		SearchEnd:            res.SearchEnd,
		GranularityMin:       s.cfg.GranularityMin,
		CreatedAt:            s.now(),
	}
	if err := s.store.Create(ctx, rec); err != nil {
		s.log.Error("persist recommendation", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	s.metrics.IncrRecommendation()
	s.log.Info("recommendation created",
		zap.String("recommendation_id", string(rec.ID)),
		zap.String("region", region),
		zap.String("bucket", rec.BucketCode),
		zap.Float64("score", rec.Score),
		zap.String("precision", string(rec.Precision)))
	return rec, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Recommendation, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByUser(ctx context.Context, userID types.ID, page types.PageParams) ([]Recommendation, error) {
	return s.store.ListByUser(ctx, userID, page)
}

type OptimalTimeQuery struct {
	WindowHours int
	CurrentTime string // "2006-01-02 15:04" in the service timezone; empty means now
	Location    string
}

// OptimalTime scans the next WindowHours minute by minute and returns the
// least congested departure moment with alternatives. Nothing is
// persisted; hot lookups are served from the cache.
func (s *Service) OptimalTime(ctx context.Context, q OptimalTimeQuery) (*window.Result, error) {
	ctx, span := tracer.Start(ctx, "recommend.OptimalTime")
	defer span.End()

	if q.WindowHours < 0 {
		return nil, fmt.Errorf("%w: window hours must not be negative", ErrBadRequest)
	}
	windowHours := q.WindowHours
	if windowHours == 0 {
		windowHours = s.cfg.OptimalWindowHours
	}

	loc := s.classifier.Location()
	from := s.now().In(loc)
	if q.CurrentTime != "" {
		parsed, err := time.ParseInLocation(currentTimeLayout, q.CurrentTime, loc)
		if err != nil {
			return nil, fmt.Errorf("%w: current time must look like %s", ErrBadRequest, currentTimeLayout)
		}
		from = parsed
	}
	// Scan on whole minutes, starting no earlier than the reference time.
	if truncated := from.Truncate(time.Minute); truncated.Before(from) {
		from = truncated.Add(time.Minute)
	} else {
		from = truncated
	}

	region := maps.NormalizeRegion(q.Location)

	key := optimalKey(region, windowHours, from)
	if s.cache != nil {
		if cached, err := s.cache.GetOptimal(ctx, key); err != nil {
			s.log.Debug("optimal-time cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	res, err := window.Search(ctx, s.model, s.classifier, region, window.Params{
		Start:        from,
		Horizon:      time.Duration(windowHours) * time.Hour,
		Granularity:  time.Minute,
		Alternatives: s.cfg.AlternativeCount,
	})
	if errors.Is(err, window.ErrNoSlots) || errors.Is(err, window.ErrBadParams) {
		return nil, fmt.Errorf("%w: region %s", ErrNoFeasibleWindow, region)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.SetOptimal(ctx, key, res); err != nil {
			s.log.Debug("optimal-time cache write failed", zap.Error(err))
		}
	}
	return res, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
