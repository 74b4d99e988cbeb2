// README: Composite congestion model layering live and indexed data over the baseline.
package congestion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"offpeak/internal/timebucket"
)

// Snapshot is one live congestion observation for a region, written to
// Redis by the external ingestion pipeline.
type Snapshot struct {
	Score      float64   `json:"score"`
	ObservedAt time.Time `json:"observed_at"`
}

// SnapshotSource reads the live snapshot for a region. A (nil, nil)
// return means no snapshot exists.
type SnapshotSource interface {
	LiveSnapshot(ctx context.Context, region string) (*Snapshot, error)
}

// IndexSource reads the monthly per-bucket congestion index for a
// region. A (nil, nil) return means no index data exists.
type IndexSource interface {
	MonthlyIndex(ctx context.Context, region string, month int) (map[string]float64, error)
}

// sourceMemoTTL bounds how long fetched source data is reused. A window
// search scores hundreds of slots for one region; without the memo each
// slot would hit Redis and Postgres again.
const sourceMemoTTL = 30 * time.Second

type regionData struct {
	fetchedAt time.Time
	snapshot  *Snapshot
	index     map[string]float64
}

// CompositeModel estimates congestion by blending the strongest
// available data tier with the baseline profile:
//
//  1. a fresh live snapshot (precision high),
//  2. the monthly index value for the slot's bucket (precision medium),
//  3. the baseline alone (precision low).
//
// Source errors degrade to the next tier and are never returned; a
// congestion estimate must not fail because Redis blinked.
type CompositeModel struct {
	profile    *Profile
	classifier *timebucket.Classifier
	snapshots  SnapshotSource
	indices    IndexSource

	snapshotTTL time.Duration
	now         func() time.Time
	log         *zap.Logger

	mu    sync.Mutex
	cache map[string]regionData
}

func NewCompositeModel(profile *Profile, classifier *timebucket.Classifier, snapshots SnapshotSource, indices IndexSource, snapshotTTL time.Duration, log *zap.Logger) *CompositeModel {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompositeModel{
		profile:     profile,
		classifier:  classifier,
		snapshots:   snapshots,
		indices:     indices,
		snapshotTTL: snapshotTTL,
		now:         time.Now,
		log:         log,
		cache:       make(map[string]regionData),
	}
}

func (m *CompositeModel) EstimateAt(ctx context.Context, region string, at time.Time) (Sample, error) {
	base := m.profile.ScoreAt(region, at)
	data := m.regionData(ctx, region)

	// A live snapshot only sharpens estimates near its observation time;
	// slots further out fall through to the monthly index.
	if snap := data.snapshot; snap != nil && absDuration(at.Sub(snap.ObservedAt)) <= m.snapshotTTL {
		score := clampScore((snap.Score + base) / 2)
		return Sample{Score: score, Level: LevelFor(score), Precision: PrecisionHigh}, nil
	}

	if data.index != nil {
		bucket := m.classifier.Classify(at)
		if idx, ok := data.index[bucket.Code]; ok {
			score := clampScore((idx + base) / 2)
			return Sample{Score: score, Level: LevelFor(score), Precision: PrecisionMedium}, nil
		}
	}

	return Sample{Score: base, Level: LevelFor(base), Precision: PrecisionLow}, nil
}

// regionData returns the memoized source data for a region, refreshing
// it when the memo has expired.
func (m *CompositeModel) regionData(ctx context.Context, region string) regionData {
	m.mu.Lock()
	if d, ok := m.cache[region]; ok && m.now().Sub(d.fetchedAt) <= sourceMemoTTL {
		m.mu.Unlock()
		return d
	}
	m.mu.Unlock()

	d := regionData{fetchedAt: m.now()}
	if m.snapshots != nil {
		snap, err := m.snapshots.LiveSnapshot(ctx, region)
		if err != nil {
			m.log.Debug("live snapshot read failed", zap.String("region", region), zap.Error(err))
		} else {
			d.snapshot = snap
		}
	}
	if m.indices != nil {
		month := monthKey(m.now().In(m.profile.loc))
		index, err := m.indices.MonthlyIndex(ctx, region, month)
		if err != nil {
			m.log.Debug("monthly index read failed", zap.String("region", region), zap.Error(err))
		} else {
			d.index = index
		}
	}

	m.mu.Lock()
	m.cache[region] = d
	m.mu.Unlock()
	return d
}

// monthKey formats a time as the YYYYMM integer used by the index table.
func monthKey(t time.Time) int {
	return t.Year()*100 + int(t.Month())
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
