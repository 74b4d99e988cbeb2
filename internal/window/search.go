// README: Departure window search over a congestion model.
package window

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"offpeak/internal/congestion"
	"offpeak/internal/timebucket"
)

var (
	ErrBadParams = errors.New("window: bad search params")
	ErrNoSlots   = errors.New("window: no candidate slots")
)

// Params controls one search. Slots are generated at Granularity steps
// from Start while the slot start stays strictly before Start+Horizon.
type Params struct {
	Start        time.Time
	Horizon      time.Duration
	Granularity  time.Duration
	Alternatives int
}

// Slot is one scored candidate departure window.
type Slot struct {
	Start     time.Time
	End       time.Time
	Bucket    timebucket.Bucket
	Score     float64
	Level     congestion.Level
	Precision congestion.Precision
}

// Result is the outcome of a search: the winning slot, the next-best
// alternatives in ascending (score, start) order, and the weakest
// precision seen across all samples. Precision is reporting metadata
// only; it never influences which slot wins.
type Result struct {
	Best         Slot
	Alternatives []Slot
	Analyzed     int
	Precision    congestion.Precision
	SearchStart  time.Time
	SearchEnd    time.Time
}

// Search scores every candidate slot and picks the minimum-score slot,
// ties going to the earliest start. A horizon shorter than the
// granularity still yields exactly one slot at Start.
func Search(ctx context.Context, model congestion.Model, classifier *timebucket.Classifier, region string, p Params) (*Result, error) {
	if p.Granularity <= 0 {
		return nil, fmt.Errorf("%w: granularity must be positive", ErrBadParams)
	}
	if p.Horizon <= 0 {
		return nil, fmt.Errorf("%w: horizon must be positive", ErrBadParams)
	}

	end := p.Start.Add(p.Horizon)
	slots := make([]Slot, 0, int(p.Horizon/p.Granularity)+1)
	worst := congestion.PrecisionHigh

	for start := p.Start; start.Before(end); start = start.Add(p.Granularity) {
		sample, err := model.EstimateAt(ctx, region, start)
		if err != nil {
			return nil, fmt.Errorf("score slot %s: %w", start.Format(time.RFC3339), err)
		}
		slots = append(slots, Slot{
			Start:     start,
			End:       start.Add(p.Granularity),
			Bucket:    classifier.Classify(start),
			Score:     sample.Score,
			Level:     sample.Level,
			Precision: sample.Precision,
		})
		if sample.Precision.WeakerThan(worst) {
			worst = sample.Precision
		}
	}
	if len(slots) == 0 {
		return nil, ErrNoSlots
	}

	// Slots are generated in ascending start order, so a stable sort on
	// score alone leaves equal-score slots earliest-first.
	ranked := make([]Slot, len(slots))
	copy(ranked, slots)
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score < ranked[j].Score })

	n := p.Alternatives
	if n < 0 {
		n = 0
	}
	if n > len(ranked)-1 {
		n = len(ranked) - 1
	}

	return &Result{
		Best:         ranked[0],
		Alternatives: ranked[1 : 1+n],
		Analyzed:     len(slots),
		Precision:    worst,
		SearchStart:  p.Start,
		SearchEnd:    end,
	}, nil
}
