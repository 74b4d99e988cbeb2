// README: Congestion model interface and sample types.
package congestion

import (
	"context"
	"time"
)

// Precision describes which data tier produced a sample. It is metadata
// for responses and never participates in window selection.
type Precision string

const (
	PrecisionHigh   Precision = "high"   // blended with a fresh live snapshot
	PrecisionMedium Precision = "medium" // blended with the monthly index
	PrecisionLow    Precision = "low"    // baseline profile only
)

// rank orders precisions from strongest (3) to weakest (1).
func (p Precision) rank() int {
	switch p {
	case PrecisionHigh:
		return 3
	case PrecisionMedium:
		return 2
	default:
		return 1
	}
}

// WeakerThan reports whether p is a weaker tier than other.
func (p Precision) WeakerThan(other Precision) bool {
	return p.rank() < other.rank()
}

// Sample is one congestion estimate for a region at an instant.
type Sample struct {
	Score     float64
	Level     Level
	Precision Precision
}

// Model estimates congestion for a region at a point in time. Scores are
// on the 1.0 (free-flowing) to 5.0 (gridlock) scale.
type Model interface {
	EstimateAt(ctx context.Context, region string, at time.Time) (Sample, error)
}
