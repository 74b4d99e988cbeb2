// README: Recommendation aggregate: resolved places, winning window, alternatives.
package recommend

import (
	"time"

	"offpeak/internal/congestion"
	"offpeak/internal/types"
)

// Place is one end of the journey after address resolution.
type Place struct {
	Input  string
	Name   string
	Point  types.Point
	Region string
}

// Alternative is a runner-up departure window. Stored as JSONB on the
// recommendation row, so the fields carry tags.
type Alternative struct {
	WindowStart time.Time        `json:"window_start"`
	WindowEnd   time.Time        `json:"window_end"`
	BucketCode  string           `json:"bucket_code"`
	BucketName  string           `json:"bucket_name"`
	Score       float64          `json:"congestion_score"`
	Level       congestion.Level `json:"congestion_level"`
}

type Recommendation struct {
	ID                   types.ID
	UserID               types.ID
	Origin               Place
	Destination          Place
	WindowStart          time.Time
	WindowEnd            time.Time
	BucketCode           string
	BucketName           string
	Score                float64
	Level                congestion.Level
	Precision            congestion.Precision
	PredictedDurationMin int
	DistanceKm           float64
	Rationale            string
	Alternatives         []Alternative
	SearchStart          time.Time
	SearchEnd            time.Time
	GranularityMin       int
	CreatedAt            time.Time
}
