// README: Trip aggregate, status flow, and transition table.
package trip

import (
	"time"

	"offpeak/internal/congestion"
	"offpeak/internal/types"
)

type Status string

const (
	StatusNone      Status = ""
	StatusPlanned   Status = "planned"
	StatusOngoing   Status = "ongoing"
	StatusArrived   Status = "arrived"
	StatusCancelled Status = "cancelled"
)

type Trip struct {
	ID                   types.ID
	UserID               types.ID
	RecommendationID     types.ID
	Status               Status
	StatusVersion        int
	OriginName           string
	OriginRegion         string
	DestName             string
	DestRegion           string
	WindowStart          time.Time
	WindowEnd            time.Time
	PredictedDurationMin int
	StartedAt            *time.Time
	ArrivedAt            *time.Time
	ActualDurationMin    *int
	DepartureBucket      *string
	DepartureLevel       *congestion.Level
	DepartureScore       *float64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type StatusEvent struct {
	ID         types.ID
	TripID     types.ID
	FromStatus Status
	ToStatus   Status
	OccurredAt time.Time
}

// AllowedTransitions represents the trip state flow as code. Arrived is
// terminal; cancellation is reserved for explicit reversal flows.
var AllowedTransitions = map[Status][]Status{
	StatusPlanned: {StatusOngoing, StatusCancelled},
	StatusOngoing: {StatusArrived, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}
