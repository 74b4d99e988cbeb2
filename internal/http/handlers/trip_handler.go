// README: Trip handlers: start, arrive, history.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"offpeak/internal/http/middleware"
	"offpeak/internal/modules/trip"
	"offpeak/internal/types"
)

type TripHandler struct {
	trips *trip.Service
}

func NewTripHandler(svc *trip.Service) *TripHandler {
	return &TripHandler{trips: svc}
}

type tripJSON struct {
	ID                   types.ID    `json:"id"`
	RecommendationID     types.ID    `json:"recommendation_id"`
	Status               trip.Status `json:"status"`
	OriginName           string      `json:"origin_name"`
	OriginRegion         string      `json:"origin_region"`
	DestinationName      string      `json:"destination_name"`
	DestinationRegion    string      `json:"destination_region"`
	WindowStart          time.Time   `json:"window_start"`
	WindowEnd            time.Time   `json:"window_end"`
	PredictedDurationMin int         `json:"predicted_duration_min"`
	StartedAt            *time.Time  `json:"started_at,omitempty"`
	ArrivedAt            *time.Time  `json:"arrived_at,omitempty"`
	ActualDurationMin    *int        `json:"actual_duration_min,omitempty"`
	DepartureBucket      *string     `json:"departure_bucket,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

func toTripJSON(t *trip.Trip) tripJSON {
	return tripJSON{
		ID:                   t.ID,
		RecommendationID:     t.RecommendationID,
		Status:               t.Status,
		OriginName:           t.OriginName,
		OriginRegion:         t.OriginRegion,
		DestinationName:      t.DestName,
		DestinationRegion:    t.DestRegion,
		WindowStart:          t.WindowStart,
		WindowEnd:            t.WindowEnd,
		PredictedDurationMin: t.PredictedDurationMin,
		StartedAt:            t.StartedAt,
		ArrivedAt:            t.ArrivedAt,
		ActualDurationMin:    t.ActualDurationMin,
		DepartureBucket:      t.DepartureBucket,
		CreatedAt:            t.CreatedAt,
	}
}

type departureRewardJSON struct {
	Success       bool     `json:"success"`
	TransactionID types.ID `json:"transaction_id"`
	Amount        int64    `json:"amount"`
	Base          int64    `json:"base"`
	Multiplier    float64  `json:"multiplier"`
	BonusTypes    []string `json:"bonus_types"`
	Replayed      bool     `json:"replayed"`
	Message       string   `json:"message"`
}

type completionRewardJSON struct {
	Success       bool     `json:"success"`
	TransactionID types.ID `json:"transaction_id"`
	Amount        int64    `json:"amount"`
	Base          int64    `json:"base"`
	AccuracyBonus int64    `json:"accuracy_bonus"`
	DeltaMin      int      `json:"delta_min"`
	Replayed      bool     `json:"replayed"`
	Message       string   `json:"message"`
}

// Start handles POST /api/trips/start/:recommendation_id. The response
// carries both the new trip and its departure reward.
func (h *TripHandler) Start(c *gin.Context) {
	id := c.Param("recommendation_id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid recommendation id")
		return
	}

	res, err := h.trips.Start(c.Request.Context(), trip.StartCommand{
		UserID:           middleware.CallerUID(c),
		RecommendationID: types.ID(id),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	bonuses := res.Reward.Bonuses
	if bonuses == nil {
		bonuses = []string{}
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"trip": toTripJSON(&res.Trip),
		"departure_reward": departureRewardJSON{
			Success:       true,
			TransactionID: res.Transaction.ID,
			Amount:        res.Transaction.Amount,
			Base:          res.Reward.Base,
			Multiplier:    res.Reward.Multiplier(),
			BonusTypes:    bonuses,
			Replayed:      res.Replayed,
			Message:       res.Transaction.Description,
		},
	})
}

// Arrive handles POST /api/trips/arrive/:trip_id.
func (h *TripHandler) Arrive(c *gin.Context) {
	id := c.Param("trip_id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid trip id")
		return
	}

	res, err := h.trips.Arrive(c.Request.Context(), trip.ArriveCommand{
		UserID: middleware.CallerUID(c),
		TripID: types.ID(id),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	writeJSON(c, http.StatusOK, gin.H{
		"trip": toTripJSON(&res.Trip),
		"completion_reward": completionRewardJSON{
			Success:       true,
			TransactionID: res.Transaction.ID,
			Amount:        res.Transaction.Amount,
			Base:          res.Reward.Base,
			AccuracyBonus: res.Reward.AccuracyBonus,
			DeltaMin:      res.Reward.DeltaMin,
			Replayed:      res.Replayed,
			Message:       res.Transaction.Description,
		},
	})
}

// History handles GET /api/trips.
func (h *TripHandler) History(c *gin.Context) {
	page := pageFromQuery(c)
	trips, err := h.trips.ListByUser(c.Request.Context(), middleware.CallerUID(c), page)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]tripJSON, 0, len(trips))
	for i := range trips {
		out = append(out, toTripJSON(&trips[i]))
	}
	writeJSON(c, http.StatusOK, gin.H{"trips": out, "page": page.Page})
}
