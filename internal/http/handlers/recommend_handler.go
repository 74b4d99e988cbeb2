// README: Recommendation handlers: create, read, optimal departure time.
package handlers

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"offpeak/internal/congestion"
	"offpeak/internal/http/middleware"
	"offpeak/internal/modules/recommend"
	"offpeak/internal/types"
	"offpeak/internal/window"
)

type RecommendHandler struct {
	recommend *recommend.Service
}

func NewRecommendHandler(svc *recommend.Service) *RecommendHandler {
	return &RecommendHandler{recommend: svc}
}

type createRecommendationReq struct {
	OriginAddress      string `json:"origin_address"`
	DestinationAddress string `json:"destination_address"`
	RegionCode         string `json:"region_code"`
	DepartAfter        string `json:"depart_after"` // RFC 3339; empty means now
	HorizonHours       int    `json:"horizon_hours"`
}

type placeJSON struct {
	Input  string  `json:"input"`
	Name   string  `json:"name"`
	Lat    float64 `json:"lat"`
	Lng    float64 `json:"lng"`
	Region string  `json:"region"`
}

type recommendationJSON struct {
	ID                   types.ID                `json:"id"`
	Origin               placeJSON               `json:"origin"`
	Destination          placeJSON               `json:"destination"`
	WindowStart          time.Time               `json:"window_start"`
	WindowEnd            time.Time               `json:"window_end"`
	BucketCode           string                  `json:"bucket_code"`
	BucketName           string                  `json:"bucket_name"`
	CongestionScore      float64                 `json:"congestion_score"`
	CongestionLevel      congestion.Level        `json:"congestion_level"`
	CongestionLevelName  string                  `json:"congestion_level_name"`
	Precision            congestion.Precision    `json:"precision"`
	PredictedDurationMin int                     `json:"predicted_duration_min"`
	DistanceKm           float64                 `json:"distance_km"`
	Rationale            string                  `json:"rationale"`
	Alternatives         []recommend.Alternative `json:"alternatives"`
	SearchStart          time.Time               `json:"search_start"`
	SearchEnd            time.Time               `json:"search_end"`
	GranularityMin       int                     `json:"granularity_min"`
	CreatedAt            time.Time               `json:"created_at"`
}

func toRecommendationJSON(r *recommend.Recommendation) recommendationJSON {
	return recommendationJSON{
		ID:                   r.ID,
		Origin:               toPlaceJSON(r.Origin),
		Destination:          toPlaceJSON(r.Destination),
		WindowStart:          r.WindowStart,
		WindowEnd:            r.WindowEnd,
		BucketCode:           r.BucketCode,
		BucketName:           r.BucketName,
		CongestionScore:      r.Score,
		CongestionLevel:      r.Level,
		CongestionLevelName:  r.Level.DisplayName(),
		Precision:            r.Precision,
		PredictedDurationMin: r.PredictedDurationMin,
		DistanceKm:           r.DistanceKm,
		Rationale:            r.Rationale,
		Alternatives:         r.Alternatives,
		SearchStart:          r.SearchStart,
		SearchEnd:            r.SearchEnd,
		GranularityMin:       r.GranularityMin,
		CreatedAt:            r.CreatedAt,
	}
}

func toPlaceJSON(p recommend.Place) placeJSON {
	return placeJSON{Input: p.Input, Name: p.Name, Lat: p.Point.Lat, Lng: p.Point.Lng, Region: p.Region}
}

// Create handles POST /api/trips/recommend.
func (h *RecommendHandler) Create(c *gin.Context) {
	var req createRecommendationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}

	var departAfter time.Time
	if req.DepartAfter != "" {
		t, err := time.Parse(time.RFC3339, req.DepartAfter)
		if err != nil {
			writeError(c, http.StatusBadRequest, "depart_after must be RFC 3339")
			return
		}
		departAfter = t
	}

	rec, err := h.recommend.Create(c.Request.Context(), recommend.CreateCommand{
		UserID:             middleware.CallerUID(c),
		OriginAddress:      req.OriginAddress,
		DestinationAddress: req.DestinationAddress,
		RegionCode:         req.RegionCode,
		DepartAfter:        departAfter,
		HorizonHours:       req.HorizonHours,
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toRecommendationJSON(rec))
}

// Get handles GET /api/recommendations/:id. Foreign recommendations
// read as missing so IDs cannot be probed.
func (h *RecommendHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid recommendation id")
		return
	}
	rec, err := h.recommend.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeDomainError(c, err)
		return
	}
	if rec.UserID != middleware.CallerUID(c) {
		writeError(c, http.StatusNotFound, recommend.ErrNotFound.Error())
		return
	}
	writeJSON(c, http.StatusOK, toRecommendationJSON(rec))
}

// List handles GET /api/recommendations.
func (h *RecommendHandler) List(c *gin.Context) {
	page := pageFromQuery(c)
	recs, err := h.recommend.ListByUser(c.Request.Context(), middleware.CallerUID(c), page)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	out := make([]recommendationJSON, 0, len(recs))
	for i := range recs {
		out = append(out, toRecommendationJSON(&recs[i]))
	}
	writeJSON(c, http.StatusOK, gin.H{"recommendations": out, "page": page.Page})
}

type slotJSON struct {
	WindowStart     time.Time        `json:"window_start"`
	WindowEnd       time.Time        `json:"window_end"`
	BucketCode      string           `json:"bucket_code"`
	BucketName      string           `json:"bucket_name"`
	CongestionScore float64          `json:"congestion_score"`
	CongestionLevel congestion.Level `json:"congestion_level"`
}

func toSlotJSON(s window.Slot) slotJSON {
	return slotJSON{
		WindowStart:     s.Start,
		WindowEnd:       s.End,
		BucketCode:      s.Bucket.Code,
		BucketName:      s.Bucket.Name,
		CongestionScore: math.Round(s.Score*100) / 100,
		CongestionLevel: s.Level,
	}
}

// OptimalTime handles GET /api/trips/optimal-time. It scans the coming
// hours minute by minute and reports the quietest departure instant.
func (h *RecommendHandler) OptimalTime(c *gin.Context) {
	windowHours := 0
	if raw := c.Query("window_hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "window_hours must be an integer")
			return
		}
		windowHours = n
	}

	res, err := h.recommend.OptimalTime(c.Request.Context(), recommend.OptimalTimeQuery{
		WindowHours: windowHours,
		CurrentTime: c.Query("current_time"),
		Location:    c.Query("location"),
	})
	if err != nil {
		writeDomainError(c, err)
		return
	}

	alts := make([]slotJSON, 0, len(res.Alternatives))
	for _, s := range res.Alternatives {
		alts = append(alts, toSlotJSON(s))
	}
	writeJSON(c, http.StatusOK, gin.H{
		"optimal_window": toSlotJSON(res.Best),
		"alternatives":   alts,
		"search_window": gin.H{
			"start": res.SearchStart,
			"end":   res.SearchEnd,
		},
		"all_minutes_analyzed": res.Analyzed,
		"precision":            res.Precision,
	})
}
