// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"offpeak/internal/modules/recommend"
	"offpeak/internal/modules/trip"
	"offpeak/internal/modules/wallet"
	"offpeak/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID ensures IDs are hex and 32 chars (matches current ID generator).
func isValidID(v string) bool {
	if len(v) != 32 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeDomainError maps module sentinel errors onto HTTP statuses.
// Unrecognized errors become opaque 500s so internals never leak.
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, recommend.ErrBadRequest),
		errors.Is(err, trip.ErrBadRequest),
		errors.Is(err, wallet.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, recommend.ErrAddressResolution):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, recommend.ErrNotFound),
		errors.Is(err, recommend.ErrNoFeasibleWindow),
		errors.Is(err, trip.ErrNotFound),
		errors.Is(err, trip.ErrRecommendationNotFound),
		errors.Is(err, wallet.ErrNotFound),
		errors.Is(err, wallet.ErrTransactionNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, trip.ErrNotOwner):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, trip.ErrAlreadyStarted),
		errors.Is(err, trip.ErrInvalidState),
		errors.Is(err, trip.ErrConflict),
		errors.Is(err, wallet.ErrInsufficientBalance):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, recommend.ErrRouteUnavailable):
		writeError(c, http.StatusBadGateway, err.Error())
	case errors.Is(err, recommend.ErrUnavailable):
		writeError(c, http.StatusServiceUnavailable, "temporarily unavailable")
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// pageFromQuery reads ?page= and ?page_size=, falling back to defaults
// on anything unparseable.
func pageFromQuery(c *gin.Context) types.PageParams {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("page_size"))
	return types.NewPageParams(page, size)
}
