// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"offpeak/internal/http/handlers"
	"offpeak/internal/http/middleware"
	"offpeak/internal/infra"
	"offpeak/internal/modules/recommend"
	"offpeak/internal/modules/trip"
	"offpeak/internal/modules/wallet"
	"offpeak/internal/observability"
)

type RouterDeps struct {
	Recommend *recommend.Service
	Trip      *trip.Service
	Wallet    *wallet.Service
	Verifier  infra.TokenVerifier
	Metrics   *observability.Metrics
	Log       *zap.Logger
}

// NewRouter wires middleware and routes. Health and metrics stay outside
// the authenticated group; everything under /api requires a bearer token.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.Recovery(deps.Log),
		middleware.RequestID(),
		middleware.Logging(deps.Log),
		middleware.HTTPMetrics(deps.Metrics),
	)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	recommendHandler := handlers.NewRecommendHandler(deps.Recommend)
	api.POST("/trips/recommend", recommendHandler.Create)
	api.GET("/trips/optimal-time", recommendHandler.OptimalTime)
	api.GET("/recommendations", recommendHandler.List)
	api.GET("/recommendations/:id", recommendHandler.Get)

	tripHandler := handlers.NewTripHandler(deps.Trip)
	api.POST("/trips/start/:recommendation_id", tripHandler.Start)
	api.POST("/trips/arrive/:trip_id", tripHandler.Arrive)
	api.GET("/trips", tripHandler.History)

	walletHandler := handlers.NewWalletHandler(deps.Wallet)
	api.GET("/rewards/wallet", walletHandler.Wallet)
	api.GET("/rewards/transactions", walletHandler.Transactions)
	api.GET("/rewards/summary", walletHandler.Summary)

	return r
}
