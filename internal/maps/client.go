// README: Google Maps client shared by geocoding and route estimation.
package maps

import (
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"googlemaps.github.io/maps"
)

var tracer = otel.Tracer("offpeak/maps")

var (
	ErrNoMatch = errors.New("maps: no match for address")
	ErrNoRoute = errors.New("maps: no route found")
)

// Client wraps the Google Maps API behind a circuit breaker so a maps
// outage fails fast instead of stalling every recommendation request.
type Client struct {
	gm      *maps.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(apiKey string, log *zap.Logger) (*Client, error) {
	gm, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &Client{gm: gm, breaker: newBreaker("google-maps", log)}, nil
}

func newBreaker(name string, log *zap.Logger) *gobreaker.CircuitBreaker {
	if log == nil {
		log = zap.NewNop()
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}
