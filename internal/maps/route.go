// README: Driving route estimates via the Google Directions API.
package maps

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"googlemaps.github.io/maps"

	"offpeak/internal/types"
)

// RouteEstimate is the predicted drive between two points.
type RouteEstimate struct {
	DurationMin int
	DistanceKm  float64
	Summary     string
}

// EstimateRoute asks for a driving route departing at departAt and
// returns the traffic-aware duration when Google provides one.
func (c *Client) EstimateRoute(ctx context.Context, origin, dest types.Point, departAt time.Time) (*RouteEstimate, error) {
	ctx, span := tracer.Start(ctx, "maps.EstimateRoute")
	defer span.End()

	req := &maps.DirectionsRequest{
		Origin:        fmt.Sprintf("%f,%f", origin.Lat, origin.Lng),
		Destination:   fmt.Sprintf("%f,%f", dest.Lat, dest.Lng),
		Mode:          maps.TravelModeDriving,
		Language:      "ko",
		Region:        "KR",
		DepartureTime: strconv.FormatInt(departAt.Unix(), 10),
	}

	result, err := c.breaker.Execute(func() (any, error) {
		routes, _, err := c.gm.Directions(ctx, req)
		if err != nil {
			return nil, err
		}
		return routes, nil
	})
	if err != nil {
		return nil, fmt.Errorf("directions: %w", err)
	}

	routes := result.([]maps.Route)
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return nil, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	dur := leg.Duration
	if leg.DurationInTraffic > 0 {
		dur = leg.DurationInTraffic
	}
	minutes := int(math.Round(dur.Minutes()))
	if minutes < 1 {
		minutes = 1
	}

	return &RouteEstimate{
		DurationMin: minutes,
		DistanceKm:  float64(leg.Distance.Meters) / 1000.0,
		Summary:     routes[0].Summary,
	}, nil
}
