// README: Address resolution via the Google Geocoding API.
package maps

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"googlemaps.github.io/maps"

	"offpeak/internal/types"
)

// ResolvedAddress is the outcome of geocoding one address string.
type ResolvedAddress struct {
	Input      string
	Normalized string
	Point      types.Point
	Region     string
}

// Resolve geocodes an address. An address Google cannot place at all
// returns ErrNoMatch; transport failures return the underlying error.
func (c *Client) Resolve(ctx context.Context, address string) (*ResolvedAddress, error) {
	ctx, span := tracer.Start(ctx, "maps.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("maps.address", address))

	result, err := c.breaker.Execute(func() (any, error) {
		return c.gm.Geocode(ctx, &maps.GeocodingRequest{
			Address:  address,
			Language: "ko",
			Region:   "KR",
		})
	})
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", address, err)
	}

	results := result.([]maps.GeocodingResult)
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNoMatch, address)
	}

	best := results[0]
	return &ResolvedAddress{
		Input:      address,
		Normalized: best.FormattedAddress,
		Point:      types.Point{Lat: best.Geometry.Location.Lat, Lng: best.Geometry.Location.Lng},
		Region:     regionOf(best),
	}, nil
}

// regionOf extracts a coarse region code from the address components,
// preferring the district over the city.
func regionOf(r maps.GeocodingResult) string {
	for _, want := range []string{"sublocality_level_1", "locality", "administrative_area_level_1"} {
		for _, comp := range r.AddressComponents {
			for _, t := range comp.Types {
				if t == want {
					return NormalizeRegion(comp.LongName)
				}
			}
		}
	}
	return "default"
}

// regionAliases maps Korean district names onto the short region codes
// used by the congestion location factors and the monthly index table.
var regionAliases = map[string]string{
	"강남구":  "gangnam",
	"서초구":  "seocho",
	"종로구":  "jongno",
	"송파구":  "songpa",
	"마포구":  "mapo",
	"영등포구": "yeongdeungpo",
}

// NormalizeRegion canonicalizes a district or city name into the region
// code keyed by the congestion data. Unknown names become a lowercased,
// space-free form of themselves; empty input becomes "default".
func NormalizeRegion(name string) string {
	s := strings.TrimSpace(name)
	if alias, ok := regionAliases[s]; ok {
		return alias
	}
	s = strings.ToLower(s)
	s = strings.TrimSuffix(s, "-gu")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return "default"
	}
	return s
}
