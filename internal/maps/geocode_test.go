package maps

import (
	"testing"

	"googlemaps.github.io/maps"
)

func TestNormalizeRegion(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"강남구", "gangnam"},
		{"서초구", "seocho"},
		{"영등포구", "yeongdeungpo"},
		{"Gangnam-gu", "gangnam"},
		{"Jongno-gu", "jongno"},
		{"Seoul", "seoul"},
		{" Mapo-gu ", "mapo"},
		{"", "default"},
		{"성동구", "성동구"},
	}

	for _, tt := range tests {
		if got := NormalizeRegion(tt.in); got != tt.want {
			t.Errorf("NormalizeRegion(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRegionOf_PrefersDistrictOverCity(t *testing.T) {
	result := maps.GeocodingResult{
		AddressComponents: []maps.AddressComponent{
			{LongName: "대한민국", Types: []string{"country", "political"}},
			{LongName: "서울특별시", Types: []string{"administrative_area_level_1", "political"}},
			{LongName: "강남구", Types: []string{"sublocality_level_1", "sublocality", "political"}},
		},
	}
	if got := regionOf(result); got != "gangnam" {
		t.Errorf("regionOf() = %q, want gangnam", got)
	}
}

func TestRegionOf_FallsBackThroughComponentTypes(t *testing.T) {
	byLocality := maps.GeocodingResult{
		AddressComponents: []maps.AddressComponent{
			{LongName: "Busan", Types: []string{"locality", "political"}},
		},
	}
	if got := regionOf(byLocality); got != "busan" {
		t.Errorf("regionOf(locality only) = %q, want busan", got)
	}

	if got := regionOf(maps.GeocodingResult{}); got != "default" {
		t.Errorf("regionOf(no components) = %q, want default", got)
	}
}
