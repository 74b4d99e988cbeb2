// README: Baseline congestion profile, a pure function of time and region.
package congestion

import (
	"context"
	"math"
	"strings"
	"time"

	"offpeak/internal/config"
)

// weekdayCurve and weekendCurve hold the expected congestion per hour of
// day before multipliers. Values follow the familiar commute shape:
// quiet nights, morning and evening peaks on weekdays, a flat midday
// bump on weekends.
var weekdayCurve = [24]float64{
	1.4, 1.2, 1.1, 1.0, 1.1, 1.4, // 00-05
	2.0, 2.9, 3.3, 3.0, 2.6, 2.5, // 06-11
	2.7, 2.6, 2.5, 2.6, 2.8, 3.2, // 12-17
	3.4, 3.0, 2.5, 2.2, 1.9, 1.6, // 18-23
}

var weekendCurve = [24]float64{
	1.5, 1.3, 1.1, 1.0, 1.0, 1.2,
	1.5, 1.8, 2.1, 2.4, 2.7, 2.9,
	3.0, 3.1, 3.1, 3.0, 2.9, 2.8,
	2.7, 2.5, 2.3, 2.1, 1.9, 1.7,
}

// defaultLocationFactors scales the profile per region. Unlisted regions
// use 1.0.
var defaultLocationFactors = map[string]float64{
	"default":      1.0,
	"gangnam":      1.2,
	"seocho":       1.15,
	"jongno":       1.1,
	"songpa":       1.1,
	"mapo":         1.05,
	"yeongdeungpo": 1.05,
}

// Profile scores congestion from the static curves alone. It is the
// lowest data tier of the composite model and also serves as the full
// model in tests via ProfileModel.
type Profile struct {
	hourly            map[time.Weekday][24]float64
	factors           map[string]float64
	weekendMultiplier float64
	rushMultiplier    float64
	loc               *time.Location
}

func NewProfile(cfg config.CongestionConfig, loc *time.Location) *Profile {
	if loc == nil {
		loc = time.UTC
	}
	hourly := make(map[time.Weekday][24]float64, 7)
	for d := time.Sunday; d <= time.Saturday; d++ {
		if d == time.Saturday || d == time.Sunday {
			hourly[d] = weekendCurve
		} else {
			hourly[d] = weekdayCurve
		}
	}
	return &Profile{
		hourly:            hourly,
		factors:           defaultLocationFactors,
		weekendMultiplier: cfg.WeekendMultiplier,
		rushMultiplier:    cfg.RushMultiplier,
		loc:               loc,
	}
}

// ScoreAt computes the baseline score for a region at an instant. The
// hour values are interpolated per minute, the next hour wrapping onto
// the same day's curve at 23:00. Weekends are damped, weekday rush
// hours (07-09, 17-19 inclusive) are amplified, then the region factor
// applies and the result clamps to [1.0, 5.0].
func (p *Profile) ScoreAt(region string, at time.Time) float64 {
	local := at.In(p.loc)
	hour := local.Hour()
	curve := p.hourly[local.Weekday()]

	cur := curve[hour]
	next := curve[(hour+1)%24]
	t := float64(local.Minute()) / 60.0
	score := (1-t)*cur + t*next

	weekend := local.Weekday() == time.Saturday || local.Weekday() == time.Sunday
	switch {
	case weekend:
		score *= p.weekendMultiplier
	case (hour >= 7 && hour <= 9) || (hour >= 17 && hour <= 19):
		score *= p.rushMultiplier
	}

	score *= p.factorFor(region)
	return clampScore(score)
}

func (p *Profile) factorFor(region string) float64 {
	if f, ok := p.factors[strings.ToLower(region)]; ok {
		return f
	}
	return 1.0
}

func clampScore(s float64) float64 {
	return math.Max(1.0, math.Min(5.0, s))
}

// ProfileModel adapts a Profile to the Model interface, always reporting
// low precision. Used standalone in tests and as the composite model's
// final tier.
type ProfileModel struct {
	Profile *Profile
}

func (m ProfileModel) EstimateAt(_ context.Context, region string, at time.Time) (Sample, error) {
	score := m.Profile.ScoreAt(region, at)
	return Sample{Score: score, Level: LevelFor(score), Precision: PrecisionLow}, nil
}
