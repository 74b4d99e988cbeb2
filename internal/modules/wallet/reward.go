// README: Reward calculator, pure integer arithmetic over percent points.
package wallet

import (
	"time"

	"offpeak/internal/config"
	"offpeak/internal/congestion"
	"offpeak/internal/timebucket"
)

// Bonus names reported in credit breakdowns and transaction descriptions.
const (
	BonusBucket        = "time_bucket"
	BonusFollow        = "followed_recommendation"
	BonusLowCongestion = "low_congestion"
)

// Calculator computes reward amounts. It is pure: no clock, no I/O, and
// the same inputs always produce the same amounts. Multipliers are held
// as integer percent points so amounts never pick up float drift.
type Calculator struct {
	cfg config.RewardConfig
}

func NewCalculator(cfg config.RewardConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// DepartureInput describes one actual departure against its
// recommendation. Level is only consulted when HasLevel is set, so a
// failed congestion read simply forfeits the low-congestion bonus.
type DepartureInput struct {
	DepartedAt  time.Time
	WindowStart time.Time
	WindowEnd   time.Time
	Bucket      timebucket.Bucket
	Level       congestion.Level
	HasLevel    bool
}

// DepartureReward is the computed departure credit with its breakdown.
type DepartureReward struct {
	Base          int64
	MultiplierPct int
	Amount        int64
	Bonuses       []string
}

// Multiplier reports the effective multiplier for display, e.g. 2.2.
func (r DepartureReward) Multiplier() float64 {
	return float64(r.MultiplierPct) / 100
}

func (r DepartureReward) has(bonus string) bool {
	for _, b := range r.Bonuses {
		if b == bonus {
			return true
		}
	}
	return false
}

// Description renders the ledger line for this credit: the dominant
// bonus headline plus the route.
func (r DepartureReward) Description(origin, dest string) string {
	headline := "기본 출발 보상"
	switch {
	case r.has(BonusLowCongestion):
		headline = "혼잡도 낮은 시간대 출발 보너스"
	case r.has(BonusFollow):
		headline = "AI 추천 시간대 출발 보너스"
	}
	return headline + " - " + origin + " → " + dest
}

// Departure computes the departure reward: base times a multiplier of
// one plus the bucket bonus for the ACTUAL departure bucket, plus the
// follow bonus when the departure landed inside the recommended window
// (inclusive on both ends), plus the low-congestion bonus when traffic
// at departure ranked at or better than good. The multiplier is capped.
func (c *Calculator) Departure(in DepartureInput) DepartureReward {
	pct := 100
	var bonuses []string

	if bonus := c.cfg.BucketBonusPct[in.Bucket.Code]; bonus > 0 {
		pct += bonus
		bonuses = append(bonuses, BonusBucket)
	}
	if !in.DepartedAt.Before(in.WindowStart) && !in.DepartedAt.After(in.WindowEnd) {
		pct += c.cfg.FollowBonusPct
		bonuses = append(bonuses, BonusFollow)
	}
	if in.HasLevel && in.Level.AtOrBetter(congestion.LevelGood) {
		pct += c.cfg.LowCongestionPct
		bonuses = append(bonuses, BonusLowCongestion)
	}
	if pct > c.cfg.MultiplierCapPct {
		pct = c.cfg.MultiplierCapPct
	}

	return DepartureReward{
		Base:          c.cfg.DepartureBase,
		MultiplierPct: pct,
		Amount:        c.cfg.DepartureBase * int64(pct) / 100,
		Bonuses:       bonuses,
	}
}

// Accuracy bands reported by completion rewards.
const (
	AccuracyExact = "exact"
	AccuracyClose = "close"
	AccuracyNone  = ""
)

// CompletionReward is the computed completion credit with its breakdown.
type CompletionReward struct {
	Base          int64
	AccuracyBonus int64
	DeltaMin      int
	Amount        int64
	Accuracy      string
}

// Description renders the ledger line for this credit.
func (r CompletionReward) Description(origin, dest string) string {
	headline := "기본 도착 보상"
	switch r.Accuracy {
	case AccuracyExact:
		headline = "AI 예상 시간 정확 도착 보너스"
	case AccuracyClose:
		headline = "AI 예상 시간 근접 도착 보너스"
	}
	return headline + " - " + origin + " → " + dest
}

// Completion computes the completion reward: flat base plus an accuracy
// bonus when the actual duration landed close to the prediction. No
// multiplier and no cap apply here.
func (c *Calculator) Completion(predictedMin, actualMin int) CompletionReward {
	delta := predictedMin - actualMin
	if delta < 0 {
		delta = -delta
	}

	var bonus int64
	accuracy := AccuracyNone
	switch {
	case delta <= c.cfg.AccuracyTightMin:
		bonus = c.cfg.AccuracyTightBonus
		accuracy = AccuracyExact
	case delta <= c.cfg.AccuracyLooseMin:
		bonus = c.cfg.AccuracyLooseBonus
		accuracy = AccuracyClose
	}

	return CompletionReward{
		Base:          c.cfg.CompletionBase,
		AccuracyBonus: bonus,
		DeltaMin:      delta,
		Amount:        c.cfg.CompletionBase + bonus,
		Accuracy:      accuracy,
	}
}
