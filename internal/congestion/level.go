// README: Congestion level bands derived from the 1.0-5.0 score scale.
package congestion

// Level is the rider-facing congestion band for a score.
type Level string

const (
	LevelVeryGood      Level = "very_good"
	LevelGood          Level = "good"
	LevelModerate      Level = "moderate"
	LevelCongested     Level = "congested"
	LevelVeryCongested Level = "very_congested"
)

// LevelFor maps a score on the 1.0-5.0 scale to its band.
func LevelFor(score float64) Level {
	switch {
	case score <= 2.0:
		return LevelVeryGood
	case score <= 2.5:
		return LevelGood
	case score <= 3.5:
		return LevelModerate
	case score <= 4.0:
		return LevelCongested
	default:
		return LevelVeryCongested
	}
}

// Rank orders levels from best (1) to worst (5). Unknown levels rank
// worst so they never qualify for low-congestion bonuses.
func (l Level) Rank() int {
	switch l {
	case LevelVeryGood:
		return 1
	case LevelGood:
		return 2
	case LevelModerate:
		return 3
	case LevelCongested:
		return 4
	case LevelVeryCongested:
		return 5
	default:
		return 5
	}
}

// AtOrBetter reports whether l is at least as good as other.
func (l Level) AtOrBetter(other Level) bool {
	return l.Rank() <= other.Rank()
}

// DisplayName returns the Korean rider-facing name for the level.
func (l Level) DisplayName() string {
	switch l {
	case LevelVeryGood:
		return "매우 좋음"
	case LevelGood:
		return "좋음"
	case LevelModerate:
		return "보통"
	case LevelCongested:
		return "혼잡"
	case LevelVeryCongested:
		return "매우 혼잡"
	default:
		return string(l)
	}
}
