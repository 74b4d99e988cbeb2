package wallet

import (
	"reflect"
	"testing"
	"time"

	"offpeak/internal/config"
	"offpeak/internal/congestion"
	"offpeak/internal/timebucket"
)

var (
	dawnBucket    = timebucket.Bucket{Code: "T6", Name: "새벽 시간대", StartMin: 0, EndMin: 360}
	eveningBucket = timebucket.Bucket{Code: "T4", Name: "저녁 시간대", StartMin: 18 * 60, EndMin: 21 * 60}

	windowStart = time.Date(2025, 3, 5, 1, 30, 0, 0, time.UTC)
	windowEnd   = time.Date(2025, 3, 5, 2, 30, 0, 0, time.UTC)
)

func TestDeparture_AllBonusesStack(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())

	// Dawn departure inside the window with good traffic:
	// 1.0 + 0.40 + 0.30 + 0.50 = 2.20 multiplier on base 100.
	got := calc.Departure(DepartureInput{
		DepartedAt:  time.Date(2025, 3, 5, 2, 0, 0, 0, time.UTC),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Bucket:      dawnBucket,
		Level:       congestion.LevelGood,
		HasLevel:    true,
	})

	if got.MultiplierPct != 220 {
		t.Errorf("multiplier = %d pct, want 220", got.MultiplierPct)
	}
	if got.Amount != 220 {
		t.Errorf("amount = %d, want 220", got.Amount)
	}
	if got.Multiplier() != 2.2 {
		t.Errorf("Multiplier() = %f, want 2.2", got.Multiplier())
	}
	wantBonuses := []string{BonusBucket, BonusFollow, BonusLowCongestion}
	if !reflect.DeepEqual(got.Bonuses, wantBonuses) {
		t.Errorf("bonuses = %v, want %v", got.Bonuses, wantBonuses)
	}
}

func TestDeparture_BucketTable(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())

	tests := []struct {
		code    string
		wantPct int
	}{
		{"T0", 110},
		{"T1", 120},
		{"T2", 110},
		{"T3", 120},
		{"T4", 110},
		{"T5", 130},
		{"T6", 140},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			// Outside the window, no congestion reading: bucket bonus only.
			got := calc.Departure(DepartureInput{
				DepartedAt:  windowEnd.Add(time.Hour),
				WindowStart: windowStart,
				WindowEnd:   windowEnd,
				Bucket:      timebucket.Bucket{Code: tt.code},
			})
			if got.MultiplierPct != tt.wantPct {
				t.Errorf("bucket %s multiplier = %d, want %d", tt.code, got.MultiplierPct, tt.wantPct)
			}
			if got.Amount != int64(tt.wantPct) {
				t.Errorf("bucket %s amount = %d, want %d", tt.code, got.Amount, tt.wantPct)
			}
		})
	}
}

func TestDeparture_FollowWindowIsInclusive(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())

	tests := []struct {
		name       string
		departedAt time.Time
		followed   bool
	}{
		{"exactly window start", windowStart, true},
		{"exactly window end", windowEnd, true},
		{"inside", windowStart.Add(10 * time.Minute), true},
		{"one second early", windowStart.Add(-time.Second), false},
		{"one second late", windowEnd.Add(time.Second), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Departure(DepartureInput{
				DepartedAt:  tt.departedAt,
				WindowStart: windowStart,
				WindowEnd:   windowEnd,
				Bucket:      eveningBucket,
			})
			want := 110 // T4 bucket bonus
			if tt.followed {
				want += 30
			}
			if got.MultiplierPct != want {
				t.Errorf("multiplier = %d, want %d", got.MultiplierPct, want)
			}
		})
	}
}

func TestDeparture_LowCongestionNeedsReading(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())

	base := DepartureInput{
		DepartedAt:  windowEnd.Add(time.Hour),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Bucket:      eveningBucket,
	}

	// A missing congestion reading forfeits the bonus rather than failing.
	in := base
	in.Level = congestion.LevelVeryGood
	if got := calc.Departure(in); got.MultiplierPct != 110 {
		t.Errorf("without HasLevel: multiplier = %d, want 110", got.MultiplierPct)
	}

	in.HasLevel = true
	if got := calc.Departure(in); got.MultiplierPct != 160 {
		t.Errorf("very_good reading: multiplier = %d, want 160", got.MultiplierPct)
	}

	in.Level = congestion.LevelModerate
	if got := calc.Departure(in); got.MultiplierPct != 110 {
		t.Errorf("moderate reading: multiplier = %d, want 110 (no bonus)", got.MultiplierPct)
	}
}

func TestDeparture_MultiplierClamps(t *testing.T) {
	cfg := config.DefaultRewardConfig()
	cfg.BucketBonusPct = map[string]int{"T6": 80}
	calc := NewCalculator(cfg)

	// 1.0 + 0.80 + 0.30 + 0.50 = 2.60, clamped to the 2.40 cap.
	got := calc.Departure(DepartureInput{
		DepartedAt:  windowStart,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Bucket:      dawnBucket,
		Level:       congestion.LevelVeryGood,
		HasLevel:    true,
	})
	if got.MultiplierPct != 240 {
		t.Errorf("multiplier = %d, want clamp at 240", got.MultiplierPct)
	}
	if got.Amount != 240 {
		t.Errorf("amount = %d, want 240", got.Amount)
	}
}

func TestCompletion_AccuracyBands(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())

	tests := []struct {
		name      string
		predicted int
		actual    int
		want      int64
	}{
		{"three minutes early", 45, 42, 80},
		{"spot on", 45, 45, 80},
		{"exactly five off", 45, 50, 80},
		{"six off lands in loose band", 45, 51, 65},
		{"exactly ten off", 45, 55, 65},
		{"thirteen late, base only", 45, 58, 50},
		{"way off", 45, 120, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.Completion(tt.predicted, tt.actual)
			if got.Amount != tt.want {
				t.Errorf("Completion(%d, %d) = %d, want %d", tt.predicted, tt.actual, got.Amount, tt.want)
			}
		})
	}
}

func TestCompletion_BreakdownFields(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())

	got := calc.Completion(45, 42)
	if got.Base != 50 || got.AccuracyBonus != 30 || got.DeltaMin != 3 {
		t.Errorf("breakdown = base %d bonus %d delta %d, want 50/30/3", got.Base, got.AccuracyBonus, got.DeltaMin)
	}
}

func TestDescriptions_PickDominantBonus(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())

	lowCongestion := calc.Departure(DepartureInput{
		DepartedAt:  windowStart,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Bucket:      dawnBucket,
		Level:       congestion.LevelVeryGood,
		HasLevel:    true,
	})
	if got, want := lowCongestion.Description("강남역", "홍대입구역"), "혼잡도 낮은 시간대 출발 보너스 - 강남역 → 홍대입구역"; got != want {
		t.Errorf("low congestion description = %q, want %q", got, want)
	}

	followed := calc.Departure(DepartureInput{
		DepartedAt:  windowStart,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Bucket:      dawnBucket,
	})
	if got, want := followed.Description("A", "B"), "AI 추천 시간대 출발 보너스 - A → B"; got != want {
		t.Errorf("followed description = %q, want %q", got, want)
	}

	basic := calc.Departure(DepartureInput{
		DepartedAt:  windowEnd.Add(time.Hour),
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Bucket:      eveningBucket,
	})
	if got, want := basic.Description("A", "B"), "기본 출발 보상 - A → B"; got != want {
		t.Errorf("basic description = %q, want %q", got, want)
	}

	completions := []struct {
		actual int
		want   string
	}{
		{47, "AI 예상 시간 정확 도착 보너스 - A → B"},
		{53, "AI 예상 시간 근접 도착 보너스 - A → B"},
		{70, "기본 도착 보상 - A → B"},
	}
	for _, tt := range completions {
		if got := calc.Completion(45, tt.actual).Description("A", "B"); got != tt.want {
			t.Errorf("Completion(45, %d) description = %q, want %q", tt.actual, got, tt.want)
		}
	}
}

func TestCalculator_IsDeterministic(t *testing.T) {
	calc := NewCalculator(config.DefaultRewardConfig())
	in := DepartureInput{
		DepartedAt:  windowStart,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Bucket:      dawnBucket,
		Level:       congestion.LevelGood,
		HasLevel:    true,
	}

	first := calc.Departure(in)
	for i := 0; i < 10; i++ {
		if got := calc.Departure(in); got.Amount != first.Amount || got.MultiplierPct != first.MultiplierPct {
			t.Fatalf("calculator drifted on identical input: %+v vs %+v", got, first)
		}
	}
}
