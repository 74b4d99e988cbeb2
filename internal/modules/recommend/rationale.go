// README: Deterministic Korean rationale text for recommendations.
package recommend

import (
	"fmt"
	"time"

	"offpeak/internal/congestion"
)

const (
	immediateCutoffMin = 5
	soonCutoffMin      = 30
)

// TimingPhrase says how far away start is from now. Minutes truncate
// toward zero, so 5m59s out still reads as immediate.
func TimingPhrase(now, start time.Time) string {
	minutes := int(start.Sub(now).Minutes())
	switch {
	case minutes <= immediateCutoffMin:
		return "지금 바로"
	case minutes <= soonCutoffMin:
		return fmt.Sprintf("%d분 후", minutes)
	default:
		return fmt.Sprintf("%d시간 %d분 후", minutes/60, minutes%60)
	}
}

// Rationale renders the one-line reason shown with a recommendation.
// Template text only; nothing here is generated or locale-switched.
func Rationale(now, windowStart time.Time, bucketName string, level congestion.Level) string {
	return fmt.Sprintf("%s 출발하는 %s이 가장 적합합니다. 예상 혼잡도: %s",
		TimingPhrase(now, windowStart), bucketName, level.DisplayName())
}
