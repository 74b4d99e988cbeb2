// README: Time-of-day bucket classification over the wrapping 24h clock.
package timebucket

import (
	"fmt"
	"time"

	"offpeak/internal/config"
)

const MinutesPerDay = 24 * 60

// Bucket is one half-open range [StartMin, EndMin) in minutes of day.
// EndMin less than or equal to StartMin means the range wraps past
// midnight.
type Bucket struct {
	Code     string
	Name     string
	StartMin int
	EndMin   int
}

// Contains reports whether the given minute of day falls inside the
// bucket's range, honoring midnight wrap.
func (b Bucket) Contains(minute int) bool {
	m := ((minute % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	if b.StartMin < b.EndMin {
		return m >= b.StartMin && m < b.EndMin
	}
	return m >= b.StartMin || m < b.EndMin
}

// displayNames maps the canonical bucket codes to rider-facing names.
// Unknown codes fall back to the code itself.
var displayNames = map[string]string{
	"T0": "오전 시간대",
	"T1": "오전 늦은 시간",
	"T2": "점심 시간대",
	"T3": "오후 시간대",
	"T4": "저녁 시간대",
	"T5": "밤 시간대",
	"T6": "새벽 시간대",
}

// Classifier maps any instant to its time-of-day bucket. It is immutable
// after construction and safe for concurrent use.
type Classifier struct {
	buckets []Bucket
	byMin   []int // minute of day -> index into buckets
	loc     *time.Location
}

// NewClassifier compiles the configured ranges into a minute lookup table
// and verifies that together they partition the day exactly: every minute
// of the 1440 covered by exactly one range. A gap or overlap fails
// construction, so a bad partition is rejected at startup instead of
// producing wrong classifications at runtime.
func NewClassifier(ranges []config.BucketRange, loc *time.Location) (*Classifier, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("timebucket: no ranges configured")
	}
	if loc == nil {
		loc = time.UTC
	}

	c := &Classifier{
		buckets: make([]Bucket, 0, len(ranges)),
		byMin:   make([]int, MinutesPerDay),
		loc:     loc,
	}
	for m := range c.byMin {
		c.byMin[m] = -1
	}

	for i, r := range ranges {
		if r.Code == "" {
			return nil, fmt.Errorf("timebucket: range %d has no code", i)
		}
		if r.StartMin < 0 || r.StartMin >= MinutesPerDay || r.EndMin < 0 || r.EndMin > MinutesPerDay {
			return nil, fmt.Errorf("timebucket: range %s out of bounds: [%d, %d)", r.Code, r.StartMin, r.EndMin)
		}

		name := displayNames[r.Code]
		if name == "" {
			name = r.Code
		}
		c.buckets = append(c.buckets, Bucket{Code: r.Code, Name: name, StartMin: r.StartMin, EndMin: r.EndMin})

		span := r.EndMin - r.StartMin
		if span <= 0 {
			span += MinutesPerDay
		}
		for k := 0; k < span; k++ {
			m := (r.StartMin + k) % MinutesPerDay
			if prev := c.byMin[m]; prev != -1 {
				return nil, fmt.Errorf("timebucket: minute %s covered by both %s and %s",
					fmtMinute(m), c.buckets[prev].Code, r.Code)
			}
			c.byMin[m] = i
		}
	}

	for m, idx := range c.byMin {
		if idx == -1 {
			return nil, fmt.Errorf("timebucket: minute %s not covered by any range", fmtMinute(m))
		}
	}
	return c, nil
}

// ClassifyMinute returns the bucket covering the given minute of day.
// Minutes outside [0, 1440) are normalized onto the clock first.
func (c *Classifier) ClassifyMinute(minute int) Bucket {
	m := ((minute % MinutesPerDay) + MinutesPerDay) % MinutesPerDay
	return c.buckets[c.byMin[m]]
}

// Classify returns the bucket covering t, evaluated in the classifier's
// time zone.
func (c *Classifier) Classify(t time.Time) Bucket {
	local := t.In(c.loc)
	return c.ClassifyMinute(local.Hour()*60 + local.Minute())
}

// Lookup returns the bucket with the given code.
func (c *Classifier) Lookup(code string) (Bucket, bool) {
	for _, b := range c.buckets {
		if b.Code == code {
			return b, true
		}
	}
	return Bucket{}, false
}

// Buckets returns the configured buckets in configuration order.
func (c *Classifier) Buckets() []Bucket {
	out := make([]Bucket, len(c.buckets))
	copy(out, c.buckets)
	return out
}

// Location returns the time zone classifications are evaluated in.
func (c *Classifier) Location() *time.Location {
	return c.loc
}

func fmtMinute(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
