// README: Tests for bucket table parsing.
package config

import "testing"

func TestParseMinuteOfDay(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"06:00", 360, false},
		{"9:30", 570, false},
		{"23:59", 1439, false},
		{"24:00", 1440, false},
		{" 12:00 ", 720, false},
		{"24:01", 0, true},
		{"25:00", 0, true},
		{"12:60", 0, true},
		{"-1:00", 0, true},
		{"0930", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tc := range cases {
		got, err := parseMinuteOfDay(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseMinuteOfDay(%q) = %d, want error", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseMinuteOfDay(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parseMinuteOfDay(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestParseBuckets_EmptyYieldsDefaults(t *testing.T) {
	got, err := parseBuckets("")
	if err != nil {
		t.Fatalf("parseBuckets: %v", err)
	}
	want := DefaultBuckets()
	if len(got) != len(want) {
		t.Fatalf("buckets = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseBuckets_Override(t *testing.T) {
	got, err := parseBuckets("A=06:00-12:00, B=12:00-24:00 ,NIGHT=22:00-06:00")
	if err != nil {
		t.Fatalf("parseBuckets: %v", err)
	}
	want := []BucketRange{
		{Code: "A", StartMin: 360, EndMin: 720},
		{Code: "B", StartMin: 720, EndMin: 1440},
		{Code: "NIGHT", StartMin: 1320, EndMin: 360}, // wraps midnight
	}
	if len(got) != len(want) {
		t.Fatalf("buckets = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseBuckets_Malformed(t *testing.T) {
	for _, in := range []string{
		"T0",
		"T0=06:00",
		"T0=0600-0900",
		"T0=06:60-09:00",
		"T0=06:00-25:00",
		" , , ",
	} {
		if _, err := parseBuckets(in); err == nil {
			t.Errorf("parseBuckets(%q) succeeded, want error", in)
		}
	}
}
