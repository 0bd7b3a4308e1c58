package scheduler

import (
	"testing"
	"time"
)

func TestParsePattern(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  string
		want Pattern
	}{
		{name: "daily 9am", raw: "0 9 *", want: Pattern{
			Minute: Field{Value: 0}, Hour: Field{Value: 9}, Weekday: Field{Any: true},
		}},
		{name: "monday 10am", raw: "0 10 1", want: Pattern{
			Minute: Field{Value: 0}, Hour: Field{Value: 10}, Weekday: Field{Value: 1},
		}},
		{name: "every minute", raw: "* * *", want: Pattern{
			Minute: Field{Any: true}, Hour: Field{Any: true}, Weekday: Field{Any: true},
		}},
		{name: "extra whitespace", raw: "  30   18   5 ", want: Pattern{
			Minute: Field{Value: 30}, Hour: Field{Value: 18}, Weekday: Field{Value: 5},
		}},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePattern(tt.raw)
			if err != nil {
				t.Fatalf("ParsePattern(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("ParsePattern(%q) = %+v, want %+v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParsePatternInvalid(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{"", "0 9", "0 9 * *", "60 9 *", "0 24 *", "0 9 7", "a b c"} {
		if _, err := ParsePattern(raw); err == nil {
			t.Fatalf("ParsePattern(%q): expected error", raw)
		}
	}
}

func TestPatternMatches(t *testing.T) {
	t.Parallel()
	// 2026-08-31 is a Monday.
	monday9 := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	monday10 := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	tuesday10 := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	daily9, _ := ParsePattern("0 9 *")
	if !daily9.Matches(monday9) {
		t.Fatal("0 9 * must match 09:00 on any day")
	}
	if daily9.Matches(monday10) {
		t.Fatal("0 9 * must not match 10:00")
	}

	monday10am, _ := ParsePattern("0 10 1")
	if !monday10am.Matches(monday10) {
		t.Fatal("0 10 1 must match Monday 10:00")
	}
	if monday10am.Matches(tuesday10) {
		t.Fatal("0 10 1 must not match Tuesday 10:00")
	}

	always, _ := ParsePattern("* * *")
	if !always.Matches(monday9) || !always.Matches(tuesday10) {
		t.Fatal("* * * must match any time")
	}
}
