package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Field is one component of a trigger pattern: either a wildcard or a
// literal value.
type Field struct {
	Any   bool
	Value int
}

func (f Field) matches(v int) bool { return f.Any || f.Value == v }

func (f Field) String() string {
	if f.Any {
		return "*"
	}
	return strconv.Itoa(f.Value)
}

// Pattern is a restricted trigger spec: minute, hour and weekday, each
// a literal or wildcard. It deliberately stops short of full cron.
type Pattern struct {
	Minute  Field
	Hour    Field
	Weekday Field // 0 = Sunday
}

// Matches evaluates the pattern against a wall-clock time,
// component-wise. Pure function; the timer loop feeds it ticks.
func (p Pattern) Matches(t time.Time) bool {
	return p.Minute.matches(t.Minute()) &&
		p.Hour.matches(t.Hour()) &&
		p.Weekday.matches(int(t.Weekday()))
}

func (p Pattern) String() string {
	return p.Minute.String() + " " + p.Hour.String() + " " + p.Weekday.String()
}

// ParsePattern parses "minute hour weekday", e.g. "0 9 *" for every day
// at 09:00 or "0 10 1" for Mondays at 10:00.
func ParsePattern(raw string) (Pattern, error) {
	parts := strings.Fields(strings.TrimSpace(raw))
	if len(parts) != 3 {
		return Pattern{}, fmt.Errorf("invalid trigger pattern %q, expected \"minute hour weekday\"", raw)
	}

	minute, err := parseField(parts[0], 0, 59)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: minute: %w", raw, err)
	}
	hour, err := parseField(parts[1], 0, 23)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: hour: %w", raw, err)
	}
	weekday, err := parseField(parts[2], 0, 6)
	if err != nil {
		return Pattern{}, fmt.Errorf("pattern %q: weekday: %w", raw, err)
	}

	return Pattern{Minute: minute, Hour: hour, Weekday: weekday}, nil
}

func parseField(s string, lo, hi int) (Field, error) {
	if s == "*" {
		return Field{Any: true}, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return Field{}, fmt.Errorf("not a number or wildcard: %q", s)
	}
	if v < lo || v > hi {
		return Field{}, fmt.Errorf("value %d out of range [%d,%d]", v, lo, hi)
	}
	return Field{Value: v}, nil
}
