// Package grain buckets observations into calendar time grains before
// control-chart evaluation.
package grain

import (
	"fmt"
	"strings"
	"time"
)

// Grain represents the calendar bucket size
type Grain string

const (
	GrainNone    Grain = "none"
	GrainDay     Grain = "day"
	GrainWeek    Grain = "week"
	GrainMonth   Grain = "month"
	GrainQuarter Grain = "quarter"
	GrainYear    Grain = "year"
)

// ValidGrains lists the accepted grains
var ValidGrains = []Grain{GrainNone, GrainDay, GrainWeek, GrainMonth, GrainQuarter, GrainYear}

// ParseGrain parses a grain name. Empty input means GrainNone.
func ParseGrain(s string) (Grain, error) {
	g := Grain(strings.ToLower(strings.TrimSpace(s)))
	if g == "" {
		return GrainNone, nil
	}
	for _, valid := range ValidGrains {
		if g == valid {
			return g, nil
		}
	}
	return "", fmt.Errorf("invalid grain: %q (valid: none, day, week, month, quarter, year)", s)
}

// Truncate returns the start of the bucket containing t, in t's location.
// Weeks start on Monday. GrainNone returns t unchanged.
func Truncate(t time.Time, g Grain) time.Time {
	switch g {
	case GrainDay:
		return TruncateToDay(t)
	case GrainWeek:
		return TruncateToWeek(t)
	case GrainMonth:
		return TruncateToMonth(t)
	case GrainQuarter:
		return TruncateToQuarter(t)
	case GrainYear:
		return TruncateToYear(t)
	default:
		return t
	}
}

// TruncateToDay truncates time to midnight
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// TruncateToWeek truncates time to midnight of the preceding Monday
func TruncateToWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, t.Location())
}

// TruncateToMonth truncates time to the start of the month
func TruncateToMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// TruncateToQuarter truncates time to the start of the quarter
func TruncateToQuarter(t time.Time) time.Time {
	month := time.Month((int(t.Month())-1)/3*3 + 1)
	return time.Date(t.Year(), month, 1, 0, 0, 0, 0, t.Location())
}

// TruncateToYear truncates time to the start of the year
func TruncateToYear(t time.Time) time.Time {
	return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, t.Location())
}
