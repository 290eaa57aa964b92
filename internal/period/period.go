// Package period resolves named reporting periods into concrete calendar intervals.
package period

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Period string

const (
	Today     Period = "today"
	Yesterday Period = "yesterday"
	Week      Period = "week"
	Month     Period = "month"
	Quarter   Period = "quarter"
	Year      Period = "year"
	All       Period = "all"
)

var ErrInvalidPeriod = errors.New("invalid report period")

// Periods lists every accepted token.
var Periods = []Period{Today, Yesterday, Week, Month, Quarter, Year, All}

const dateLayout = "2006-01-02"

// Interval is the half-open range [Start, End). A zero Start means no lower bound.
type Interval struct {
	Start time.Time
	End   time.Time
}

func Parse(token string) (Period, error) {
	p := Period(strings.TrimSpace(strings.ToLower(token)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, token)
	}
	return p, nil
}

func (p Period) Valid() bool {
	for _, known := range Periods {
		if p == known {
			return true
		}
	}
	return false
}

func (p Period) String() string {
	return string(p)
}

// Resolve anchors p at now, evaluated in loc. Every bounded interval ends at
// the start of the day after now.
func Resolve(p Period, now time.Time, loc *time.Location) (Interval, error) {
	if loc == nil {
		loc = time.UTC
	}

	now = now.In(loc)
	today := StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	switch p {
	case Today:
		return Interval{Start: today, End: tomorrow}, nil
	case Yesterday:
		return Interval{Start: today.AddDate(0, 0, -1), End: today}, nil
	case Week:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		return Interval{Start: today.AddDate(0, 0, -sinceMonday), End: tomorrow}, nil
	case Month:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
		return Interval{Start: start, End: tomorrow}, nil
	case Quarter:
		quarterMonth := time.Month(((int(now.Month())-1)/3)*3 + 1)
		start := time.Date(now.Year(), quarterMonth, 1, 0, 0, 0, 0, loc)
		return Interval{Start: start, End: tomorrow}, nil
	case Year:
		start := time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, loc)
		return Interval{Start: start, End: tomorrow}, nil
	case All:
		return Interval{End: tomorrow}, nil
	default:
		return Interval{}, fmt.Errorf("%w: %q", ErrInvalidPeriod, string(p))
	}
}

func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

func (iv Interval) Bounded() bool {
	return !iv.Start.IsZero()
}

func (iv Interval) Contains(t time.Time) bool {
	if iv.Bounded() && t.Before(iv.Start) {
		return false
	}
	return t.Before(iv.End)
}

// Days returns the calendar days covered by a bounded interval, never less than 1.
func (iv Interval) Days() []time.Time {
	if !iv.Bounded() {
		return []time.Time{StartOfDay(iv.End.AddDate(0, 0, -1))}
	}

	var days []time.Time
	for day := StartOfDay(iv.Start); day.Before(iv.End); day = day.AddDate(0, 0, 1) {
		days = append(days, day)
	}
	if len(days) == 0 {
		days = append(days, StartOfDay(iv.Start))
	}
	return days
}
