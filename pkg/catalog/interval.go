package catalog

import (
	"strings"
	"time"
)

// Interval is the renewal cadence of a plan.
type Interval string

const (
	Monthly Interval = "monthly"
	Yearly  Interval = "yearly"
)

// Intervals lists the supported billing intervals.
var Intervals = []Interval{Monthly, Yearly}

// ParseInterval accepts "monthly" or "yearly" in any case.
func ParseInterval(s string) (Interval, error) {
	switch Interval(strings.ToLower(strings.TrimSpace(s))) {
	case Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", ErrInvalidInterval
}

func (i Interval) Valid() bool {
	return i == Monthly || i == Yearly
}

// Advance moves t forward by n intervals. The day of month is kept when the
// target month has it and clamped to the month's last day otherwise, so
// Jan 31 + 1 month is Feb 28 (29 in leap years), never Mar 3.
func (i Interval) Advance(t time.Time, n int) time.Time {
	return addMonths(t, i.months(n), t.Day())
}

// AdvanceAnchored moves t forward by n intervals onto anchor's day of month,
// clamped like Advance. A period that was clamped once returns to the anchor
// day when a later month has it: Jan 31, Feb 28, Mar 31. A zero anchor
// behaves like Advance.
func (i Interval) AdvanceAnchored(anchor, t time.Time, n int) time.Time {
	if anchor.IsZero() {
		return i.Advance(t, n)
	}
	return addMonths(t, i.months(n), anchor.In(t.Location()).Day())
}

func (i Interval) months(n int) int {
	if i == Yearly {
		return 12 * n
	}
	return n
}

func addMonths(t time.Time, months, day int) time.Time {
	year, month, _ := t.Date()
	first := time.Date(year, month+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())

	// Day 0 of the next month is the last day of this one.
	lastDay := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, first.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
