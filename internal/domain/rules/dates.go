package rules

import (
	"time"
)

const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// DayKey renders the civil date used for all business-day boundaries.
// Billing dates live in a fixed civil timezone (Europe/Kyiv), not UTC.
func DayKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(DayLayout)
}

func MonthKey(now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return now.In(loc).Format(MonthLayout)
}

// AddMonthClamped moves a civil date forward one calendar month, clamping to
// the last day of the target month (Jan 31 -> Feb 28/29).
func AddMonthClamped(day time.Time) time.Time {
	y, m, d := day.Date()
	lastOfNext := time.Date(y, m+2, 0, 0, 0, 0, 0, day.Location()).Day()
	if d > lastOfNext {
		d = lastOfNext
	}
	return time.Date(y, m+1, d, 0, 0, 0, 0, day.Location())
}
