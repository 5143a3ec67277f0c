package utils

import "time"

// GetStartOfMonth returns midnight of the first day of t's month, in t's location
func GetStartOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// AddMonths moves a month start by n calendar months
func AddMonths(monthStart time.Time, n int) time.Time {
	return time.Date(monthStart.Year(), monthStart.Month()+time.Month(n), 1, 0, 0, 0, 0, monthStart.Location())
}

// MonthsBack returns the start of the month n-1 months before now, so that
// the window [result, now] spans n calendar months including the current one.
func MonthsBack(now time.Time, n int) time.Time {
	if n < 1 {
		n = 1
	}
	return AddMonths(GetStartOfMonth(now), -(n - 1))
}

// MonthKey formats a month as YYYY-MM
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
