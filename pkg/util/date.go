package util

import "time"

// DayLayout is the wire format of calendar days.
const DayLayout = "2006-01-02"

// StartOfDay truncates t to midnight of its calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// AddDays moves a calendar day by n days, independent of DST transitions.
func AddDays(day time.Time, n int) time.Time {
	return StartOfDay(day).AddDate(0, 0, n)
}

// FormatDay formats t as YYYY-MM-DD.
func FormatDay(t time.Time) string { return t.Format(DayLayout) }
