// Package timeutil provides calendar bucketing helpers for session analytics.
// All computations are UTC-based; guilds may shift their logical day boundary
// away from UTC midnight by a fixed offset (no DST handling by design of the
// tracker: stream platforms report instants, not local wall clocks).
// No external dependencies - uses only standard library.
package timeutil

import "time"

// DayBoundary describes where a guild's logical calendar day starts relative
// to UTC midnight. A zero DayBoundary means plain UTC days.
type DayBoundary struct {
	Offset time.Duration
}

// UTC is the default day boundary (UTC midnight).
var UTC = DayBoundary{}

// StartOfDay returns the start of the logical day containing t.
func (b DayBoundary) StartOfDay(t time.Time) time.Time {
	shifted := t.UTC().Add(-b.Offset)
	day := time.Date(shifted.Year(), shifted.Month(), shifted.Day(), 0, 0, 0, 0, time.UTC)
	return day.Add(b.Offset)
}

// DayIndex returns a monotonically increasing index of the logical day
// containing t. Consecutive calendar days map to consecutive indexes, which
// makes streak arithmetic a plain integer comparison.
func (b DayBoundary) DayIndex(t time.Time) int {
	return int(b.StartOfDay(t).Unix() / 86400)
}

// DaysCovered returns the day indexes overlapped by the interval [from, to).
// A session that merely touches a day boundary at its end does not cover the
// following day.
func (b DayBoundary) DaysCovered(from, to time.Time) []int {
	if !to.After(from) {
		return []int{b.DayIndex(from)}
	}
	first := b.DayIndex(from)
	last := b.DayIndex(to.Add(-time.Nanosecond))
	days := make([]int, 0, last-first+1)
	for d := first; d <= last; d++ {
		days = append(days, d)
	}
	return days
}

// StartOfWeek returns the start of the ISO week (Monday) containing t.
func (b DayBoundary) StartOfWeek(t time.Time) time.Time {
	day := b.StartOfDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	return day.AddDate(0, 0, -(weekday - 1))
}

// StartOfMonth returns the start of the calendar month containing t.
func (b DayBoundary) StartOfMonth(t time.Time) time.Time {
	day := b.StartOfDay(t)
	return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC).Add(b.Offset)
}

// NextMonth returns the start of the month after the one containing t.
func (b DayBoundary) NextMonth(t time.Time) time.Time {
	return b.StartOfMonth(t).AddDate(0, 1, 0)
}

// WeekKey identifies the ISO week containing t (its Monday start, unix
// seconds). Used as a bucket key when searching for the best week.
func (b DayBoundary) WeekKey(t time.Time) int64 {
	return b.StartOfWeek(t).Unix()
}

// MonthKey identifies the calendar month containing t.
func (b DayBoundary) MonthKey(t time.Time) int64 {
	return b.StartOfMonth(t).Unix()
}

// Overlap returns the duration shared by the intervals [aFrom, aTo) and
// [bFrom, bTo). Zero when they do not intersect.
func Overlap(aFrom, aTo, bFrom, bTo time.Time) time.Duration {
	from := aFrom
	if bFrom.After(from) {
		from = bFrom
	}
	to := aTo
	if bTo.Before(to) {
		to = bTo
	}
	if !to.After(from) {
		return 0
	}
	return to.Sub(from)
}

// SplitByWeek distributes the interval [from, to) across the ISO weeks it
// spans, returning seconds per week key. Sessions crossing a Sunday/Monday
// boundary are split proportionally by wall-clock overlap.
func (b DayBoundary) SplitByWeek(from, to time.Time) map[int64]int64 {
	out := make(map[int64]int64)
	cursor := from
	for cursor.Before(to) {
		weekStart := b.StartOfWeek(cursor)
		weekEnd := weekStart.AddDate(0, 0, 7)
		out[weekStart.Unix()] += int64(Overlap(from, to, weekStart, weekEnd).Seconds())
		cursor = weekEnd
	}
	return out
}

// SplitByMonth distributes the interval [from, to) across the calendar
// months it spans, returning seconds per month key.
func (b DayBoundary) SplitByMonth(from, to time.Time) map[int64]int64 {
	out := make(map[int64]int64)
	cursor := from
	for cursor.Before(to) {
		monthStart := b.StartOfMonth(cursor)
		monthEnd := b.NextMonth(cursor)
		out[monthStart.Unix()] += int64(Overlap(from, to, monthStart, monthEnd).Seconds())
		cursor = monthEnd
	}
	return out
}

// SplitByHour walks the interval [from, to) hour by hour, calling visit with
// the weekday and hour-of-day of each clock hour touched and the seconds of
// the interval falling inside it. This drives the time-slot histogram.
func SplitByHour(from, to time.Time, visit func(weekday time.Weekday, hour int, seconds int64)) {
	from, to = from.UTC(), to.UTC()
	cursor := from.Truncate(time.Hour)
	for cursor.Before(to) {
		hourEnd := cursor.Add(time.Hour)
		sec := int64(Overlap(from, to, cursor, hourEnd).Seconds())
		if sec > 0 {
			visit(cursor.Weekday(), cursor.Hour(), sec)
		}
		cursor = hourEnd
	}
}
