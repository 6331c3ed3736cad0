package scheduler

import "time"

// IntervalSchedule runs a job at a fixed interval.
type IntervalSchedule struct {
	interval time.Duration
}

// Every creates an IntervalSchedule. Intervals below a second are clamped
// to a second.
func Every(interval time.Duration) IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return IntervalSchedule{interval: interval}
}

// Next returns the run time one interval after the given instant.
func (s IntervalSchedule) Next(after time.Time) time.Time {
	return after.Add(s.interval)
}

// DailyAtSchedule runs a job once a day at a fixed UTC clock time.
type DailyAtSchedule struct {
	hour   int
	minute int
}

// DailyAt creates a DailyAtSchedule for the given UTC hour and minute.
func DailyAt(hour, minute int) DailyAtSchedule {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return DailyAtSchedule{hour: hour, minute: minute}
}

// Next returns the first occurrence of the configured clock time after the
// given instant.
func (s DailyAtSchedule) Next(after time.Time) time.Time {
	after = after.UTC()
	next := time.Date(after.Year(), after.Month(), after.Day(), s.hour, s.minute, 0, 0, time.UTC)
	if !next.After(after) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
