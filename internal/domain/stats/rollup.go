// Package stats aggregates closed sessions into per-member and per-guild
// rollups: totals, streaks, best periods and the weekly time-slot histogram.
package stats

import (
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// TimeSlotHistogram accumulates streamed seconds per weekday and clock hour.
type TimeSlotHistogram struct {
	// Slots is indexed [weekday][hour], Sunday = 0.
	Slots [7][24]int64
}

// Add records seconds streamed during the given slot.
func (h *TimeSlotHistogram) Add(weekday time.Weekday, hour int, seconds int64) {
	if hour < 0 || hour > 23 || seconds <= 0 {
		return
	}
	h.Slots[weekday][hour] += seconds
}

// Total returns the sum over all slots.
func (h *TimeSlotHistogram) Total() int64 {
	var total int64
	for d := 0; d < 7; d++ {
		for hr := 0; hr < 24; hr++ {
			total += h.Slots[d][hr]
		}
	}
	return total
}

// Slot is one weekday/hour cell with its accumulated seconds.
type Slot struct {
	Weekday time.Weekday
	Hour    int
	Seconds int64
}

// Top returns the n busiest slots, most streamed first. Ties break on
// earlier weekday, then earlier hour, so results are deterministic.
func (h *TimeSlotHistogram) Top(n int) []Slot {
	var slots []Slot
	for d := 0; d < 7; d++ {
		for hr := 0; hr < 24; hr++ {
			if h.Slots[d][hr] > 0 {
				slots = append(slots, Slot{Weekday: time.Weekday(d), Hour: hr, Seconds: h.Slots[d][hr]})
			}
		}
	}
	sortSlots(slots)
	if n > 0 && len(slots) > n {
		slots = slots[:n]
	}
	return slots
}

func sortSlots(slots []Slot) {
	// Insertion sort keeps the tie-break rule obvious. Slot counts are
	// bounded by 168 so cost is irrelevant.
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0 && slotLess(slots[j], slots[j-1]); j-- {
			slots[j], slots[j-1] = slots[j-1], slots[j]
		}
	}
}

func slotLess(a, b Slot) bool {
	if a.Seconds != b.Seconds {
		return a.Seconds > b.Seconds
	}
	if a.Weekday != b.Weekday {
		return a.Weekday < b.Weekday
	}
	return a.Hour < b.Hour
}

// MemberRollup is the aggregate view of one member's streaming history.
//
// Fields under "windowed" honor the requested window by clipping sessions
// to it. Fields under "lifetime" always cover the full stored history, so
// streaks and records do not shrink when a narrow window is requested.
type MemberRollup struct {
	GuildID  shared.GuildID
	MemberID shared.MemberID
	Window   shared.Window

	// Windowed totals.
	TotalSeconds          int64
	SessionCount          int
	LongestSessionSeconds int64
	GameSeconds           map[string]int64
	Histogram             TimeSlotHistogram

	// Lifetime records.
	FirstStreamAt     time.Time
	LastStreamAt      time.Time
	CurrentStreakDays int
	LongestStreakDays int
	BestWeekSeconds   int64
	BestMonthSeconds  int64
	LifetimeSeconds   int64
	LifetimeSessions  int
}

// AverageSessionSeconds returns the mean windowed session length.
func (r *MemberRollup) AverageSessionSeconds() int64 {
	if r.SessionCount == 0 {
		return 0
	}
	return r.TotalSeconds / int64(r.SessionCount)
}

// TotalHours returns the windowed total as fractional hours.
func (r *MemberRollup) TotalHours() float64 {
	return float64(r.TotalSeconds) / 3600
}

// TopGame returns the windowed game with the most streamed seconds.
// Ties break lexicographically for determinism.
func (r *MemberRollup) TopGame() (string, int64) {
	var best string
	var bestSeconds int64
	for game, seconds := range r.GameSeconds {
		if seconds > bestSeconds || (seconds == bestSeconds && (best == "" || game < best)) {
			best, bestSeconds = game, seconds
		}
	}
	return best, bestSeconds
}

// GuildRollup summarizes a whole guild over a window.
type GuildRollup struct {
	GuildID      shared.GuildID
	Window       shared.Window
	Members      map[shared.MemberID]*MemberRollup
	TotalSeconds int64
	SessionCount int
}

// ActiveStreamers returns how many members have windowed activity.
func (g *GuildRollup) ActiveStreamers() int {
	n := 0
	for _, r := range g.Members {
		if r.SessionCount > 0 {
			n++
		}
	}
	return n
}
