package stats

import (
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/pkg/timeutil"
)

// Aggregator folds session slices into rollups. It is stateless and safe
// for concurrent use.
type Aggregator struct {
	day timeutil.DayBoundary
}

// NewAggregator creates an Aggregator using the given day boundary for
// streak and calendar bucketing.
func NewAggregator(day timeutil.DayBoundary) *Aggregator {
	return &Aggregator{day: day}
}

// memberAccum carries per-member intermediate state during a pass.
type memberAccum struct {
	rollup *MemberRollup
	days   map[int]bool
	weeks  map[int64]int64
	months map[int64]int64
}

// MemberRollup aggregates one member's sessions. The slice must contain
// only that member's sessions; ordering does not matter.
func (a *Aggregator) MemberRollup(guildID shared.GuildID, memberID shared.MemberID, sessions []*session.Session, window shared.Window, now time.Time) *MemberRollup {
	acc := a.newAccum(guildID, memberID, window)
	for _, s := range sessions {
		a.fold(acc, s, window, now)
	}
	a.finish(acc, now)
	return acc.rollup
}

// GuildRollup aggregates every member of a guild in a single pass over
// the guild's sessions.
func (a *Aggregator) GuildRollup(guildID shared.GuildID, sessions []*session.Session, window shared.Window, now time.Time) *GuildRollup {
	accums := make(map[shared.MemberID]*memberAccum)
	guild := &GuildRollup{
		GuildID: guildID,
		Window:  window,
		Members: make(map[shared.MemberID]*MemberRollup),
	}

	for _, s := range sessions {
		acc, ok := accums[s.MemberID]
		if !ok {
			acc = a.newAccum(guildID, s.MemberID, window)
			accums[s.MemberID] = acc
		}
		a.fold(acc, s, window, now)
	}

	for memberID, acc := range accums {
		a.finish(acc, now)
		guild.Members[memberID] = acc.rollup
		guild.TotalSeconds += acc.rollup.TotalSeconds
		guild.SessionCount += acc.rollup.SessionCount
	}
	return guild
}

func (a *Aggregator) newAccum(guildID shared.GuildID, memberID shared.MemberID, window shared.Window) *memberAccum {
	return &memberAccum{
		rollup: &MemberRollup{
			GuildID:     guildID,
			MemberID:    memberID,
			Window:      window,
			GameSeconds: make(map[string]int64),
		},
		days:   make(map[int]bool),
		weeks:  make(map[int64]int64),
		months: make(map[int64]int64),
	}
}

// fold applies one session to the accumulator.
func (a *Aggregator) fold(acc *memberAccum, s *session.Session, window shared.Window, now time.Time) {
	r := acc.rollup

	// Lifetime records ignore the window.
	r.LifetimeSeconds += s.Seconds()
	r.LifetimeSessions++
	if r.FirstStreamAt.IsZero() || s.StartedAt.Before(r.FirstStreamAt) {
		r.FirstStreamAt = s.StartedAt
	}
	if s.EndedAt.After(r.LastStreamAt) {
		r.LastStreamAt = s.EndedAt
	}
	for _, day := range a.day.DaysCovered(s.StartedAt, s.EndedAt) {
		acc.days[day] = true
	}
	// Sessions crossing a week or month boundary contribute to each
	// bucket proportionally.
	for week, seconds := range a.day.SplitByWeek(s.StartedAt, s.EndedAt) {
		acc.weeks[week] += seconds
	}
	for month, seconds := range a.day.SplitByMonth(s.StartedAt, s.EndedAt) {
		acc.months[month] += seconds
	}

	// Windowed totals clip the session to [cutoff, now).
	from, to := clip(s, window, now)
	if !to.After(from) {
		return
	}
	clipped := int64(to.Sub(from) / time.Second)

	r.TotalSeconds += clipped
	r.SessionCount++
	// Only the in-window part of a straddling session counts, matching
	// how TotalSeconds is clipped.
	if clipped > r.LongestSessionSeconds {
		r.LongestSessionSeconds = clipped
	}
	if s.Game != "" {
		r.GameSeconds[s.Game] += clipped
	}
	timeutil.SplitByHour(from, to, func(weekday time.Weekday, hour int, seconds int64) {
		r.Histogram.Add(weekday, hour, seconds)
	})
}

// finish derives streaks and best periods once all sessions are folded.
func (a *Aggregator) finish(acc *memberAccum, now time.Time) {
	r := acc.rollup
	r.CurrentStreakDays, r.LongestStreakDays = a.streaks(acc.days, now)
	for _, seconds := range acc.weeks {
		if seconds > r.BestWeekSeconds {
			r.BestWeekSeconds = seconds
		}
	}
	for _, seconds := range acc.months {
		if seconds > r.BestMonthSeconds {
			r.BestMonthSeconds = seconds
		}
	}
}

// streaks returns the current and longest run of consecutive streamed days.
// The current streak survives an idle today: streaming yesterday keeps it
// alive until the day boundary passes.
func (a *Aggregator) streaks(days map[int]bool, now time.Time) (current, longest int) {
	if len(days) == 0 {
		return 0, 0
	}

	for day := range days {
		if days[day-1] {
			continue // not the start of a run
		}
		run := 1
		for days[day+run] {
			run++
		}
		if run > longest {
			longest = run
		}
	}

	today := a.day.DayIndex(now)
	anchor := today
	if !days[anchor] {
		anchor = today - 1
	}
	for days[anchor-current] {
		current++
	}
	return current, longest
}

// clip intersects a session with the window's [cutoff, now) range.
func clip(s *session.Session, window shared.Window, now time.Time) (time.Time, time.Time) {
	from, to := s.StartedAt, s.EndedAt
	cutoff := window.Cutoff(now)
	if !cutoff.IsZero() && from.Before(cutoff) {
		from = cutoff
	}
	if to.After(now) {
		to = now
	}
	return from, to
}
