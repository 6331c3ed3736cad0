package analytics

import (
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
	"github.com/streamhub/stream-community-hub/pkg/timeutil"
)

// Health is the community health report for a guild window.
type Health struct {
	GuildID shared.GuildID
	Window  shared.Window

	// Score is 0..100.
	Score float64
	Grade string

	ActiveStreamers int
	WeeklyHours     float64
	ActiveDayRatio  float64

	// Growth compares the window against the prior equal-length period,
	// 0.5 meaning steady.
	Growth           float64
	PriorStreamers   int
	PriorWeeklyHours float64
}

// Health score component weights and saturation points.
const (
	participationWeight = 0.30
	volumeWeight        = 0.30
	regularityWeight    = 0.20
	growthWeight        = 0.20

	// Saturation: 8 active streamers or 30 streamed hours per week counts
	// as a full component.
	fullStreamers   = 8
	fullWeeklyHours = 30.0
)

// CommunityHealth scores a guild's streaming activity.
//
// Four components: how many members stream, how much gets streamed per
// week, how many days of the window saw any activity, and how streamer
// count and stream volume moved against the prior equal-length period.
// The first three saturate at a "healthy" level; growth is neutral at 0.5
// (holding steady), 1 when the guild doubled or grew from nothing, and
// falls toward 0 as activity collapses. The all-time window has no prior
// period and scores growth as neutral. Guilds with no windowed sessions
// get shared.ErrInsufficientData.
func (e *Engine) CommunityHealth(g *stats.GuildRollup, sessions []*session.Session, now time.Time) (*Health, error) {
	if g.SessionCount == 0 {
		return nil, shared.NewInsufficientDataError("analytics", "Engine.CommunityHealth",
			"no sessions in window")
	}

	windowDays := g.Window.Days()
	if windowDays == 0 {
		windowDays = e.spanDays(sessions, now)
	}
	if windowDays < 1 {
		windowDays = 1
	}

	participation := ratio(float64(g.ActiveStreamers()), fullStreamers)

	weeklyHours := float64(g.TotalSeconds) / 3600 * 7 / float64(windowDays)
	volume := ratio(weeklyHours, fullWeeklyHours)

	activeDays := make(map[int]bool)
	cutoff := g.Window.Cutoff(now)
	for _, s := range sessions {
		if !cutoff.IsZero() && s.EndedAt.Before(cutoff) {
			continue
		}
		for _, d := range e.day.DaysCovered(s.StartedAt, s.EndedAt) {
			activeDays[d] = true
		}
	}
	regularity := ratio(float64(len(activeDays)), float64(windowDays))

	growth := 0.5
	var priorStreamers int
	var priorSeconds int64
	if !cutoff.IsZero() {
		priorStreamers, priorSeconds = e.priorPeriod(sessions, cutoff.AddDate(0, 0, -windowDays), cutoff)
		streamerGrowth := growthRatio(float64(g.ActiveStreamers()), float64(priorStreamers))
		volumeGrowth := growthRatio(float64(g.TotalSeconds), float64(priorSeconds))
		growth = (streamerGrowth + volumeGrowth) / 2
	}

	score := 100 * (participationWeight*participation +
		volumeWeight*volume +
		regularityWeight*regularity +
		growthWeight*growth)

	return &Health{
		GuildID:          g.GuildID,
		Window:           g.Window,
		Score:            score,
		Grade:            healthGrade(score),
		ActiveStreamers:  g.ActiveStreamers(),
		WeeklyHours:      weeklyHours,
		ActiveDayRatio:   regularity,
		Growth:           growth,
		PriorStreamers:   priorStreamers,
		PriorWeeklyHours: float64(priorSeconds) / 3600 * 7 / float64(windowDays),
	}, nil
}

// priorPeriod aggregates distinct streamers and clipped streamed seconds
// over [from, to).
func (e *Engine) priorPeriod(sessions []*session.Session, from, to time.Time) (int, int64) {
	seen := make(map[shared.MemberID]bool)
	var seconds int64
	for _, s := range sessions {
		d := timeutil.Overlap(s.StartedAt, s.EndedAt, from, to)
		if d <= 0 {
			continue
		}
		seconds += int64(d / time.Second)
		seen[s.MemberID] = true
	}
	return len(seen), seconds
}

// growthRatio maps the current/prior ratio onto 0..1: steady scores 0.5,
// doubling (or appearing from nothing) scores 1, collapse tends to 0.
func growthRatio(cur, prior float64) float64 {
	switch {
	case prior <= 0 && cur <= 0:
		return 0.5
	case prior <= 0:
		return 1
	default:
		return ratio(cur/prior, 2)
	}
}

// spanDays measures the stored history length for the all-time window.
func (e *Engine) spanDays(sessions []*session.Session, now time.Time) int {
	var first time.Time
	for _, s := range sessions {
		if first.IsZero() || s.StartedAt.Before(first) {
			first = s.StartedAt
		}
	}
	if first.IsZero() {
		return 0
	}
	return e.day.DayIndex(now) - e.day.DayIndex(first) + 1
}

func ratio(v, full float64) float64 {
	if full <= 0 || v >= full {
		return 1
	}
	if v <= 0 {
		return 0
	}
	return v / full
}

func healthGrade(score float64) string {
	switch {
	case score >= 90:
		return "A+"
	case score >= 80:
		return "A"
	case score >= 70:
		return "B"
	case score >= 60:
		return "C"
	case score >= 45:
		return "D"
	default:
		return "F"
	}
}
