// Package badge evaluates earned badges and guild-wide achievements from
// aggregated rollups. Badges are per-member milestones, achievements are
// single-holder guild records.
package badge

import (
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
	"github.com/streamhub/stream-community-hub/pkg/timeutil"
)

// Metric names the rollup dimension a badge or achievement measures.
type Metric string

const (
	MetricSessions       Metric = "sessions"
	MetricTotalSeconds   Metric = "total_seconds"
	MetricStreakDays     Metric = "streak_days"
	MetricWeekSeconds    Metric = "week_seconds"
	MetricMonthSeconds   Metric = "month_seconds"
	MetricLongestSession Metric = "longest_session"
)

// IsValid reports whether the metric is known.
func (m Metric) IsValid() bool {
	switch m {
	case MetricSessions, MetricTotalSeconds, MetricStreakDays,
		MetricWeekSeconds, MetricMonthSeconds, MetricLongestSession:
		return true
	}
	return false
}

// Value extracts the metric from a rollup. Engines expect rollups computed
// over the full window so lifetime records are complete.
func (m Metric) Value(r *stats.MemberRollup) int64 {
	switch m {
	case MetricSessions:
		return int64(r.LifetimeSessions)
	case MetricTotalSeconds:
		return r.LifetimeSeconds
	case MetricStreakDays:
		return int64(r.LongestStreakDays)
	case MetricWeekSeconds:
		return r.BestWeekSeconds
	case MetricMonthSeconds:
		return r.BestMonthSeconds
	case MetricLongestSession:
		return r.LongestSessionSeconds
	}
	return 0
}

// FirstReached replays a member's history and returns the instant the
// metric first reached target. Sessions must be ordered by start time, as
// the store returns them. Streak crossings are not replayed (a fold over
// calendar days cannot name an in-session instant); they return the zero
// time and callers fall back to first-stream tenure.
func (m Metric) FirstReached(day timeutil.DayBoundary, sessions []*session.Session, target int64) time.Time {
	if target <= 0 {
		return time.Time{}
	}
	switch m {
	case MetricSessions:
		if int64(len(sessions)) >= target {
			return sessions[target-1].EndedAt
		}
	case MetricTotalSeconds:
		var sum int64
		for _, s := range sessions {
			sum += s.Seconds()
			if sum >= target {
				return s.EndedAt.Add(-time.Duration(sum-target) * time.Second)
			}
		}
	case MetricLongestSession:
		for _, s := range sessions {
			if s.Seconds() >= target {
				return s.StartedAt.Add(time.Duration(target) * time.Second)
			}
		}
	case MetricWeekSeconds:
		sums := make(map[int64]int64)
		for _, s := range sessions {
			for week, seconds := range day.SplitByWeek(s.StartedAt, s.EndedAt) {
				sums[week] += seconds
			}
			for _, total := range sums {
				if total >= target {
					return s.EndedAt
				}
			}
		}
	case MetricMonthSeconds:
		sums := make(map[int64]int64)
		for _, s := range sessions {
			for month, seconds := range day.SplitByMonth(s.StartedAt, s.EndedAt) {
				sums[month] += seconds
			}
			for _, total := range sums {
				if total >= target {
					return s.EndedAt
				}
			}
		}
	}
	return time.Time{}
}

// Badge is a per-member milestone earned once its metric reaches the
// threshold.
type Badge struct {
	ID          string
	Name        string
	Description string
	Emoji       string
	Metric      Metric
	Threshold   int64
}

// Achievement is a guild-wide record held by the single best member whose
// metric is at least Minimum.
type Achievement struct {
	ID          string
	Name        string
	Description string
	Emoji       string
	Metric      Metric
	Minimum     int64
}

const hour = 3600

// DefaultBadges returns the stock badge catalog, ordered easiest first.
func DefaultBadges() []Badge {
	return []Badge{
		{ID: "first_stream", Name: "First Stream", Description: "Streamed for the first time", Emoji: "🎬", Metric: MetricSessions, Threshold: 1},
		{ID: "streams_10", Name: "Regular", Description: "Completed 10 streams", Emoji: "📺", Metric: MetricSessions, Threshold: 10},
		{ID: "streams_50", Name: "Broadcaster", Description: "Completed 50 streams", Emoji: "📡", Metric: MetricSessions, Threshold: 50},
		{ID: "streams_100", Name: "Stream Veteran", Description: "Completed 100 streams", Emoji: "🏆", Metric: MetricSessions, Threshold: 100},
		{ID: "hours_10", Name: "Getting Started", Description: "Streamed 10 hours total", Emoji: "⏱️", Metric: MetricTotalSeconds, Threshold: 10 * hour},
		{ID: "hours_50", Name: "Dedicated", Description: "Streamed 50 hours total", Emoji: "⏰", Metric: MetricTotalSeconds, Threshold: 50 * hour},
		{ID: "hours_100", Name: "Century Club", Description: "Streamed 100 hours total", Emoji: "💯", Metric: MetricTotalSeconds, Threshold: 100 * hour},
		{ID: "hours_300", Name: "Streaming Machine", Description: "Streamed 300 hours total", Emoji: "🤖", Metric: MetricTotalSeconds, Threshold: 300 * hour},
		{ID: "streak_2", Name: "Back Again", Description: "Streamed 2 days in a row", Emoji: "🔥", Metric: MetricStreakDays, Threshold: 2},
		{ID: "streak_3", Name: "On a Roll", Description: "Streamed 3 days in a row", Emoji: "🎯", Metric: MetricStreakDays, Threshold: 3},
		{ID: "streak_5", Name: "Unstoppable", Description: "Streamed 5 days in a row", Emoji: "⚡", Metric: MetricStreakDays, Threshold: 5},
		{ID: "week_8h", Name: "Strong Week", Description: "Streamed 8 hours in one week", Emoji: "💪", Metric: MetricWeekSeconds, Threshold: 8 * hour},
		{ID: "week_15h", Name: "Power Week", Description: "Streamed 15 hours in one week", Emoji: "🚀", Metric: MetricWeekSeconds, Threshold: 15 * hour},
		{ID: "month_40h", Name: "Monthly Grinder", Description: "Streamed 40 hours in one month", Emoji: "📅", Metric: MetricMonthSeconds, Threshold: 40 * hour},
		{ID: "marathon_session", Name: "Marathon", Description: "Streamed 6 hours in a single session", Emoji: "🏃", Metric: MetricLongestSession, Threshold: 6 * hour},
	}
}

// DefaultAchievements returns the stock achievement catalog.
func DefaultAchievements() []Achievement {
	return []Achievement{
		{ID: "marathon_king", Name: "Marathon King", Description: "Longest single stream in the guild", Emoji: "👑", Metric: MetricLongestSession, Minimum: 4 * hour},
		{ID: "consistency_master", Name: "Consistency Master", Description: "Longest streaming streak in the guild", Emoji: "🗓️", Metric: MetricStreakDays, Minimum: 3},
		{ID: "time_champion", Name: "Time Champion", Description: "Most hours streamed in the guild", Emoji: "⌛", Metric: MetricTotalSeconds, Minimum: 10 * hour},
		{ID: "stream_champion", Name: "Stream Champion", Description: "Most streams completed in the guild", Emoji: "🥇", Metric: MetricSessions, Minimum: 10},
		{ID: "weekly_legend", Name: "Weekly Legend", Description: "Best single week in the guild", Emoji: "🌟", Metric: MetricWeekSeconds, Minimum: 10 * hour},
		{ID: "monthly_master", Name: "Monthly Master", Description: "Best single month in the guild", Emoji: "🌙", Metric: MetricMonthSeconds, Minimum: 30 * hour},
	}
}

// ThresholdOverrides remaps catalog thresholds by badge or achievement ID.
// Unknown IDs are ignored, non-positive values leave the default in place.
type ThresholdOverrides map[string]int64

// ApplyBadgeOverrides returns a copy of the catalog with thresholds
// replaced where an override is present.
func ApplyBadgeOverrides(catalog []Badge, overrides ThresholdOverrides) []Badge {
	if len(overrides) == 0 {
		return catalog
	}
	out := make([]Badge, len(catalog))
	copy(out, catalog)
	for i := range out {
		if v, ok := overrides[out[i].ID]; ok && v > 0 {
			out[i].Threshold = v
		}
	}
	return out
}

// ApplyAchievementOverrides returns a copy of the catalog with minimums
// replaced where an override is present.
func ApplyAchievementOverrides(catalog []Achievement, overrides ThresholdOverrides) []Achievement {
	if len(overrides) == 0 {
		return catalog
	}
	out := make([]Achievement, len(catalog))
	copy(out, catalog)
	for i := range out {
		if v, ok := overrides[out[i].ID]; ok && v > 0 {
			out[i].Minimum = v
		}
	}
	return out
}
