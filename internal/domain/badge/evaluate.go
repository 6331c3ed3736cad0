package badge

import (
	"sort"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
	"github.com/streamhub/stream-community-hub/pkg/timeutil"
)

// Earned pairs a badge with the metric value that earned it.
type Earned struct {
	Badge Badge
	Value int64
}

// Progress describes how far a member is from a badge.
type Progress struct {
	Badge   Badge
	Value   int64
	Earned  bool
	Percent float64
}

// Engine evaluates member badges against a catalog.
type Engine struct {
	catalog []Badge
}

// NewEngine creates an Engine for the given catalog.
func NewEngine(catalog []Badge) *Engine {
	return &Engine{catalog: catalog}
}

// Evaluate returns the badges the rollup has earned, in catalog order.
func (e *Engine) Evaluate(r *stats.MemberRollup) []Earned {
	var earned []Earned
	for _, b := range e.catalog {
		if v := b.Metric.Value(r); v >= b.Threshold {
			earned = append(earned, Earned{Badge: b, Value: v})
		}
	}
	return earned
}

// Progressions returns per-badge progress for the rollup, in catalog order.
func (e *Engine) Progressions(r *stats.MemberRollup) []Progress {
	out := make([]Progress, 0, len(e.catalog))
	for _, b := range e.catalog {
		v := b.Metric.Value(r)
		p := Progress{Badge: b, Value: v, Earned: v >= b.Threshold}
		if p.Earned {
			p.Percent = 100
		} else if b.Threshold > 0 {
			p.Percent = float64(v) / float64(b.Threshold) * 100
		}
		out = append(out, p)
	}
	return out
}

// Award is an achievement held by one member of the guild.
type Award struct {
	Achievement Achievement
	MemberID    shared.MemberID
	Value       int64
}

// AchievementEngine resolves guild-wide achievement holders.
type AchievementEngine struct {
	catalog []Achievement
	day     timeutil.DayBoundary
}

// NewAchievementEngine creates an AchievementEngine for the given catalog.
func NewAchievementEngine(catalog []Achievement, day timeutil.DayBoundary) *AchievementEngine {
	return &AchievementEngine{catalog: catalog, day: day}
}

// Evaluate resolves the holder of each achievement from a guild rollup.
// Achievements whose minimum no member clears are omitted. Ties on the
// metric value go to whoever reached that value first, replayed from the
// tied members' session history; where the replay cannot place a crossing
// (streaks), the longest-tenured member wins. A final tie goes to the
// lower member ID so results are deterministic.
func (e *AchievementEngine) Evaluate(g *stats.GuildRollup, sessionsByMember map[shared.MemberID][]*session.Session) []Award {
	members := make([]shared.MemberID, 0, len(g.Members))
	for id := range g.Members {
		members = append(members, id)
	}
	sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

	var awards []Award
	for _, ach := range e.catalog {
		var best *Award
		var bestAt time.Time
		for _, id := range members {
			r := g.Members[id]
			v := ach.Metric.Value(r)
			if v < ach.Minimum || (best != nil && v < best.Value) {
				continue
			}
			at := ach.Metric.FirstReached(e.day, sessionsByMember[id], v)
			if at.IsZero() {
				at = r.FirstStreamAt
			}
			// Members are visited in ID order, so on a full tie the first
			// holder stands.
			if best == nil || v > best.Value || at.Before(bestAt) {
				best = &Award{Achievement: ach, MemberID: id, Value: v}
				bestAt = at
			}
		}
		if best != nil {
			awards = append(awards, *best)
		}
	}
	return awards
}
