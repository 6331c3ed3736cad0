// Package analytics derives guild insights from rollups and raw sessions:
// activity heatmaps, schedule prediction, audience overlap, collaboration
// suggestions and the community health score.
package analytics

import (
	"sort"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
	"github.com/streamhub/stream-community-hub/pkg/timeutil"
)

// DefaultMinPredictionSessions is how many sessions a member needs before
// schedule prediction says anything.
const DefaultMinPredictionSessions = 3

// Engine computes analytics. It is stateless and safe for concurrent use.
type Engine struct {
	day                   timeutil.DayBoundary
	minPredictionSessions int
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithMinPredictionSessions overrides the prediction data floor.
func WithMinPredictionSessions(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.minPredictionSessions = n
		}
	}
}

// NewEngine creates an Engine using the given day boundary.
func NewEngine(day timeutil.DayBoundary, opts ...EngineOption) *Engine {
	e := &Engine{
		day:                   day,
		minPredictionSessions: DefaultMinPredictionSessions,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Heatmap is the guild-wide activity histogram over a window.
type Heatmap struct {
	GuildID      shared.GuildID
	Window       shared.Window
	Histogram    stats.TimeSlotHistogram
	TotalSeconds int64
	Streamers    int
}

// Heatmap merges every member's histogram into one guild view.
func (e *Engine) Heatmap(g *stats.GuildRollup) *Heatmap {
	hm := &Heatmap{GuildID: g.GuildID, Window: g.Window}
	for _, r := range g.Members {
		if r.SessionCount == 0 {
			continue
		}
		hm.Streamers++
		for d := 0; d < 7; d++ {
			for hr := 0; hr < 24; hr++ {
				hm.Histogram.Slots[d][hr] += r.Histogram.Slots[d][hr]
			}
		}
	}
	hm.TotalSeconds = hm.Histogram.Total()
	return hm
}

// PredictSchedule returns the member's n most likely streaming slots,
// busiest first. Members with fewer sessions than the data floor get
// shared.ErrInsufficientData.
func (e *Engine) PredictSchedule(r *stats.MemberRollup, n int) ([]stats.Slot, error) {
	if r.SessionCount < e.minPredictionSessions {
		return nil, shared.NewInsufficientDataError("analytics", "Engine.PredictSchedule",
			"not enough sessions to predict a schedule")
	}
	return r.Histogram.Top(n), nil
}

// GrowthSlots surfaces low-competition scheduling windows for a member:
// slots where the guild is active but light, and the member has no
// presence yet. Quieter slots rank first, ties break on earlier weekday
// then hour.
func (e *Engine) GrowthSlots(r *stats.MemberRollup, hm *Heatmap, n int) []stats.Slot {
	var slots []stats.Slot
	for d := 0; d < 7; d++ {
		for hr := 0; hr < 24; hr++ {
			if hm.Histogram.Slots[d][hr] == 0 || r.Histogram.Slots[d][hr] > 0 {
				continue
			}
			slots = append(slots, stats.Slot{Weekday: time.Weekday(d), Hour: hr, Seconds: hm.Histogram.Slots[d][hr]})
		}
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Seconds != slots[j].Seconds {
			return slots[i].Seconds < slots[j].Seconds
		}
		if slots[i].Weekday != slots[j].Weekday {
			return slots[i].Weekday < slots[j].Weekday
		}
		return slots[i].Hour < slots[j].Hour
	})
	if n > 0 && len(slots) > n {
		slots = slots[:n]
	}
	return slots
}

// OverlapScore measures how similar two members' weekly schedules are.
// Each histogram is normalized into a distribution over slots and the
// score is the mass shared between the two, so it is symmetric and in
// [0, 1]. Members with no in-window activity yield
// shared.ErrInsufficientData.
func (e *Engine) OverlapScore(a, b *stats.MemberRollup) (float64, error) {
	totalA := a.Histogram.Total()
	totalB := b.Histogram.Total()
	if totalA == 0 || totalB == 0 {
		return 0, shared.NewInsufficientDataError("analytics", "Engine.OverlapScore",
			"both members need in-window streaming history")
	}
	var score float64
	for d := 0; d < 7; d++ {
		for hr := 0; hr < 24; hr++ {
			pa := float64(a.Histogram.Slots[d][hr]) / float64(totalA)
			pb := float64(b.Histogram.Slots[d][hr]) / float64(totalB)
			if pa < pb {
				score += pa
			} else {
				score += pb
			}
		}
	}
	return score, nil
}

// AudienceOverlap returns the total time two members streamed
// simultaneously. Both slices must belong to single members and be sorted
// by start time, as the store returns them.
func (e *Engine) AudienceOverlap(a, b []*session.Session) time.Duration {
	var total time.Duration
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		total += timeutil.Overlap(a[i].StartedAt, a[i].EndedAt, b[j].StartedAt, b[j].EndedAt)
		// Advance whichever interval ends first.
		if a[i].EndedAt.Before(b[j].EndedAt) {
			i++
		} else {
			j++
		}
	}
	return total
}

// Suggestion is one collaboration candidate with its score breakdown.
type Suggestion struct {
	MemberID       shared.MemberID
	Score          float64
	OverlapSeconds int64
	TotalSeconds   int64
}

const (
	scheduleWeight = 0.6
	activityWeight = 0.4
)

// SuggestCollaborators ranks collaboration partners for a member.
//
// Candidates who rarely stream at the same time score higher (a collab
// reaches an audience the member does not already have), weighted against
// how active the candidate is. Score is
//
//	0.6 * (1 - overlapRatio) + 0.4 * activityNorm
//
// where overlapRatio is shared time over the smaller member's total, and
// activityNorm is the candidate's total over the guild maximum.
func (e *Engine) SuggestCollaborators(target shared.MemberID, g *stats.GuildRollup, sessionsByMember map[shared.MemberID][]*session.Session, limit int) ([]Suggestion, error) {
	self, ok := g.Members[target]
	if !ok || self.SessionCount == 0 {
		return nil, shared.NewInsufficientDataError("analytics", "Engine.SuggestCollaborators",
			"member has no streaming history")
	}

	var maxSeconds int64
	for _, r := range g.Members {
		if r.TotalSeconds > maxSeconds {
			maxSeconds = r.TotalSeconds
		}
	}

	var out []Suggestion
	for id, r := range g.Members {
		if id == target || r.SessionCount == 0 {
			continue
		}
		overlap := int64(e.AudienceOverlap(sessionsByMember[target], sessionsByMember[id]) / time.Second)

		smaller := self.TotalSeconds
		if r.TotalSeconds < smaller {
			smaller = r.TotalSeconds
		}
		overlapRatio := 0.0
		if smaller > 0 {
			overlapRatio = float64(overlap) / float64(smaller)
			if overlapRatio > 1 {
				overlapRatio = 1
			}
		}
		activityNorm := 0.0
		if maxSeconds > 0 {
			activityNorm = float64(r.TotalSeconds) / float64(maxSeconds)
		}

		out = append(out, Suggestion{
			MemberID:       id,
			Score:          scheduleWeight*(1-overlapRatio) + activityWeight*activityNorm,
			OverlapSeconds: overlap,
			TotalSeconds:   r.TotalSeconds,
		})
	}
	if len(out) == 0 {
		return nil, shared.NewInsufficientDataError("analytics", "Engine.SuggestCollaborators",
			"no other active streamers in the guild")
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].MemberID < out[j].MemberID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
