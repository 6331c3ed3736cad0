package query

import (
	"context"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/analytics"
	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
)

// GetHeatmap asks for the guild activity heatmap.
type GetHeatmap struct {
	GuildID string
	Window  string
}

// GetSchedulePrediction asks when a member is likely to stream next.
type GetSchedulePrediction struct {
	GuildID  string
	MemberID string
	Window   string
	Slots    int
}

// SchedulePrediction pairs the member's proven slots with quiet guild
// slots worth trying.
type SchedulePrediction struct {
	MemberID    shared.MemberID
	TopSlots    []stats.Slot
	GrowthSlots []stats.Slot
}

// GetAudienceOverlap asks how much two members stream simultaneously.
type GetAudienceOverlap struct {
	GuildID string
	MemberA string
	MemberB string
}

// AudienceOverlap is the overlap report for a member pair. Score is the
// shared fraction of their weekly schedules, OverlapSeconds the total
// time they streamed simultaneously.
type AudienceOverlap struct {
	MemberA        shared.MemberID
	MemberB        shared.MemberID
	Score          float64
	OverlapSeconds int64
}

// GetCollaborationSuggestions asks for ranked collab partners.
type GetCollaborationSuggestions struct {
	GuildID  string
	MemberID string
	Window   string
	Limit    int
}

// GetCommunityHealth asks for the guild health report.
type GetCommunityHealth struct {
	GuildID string
	Window  string
}

// AnalyticsHandler serves every analytics query from the shared provider
// and engine.
type AnalyticsHandler struct {
	provider *RollupProvider
	engine   *analytics.Engine
}

// NewAnalyticsHandler creates the handler.
func NewAnalyticsHandler(provider *RollupProvider, engine *analytics.Engine) *AnalyticsHandler {
	return &AnalyticsHandler{provider: provider, engine: engine}
}

// Heatmap returns the guild's activity histogram for the window.
func (h *AnalyticsHandler) Heatmap(ctx context.Context, q GetHeatmap) (*analytics.Heatmap, error) {
	guildID := shared.GuildID(q.GuildID)
	if !guildID.IsValid() {
		return nil, shared.NewInvalidEventError("query", "AnalyticsHandler.Heatmap", "missing guild id")
	}
	window, err := parseQueryWindow(q.Window)
	if err != nil {
		return nil, err
	}

	guild, err := h.provider.GuildRollup(ctx, guildID, window)
	if err != nil {
		return nil, err
	}
	return h.engine.Heatmap(guild), nil
}

// SchedulePrediction returns the member's likeliest streaming slots and
// the guild's quiet slots the member has not tried yet.
func (h *AnalyticsHandler) SchedulePrediction(ctx context.Context, q GetSchedulePrediction) (*SchedulePrediction, error) {
	guildID, memberID, err := requireGuildMember(q.GuildID, q.MemberID)
	if err != nil {
		return nil, err
	}
	window, err := parseQueryWindow(q.Window)
	if err != nil {
		return nil, err
	}
	slots := q.Slots
	if slots <= 0 {
		slots = 5
	}

	rollup, err := h.provider.MemberRollup(ctx, guildID, memberID, window)
	if err != nil {
		return nil, err
	}
	top, err := h.engine.PredictSchedule(rollup, slots)
	if err != nil {
		return nil, err
	}

	guild, err := h.provider.GuildRollup(ctx, guildID, window)
	if err != nil {
		return nil, err
	}
	return &SchedulePrediction{
		MemberID:    memberID,
		TopSlots:    top,
		GrowthSlots: h.engine.GrowthSlots(rollup, h.engine.Heatmap(guild), slots),
	}, nil
}

// Overlap returns the co-streaming time of two members.
func (h *AnalyticsHandler) Overlap(ctx context.Context, q GetAudienceOverlap) (*AudienceOverlap, error) {
	guildID, memberA, err := requireGuildMember(q.GuildID, q.MemberA)
	if err != nil {
		return nil, err
	}
	memberB := shared.MemberID(q.MemberB)
	if !memberB.IsValid() {
		return nil, shared.NewInvalidEventError("query", "AnalyticsHandler.Overlap", "missing member id")
	}

	rollupA, err := h.provider.MemberRollup(ctx, guildID, memberA, shared.WindowAll)
	if err != nil {
		return nil, err
	}
	rollupB, err := h.provider.MemberRollup(ctx, guildID, memberB, shared.WindowAll)
	if err != nil {
		return nil, err
	}
	score, err := h.engine.OverlapScore(rollupA, rollupB)
	if err != nil {
		return nil, err
	}

	a, err := h.provider.Sessions(ctx, guildID, memberA)
	if err != nil {
		return nil, err
	}
	b, err := h.provider.Sessions(ctx, guildID, memberB)
	if err != nil {
		return nil, err
	}

	return &AudienceOverlap{
		MemberA:        memberA,
		MemberB:        memberB,
		Score:          score,
		OverlapSeconds: int64(h.engine.AudienceOverlap(a, b) / time.Second),
	}, nil
}

// Collaborations returns ranked collaboration partners for a member.
func (h *AnalyticsHandler) Collaborations(ctx context.Context, q GetCollaborationSuggestions) ([]analytics.Suggestion, error) {
	guildID, memberID, err := requireGuildMember(q.GuildID, q.MemberID)
	if err != nil {
		return nil, err
	}
	window, err := parseQueryWindow(q.Window)
	if err != nil {
		return nil, err
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}

	guild, err := h.provider.GuildRollup(ctx, guildID, window)
	if err != nil {
		return nil, err
	}

	all, err := h.provider.Sessions(ctx, guildID, "")
	if err != nil {
		return nil, err
	}
	byMember := make(map[shared.MemberID][]*session.Session)
	for _, s := range all {
		byMember[s.MemberID] = append(byMember[s.MemberID], s)
	}

	return h.engine.SuggestCollaborators(memberID, guild, byMember, limit)
}

// CommunityHealth returns the guild health report for the window.
func (h *AnalyticsHandler) CommunityHealth(ctx context.Context, q GetCommunityHealth) (*analytics.Health, error) {
	guildID := shared.GuildID(q.GuildID)
	if !guildID.IsValid() {
		return nil, shared.NewInvalidEventError("query", "AnalyticsHandler.CommunityHealth", "missing guild id")
	}
	window, err := parseQueryWindow(q.Window)
	if err != nil {
		return nil, err
	}

	guild, err := h.provider.GuildRollup(ctx, guildID, window)
	if err != nil {
		return nil, err
	}
	sessions, err := h.provider.Sessions(ctx, guildID, "")
	if err != nil {
		return nil, err
	}
	return h.engine.CommunityHealth(guild, sessions, h.provider.Now().Now())
}
