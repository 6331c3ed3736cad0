package query

import (
	"context"

	"github.com/streamhub/stream-community-hub/internal/domain/badge"
	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// GetBadges asks for a member's badges. Badges always evaluate lifetime
// records, so no window is taken.
type GetBadges struct {
	GuildID  string
	MemberID string

	// IncludeProgress also returns unearned badges with their progress.
	IncludeProgress bool
}

// BadgeReport is the result of a badge lookup.
type BadgeReport struct {
	MemberID shared.MemberID
	Earned   []badge.Earned
	Progress []badge.Progress
}

// GetBadgesHandler evaluates member badges.
type GetBadgesHandler struct {
	provider *RollupProvider
	engine   *badge.Engine
}

// NewGetBadgesHandler creates the handler.
func NewGetBadgesHandler(provider *RollupProvider, engine *badge.Engine) *GetBadgesHandler {
	return &GetBadgesHandler{provider: provider, engine: engine}
}

// Handle evaluates the member's badges from their full-window rollup.
func (h *GetBadgesHandler) Handle(ctx context.Context, q GetBadges) (*BadgeReport, error) {
	guildID, memberID, err := requireGuildMember(q.GuildID, q.MemberID)
	if err != nil {
		return nil, err
	}

	rollup, err := h.provider.MemberRollup(ctx, guildID, memberID, shared.WindowAll)
	if err != nil {
		return nil, err
	}

	report := &BadgeReport{
		MemberID: memberID,
		Earned:   h.engine.Evaluate(rollup),
	}
	if q.IncludeProgress {
		report.Progress = h.engine.Progressions(rollup)
	}
	return report, nil
}

// GetAchievements asks for the guild's achievement holders.
type GetAchievements struct {
	GuildID string
}

// GetAchievementsHandler resolves guild achievements.
type GetAchievementsHandler struct {
	provider *RollupProvider
	engine   *badge.AchievementEngine
}

// NewGetAchievementsHandler creates the handler.
func NewGetAchievementsHandler(provider *RollupProvider, engine *badge.AchievementEngine) *GetAchievementsHandler {
	return &GetAchievementsHandler{provider: provider, engine: engine}
}

// Handle resolves the holder of every achievement in the guild.
func (h *GetAchievementsHandler) Handle(ctx context.Context, q GetAchievements) ([]badge.Award, error) {
	guildID := shared.GuildID(q.GuildID)
	if !guildID.IsValid() {
		return nil, shared.NewInvalidEventError("query", "GetAchievementsHandler.Handle", "missing guild id")
	}

	guild, err := h.provider.GuildRollup(ctx, guildID, shared.WindowAll)
	if err != nil {
		return nil, err
	}

	// Tie-breaking replays session history to find who crossed first.
	all, err := h.provider.Sessions(ctx, guildID, "")
	if err != nil {
		return nil, err
	}
	byMember := make(map[shared.MemberID][]*session.Session)
	for _, s := range all {
		byMember[s.MemberID] = append(byMember[s.MemberID], s)
	}
	return h.engine.Evaluate(guild, byMember), nil
}
