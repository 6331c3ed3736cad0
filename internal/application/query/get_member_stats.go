package query

import (
	"context"

	"github.com/streamhub/stream-community-hub/internal/domain/stats"
)

// GetMemberStats asks for one member's rollup.
type GetMemberStats struct {
	GuildID  string
	MemberID string
	Window   string
}

// GetMemberStatsHandler serves member stat lookups.
type GetMemberStatsHandler struct {
	provider *RollupProvider
}

// NewGetMemberStatsHandler creates the handler.
func NewGetMemberStatsHandler(provider *RollupProvider) *GetMemberStatsHandler {
	return &GetMemberStatsHandler{provider: provider}
}

// Handle returns the member's rollup for the requested window.
func (h *GetMemberStatsHandler) Handle(ctx context.Context, q GetMemberStats) (*stats.MemberRollup, error) {
	guildID, memberID, err := requireGuildMember(q.GuildID, q.MemberID)
	if err != nil {
		return nil, err
	}
	window, err := parseQueryWindow(q.Window)
	if err != nil {
		return nil, err
	}
	return h.provider.MemberRollup(ctx, guildID, memberID, window)
}
