package query

import (
	"context"
	"sort"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// Ranking criteria for the top streamers board.
const (
	RankByTime  = "time"
	RankByCount = "count"
)

// GetTopStreamers asks for the guild leaderboard.
type GetTopStreamers struct {
	GuildID string
	Window  string
	By      string
	Limit   int
}

// TopStreamer is one leaderboard row.
type TopStreamer struct {
	Rank         int
	MemberID     shared.MemberID
	TotalSeconds int64
	SessionCount int
}

// GetTopStreamersHandler serves leaderboard lookups.
type GetTopStreamersHandler struct {
	provider *RollupProvider
}

// NewGetTopStreamersHandler creates the handler.
func NewGetTopStreamersHandler(provider *RollupProvider) *GetTopStreamersHandler {
	return &GetTopStreamersHandler{provider: provider}
}

// Handle returns the guild's most active streamers, ranked by streamed
// time or session count. Ties break on the other criterion, then on
// member ID so paging is stable.
func (h *GetTopStreamersHandler) Handle(ctx context.Context, q GetTopStreamers) ([]TopStreamer, error) {
	guildID := shared.GuildID(q.GuildID)
	if !guildID.IsValid() {
		return nil, shared.NewInvalidEventError("query", "GetTopStreamersHandler.Handle", "missing guild id")
	}
	window, err := parseQueryWindow(q.Window)
	if err != nil {
		return nil, err
	}
	by := q.By
	if by == "" {
		by = RankByTime
	}
	if by != RankByTime && by != RankByCount {
		return nil, shared.NewInvalidEventError("query", "GetTopStreamersHandler.Handle", "unknown ranking "+q.By)
	}

	guild, err := h.provider.GuildRollup(ctx, guildID, window)
	if err != nil {
		return nil, err
	}

	rows := make([]TopStreamer, 0, len(guild.Members))
	for memberID, r := range guild.Members {
		if r.SessionCount == 0 {
			continue
		}
		rows = append(rows, TopStreamer{
			MemberID:     memberID,
			TotalSeconds: r.TotalSeconds,
			SessionCount: r.SessionCount,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if by == RankByCount {
			if a.SessionCount != b.SessionCount {
				return a.SessionCount > b.SessionCount
			}
			if a.TotalSeconds != b.TotalSeconds {
				return a.TotalSeconds > b.TotalSeconds
			}
		} else {
			if a.TotalSeconds != b.TotalSeconds {
				return a.TotalSeconds > b.TotalSeconds
			}
			if a.SessionCount != b.SessionCount {
				return a.SessionCount > b.SessionCount
			}
		}
		return a.MemberID < b.MemberID
	})

	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	for i := range rows {
		rows[i].Rank = i + 1
	}
	return rows, nil
}
