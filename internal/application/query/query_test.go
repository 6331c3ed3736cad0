package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/stream-community-hub/internal/domain/analytics"
	"github.com/streamhub/stream-community-hub/internal/domain/badge"
	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/persistence/memory"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
	"github.com/streamhub/stream-community-hub/pkg/timeutil"
)

type queryFixture struct {
	store    *memory.SessionStore
	provider *RollupProvider
	clock    *clock.Fixed
}

func newQueryFixture(t *testing.T, cache RollupCache) *queryFixture {
	t.Helper()
	store := memory.NewSessionStore()
	fixed := clock.NewFixed(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC))
	log := logger.New(logger.Options{Level: logger.LevelError})
	provider := NewRollupProvider(store, stats.NewAggregator(timeutil.UTC), cache, fixed, log)
	return &queryFixture{store: store, provider: provider, clock: fixed}
}

func (fx *queryFixture) seed(t *testing.T, id, member string, start time.Time, d time.Duration) {
	t.Helper()
	require.NoError(t, fx.store.Append(context.Background(), &session.Session{
		ID:        id,
		GuildID:   "g1",
		MemberID:  shared.MemberID(member),
		Game:      "game",
		StartedAt: start,
		EndedAt:   start.Add(d),
		Source:    session.SourcePresence,
	}))
}

func TestGetMemberStats(t *testing.T) {
	fx := newQueryFixture(t, nil)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)

	fx.seed(t, "s1", "alice", t0, 2*time.Hour)
	fx.seed(t, "s2", "alice", t0.AddDate(0, 0, -20), time.Hour)

	handler := NewGetMemberStatsHandler(fx.provider)

	r, err := handler.Handle(ctx, GetMemberStats{GuildID: "g1", MemberID: "alice", Window: "7d"})
	require.NoError(t, err)
	assert.Equal(t, int64(2*3600), r.TotalSeconds)
	assert.Equal(t, 2, r.LifetimeSessions)

	_, err = handler.Handle(ctx, GetMemberStats{GuildID: "", MemberID: "alice"})
	require.Error(t, err)

	_, err = handler.Handle(ctx, GetMemberStats{GuildID: "g1", MemberID: "alice", Window: "fortnight"})
	require.Error(t, err)
}

func TestGetTopStreamers(t *testing.T) {
	fx := newQueryFixture(t, nil)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)

	// alice: most hours in one session. bob: most sessions.
	fx.seed(t, "a1", "alice", t0, 5*time.Hour)
	fx.seed(t, "b1", "bob", t0, time.Hour)
	fx.seed(t, "b2", "bob", t0.AddDate(0, 0, -1), time.Hour)
	fx.seed(t, "b3", "bob", t0.AddDate(0, 0, -2), time.Hour)

	handler := NewGetTopStreamersHandler(fx.provider)

	byTime, err := handler.Handle(ctx, GetTopStreamers{GuildID: "g1", By: RankByTime, Limit: 10})
	require.NoError(t, err)
	require.Len(t, byTime, 2)
	assert.Equal(t, shared.MemberID("alice"), byTime[0].MemberID)
	assert.Equal(t, 1, byTime[0].Rank)

	byCount, err := handler.Handle(ctx, GetTopStreamers{GuildID: "g1", By: RankByCount, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, shared.MemberID("bob"), byCount[0].MemberID)

	_, err = handler.Handle(ctx, GetTopStreamers{GuildID: "g1", By: "fame"})
	require.Error(t, err)
}

func TestGetBadgesAndAchievements(t *testing.T) {
	fx := newQueryFixture(t, nil)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 9, 8, 0, 0, 0, time.UTC)

	// 11 hours in one session earns first_stream, hours_10 and week_8h.
	fx.seed(t, "a1", "alice", t0, 11*time.Hour)

	badges := NewGetBadgesHandler(fx.provider, badge.NewEngine(badge.DefaultBadges()))
	report, err := badges.Handle(ctx, GetBadges{GuildID: "g1", MemberID: "alice", IncludeProgress: true})
	require.NoError(t, err)

	ids := make([]string, 0, len(report.Earned))
	for _, e := range report.Earned {
		ids = append(ids, e.Badge.ID)
	}
	assert.Contains(t, ids, "first_stream")
	assert.Contains(t, ids, "hours_10")
	assert.Contains(t, ids, "week_8h")
	assert.Contains(t, ids, "marathon_session")
	assert.Len(t, report.Progress, len(badge.DefaultBadges()))

	achievements := NewGetAchievementsHandler(fx.provider, badge.NewAchievementEngine(badge.DefaultAchievements(), timeutil.UTC))
	awards, err := achievements.Handle(ctx, GetAchievements{GuildID: "g1"})
	require.NoError(t, err)

	holders := make(map[string]shared.MemberID)
	for _, a := range awards {
		holders[a.Achievement.ID] = a.MemberID
	}
	assert.Equal(t, shared.MemberID("alice"), holders["marathon_king"])
	assert.Equal(t, shared.MemberID("alice"), holders["time_champion"])
}

func TestAnalyticsQueries(t *testing.T) {
	fx := newQueryFixture(t, nil)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC)

	for d := 0; d < 3; d++ {
		fx.seed(t, "a"+string(rune('0'+d)), "alice", t0.AddDate(0, 0, -d), 2*time.Hour)
	}
	fx.seed(t, "b1", "bob", t0.Add(-10*time.Hour), 2*time.Hour)

	handler := NewAnalyticsHandler(fx.provider, analytics.NewEngine(timeutil.UTC))

	hm, err := handler.Heatmap(ctx, GetHeatmap{GuildID: "g1", Window: "7d"})
	require.NoError(t, err)
	assert.Equal(t, 2, hm.Streamers)
	assert.Equal(t, int64(8*3600), hm.TotalSeconds)

	prediction, err := handler.SchedulePrediction(ctx, GetSchedulePrediction{GuildID: "g1", MemberID: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, prediction.TopSlots)
	assert.Equal(t, 20, prediction.TopSlots[0].Hour)
	require.Len(t, prediction.GrowthSlots, 2)
	assert.Equal(t, 10, prediction.GrowthSlots[0].Hour)
	assert.Equal(t, 11, prediction.GrowthSlots[1].Hour)

	_, err = handler.SchedulePrediction(ctx, GetSchedulePrediction{GuildID: "g1", MemberID: "bob"})
	assert.ErrorIs(t, err, shared.ErrInsufficientData)

	overlap, err := handler.Overlap(ctx, GetAudienceOverlap{GuildID: "g1", MemberA: "alice", MemberB: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 0.0, overlap.Score)
	assert.Equal(t, int64(0), overlap.OverlapSeconds)

	suggestions, err := handler.Collaborations(ctx, GetCollaborationSuggestions{GuildID: "g1", MemberID: "alice"})
	require.NoError(t, err)
	require.Len(t, suggestions, 1)
	assert.Equal(t, shared.MemberID("bob"), suggestions[0].MemberID)

	health, err := handler.CommunityHealth(ctx, GetCommunityHealth{GuildID: "g1", Window: "7d"})
	require.NoError(t, err)
	assert.Greater(t, health.Score, 0.0)
	assert.NotEmpty(t, health.Grade)
}

// countingCache tracks hits and misses around the provider.
type countingCache struct {
	guilds  map[string]*stats.GuildRollup
	members map[string]*stats.MemberRollup
	sets    int
}

func newCountingCache() *countingCache {
	return &countingCache{
		guilds:  make(map[string]*stats.GuildRollup),
		members: make(map[string]*stats.MemberRollup),
	}
}

func guildCacheKey(g shared.GuildID, w shared.Window, v int64) string {
	return string(g) + "/" + string(w) + "/" + string(rune(v))
}

func (c *countingCache) GetGuild(_ context.Context, g shared.GuildID, w shared.Window, v int64) (*stats.GuildRollup, bool, error) {
	r, ok := c.guilds[guildCacheKey(g, w, v)]
	return r, ok, nil
}

func (c *countingCache) SetGuild(_ context.Context, r *stats.GuildRollup, v int64) error {
	c.guilds[guildCacheKey(r.GuildID, r.Window, v)] = r
	c.sets++
	return nil
}

func (c *countingCache) GetMember(_ context.Context, g shared.GuildID, m shared.MemberID, w shared.Window, v int64) (*stats.MemberRollup, bool, error) {
	r, ok := c.members[guildCacheKey(g, w, v)+"/"+string(m)]
	return r, ok, nil
}

func (c *countingCache) SetMember(_ context.Context, r *stats.MemberRollup, v int64) error {
	c.members[guildCacheKey(r.GuildID, r.Window, v)+"/"+string(r.MemberID)] = r
	c.sets++
	return nil
}

func TestRollupProvider_CachesByVersion(t *testing.T) {
	cache := newCountingCache()
	fx := newQueryFixture(t, cache)
	ctx := context.Background()
	t0 := time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)

	fx.seed(t, "s1", "alice", t0, time.Hour)

	_, err := fx.provider.GuildRollup(ctx, "g1", shared.WindowAll)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from cache.
	_, err = fx.provider.GuildRollup(ctx, "g1", shared.WindowAll)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	// A new session bumps the version: the next read recomputes.
	fx.seed(t, "s2", "alice", t0.Add(2*time.Hour), time.Hour)
	r, err := fx.provider.GuildRollup(ctx, "g1", shared.WindowAll)
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets)
	assert.Equal(t, 2, r.SessionCount)
}
