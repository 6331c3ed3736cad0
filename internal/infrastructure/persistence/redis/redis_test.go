package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
)

func setupClient(t *testing.T) (*goredis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRollupCache_GuildRoundTrip(t *testing.T) {
	client, _ := setupClient(t)
	cache := NewRollupCache(client, time.Minute)
	ctx := context.Background()

	rollup := &stats.GuildRollup{
		GuildID:      "g1",
		Window:       shared.WindowWeek,
		TotalSeconds: 7200,
		SessionCount: 3,
		Members: map[shared.MemberID]*stats.MemberRollup{
			"alice": {GuildID: "g1", MemberID: "alice", Window: shared.WindowWeek, TotalSeconds: 7200, SessionCount: 3},
		},
	}

	_, hit, err := cache.GetGuild(ctx, "g1", shared.WindowWeek, 4)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, cache.SetGuild(ctx, rollup, 4))

	got, hit, err := cache.GetGuild(ctx, "g1", shared.WindowWeek, 4)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, int64(7200), got.TotalSeconds)
	assert.Equal(t, int64(7200), got.Members["alice"].TotalSeconds)
}

func TestRollupCache_VersionBumpMisses(t *testing.T) {
	client, _ := setupClient(t)
	cache := NewRollupCache(client, time.Minute)
	ctx := context.Background()

	rollup := &stats.GuildRollup{GuildID: "g1", Window: shared.WindowWeek, SessionCount: 1}
	require.NoError(t, cache.SetGuild(ctx, rollup, 4))

	// A store mutation moved the version: the old entry is invisible.
	_, hit, err := cache.GetGuild(ctx, "g1", shared.WindowWeek, 5)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestRollupCache_MemberRoundTrip(t *testing.T) {
	client, _ := setupClient(t)
	cache := NewRollupCache(client, time.Minute)
	ctx := context.Background()

	rollup := &stats.MemberRollup{
		GuildID:           "g1",
		MemberID:          "alice",
		Window:            shared.WindowAll,
		TotalSeconds:      3600,
		SessionCount:      1,
		CurrentStreakDays: 2,
	}
	require.NoError(t, cache.SetMember(ctx, rollup, 7))

	got, hit, err := cache.GetMember(ctx, "g1", "alice", shared.WindowAll, 7)
	require.NoError(t, err)
	require.True(t, hit)
	assert.Equal(t, 2, got.CurrentStreakDays)
}

func TestRollupCache_EntriesExpire(t *testing.T) {
	client, mr := setupClient(t)
	cache := NewRollupCache(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.SetGuild(ctx, &stats.GuildRollup{GuildID: "g1", Window: shared.WindowAll}, 1))
	mr.FastForward(2 * time.Minute)

	_, hit, err := cache.GetGuild(ctx, "g1", shared.WindowAll, 1)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestPresenceTracker_MarkAndClear(t *testing.T) {
	client, _ := setupClient(t)
	tracker := NewPresenceTracker(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, tracker.MarkStreaming(ctx, "g1", "alice", "Factorio"))
	require.NoError(t, tracker.MarkStreaming(ctx, "g1", "bob", "Hades"))

	live, err := tracker.Streaming(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, map[shared.MemberID]string{"alice": "Factorio", "bob": "Hades"}, live)

	n, err := tracker.StreamingCount(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, tracker.ClearStreaming(ctx, "g1", "alice"))
	live, err = tracker.Streaming(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, map[shared.MemberID]string{"bob": "Hades"}, live)
}

func TestPresenceTracker_EntriesAgeOut(t *testing.T) {
	client, mr := setupClient(t)
	tracker := NewPresenceTracker(client, time.Minute)
	ctx := context.Background()

	require.NoError(t, tracker.MarkStreaming(ctx, "g1", "alice", "Factorio"))
	mr.FastForward(2 * time.Minute)

	live, err := tracker.Streaming(ctx, "g1")
	require.NoError(t, err)
	assert.Empty(t, live)
}
