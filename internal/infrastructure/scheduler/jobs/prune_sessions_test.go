package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/persistence/memory"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) pruned() []shared.SessionsPruned {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.SessionsPruned
	for _, e := range p.events {
		if sp, ok := e.(shared.SessionsPruned); ok {
			out = append(out, sp)
		}
	}
	return out
}

func TestPruneSessions_RemovesOldHistoryAcrossGuilds(t *testing.T) {
	store := memory.NewSessionStore()
	publisher := &recordingPublisher{}
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	fixed := clock.NewFixed(now)
	log := logger.New(logger.Options{Level: logger.LevelError})
	ctx := context.Background()

	seed := func(id, guild string, age time.Duration) {
		start := now.Add(-age)
		require.NoError(t, store.Append(ctx, &session.Session{
			ID: id, GuildID: shared.GuildID(guild), MemberID: "alice", Game: "x",
			StartedAt: start, EndedAt: start.Add(time.Hour), Source: session.SourcePresence,
		}))
	}
	seed("g1-old", "g1", 100*24*time.Hour)
	seed("g1-new", "g1", 24*time.Hour)
	seed("g2-old", "g2", 120*24*time.Hour)

	job := NewPruneSessions(store, publisher, fixed, log, 90*24*time.Hour)
	require.Equal(t, "prune_sessions", job.Name())
	require.NoError(t, job.Run(ctx))

	g1, _ := store.Query(ctx, "g1", session.QueryFilter{})
	require.Len(t, g1, 1)
	assert.Equal(t, "g1-new", g1[0].ID)

	g2, _ := store.Query(ctx, "g2", session.QueryFilter{})
	assert.Empty(t, g2)

	pruned := publisher.pruned()
	require.Len(t, pruned, 2)
	total := pruned[0].Removed + pruned[1].Removed
	assert.Equal(t, 2, total)
}

// faultyStore fails pruning for one guild while delegating everything
// else to the wrapped store.
type faultyStore struct {
	session.Store
	fail shared.GuildID
}

func (f *faultyStore) Prune(ctx context.Context, guildID shared.GuildID, cutoff time.Time) (int, error) {
	if guildID == f.fail {
		return 0, errors.New("prune backend offline")
	}
	return f.Store.Prune(ctx, guildID, cutoff)
}

func TestPruneSessions_OneGuildFailureDoesNotStallOthers(t *testing.T) {
	inner := memory.NewSessionStore()
	store := &faultyStore{Store: inner, fail: "g1"}
	publisher := &recordingPublisher{}
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	log := logger.New(logger.Options{Level: logger.LevelError})
	ctx := context.Background()

	seed := func(id, guild string) {
		start := now.Add(-120 * 24 * time.Hour)
		require.NoError(t, inner.Append(ctx, &session.Session{
			ID: id, GuildID: shared.GuildID(guild), MemberID: "alice", Game: "x",
			StartedAt: start, EndedAt: start.Add(time.Hour), Source: session.SourcePresence,
		}))
	}
	seed("g1-old", "g1")
	seed("g2-old", "g2")
	seed("g3-old", "g3")

	job := NewPruneSessions(store, publisher, clock.NewFixed(now), log, 90*24*time.Hour)
	err := job.Run(ctx)
	require.Error(t, err)

	// The healthy guilds were still pruned.
	g2, _ := inner.Query(ctx, "g2", session.QueryFilter{})
	assert.Empty(t, g2)
	g3, _ := inner.Query(ctx, "g3", session.QueryFilter{})
	assert.Empty(t, g3)
	g1, _ := inner.Query(ctx, "g1", session.QueryFilter{})
	assert.Len(t, g1, 1)
}

func TestPruneSessions_QuietGuildPublishesNothing(t *testing.T) {
	store := memory.NewSessionStore()
	publisher := &recordingPublisher{}
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	log := logger.New(logger.Options{Level: logger.LevelError})
	ctx := context.Background()

	start := now.Add(-24 * time.Hour)
	require.NoError(t, store.Append(ctx, &session.Session{
		ID: "fresh", GuildID: "g1", MemberID: "alice", Game: "x",
		StartedAt: start, EndedAt: start.Add(time.Hour), Source: session.SourcePresence,
	}))

	job := NewPruneSessions(store, publisher, clock.NewFixed(now), log, 90*24*time.Hour)
	require.NoError(t, job.Run(ctx))
	assert.Empty(t, publisher.pruned())
}
