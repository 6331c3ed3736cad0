package session

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
)

// fakeStore is an in-memory Store double with a switchable outage.
type fakeStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	version  int64
	down     bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*Session)}
}

func (f *fakeStore) Append(_ context.Context, s *Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return shared.NewStoreUnavailableError("test", "Append", assert.AnError)
	}
	if _, ok := f.sessions[s.ID]; ok {
		return nil
	}
	f.sessions[s.ID] = s
	f.version++
	return nil
}

func (f *fakeStore) Query(_ context.Context, guildID shared.GuildID, filter QueryFilter) ([]*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*Session
	for _, s := range f.sessions {
		if s.GuildID == guildID && filter.Matches(s) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) Prune(_ context.Context, guildID shared.GuildID, cutoff time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	removed := 0
	for id, s := range f.sessions {
		if s.GuildID == guildID && s.EndedAt.Before(cutoff) {
			delete(f.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		f.version++
	}
	return removed, nil
}

func (f *fakeStore) Version(_ context.Context, _ shared.GuildID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.version, nil
}

func (f *fakeStore) ResetGuild(_ context.Context, guildID shared.GuildID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sessions {
		if s.GuildID == guildID {
			delete(f.sessions, id)
		}
	}
	f.version++
	return nil
}

func (f *fakeStore) Guilds(_ context.Context) ([]shared.GuildID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := make(map[shared.GuildID]bool)
	var out []shared.GuildID
	for _, s := range f.sessions {
		if !seen[s.GuildID] {
			seen[s.GuildID] = true
			out = append(out, s.GuildID)
		}
	}
	return out, nil
}

func (f *fakeStore) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down = down
}

func (f *fakeStore) all() []*Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*Session, 0, len(f.sessions))
	for _, s := range f.sessions {
		out = append(out, s)
	}
	return out
}

// capturePublisher records published events.
type capturePublisher struct {
	mu     sync.Mutex
	events []shared.Event
}

func (p *capturePublisher) Publish(_ context.Context, event shared.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) finalized() []shared.SessionFinalized {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []shared.SessionFinalized
	for _, e := range p.events {
		if f, ok := e.(shared.SessionFinalized); ok {
			out = append(out, f)
		}
	}
	return out
}

type trackerFixture struct {
	tracker   *Tracker
	store     *fakeStore
	publisher *capturePublisher
	clock     *clock.Fixed
}

func newTrackerFixture(t *testing.T) *trackerFixture {
	t.Helper()
	store := newFakeStore()
	pub := &capturePublisher{}
	fixed := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	norm := NewNormalizer(60*time.Second, 5*time.Second)
	log := logger.New(logger.Options{Level: logger.LevelError})
	tracker := NewTracker(norm, store, pub, log, WithTrackerClock(fixed))
	return &trackerFixture{tracker: tracker, store: store, publisher: pub, clock: fixed}
}

func (fx *trackerFixture) event(typ EventType, member string, game string) StreamEvent {
	return StreamEvent{
		GuildID:   "guild-1",
		MemberID:  shared.MemberID(member),
		Type:      typ,
		Game:      game,
		Timestamp: fx.clock.Now(),
	}
}

func TestTracker_StartStopProducesSession(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Elden Ring")))
	assert.Equal(t, 1, fx.tracker.OpenCount())

	fx.clock.Advance(2 * time.Hour)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))
	assert.Equal(t, 0, fx.tracker.OpenCount())

	// Still inside the flap window, nothing persisted yet.
	assert.Empty(t, fx.store.all())

	fx.clock.Advance(2 * time.Minute)
	require.NoError(t, fx.tracker.Flush(ctx))

	sessions := fx.store.all()
	require.Len(t, sessions, 1)
	assert.Equal(t, shared.MemberID("alice"), sessions[0].MemberID)
	assert.Equal(t, "Elden Ring", sessions[0].Game)
	assert.Equal(t, int64(7200), sessions[0].Seconds())

	finalized := fx.publisher.finalized()
	require.Len(t, finalized, 1)
	assert.Equal(t, sessions[0].ID, finalized[0].SessionID)
}

func TestTracker_FlapCollapsesIntoOneSession(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(30 * time.Minute)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))

	// Reconnect 20 seconds later, inside the flap window.
	fx.clock.Advance(20 * time.Second)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	assert.Equal(t, 1, fx.tracker.OpenCount())

	fx.clock.Advance(30 * time.Minute)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))
	fx.clock.Advance(2 * time.Minute)
	require.NoError(t, fx.tracker.Flush(ctx))

	sessions := fx.store.all()
	require.Len(t, sessions, 1)
	// One merged session spanning the full hour, flap gap included.
	assert.Equal(t, int64(3600+20), sessions[0].Seconds())
}

func TestTracker_StopStartPastFlapWindowSplits(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(10 * time.Minute)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))

	fx.clock.Advance(5 * time.Minute)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(10 * time.Minute)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))

	fx.clock.Advance(2 * time.Minute)
	require.NoError(t, fx.tracker.Flush(ctx))
	assert.Len(t, fx.store.all(), 2)
}

func TestTracker_GameSwitchSplitsSession(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(time.Hour)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventUpdate, "alice", "Stardew Valley")))
	assert.Equal(t, 1, fx.tracker.OpenCount())

	fx.clock.Advance(time.Hour)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))
	fx.clock.Advance(2 * time.Minute)
	require.NoError(t, fx.tracker.Flush(ctx))

	sessions := fx.store.all()
	require.Len(t, sessions, 2)
	games := map[string]int64{}
	for _, s := range sessions {
		games[s.Game] = s.Seconds()
	}
	assert.Equal(t, int64(3600), games["Factorio"])
	assert.Equal(t, int64(3600), games["Stardew Valley"])
}

func TestTracker_ShortSessionDropped(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(3 * time.Second)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))

	fx.clock.Advance(2 * time.Minute)
	require.NoError(t, fx.tracker.Flush(ctx))
	assert.Empty(t, fx.store.all())
	assert.Empty(t, fx.publisher.finalized())
}

func TestTracker_DuplicateStartIgnored(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(time.Minute)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	assert.Equal(t, 1, fx.tracker.OpenCount())
}

func TestTracker_BackdatedStopDroppedWithDiagnostic(t *testing.T) {
	var buf bytes.Buffer
	store := newFakeStore()
	fixed := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	log := logger.New(logger.Options{Output: &buf, Level: logger.LevelWarn, AddCaller: false})
	tracker := NewTracker(NewNormalizer(0, 0), store, &capturePublisher{}, log,
		WithTrackerClock(fixed))
	ctx := context.Background()

	require.NoError(t, tracker.HandleEvent(ctx, StreamEvent{
		GuildID: "guild-1", MemberID: "alice", Type: EventStart,
		Game: "Factorio", Timestamp: fixed.Now(),
	}))
	require.NoError(t, tracker.HandleEvent(ctx, StreamEvent{
		GuildID: "guild-1", MemberID: "alice", Type: EventStop,
		Timestamp: fixed.Now().Add(-time.Hour),
	}))

	assert.Equal(t, 0, tracker.OpenCount())
	require.NoError(t, tracker.Flush(ctx))
	assert.Empty(t, store.all())
	assert.Contains(t, buf.String(), "stop that precedes its start")
}

func TestTracker_StopWithoutStartIgnored(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))
	assert.Equal(t, 0, fx.tracker.OpenCount())
	assert.Empty(t, fx.store.all())
}

func TestTracker_InvalidEventRejected(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	err := fx.tracker.HandleEvent(ctx, StreamEvent{
		MemberID:  "alice",
		Type:      EventStart,
		Timestamp: fx.clock.Now(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrInvalidEvent)
}

func TestTracker_SweepStaleCapsDuration(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(30 * time.Hour)

	closed, err := fx.tracker.SweepStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, closed)
	assert.Equal(t, 0, fx.tracker.OpenCount())

	sessions := fx.store.all()
	require.Len(t, sessions, 1)
	assert.Equal(t, int64(24*3600), sessions[0].Seconds())
}

func TestTracker_StoreOutageBuffersAndReplays(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()
	fx.store.setDown(true)

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	fx.clock.Advance(time.Hour)
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStop, "alice", "")))
	fx.clock.Advance(2 * time.Minute)

	// Finalization hits the outage and buffers instead of failing.
	require.Error(t, fx.tracker.Flush(ctx))
	assert.Equal(t, 1, fx.tracker.BacklogSize())
	assert.Empty(t, fx.store.all())

	fx.store.setDown(false)
	require.NoError(t, fx.tracker.FlushBacklog(ctx))
	assert.Equal(t, 0, fx.tracker.BacklogSize())
	assert.Len(t, fx.store.all(), 1)
	assert.Len(t, fx.publisher.finalized(), 1)
}

func TestTracker_ShutdownClosesOpenSessions(t *testing.T) {
	fx := newTrackerFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "alice", "Factorio")))
	require.NoError(t, fx.tracker.HandleEvent(ctx, fx.event(EventStart, "bob", "Hades")))
	fx.clock.Advance(time.Hour)

	require.NoError(t, fx.tracker.Shutdown(ctx))
	assert.Equal(t, 0, fx.tracker.OpenCount())
	assert.Len(t, fx.store.all(), 2)
}
