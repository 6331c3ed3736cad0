package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
	"github.com/streamhub/stream-community-hub/pkg/retry"
)

// DefaultStaleCeiling caps how long a session may stay open without a stop
// event. Sessions older than this are force-closed by the stale sweep.
const DefaultStaleCeiling = 24 * time.Hour

// Tracker is the per-process state machine turning stream events into
// closed sessions.
//
// Open sessions live only in memory. Closed sessions pass through the
// normalizer's flap buffer, then are appended to the store. Appends that
// fail with an unavailable store land in a backlog replayed by the
// flush job.
type Tracker struct {
	mu      sync.Mutex
	open    map[memberKey]*OpenSession
	backlog []*Session

	norm         *Normalizer
	store        Store
	publisher    shared.EventPublisher
	retrier      *retry.Retrier
	clock        clock.Clock
	log          *logger.Logger
	staleCeiling time.Duration
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithStaleCeiling overrides the maximum open session age.
func WithStaleCeiling(d time.Duration) TrackerOption {
	return func(t *Tracker) {
		if d > 0 {
			t.staleCeiling = d
		}
	}
}

// WithTrackerClock overrides the tracker's time source.
func WithTrackerClock(c clock.Clock) TrackerOption {
	return func(t *Tracker) {
		t.clock = c
	}
}

// NewTracker creates a Tracker wired to the given collaborators.
func NewTracker(norm *Normalizer, store Store, publisher shared.EventPublisher, log *logger.Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		open:         make(map[memberKey]*OpenSession),
		norm:         norm,
		store:        store,
		publisher:    publisher,
		retrier:      retry.StoreRetrier(),
		clock:        clock.System{},
		log:          log.With(logger.Component("tracker")),
		staleCeiling: DefaultStaleCeiling,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HandleEvent applies one raw stream event to the state machine.
func (t *Tracker) HandleEvent(ctx context.Context, raw StreamEvent) error {
	ev, err := t.norm.Normalize(raw)
	if err != nil {
		t.log.Warn("dropping invalid event",
			logger.GuildID(string(raw.GuildID)),
			logger.MemberID(string(raw.MemberID)),
			logger.Err(err))
		return err
	}

	t.mu.Lock()
	closed := t.applyLocked(ev)
	t.mu.Unlock()

	return t.finalizeAll(ctx, closed)
}

// applyLocked runs the state transition and returns sessions that became
// final as a side effect. Caller holds t.mu.
func (t *Tracker) applyLocked(ev StreamEvent) []*Session {
	key := memberKey{guild: ev.GuildID, member: ev.MemberID}
	cur := t.open[key]

	switch ev.Type {
	case EventStart:
		if cur != nil {
			if strings.EqualFold(cur.Game, ev.Game) {
				// Duplicate start, already tracking.
				return nil
			}
			// Game changed across a missed stop. Split at the new start.
			held := t.closeLocked(key, cur, ev.Timestamp)
			t.openLocked(key, ev)
			return held
		}
		if resumed := t.norm.Resume(ev.GuildID, ev.MemberID, ev.Game, ev.Timestamp); resumed != nil {
			// Flap collapse: continue the held session as if the stop
			// never happened.
			t.open[key] = &OpenSession{
				ID:        resumed.ID,
				GuildID:   resumed.GuildID,
				MemberID:  resumed.MemberID,
				Game:      resumed.Game,
				StartedAt: resumed.StartedAt,
				Source:    resumed.Source,
			}
			t.log.Debug("resumed flapping session",
				logger.GuildID(string(ev.GuildID)),
				logger.MemberID(string(ev.MemberID)),
				logger.SessionID(resumed.ID))
			return nil
		}
		t.openLocked(key, ev)
		return nil

	case EventStop:
		if cur == nil {
			// Stop without a tracked start, nothing to close.
			return nil
		}
		return t.closeLocked(key, cur, ev.Timestamp)

	case EventUpdate:
		if cur == nil {
			// Presence update for an untracked member counts as a start.
			t.openLocked(key, ev)
			return nil
		}
		if strings.EqualFold(cur.Game, ev.Game) {
			return nil
		}
		// Game switch splits the session at the update instant.
		held := t.closeLocked(key, cur, ev.Timestamp)
		t.openLocked(key, ev)
		return held
	}
	return nil
}

func (t *Tracker) openLocked(key memberKey, ev StreamEvent) {
	t.open[key] = NewOpenSession(ev.GuildID, ev.MemberID, ev.Game, ev.Timestamp, ev.Source)
}

// closeLocked moves an open session into the flap buffer. If holding it
// evicted a previously held session, that one is final and returned.
func (t *Tracker) closeLocked(key memberKey, cur *OpenSession, endedAt time.Time) []*Session {
	delete(t.open, key)
	if !endedAt.After(cur.StartedAt) {
		// Out of order stop, drop the session entirely.
		t.log.Warn("dropping stop that precedes its start",
			logger.GuildID(string(cur.GuildID)),
			logger.MemberID(string(cur.MemberID)),
			logger.Time("started_at", cur.StartedAt),
			logger.Time("ended_at", endedAt))
		return nil
	}
	if evicted := t.norm.Hold(cur.Close(endedAt)); evicted != nil && t.norm.Keep(evicted) {
		return []*Session{evicted}
	}
	return nil
}

// Flush finalizes held sessions whose flap window has passed and replays
// the write backlog. The scheduler calls this periodically.
func (t *Tracker) Flush(ctx context.Context) error {
	now := t.clock.Now()
	ready := t.norm.Flush(now)
	if err := t.finalizeAll(ctx, ready); err != nil {
		return err
	}
	return t.FlushBacklog(ctx)
}

// Shutdown closes every open session at the current instant and drains
// all buffers. Open sessions are closed as interrupted, not discarded.
func (t *Tracker) Shutdown(ctx context.Context) error {
	now := t.clock.Now()

	t.mu.Lock()
	var closed []*Session
	for key, cur := range t.open {
		delete(t.open, key)
		if s := cur.Close(now); t.norm.Keep(s) {
			closed = append(closed, s)
		}
	}
	t.mu.Unlock()

	closed = append(closed, t.norm.FlushAll()...)
	if err := t.finalizeAll(ctx, closed); err != nil {
		return err
	}
	return t.FlushBacklog(ctx)
}

// SweepStale force-closes open sessions older than the stale ceiling,
// capping their duration at the ceiling. Returns how many were closed.
func (t *Tracker) SweepStale(ctx context.Context) (int, error) {
	now := t.clock.Now()

	t.mu.Lock()
	var closed []*Session
	for key, cur := range t.open {
		if now.Sub(cur.StartedAt) <= t.staleCeiling {
			continue
		}
		delete(t.open, key)
		s := cur.Close(cur.StartedAt.Add(t.staleCeiling))
		closed = append(closed, s)
		t.log.Warn("force-closing stale session",
			logger.GuildID(string(s.GuildID)),
			logger.MemberID(string(s.MemberID)),
			logger.SessionID(s.ID),
			logger.Seconds(s.Seconds()))
	}
	t.mu.Unlock()

	return len(closed), t.finalizeAll(ctx, closed)
}

// OpenCount returns how many sessions are currently being tracked.
func (t *Tracker) OpenCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.open)
}

// OpenSessions returns snapshots of the guild's sessions in progress.
func (t *Tracker) OpenSessions(guildID shared.GuildID) []OpenSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []OpenSession
	for key, cur := range t.open {
		if key.guild == guildID {
			out = append(out, *cur)
		}
	}
	return out
}

// BacklogSize returns how many finalized sessions await a reachable store.
func (t *Tracker) BacklogSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.backlog)
}

// FlushBacklog replays buffered appends. Remaining sessions stay buffered
// if the store is still unavailable.
func (t *Tracker) FlushBacklog(ctx context.Context) error {
	t.mu.Lock()
	pending := t.backlog
	t.backlog = nil
	t.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	var firstErr error
	for i, s := range pending {
		if err := t.persist(ctx, s); err != nil {
			t.mu.Lock()
			t.backlog = append(t.backlog, pending[i:]...)
			t.mu.Unlock()
			firstErr = err
			break
		}
		t.publishFinalized(ctx, s)
	}
	if firstErr != nil {
		t.log.Warn("backlog flush interrupted",
			logger.Sessions(t.BacklogSize()),
			logger.Err(firstErr))
	}
	return firstErr
}

func (t *Tracker) finalizeAll(ctx context.Context, sessions []*Session) error {
	var firstErr error
	for _, s := range sessions {
		if err := t.finalize(ctx, s); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// finalize persists one session, buffering it when the store is down.
func (t *Tracker) finalize(ctx context.Context, s *Session) error {
	if err := t.persist(ctx, s); err != nil {
		if errors.Is(err, shared.ErrStoreUnavailable) {
			t.mu.Lock()
			t.backlog = append(t.backlog, s)
			n := len(t.backlog)
			t.mu.Unlock()
			t.log.Warn("store unavailable, session buffered",
				logger.SessionID(s.ID),
				logger.Sessions(n))
			return nil
		}
		return err
	}

	t.log.Info("session finalized",
		logger.GuildID(string(s.GuildID)),
		logger.MemberID(string(s.MemberID)),
		logger.SessionID(s.ID),
		logger.Game(s.Game),
		logger.Seconds(s.Seconds()))

	t.publishFinalized(ctx, s)
	return nil
}

func (t *Tracker) persist(ctx context.Context, s *Session) error {
	return t.retrier.Do(ctx, func(ctx context.Context) error {
		err := t.store.Append(ctx, s)
		if err != nil && errors.Is(err, shared.ErrStoreUnavailable) {
			return retry.Retryable(err)
		}
		return err
	})
}

func (t *Tracker) publishFinalized(ctx context.Context, s *Session) {
	if t.publisher == nil {
		return
	}
	event := shared.SessionFinalized{
		GuildID:   s.GuildID,
		MemberID:  s.MemberID,
		SessionID: s.ID,
		Game:      s.Game,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		At:        t.clock.Now(),
	}
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.log.Warn("failed to publish session.finalized",
			logger.SessionID(s.ID),
			logger.Err(err))
	}
}
