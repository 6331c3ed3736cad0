// Package memory provides an in-memory session store. It backs tests and
// single-process deployments that do not need durability.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// guildState holds one guild's sessions behind its own lock so guilds do
// not contend with each other.
type guildState struct {
	mu         sync.RWMutex
	sessions   []*session.Session
	byID       map[string]bool
	byInterval map[intervalKey]bool
	version    int64
}

// intervalKey identifies a session by its member and exact interval, so a
// replayed event stream carrying fresh IDs cannot double-store it.
type intervalKey struct {
	member     shared.MemberID
	start, end int64
}

func intervalOf(s *session.Session) intervalKey {
	return intervalKey{member: s.MemberID, start: s.StartedAt.UnixNano(), end: s.EndedAt.UnixNano()}
}

// SessionStore is an in-memory implementation of session.Store.
type SessionStore struct {
	mu     sync.RWMutex
	guilds map[shared.GuildID]*guildState
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{guilds: make(map[shared.GuildID]*guildState)}
}

func (s *SessionStore) guild(guildID shared.GuildID, create bool) *guildState {
	s.mu.RLock()
	g := s.guilds[guildID]
	s.mu.RUnlock()
	if g != nil || !create {
		return g
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g = s.guilds[guildID]; g == nil {
		g = &guildState{byID: make(map[string]bool), byInterval: make(map[intervalKey]bool)}
		s.guilds[guildID] = g
	}
	return g
}

// Append stores a closed session. Duplicate IDs and duplicate
// member/start/end intervals are ignored.
func (s *SessionStore) Append(_ context.Context, sess *session.Session) error {
	if !sess.IsValid() {
		return shared.NewInvalidEventError("memory", "SessionStore.Append", "invalid session")
	}
	g := s.guild(sess.GuildID, true)

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.byID[sess.ID] || g.byInterval[intervalOf(sess)] {
		return nil
	}
	g.byID[sess.ID] = true
	g.byInterval[intervalOf(sess)] = true

	// Keep the slice ordered by start time; appends are near-sorted so the
	// search is usually a no-op.
	i := sort.Search(len(g.sessions), func(i int) bool {
		return g.sessions[i].StartedAt.After(sess.StartedAt)
	})
	g.sessions = append(g.sessions, nil)
	copy(g.sessions[i+1:], g.sessions[i:])
	g.sessions[i] = sess
	g.version++
	return nil
}

// Query returns matching sessions ordered by start time.
func (s *SessionStore) Query(_ context.Context, guildID shared.GuildID, filter session.QueryFilter) ([]*session.Session, error) {
	g := s.guild(guildID, false)
	if g == nil {
		return nil, nil
	}

	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []*session.Session
	for _, sess := range g.sessions {
		if filter.Matches(sess) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// Prune removes sessions that ended before cutoff.
func (s *SessionStore) Prune(_ context.Context, guildID shared.GuildID, cutoff time.Time) (int, error) {
	g := s.guild(guildID, false)
	if g == nil {
		return 0, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	kept := g.sessions[:0]
	removed := 0
	for _, sess := range g.sessions {
		if sess.EndedAt.Before(cutoff) {
			delete(g.byID, sess.ID)
			delete(g.byInterval, intervalOf(sess))
			removed++
			continue
		}
		kept = append(kept, sess)
	}
	g.sessions = kept
	if removed > 0 {
		g.version++
	}
	return removed, nil
}

// Version returns the guild's mutation counter.
func (s *SessionStore) Version(_ context.Context, guildID shared.GuildID) (int64, error) {
	g := s.guild(guildID, false)
	if g == nil {
		return 0, nil
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.version, nil
}

// ResetGuild wipes a guild's history.
func (s *SessionStore) ResetGuild(_ context.Context, guildID shared.GuildID) error {
	g := s.guild(guildID, false)
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions = nil
	g.byID = make(map[string]bool)
	g.byInterval = make(map[intervalKey]bool)
	g.version++
	return nil
}

// Guilds lists guilds with at least one stored session.
func (s *SessionStore) Guilds(_ context.Context) ([]shared.GuildID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]shared.GuildID, 0, len(s.guilds))
	for id, g := range s.guilds {
		g.mu.RLock()
		n := len(g.sessions)
		g.mu.RUnlock()
		if n > 0 {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
