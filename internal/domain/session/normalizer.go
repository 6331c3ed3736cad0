package session

import (
	"strings"
	"sync"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

const (
	// DefaultFlapWindow is how long a closed session is held before it is
	// final. A start from the same member inside this window resumes the
	// held session instead of opening a new one, collapsing presence flaps.
	DefaultFlapWindow = 60 * time.Second

	// DefaultMinDuration is the shortest session worth keeping. Shorter
	// sessions are treated as presence noise and dropped.
	DefaultMinDuration = 5 * time.Second
)

type memberKey struct {
	guild  shared.GuildID
	member shared.MemberID
}

// Normalizer validates raw stream events and collapses flapping.
//
// It holds just-closed sessions for a flap window before releasing them.
// The tracker consults Resume on every start event so a quick
// stop/start pair (a reconnect, a presence glitch) merges back into one
// session.
type Normalizer struct {
	mu          sync.Mutex
	flapWindow  time.Duration
	minDuration time.Duration
	held        map[memberKey]*Session
}

// NewNormalizer creates a Normalizer. Non-positive arguments fall back to
// the defaults.
func NewNormalizer(flapWindow, minDuration time.Duration) *Normalizer {
	if flapWindow <= 0 {
		flapWindow = DefaultFlapWindow
	}
	if minDuration <= 0 {
		minDuration = DefaultMinDuration
	}
	return &Normalizer{
		flapWindow:  flapWindow,
		minDuration: minDuration,
		held:        make(map[memberKey]*Session),
	}
}

// Normalize validates and canonicalizes a raw event.
// The returned event has a trimmed game name and a defaulted source.
func (n *Normalizer) Normalize(ev StreamEvent) (StreamEvent, error) {
	const op = "Normalizer.Normalize"

	if !ev.GuildID.IsValid() {
		return ev, shared.NewInvalidEventError("session", op, "missing guild id")
	}
	if !ev.MemberID.IsValid() {
		return ev, shared.NewInvalidEventError("session", op, "missing member id")
	}
	if !ev.Type.IsValid() {
		return ev, shared.NewInvalidEventError("session", op, "unknown event type "+string(ev.Type))
	}
	if ev.Timestamp.IsZero() {
		return ev, shared.NewInvalidEventError("session", op, "missing timestamp")
	}

	ev.Game = strings.TrimSpace(ev.Game)
	if ev.Source == "" {
		ev.Source = SourcePresence
	}
	if !ev.Source.IsValid() {
		return ev, shared.NewInvalidEventError("session", op, "unknown source "+string(ev.Source))
	}
	ev.Timestamp = ev.Timestamp.UTC()
	return ev, nil
}

// Hold parks a just-closed session until its flap window passes.
// A session already held for the member is released first and returned so
// the caller can finalize it.
func (n *Normalizer) Hold(s *Session) *Session {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := memberKey{guild: s.GuildID, member: s.MemberID}
	prev := n.held[key]
	n.held[key] = s
	return prev
}

// Resume returns the held session for the member if a start at the given
// instant falls inside its flap window, removing it from the hold buffer.
// The caller reopens the returned session rather than starting a new one.
// Returns nil when there is nothing to resume.
func (n *Normalizer) Resume(guildID shared.GuildID, memberID shared.MemberID, game string, at time.Time) *Session {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := memberKey{guild: guildID, member: memberID}
	held, ok := n.held[key]
	if !ok {
		return nil
	}
	if at.Sub(held.EndedAt) > n.flapWindow {
		return nil
	}
	if !strings.EqualFold(held.Game, strings.TrimSpace(game)) {
		return nil
	}
	delete(n.held, key)
	return held
}

// Flush releases held sessions whose flap window has passed as of now.
// Sessions shorter than the minimum duration are dropped.
func (n *Normalizer) Flush(now time.Time) []*Session {
	n.mu.Lock()
	defer n.mu.Unlock()

	var ready []*Session
	for key, held := range n.held {
		if now.Sub(held.EndedAt) <= n.flapWindow {
			continue
		}
		delete(n.held, key)
		if held.Duration() < n.minDuration {
			continue
		}
		ready = append(ready, held)
	}
	return ready
}

// FlushAll releases every held session regardless of flap windows.
// Used on shutdown. Sessions shorter than the minimum duration are dropped.
func (n *Normalizer) FlushAll() []*Session {
	n.mu.Lock()
	defer n.mu.Unlock()

	var ready []*Session
	for key, held := range n.held {
		delete(n.held, key)
		if held.Duration() < n.minDuration {
			continue
		}
		ready = append(ready, held)
	}
	return ready
}

// Keep reports whether a finalized session clears the minimum duration.
func (n *Normalizer) Keep(s *Session) bool {
	return s.Duration() >= n.minDuration
}

// HeldCount returns how many sessions are parked in the flap buffer.
func (n *Normalizer) HeldCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.held)
}
