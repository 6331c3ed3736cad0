// Package session contains the streaming session model: raw presence events,
// open sessions being tracked, and closed sessions ready for aggregation.
package session

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// Source identifies how a stream event was detected: a go-live presence
// signal, or a stream link posted in chat.
type Source string

const (
	SourcePresence     Source = "presence"
	SourceLinkDetected Source = "link_detected"
)

// IsValid reports whether the source is known.
func (s Source) IsValid() bool {
	switch s {
	case SourcePresence, SourceLinkDetected:
		return true
	}
	return false
}

func (s Source) String() string {
	return string(s)
}

// EventType is the kind of presence transition an event describes.
type EventType string

const (
	// EventStart means the member began streaming.
	EventStart EventType = "start"

	// EventStop means the member stopped streaming.
	EventStop EventType = "stop"

	// EventUpdate means the member is still streaming but presence details
	// (typically the game) changed.
	EventUpdate EventType = "update"
)

// IsValid reports whether the event type is known.
func (t EventType) IsValid() bool {
	switch t {
	case EventStart, EventStop, EventUpdate:
		return true
	}
	return false
}

// StreamEvent is a raw presence transition observed by an event source.
type StreamEvent struct {
	GuildID   shared.GuildID
	MemberID  shared.MemberID
	Type      EventType
	Game      string
	Timestamp time.Time
	Source    Source
}

// OpenSession is a stream in progress. It lives only in tracker memory.
type OpenSession struct {
	ID        string
	GuildID   shared.GuildID
	MemberID  shared.MemberID
	Game      string
	StartedAt time.Time
	Source    Source
}

// NewOpenSession opens a session for a member at the given instant.
func NewOpenSession(guildID shared.GuildID, memberID shared.MemberID, game string, startedAt time.Time, source Source) *OpenSession {
	return &OpenSession{
		ID:        uuid.NewString(),
		GuildID:   guildID,
		MemberID:  memberID,
		Game:      strings.TrimSpace(game),
		StartedAt: startedAt,
		Source:    source,
	}
}

// Close converts the open session into a closed one ending at endedAt.
func (o *OpenSession) Close(endedAt time.Time) *Session {
	return &Session{
		ID:        o.ID,
		GuildID:   o.GuildID,
		MemberID:  o.MemberID,
		Game:      o.Game,
		StartedAt: o.StartedAt,
		EndedAt:   endedAt,
		Source:    o.Source,
	}
}

// Session is a closed streaming session, the unit of all aggregation.
type Session struct {
	ID        string
	GuildID   shared.GuildID
	MemberID  shared.MemberID
	Game      string
	StartedAt time.Time
	EndedAt   time.Time
	Source    Source
}

// Duration returns the session length.
func (s *Session) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}

// Seconds returns the session length in whole seconds.
func (s *Session) Seconds() int64 {
	return int64(s.Duration() / time.Second)
}

// Range returns the session interval as a TimeRange.
func (s *Session) Range() shared.TimeRange {
	return shared.TimeRange{From: s.StartedAt, To: s.EndedAt}
}

// IsValid reports whether the session has coherent identity and ordering.
func (s *Session) IsValid() bool {
	return s.ID != "" &&
		s.GuildID.IsValid() &&
		s.MemberID.IsValid() &&
		!s.StartedAt.IsZero() &&
		s.EndedAt.After(s.StartedAt)
}
