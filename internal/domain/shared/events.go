package shared

import (
	"context"
	"time"
)

// Event is a fact published on the in-process event bus after it happened.
type Event interface {
	// EventName returns the topic the event is published under.
	EventName() string

	// OccurredAt returns when the event happened.
	OccurredAt() time.Time
}

// EventHandler consumes published events.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher decouples domain services from the bus implementation.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}

// ═══════════════════════════════════════════════════════════════════════════
// Session lifecycle events
// ═══════════════════════════════════════════════════════════════════════════

// SessionFinalized is published when a closed session has been persisted.
// Badge and achievement evaluation subscribe to this event.
type SessionFinalized struct {
	GuildID   GuildID
	MemberID  MemberID
	SessionID string
	Game      string
	StartedAt time.Time
	EndedAt   time.Time
	At        time.Time
}

func (e SessionFinalized) EventName() string     { return "session.finalized" }
func (e SessionFinalized) OccurredAt() time.Time { return e.At }

// SessionsPruned is published after retention pruning removed old sessions.
type SessionsPruned struct {
	GuildID GuildID
	Removed int
	Cutoff  time.Time
	At      time.Time
}

func (e SessionsPruned) EventName() string     { return "sessions.pruned" }
func (e SessionsPruned) OccurredAt() time.Time { return e.At }

// GuildReset is published when a guild's history has been wiped.
type GuildReset struct {
	GuildID GuildID
	At      time.Time
}

func (e GuildReset) EventName() string     { return "guild.reset" }
func (e GuildReset) OccurredAt() time.Time { return e.At }
