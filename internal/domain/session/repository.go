package session

import (
	"context"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// QueryFilter narrows a session lookup. Zero values mean "no constraint".
type QueryFilter struct {
	// MemberID limits results to a single member when set.
	MemberID shared.MemberID

	// From is the inclusive lower bound on EndedAt.
	From time.Time

	// To is the exclusive upper bound on StartedAt.
	To time.Time
}

// Matches reports whether the session passes the filter.
func (f QueryFilter) Matches(s *Session) bool {
	if f.MemberID.IsValid() && s.MemberID != f.MemberID {
		return false
	}
	if !f.From.IsZero() && s.EndedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !s.StartedAt.Before(f.To) {
		return false
	}
	return true
}

// Store persists closed sessions per guild.
//
// Implementations must make Append idempotent on session ID so that the
// write backlog can replay safely, and must bump the guild version on every
// mutation so cached rollups can be invalidated.
type Store interface {
	// Append stores a closed session. Re-appending the same session ID is a
	// no-op. Returns an error wrapping shared.ErrStoreUnavailable when the
	// backend cannot be reached.
	Append(ctx context.Context, s *Session) error

	// Query returns sessions of a guild matching the filter, ordered by
	// StartedAt ascending.
	Query(ctx context.Context, guildID shared.GuildID, filter QueryFilter) ([]*Session, error)

	// Prune removes sessions that ended before cutoff and returns how many
	// were removed.
	Prune(ctx context.Context, guildID shared.GuildID, cutoff time.Time) (int, error)

	// Version returns a counter that changes whenever the guild's session
	// set changes. Used as a cache key component.
	Version(ctx context.Context, guildID shared.GuildID) (int64, error)

	// ResetGuild removes all sessions of a guild.
	ResetGuild(ctx context.Context, guildID shared.GuildID) error

	// Guilds lists guilds that currently have stored sessions.
	Guilds(ctx context.Context) ([]shared.GuildID, error)
}
