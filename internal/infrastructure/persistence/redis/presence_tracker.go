package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
)

// DefaultPresenceTTL is how long a presence entry survives without a
// refresh. The tracker re-marks members on updates, so entries of crashed
// processes age out on their own.
const DefaultPresenceTTL = 10 * time.Minute

// PresenceTracker mirrors who is streaming right now into Redis so other
// processes (bot commands, dashboards) can read it cheaply.
type PresenceTracker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceTracker creates a PresenceTracker. Non-positive ttl falls
// back to the default.
func NewPresenceTracker(client *redis.Client, ttl time.Duration) *PresenceTracker {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceTracker{client: client, ttl: ttl}
}

func presenceKey(guildID shared.GuildID) string {
	return fmt.Sprintf("presence:%s", guildID)
}

// MarkStreaming records that a member is live, with the game they stream.
func (p *PresenceTracker) MarkStreaming(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, game string) error {
	key := presenceKey(guildID)
	pipe := p.client.TxPipeline()
	pipe.HSet(ctx, key, memberID.String(), game)
	pipe.Expire(ctx, key, p.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence mark: %w", err)
	}
	return nil
}

// ClearStreaming removes a member from the live set.
func (p *PresenceTracker) ClearStreaming(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID) error {
	if err := p.client.HDel(ctx, presenceKey(guildID), memberID.String()).Err(); err != nil {
		return fmt.Errorf("presence clear: %w", err)
	}
	return nil
}

// Streaming returns the guild's live members mapped to their games.
func (p *PresenceTracker) Streaming(ctx context.Context, guildID shared.GuildID) (map[shared.MemberID]string, error) {
	entries, err := p.client.HGetAll(ctx, presenceKey(guildID)).Result()
	if err != nil {
		return nil, fmt.Errorf("presence read: %w", err)
	}
	out := make(map[shared.MemberID]string, len(entries))
	for member, game := range entries {
		out[shared.MemberID(member)] = game
	}
	return out, nil
}

// StreamingCount returns how many members of the guild are live.
func (p *PresenceTracker) StreamingCount(ctx context.Context, guildID shared.GuildID) (int64, error) {
	n, err := p.client.HLen(ctx, presenceKey(guildID)).Result()
	if err != nil {
		return 0, fmt.Errorf("presence count: %w", err)
	}
	return n, nil
}
