package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
)

// DefaultRollupTTL bounds how long a cached rollup may live. Keys carry
// the store version, so the TTL only exists to reclaim superseded entries.
const DefaultRollupTTL = 15 * time.Minute

// RollupCache caches computed rollups keyed by guild, window and store
// version. A mutation bumps the version, which changes every key, so
// stale entries are never served.
type RollupCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRollupCache creates a RollupCache. Non-positive ttl falls back to the
// default.
func NewRollupCache(client *redis.Client, ttl time.Duration) *RollupCache {
	if ttl <= 0 {
		ttl = DefaultRollupTTL
	}
	return &RollupCache{client: client, ttl: ttl}
}

func guildKey(guildID shared.GuildID, window shared.Window, version int64) string {
	return fmt.Sprintf("rollup:guild:%s:%s:v%d", guildID, window, version)
}

func memberKey(guildID shared.GuildID, memberID shared.MemberID, window shared.Window, version int64) string {
	return fmt.Sprintf("rollup:member:%s:%s:%s:v%d", guildID, memberID, window, version)
}

// GetGuild returns the cached guild rollup for the version, if present.
func (c *RollupCache) GetGuild(ctx context.Context, guildID shared.GuildID, window shared.Window, version int64) (*stats.GuildRollup, bool, error) {
	data, err := c.client.Get(ctx, guildKey(guildID, window, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rollup cache get: %w", err)
	}

	var rollup stats.GuildRollup
	if err := json.Unmarshal(data, &rollup); err != nil {
		// A corrupt entry behaves like a miss.
		return nil, false, nil
	}
	return &rollup, true, nil
}

// SetGuild caches a guild rollup under the version it was computed from.
func (c *RollupCache) SetGuild(ctx context.Context, rollup *stats.GuildRollup, version int64) error {
	data, err := json.Marshal(rollup)
	if err != nil {
		return fmt.Errorf("rollup cache marshal: %w", err)
	}
	if err := c.client.Set(ctx, guildKey(rollup.GuildID, rollup.Window, version), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("rollup cache set: %w", err)
	}
	return nil
}

// GetMember returns the cached member rollup for the version, if present.
func (c *RollupCache) GetMember(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, window shared.Window, version int64) (*stats.MemberRollup, bool, error) {
	data, err := c.client.Get(ctx, memberKey(guildID, memberID, window, version)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("rollup cache get: %w", err)
	}

	var rollup stats.MemberRollup
	if err := json.Unmarshal(data, &rollup); err != nil {
		return nil, false, nil
	}
	return &rollup, true, nil
}

// SetMember caches a member rollup under the version it was computed from.
func (c *RollupCache) SetMember(ctx context.Context, rollup *stats.MemberRollup, version int64) error {
	data, err := json.Marshal(rollup)
	if err != nil {
		return fmt.Errorf("rollup cache marshal: %w", err)
	}
	key := memberKey(rollup.GuildID, rollup.MemberID, rollup.Window, version)
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("rollup cache set: %w", err)
	}
	return nil
}
