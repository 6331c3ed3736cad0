// Package query contains the read-side application handlers. They load
// sessions through the cached rollup provider and hand domain engines the
// aggregates they need.
package query

import (
	"context"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
)

// RollupCache is the version-keyed cache the provider reads through.
// Implemented by the Redis rollup cache; nil disables caching.
type RollupCache interface {
	GetGuild(ctx context.Context, guildID shared.GuildID, window shared.Window, version int64) (*stats.GuildRollup, bool, error)
	SetGuild(ctx context.Context, rollup *stats.GuildRollup, version int64) error
	GetMember(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, window shared.Window, version int64) (*stats.MemberRollup, bool, error)
	SetMember(ctx context.Context, rollup *stats.MemberRollup, version int64) error
}

// RollupProvider computes rollups on demand, reading through the cache.
type RollupProvider struct {
	store      session.Store
	aggregator *stats.Aggregator
	cache      RollupCache
	clock      clock.Clock
	log        *logger.Logger
}

// NewRollupProvider creates a provider. cache may be nil.
func NewRollupProvider(store session.Store, aggregator *stats.Aggregator, cache RollupCache, clk clock.Clock, log *logger.Logger) *RollupProvider {
	return &RollupProvider{
		store:      store,
		aggregator: aggregator,
		cache:      cache,
		clock:      clk,
		log:        log.With(logger.Component("rollup_provider")),
	}
}

// GuildRollup returns the guild's aggregate for the window.
func (p *RollupProvider) GuildRollup(ctx context.Context, guildID shared.GuildID, window shared.Window) (*stats.GuildRollup, error) {
	version, err := p.store.Version(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if cached, hit, err := p.cache.GetGuild(ctx, guildID, window, version); err == nil && hit {
			return cached, nil
		} else if err != nil {
			p.log.Warn("cache read failed", logger.GuildID(string(guildID)), logger.Err(err))
		}
	}

	sessions, err := p.store.Query(ctx, guildID, session.QueryFilter{})
	if err != nil {
		return nil, err
	}
	rollup := p.aggregator.GuildRollup(guildID, sessions, window, p.clock.Now())

	if p.cache != nil {
		if err := p.cache.SetGuild(ctx, rollup, version); err != nil {
			p.log.Warn("cache write failed", logger.GuildID(string(guildID)), logger.Err(err))
		}
	}
	return rollup, nil
}

// MemberRollup returns one member's aggregate for the window.
func (p *RollupProvider) MemberRollup(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID, window shared.Window) (*stats.MemberRollup, error) {
	version, err := p.store.Version(ctx, guildID)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if cached, hit, err := p.cache.GetMember(ctx, guildID, memberID, window, version); err == nil && hit {
			return cached, nil
		} else if err != nil {
			p.log.Warn("cache read failed", logger.GuildID(string(guildID)), logger.Err(err))
		}
	}

	sessions, err := p.store.Query(ctx, guildID, session.QueryFilter{MemberID: memberID})
	if err != nil {
		return nil, err
	}
	rollup := p.aggregator.MemberRollup(guildID, memberID, sessions, window, p.clock.Now())

	if p.cache != nil {
		if err := p.cache.SetMember(ctx, rollup, version); err != nil {
			p.log.Warn("cache write failed", logger.GuildID(string(guildID)), logger.Err(err))
		}
	}
	return rollup, nil
}

// Sessions returns a guild's raw sessions, optionally for one member.
func (p *RollupProvider) Sessions(ctx context.Context, guildID shared.GuildID, memberID shared.MemberID) ([]*session.Session, error) {
	return p.store.Query(ctx, guildID, session.QueryFilter{MemberID: memberID})
}

// Now exposes the provider's clock to handlers sharing its notion of time.
func (p *RollupProvider) Now() clock.Clock {
	return p.clock
}

func parseQueryWindow(raw string) (shared.Window, error) {
	if raw == "" {
		return shared.WindowAll, nil
	}
	window, err := shared.ParseWindow(raw)
	if err != nil {
		return "", shared.NewInvalidEventError("query", "parseWindow", err.Error())
	}
	return window, nil
}

func requireGuildMember(guildID, memberID string) (shared.GuildID, shared.MemberID, error) {
	g, m := shared.GuildID(guildID), shared.MemberID(memberID)
	if !g.IsValid() {
		return "", "", shared.NewInvalidEventError("query", "validate", "missing guild id")
	}
	if !m.IsValid() {
		return "", "", shared.NewInvalidEventError("query", "validate", "missing member id")
	}
	return g, m, nil
}
