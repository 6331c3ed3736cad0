// Package jobs contains the recurring background jobs registered with the
// scheduler.
package jobs

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
	"github.com/streamhub/stream-community-hub/pkg/retry"
)

// DefaultRetention is how long closed sessions are kept.
const DefaultRetention = 90 * 24 * time.Hour

// pruneConcurrency bounds how many guilds are pruned at once.
const pruneConcurrency = 4

// PruneSessions removes sessions older than the retention horizon across
// every guild.
type PruneSessions struct {
	store     session.Store
	publisher shared.EventPublisher
	clock     clock.Clock
	log       *logger.Logger
	retention time.Duration
	retrier   *retry.Retrier
}

// NewPruneSessions creates the job. Non-positive retention falls back to
// the default.
func NewPruneSessions(store session.Store, publisher shared.EventPublisher, clk clock.Clock, log *logger.Logger, retention time.Duration) *PruneSessions {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &PruneSessions{
		store:     store,
		publisher: publisher,
		clock:     clk,
		log:       log.With(logger.Component("prune_sessions")),
		retention: retention,
		retrier:   retry.PruneRetrier(),
	}
}

func (j *PruneSessions) Name() string { return "prune_sessions" }

// Run prunes every guild, a few concurrently.
func (j *PruneSessions) Run(ctx context.Context) error {
	now := j.clock.Now()
	cutoff := now.Add(-j.retention)

	guilds, err := j.store.Guilds(ctx)
	if err != nil {
		return err
	}

	// No shared cancellation: one guild's failed prune must not abort the
	// others mid-run. The failure is reported after every guild had its
	// turn and retried on the next cycle.
	var g errgroup.Group
	g.SetLimit(pruneConcurrency)
	for _, guildID := range guilds {
		guildID := guildID
		g.Go(func() error {
			return j.pruneGuild(ctx, guildID, cutoff, now)
		})
	}
	return g.Wait()
}

func (j *PruneSessions) pruneGuild(ctx context.Context, guildID shared.GuildID, cutoff, now time.Time) error {
	var removed int
	err := j.retrier.Do(ctx, func(ctx context.Context) error {
		n, err := j.store.Prune(ctx, guildID, cutoff)
		if err != nil {
			return retry.Retryable(err)
		}
		removed = n
		return nil
	})
	if err != nil {
		j.log.Warn("prune failed", logger.GuildID(string(guildID)), logger.Err(err))
		return err
	}
	if removed == 0 {
		return nil
	}

	j.log.Info("pruned sessions",
		logger.GuildID(string(guildID)),
		logger.Sessions(removed))

	if j.publisher != nil {
		event := shared.SessionsPruned{GuildID: guildID, Removed: removed, Cutoff: cutoff, At: now}
		if err := j.publisher.Publish(ctx, event); err != nil {
			j.log.Warn("failed to publish sessions.pruned",
				logger.GuildID(string(guildID)), logger.Err(err))
		}
	}
	return nil
}
