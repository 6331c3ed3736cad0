// Command tracker runs the stream community hub worker: it ingests stream
// events, tracks sessions, and serves rollup, badge and analytics queries
// to embedding integrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/streamhub/stream-community-hub/config"
	"github.com/streamhub/stream-community-hub/internal/application/command"
	"github.com/streamhub/stream-community-hub/internal/application/query"
	"github.com/streamhub/stream-community-hub/internal/domain/analytics"
	"github.com/streamhub/stream-community-hub/internal/domain/badge"
	"github.com/streamhub/stream-community-hub/internal/domain/session"
	"github.com/streamhub/stream-community-hub/internal/domain/shared"
	"github.com/streamhub/stream-community-hub/internal/domain/stats"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/messaging"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/persistence/memory"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/persistence/postgres"
	redisinfra "github.com/streamhub/stream-community-hub/internal/infrastructure/persistence/redis"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/scheduler"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/scheduler/jobs"
	"github.com/streamhub/stream-community-hub/pkg/clock"
	"github.com/streamhub/stream-community-hub/pkg/logger"
	"github.com/streamhub/stream-community-hub/pkg/timeutil"
)

// App bundles the wired handlers handed to embedding integrations (the
// Discord bot, the HTTP API).
type App struct {
	RecordEvent  *command.RecordSessionEventHandler
	ResetGuild   *command.ResetGuildHandler
	MemberStats  *query.GetMemberStatsHandler
	TopStreamers *query.GetTopStreamersHandler
	Badges       *query.GetBadgesHandler
	Achievements *query.GetAchievementsHandler
	Analytics    *query.AnalyticsHandler

	Tracker   *session.Tracker
	Scheduler *scheduler.Scheduler
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tracker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(logger.Options{Level: logger.ParseLevel(cfg.LogLevel)})
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, cleanup, err := buildApp(ctx, cfg, log, slogger)
	if err != nil {
		return err
	}
	defer cleanup()

	app.Scheduler.Start(ctx)
	log.Info("tracker running",
		logger.String("storage", cfg.Storage.Backend),
		logger.Bool("redis", cfg.Storage.RedisEnabled))

	<-ctx.Done()
	log.Info("shutting down")

	app.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Tracker.Shutdown(shutdownCtx); err != nil {
		log.Warn("tracker shutdown incomplete", logger.Err(err))
	}
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger, slogger *slog.Logger) (*App, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	store, err := buildStore(ctx, cfg, &cleanups)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	var cache query.RollupCache
	var presence command.Presence
	if cfg.Storage.RedisEnabled {
		client, err := redisinfra.NewClient(ctx, cfg.Storage.Redis)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		cleanups = append(cleanups, func() { _ = client.Close() })
		cache = redisinfra.NewRollupCache(client, cfg.Storage.CacheTTL)
		presence = redisinfra.NewPresenceTracker(client, cfg.Tracker.PresenceTTL)
	}

	day := timeutil.DayBoundary{Offset: cfg.DayBoundaryOffset}
	clk := clock.System{}
	aggregator := stats.NewAggregator(day)

	bus := messaging.NewInMemoryEventBus(slogger)

	normalizer := session.NewNormalizer(cfg.Tracker.FlapWindow, cfg.Tracker.MinDuration)
	tracker := session.NewTracker(normalizer, store, bus, log,
		session.WithStaleCeiling(cfg.Tracker.StaleCeiling))

	badgeEngine := badge.NewEngine(badge.ApplyBadgeOverrides(badge.DefaultBadges(), cfg.Badges.BadgeOverrides))
	achievementEngine := badge.NewAchievementEngine(
		badge.ApplyAchievementOverrides(badge.DefaultAchievements(), cfg.Badges.AchievementOverrides), day)
	analyticsEngine := analytics.NewEngine(day)

	provider := query.NewRollupProvider(store, aggregator, cache, clk, log)

	app := &App{
		RecordEvent: command.NewRecordSessionEventHandler(tracker, presence, log,
			command.WithDisabledGuilds(cfg.Tracker.DisabledGuilds)),
		ResetGuild:   command.NewResetGuildHandler(store, bus, clk, log),
		MemberStats:  query.NewGetMemberStatsHandler(provider),
		TopStreamers: query.NewGetTopStreamersHandler(provider),
		Badges:       query.NewGetBadgesHandler(provider, badgeEngine),
		Achievements: query.NewGetAchievementsHandler(provider, achievementEngine),
		Analytics:    query.NewAnalyticsHandler(provider, analyticsEngine),
		Tracker:      tracker,
	}

	// Announce badge state whenever a session lands, so integrations can
	// post "alice just earned Marathon".
	bus.Subscribe("session.finalized", func(ctx context.Context, event shared.Event) error {
		finalized, ok := event.(shared.SessionFinalized)
		if !ok {
			return nil
		}
		report, err := app.Badges.Handle(ctx, query.GetBadges{
			GuildID:  string(finalized.GuildID),
			MemberID: string(finalized.MemberID),
		})
		if err != nil {
			return err
		}
		log.Debug("badges evaluated",
			logger.GuildID(string(finalized.GuildID)),
			logger.MemberID(string(finalized.MemberID)),
			logger.Int("earned", len(report.Earned)))
		return nil
	})

	sched := scheduler.New(slogger, clk)
	sched.Register(jobs.NewFlushSessions(tracker, log), scheduler.Every(cfg.Tracker.FlushInterval))
	sched.Register(jobs.NewSweepStale(tracker, log), scheduler.Every(cfg.Tracker.SweepInterval))
	sched.Register(jobs.NewPruneSessions(store, bus, clk, log, cfg.Retention.KeepFor),
		scheduler.DailyAt(cfg.Retention.PruneHourUTC, 0))
	app.Scheduler = sched

	return app, cleanup, nil
}

func buildStore(ctx context.Context, cfg *config.Config, cleanups *[]func()) (session.Store, error) {
	switch cfg.Storage.Backend {
	case config.StorageMemory:
		return memory.NewSessionStore(), nil
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.Storage.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		*cleanups = append(*cleanups, pool.Close)
		if err := postgres.Migrate(ctx, pool); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return postgres.NewSessionRepo(pool), nil
	}
	return nil, errors.New("unreachable storage backend")
}
