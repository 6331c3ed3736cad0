// Package config loads service configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/streamhub/stream-community-hub/internal/domain/badge"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/persistence/postgres"
	"github.com/streamhub/stream-community-hub/internal/infrastructure/persistence/redis"
)

// Storage backends.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

// Config is the full service configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// DayBoundaryOffset shifts the logical day boundary away from UTC
	// midnight. A guild of night owls might set 4h so streams ending at
	// 3am count toward the previous day.
	DayBoundaryOffset time.Duration

	Tracker   TrackerConfig
	Retention RetentionConfig
	Storage   StorageConfig
	Badges    BadgeConfig
}

// TrackerConfig tunes the session state machine.
type TrackerConfig struct {
	FlapWindow    time.Duration
	MinDuration   time.Duration
	StaleCeiling  time.Duration
	FlushInterval time.Duration
	SweepInterval time.Duration
	PresenceTTL   time.Duration

	// DisabledGuilds lists guilds whose events are dropped at the door.
	DisabledGuilds []string
}

// RetentionConfig tunes history pruning.
type RetentionConfig struct {
	// KeepFor is how long closed sessions are retained.
	KeepFor time.Duration

	// PruneHourUTC is the UTC hour of the daily prune run.
	PruneHourUTC int
}

// StorageConfig selects and tunes the persistence layer.
type StorageConfig struct {
	// Backend is "memory" or "postgres".
	Backend string

	Postgres postgres.Config

	// RedisEnabled switches the rollup cache and presence mirror on.
	RedisEnabled bool
	Redis        redis.Config
	CacheTTL     time.Duration
}

// BadgeConfig carries catalog threshold overrides, parsed from
// "id=value,id=value" lists. Values are seconds for time metrics.
type BadgeConfig struct {
	BadgeOverrides       badge.ThresholdOverrides
	AchievementOverrides badge.ThresholdOverrides
}

// Load reads configuration from the environment, applying defaults for
// everything unset.
func Load() (*Config, error) {
	cfg := &Config{
		LogLevel:          getEnv("STREAMHUB_LOG_LEVEL", "info"),
		DayBoundaryOffset: getEnvDuration("STREAMHUB_DAY_BOUNDARY_OFFSET", 0),
		Tracker: TrackerConfig{
			FlapWindow:     getEnvDuration("STREAMHUB_FLAP_WINDOW", 60*time.Second),
			MinDuration:    getEnvDuration("STREAMHUB_MIN_SESSION_DURATION", 5*time.Second),
			StaleCeiling:   getEnvDuration("STREAMHUB_STALE_CEILING", 24*time.Hour),
			FlushInterval:  getEnvDuration("STREAMHUB_FLUSH_INTERVAL", 30*time.Second),
			SweepInterval:  getEnvDuration("STREAMHUB_SWEEP_INTERVAL", 10*time.Minute),
			PresenceTTL:    getEnvDuration("STREAMHUB_PRESENCE_TTL", 10*time.Minute),
			DisabledGuilds: splitList(os.Getenv("STREAMHUB_DISABLED_GUILDS")),
		},
		Retention: RetentionConfig{
			KeepFor:      getEnvDuration("STREAMHUB_RETENTION", 90*24*time.Hour),
			PruneHourUTC: getEnvInt("STREAMHUB_PRUNE_HOUR_UTC", 4),
		},
		Storage: StorageConfig{
			Backend:      getEnv("STREAMHUB_STORAGE", StorageMemory),
			RedisEnabled: getEnvBool("STREAMHUB_REDIS_ENABLED", false),
			CacheTTL:     getEnvDuration("STREAMHUB_CACHE_TTL", 15*time.Minute),
		},
	}

	pg := postgres.DefaultConfig()
	pg.Host = getEnv("STREAMHUB_POSTGRES_HOST", pg.Host)
	pg.Port = getEnvInt("STREAMHUB_POSTGRES_PORT", pg.Port)
	pg.User = getEnv("STREAMHUB_POSTGRES_USER", pg.User)
	pg.Password = getEnv("STREAMHUB_POSTGRES_PASSWORD", pg.Password)
	pg.Database = getEnv("STREAMHUB_POSTGRES_DB", pg.Database)
	pg.SSLMode = getEnv("STREAMHUB_POSTGRES_SSLMODE", pg.SSLMode)
	pg.MaxConns = int32(getEnvInt("STREAMHUB_POSTGRES_MAX_CONNS", int(pg.MaxConns)))
	cfg.Storage.Postgres = pg

	rd := redis.DefaultConfig()
	rd.Addr = getEnv("STREAMHUB_REDIS_ADDR", rd.Addr)
	rd.Password = getEnv("STREAMHUB_REDIS_PASSWORD", rd.Password)
	rd.DB = getEnvInt("STREAMHUB_REDIS_DB", rd.DB)
	cfg.Storage.Redis = rd

	var err error
	if cfg.Badges.BadgeOverrides, err = parseOverrides(os.Getenv("STREAMHUB_BADGE_THRESHOLDS")); err != nil {
		return nil, fmt.Errorf("STREAMHUB_BADGE_THRESHOLDS: %w", err)
	}
	if cfg.Badges.AchievementOverrides, err = parseOverrides(os.Getenv("STREAMHUB_ACHIEVEMENT_MINIMUMS")); err != nil {
		return nil, fmt.Errorf("STREAMHUB_ACHIEVEMENT_MINIMUMS: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Backend {
	case StorageMemory, StoragePostgres:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Retention.PruneHourUTC < 0 || c.Retention.PruneHourUTC > 23 {
		return fmt.Errorf("prune hour %d out of range", c.Retention.PruneHourUTC)
	}
	if c.Retention.KeepFor < 24*time.Hour {
		return fmt.Errorf("retention %s shorter than a day", c.Retention.KeepFor)
	}
	return nil
}

// parseOverrides parses "first_stream=2,hours_10=7200" style lists.
func parseOverrides(raw string) (badge.ThresholdOverrides, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	out := make(badge.ThresholdOverrides)
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			return nil, fmt.Errorf("malformed entry %q", pair)
		}
		n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", pair, err)
		}
		out[strings.TrimSpace(key)] = n
	}
	return out, nil
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
