package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.Equal(t, 60*time.Second, cfg.Tracker.FlapWindow)
	assert.Equal(t, 90*24*time.Hour, cfg.Retention.KeepFor)
	assert.False(t, cfg.Storage.RedisEnabled)
	assert.Nil(t, cfg.Badges.BadgeOverrides)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STREAMHUB_LOG_LEVEL", "debug")
	t.Setenv("STREAMHUB_STORAGE", "postgres")
	t.Setenv("STREAMHUB_POSTGRES_HOST", "db.internal")
	t.Setenv("STREAMHUB_FLAP_WINDOW", "90s")
	t.Setenv("STREAMHUB_REDIS_ENABLED", "true")
	t.Setenv("STREAMHUB_BADGE_THRESHOLDS", "first_stream=2, hours_10=7200")
	t.Setenv("STREAMHUB_DISABLED_GUILDS", "g9, g10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, StoragePostgres, cfg.Storage.Backend)
	assert.Equal(t, "db.internal", cfg.Storage.Postgres.Host)
	assert.Equal(t, 90*time.Second, cfg.Tracker.FlapWindow)
	assert.True(t, cfg.Storage.RedisEnabled)
	assert.Equal(t, int64(2), cfg.Badges.BadgeOverrides["first_stream"])
	assert.Equal(t, int64(7200), cfg.Badges.BadgeOverrides["hours_10"])
	assert.Equal(t, []string{"g9", "g10"}, cfg.Tracker.DisabledGuilds)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		t.Setenv("STREAMHUB_STORAGE", "dynamo")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed overrides", func(t *testing.T) {
		t.Setenv("STREAMHUB_BADGE_THRESHOLDS", "first_stream")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("retention below a day", func(t *testing.T) {
		t.Setenv("STREAMHUB_RETENTION", "6h")
		_, err := Load()
		assert.Error(t, err)
	})
}
