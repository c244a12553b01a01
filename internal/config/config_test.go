package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "HEALSYNC_API_URL", "DB_HOST", "DB_DSN", "REDIS_ADDR", "CHAT_POLL_INTERVAL", "CHAT_MAX_POLL_INTERVAL", "SESSION_TTL_HOURS", "FALLBACK_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "3001", cfg.Port)
	assert.Equal(t, "https://healsync-backend-d788.onrender.com", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Backend.WriteTimeout)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5*time.Second, cfg.Chat.PollInterval)
	assert.Equal(t, 30*time.Second, cfg.Chat.MaxPollInterval)
	assert.Empty(t, cfg.Database.DSN)
	assert.Empty(t, cfg.Redis.Addr)
	assert.True(t, cfg.FallbackEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("APP_ENV", "production")
	t.Setenv("HEALSYNC_API_URL", "http://backend.local/")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USERNAME", "portal")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CHAT_POLL_INTERVAL", "2s")
	t.Setenv("CHAT_MAX_POLL_INTERVAL", "12s")
	t.Setenv("FALLBACK_ENABLED", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8088", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "http://backend.local", cfg.Backend.BaseURL)
	assert.Equal(t, "portal:secret@tcp(db:3306)/healsync?charset=utf8mb4&parseTime=True&loc=UTC", cfg.Database.DSN)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 2*time.Second, cfg.Chat.PollInterval)
	assert.Equal(t, 12*time.Second, cfg.Chat.MaxPollInterval)
	assert.False(t, cfg.FallbackEnabled)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Run("session ttl", func(t *testing.T) {
		t.Setenv("SESSION_TTL_HOURS", "abc")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
	t.Run("poll interval ordering", func(t *testing.T) {
		t.Setenv("SESSION_TTL_HOURS", "")
		t.Setenv("CHAT_POLL_INTERVAL", "40s")
		t.Setenv("CHAT_MAX_POLL_INTERVAL", "30s")
		_, err := LoadConfig()
		assert.Error(t, err)
	})
}
