package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("QUOTA_ALLOTMENT", "250")
	t.Setenv("CHEER_MAX_POINTS", "40")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LEADERBOARD_CACHE_TTL", "15m")
	t.Setenv("AUTO_MIGRATE", "false")
	t.Setenv("DB_TX_RETRIES", "not-a-number")

	cfg := Load()
	assert.Equal(t, 250, cfg.QuotaAllotment)
	assert.Equal(t, 40, cfg.CheerMaxPoints)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 15*time.Minute, cfg.LeaderboardCacheTTL)
	assert.False(t, cfg.AutoMigrate)
	assert.Equal(t, 3, cfg.DBTxRetries)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Env: "development", QuotaAllotment: 100, CheerMaxPoints: 100, RateLimitRPS: 5, RateLimitBurst: 10, JWTSecret: defaultJWTSecret}
	}

	cfg := base()
	assert.NoError(t, cfg.Validate())

	cfg = base()
	cfg.CheerMaxPoints = 0
	assert.ErrorContains(t, cfg.Validate(), "CHEER_MAX_POINTS")

	cfg = base()
	cfg.Env = "production"
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg.JWTSecret = "rotated"
	assert.NoError(t, cfg.Validate())
}
