package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_SQLiteDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 480, cfg.AccessTTLMin)
	assert.Equal(t, 4, cfg.SecurityCodeLength)
	assert.Equal(t, "0 3 * * 1", cfg.FlagJobSchedule)
	assert.Equal(t, "checkin.checkout", cfg.NotificationsQueue)
	assert.Equal(t, time.UTC, cfg.Location())
}

func TestLoad_MissingMySQLSettings(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_HOST, DB_NAME, DB_USER, JWT_SECRET")
}

func TestLoad_RejectsBadTimezone(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("JWT_SECRET", "x")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")

	_, err := Load()
	assert.ErrorContains(t, err, "APP_TIMEZONE")
}

func TestLoadLoginRateLimitConfig(t *testing.T) {
	rl := LoadLoginRateLimitConfig()
	assert.Equal(t, 5, rl.Capacity)
	assert.Equal(t, "ip_route", rl.KeyStrategy)
	assert.Equal(t, 30*time.Second, rl.RefillInterval)
	assert.GreaterOrEqual(t, rl.TTL, 150*time.Second)
}

func TestLoadOAuthProviders(t *testing.T) {
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	t.Setenv("GOOGLE_CLIENT_SECRET", "gsecret")
	t.Setenv("MICROSOFT_CLIENT_ID", "")

	p := LoadOAuthProviders()
	require.Contains(t, p, "google")
	assert.NotContains(t, p, "microsoft")
	assert.True(t, p["google"].Verifies)
	assert.Equal(t, "gid", p["google"].OAuth2.ClientID)
}
