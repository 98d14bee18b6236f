package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ADMIN_EMAIL", "  Owner@Example.com ")
	t.Setenv("SESSION_TTL", "30m")
	t.Setenv("FRONTEND_URL", "https://portfolio.example/")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "owner@example.com", cfg.AdminEmail)
	assert.Equal(t, 30*time.Minute, cfg.SessionTTL)
	assert.Equal(t, "https://portfolio.example", cfg.FrontendURL)
	assert.Equal(t, 5*time.Minute, cfg.MaxClientClockSkew)
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_BOOL", "false")
	t.Setenv("TEST_SECS", "90")
	t.Setenv("TEST_BAD_DURATION", "soon")

	assert.Equal(t, 42, getEnvInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvInt("TEST_BAD_INT", 1))
	assert.False(t, getEnvBool("TEST_BOOL", true))
	assert.True(t, getEnvBool("TEST_MISSING_BOOL", true))
	assert.Equal(t, 90*time.Second, getEnvDuration("TEST_SECS", time.Second))
	assert.Equal(t, time.Second, getEnvDuration("TEST_BAD_DURATION", time.Second))
}

func TestGoogleEnabled(t *testing.T) {
	cfg := &Config{GoogleClientID: "id"}
	assert.False(t, cfg.GoogleEnabled())
	cfg.GoogleClientSecret = "secret"
	assert.True(t, cfg.GoogleEnabled())
}

func TestArchiveEnabled(t *testing.T) {
	cfg := &Config{ArchiveBucket: "exports", ArchiveAccessKeyID: "key"}
	assert.False(t, cfg.ArchiveEnabled())
	cfg.ArchiveSecretAccessKey = "secret"
	assert.True(t, cfg.ArchiveEnabled())
}
