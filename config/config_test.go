package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("SESSION_TTL", "")
	t.Setenv("CORS_ORIGINS", "")

	cfg := Load()
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 10*time.Minute, cfg.OTPTTL)
	assert.Equal(t, 60*time.Second, cfg.OTPResendInterval)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("SESSION_TTL", "48h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example/, https://b.example")
	t.Setenv("SUPER_ADMIN_EMAIL", "Root@Example.COM")

	cfg := Load()
	assert.Equal(t, 48*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "root@example.com", cfg.SuperAdminEmail)
}

func TestValidate(t *testing.T) {
	cfg := Load()
	cfg.JWTSecret = "short"
	assert.ErrorIs(t, cfg.Validate(), ErrWeakSecret)

	cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.DatabaseDriver = "mysql"
	assert.Error(t, cfg.Validate())

	cfg.DatabaseDriver = "sqlite"
	assert.NoError(t, cfg.Validate())
}

func TestLoad_Flags(t *testing.T) {
	t.Setenv("LEGACY_LOGIN_ENABLED", "")
	t.Setenv("COOKIE_SECURE", "")
	cfg := Load()
	assert.True(t, cfg.LegacyLoginEnabled)
	assert.False(t, cfg.CookieSecure)

	t.Setenv("LEGACY_LOGIN_ENABLED", "false")
	t.Setenv("COOKIE_SECURE", "1")
	cfg = Load()
	assert.False(t, cfg.LegacyLoginEnabled)
	assert.True(t, cfg.CookieSecure)
}
