package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("API_URL", "")
	cfg := Load()

	assert.Equal(t, "http://localhost:8000", cfg.Backend.URL)
	assert.Equal(t, "memory", cfg.Session.Store)
	assert.Equal(t, uint(5), cfg.Backend.FailureThreshold)
	assert.False(t, cfg.Backend.ValidateResponses)
	assert.False(t, cfg.IsProduction())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("API_URL", "https://api.example.com/")
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_STORE", "redis")
	t.Setenv("API_TIMEOUT", "5s")
	t.Setenv("AUDIO_PLAYER", "afplay, -q")
	t.Setenv("RATE_LIMIT", "2.5")

	cfg := Load()

	assert.Equal(t, "https://api.example.com", cfg.Backend.URL)
	assert.True(t, cfg.IsProduction())
	assert.True(t, cfg.Session.Secure)
	assert.Equal(t, "redis", cfg.Session.Store)
	assert.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, []string{"afplay", "-q"}, cfg.Audio.PlayerCommand)
	assert.Equal(t, 2.5, cfg.Security.RateLimit)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")
	t.Setenv("DB_MAX_CONNS", "many")

	cfg := Load()

	assert.Equal(t, 60*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, 10, cfg.Database.MaxConns)
}

func TestDSN(t *testing.T) {
	cfg := Load()
	cfg.Database.Host = "db"
	assert.Contains(t, cfg.DSN(), "host=db")
	assert.Contains(t, cfg.DSN(), "sslmode=disable")
}
