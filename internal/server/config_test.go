package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tyrowin/chitchat/internal/registry"
)

// TestNewConfig verifies the defaults returned by NewConfig.
func TestNewConfig(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()

	req.Equal(":5000", cfg.Port)
	req.Equal([]string{"http://localhost:5000", "http://localhost:3000"}, cfg.AllowedOrigins)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(10, cfg.RateLimit.Burst)
	req.Equal(time.Second, cfg.RateLimit.RefillInterval)
	req.Equal(string(registry.FirstWins), cfg.UsernamePolicy)
	req.Zero(cfg.OfflineTTL)
	req.Zero(cfg.MaxSessions)
	req.NoError(cfg.Validate())
}

func TestNewConfigFromEnv(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":6000")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("USERNAME_POLICY", "last-wins")
	t.Setenv("OFFLINE_SESSION_TTL", "10m")
	t.Setenv("MAX_SESSIONS", "500")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := NewConfigFromEnv()
	req.NoError(err)

	req.Equal(":6000", cfg.Port)
	req.Equal([]string{"http://a.test", "http://b.test"}, cfg.AllowedOrigins)
	req.Equal(int64(1024), cfg.MaxMessageSize)
	req.Equal(3, cfg.RateLimit.Burst)
	req.Equal(2*time.Second, cfg.RateLimit.RefillInterval)
	req.Equal("last-wins", cfg.UsernamePolicy)
	req.Equal(10*time.Minute, cfg.OfflineTTL)
	req.Equal(500, cfg.MaxSessions)
	req.Equal(time.Minute, cfg.EvictionInterval)
	req.Equal("DEBUG", cfg.LogLevel)

	opts := cfg.RegistryOptions()
	req.Equal(registry.LastWins, opts.Policy)
	req.Equal(10*time.Minute, opts.OfflineTTL)
	req.Equal(500, opts.MaxSessions)
}

func TestNewConfigFromEnv_Invalid_Number(t *testing.T) {
	t.Setenv("MAX_SESSIONS", "lots")

	_, err := NewConfigFromEnv()
	require.Error(t, err)
}

func TestConfig_Sanitize(t *testing.T) {
	req := require.New(t)
	cfg := &Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		OfflineTTL:     -time.Minute,
		MaxSessions:    -3,
	}

	cfg.Sanitize()

	def := NewConfig()
	req.Equal(def.Port, cfg.Port)
	req.Equal(def.MaxMessageSize, cfg.MaxMessageSize)
	req.Equal(def.RateLimit, cfg.RateLimit)
	req.Equal(def.UsernamePolicy, cfg.UsernamePolicy)
	req.Equal(def.EvictionInterval, cfg.EvictionInterval)
	req.Equal(def.LogLevel, cfg.LogLevel)
	req.Zero(cfg.OfflineTTL)
	req.Zero(cfg.MaxSessions)
}

func TestConfig_Validate_Rejects_Unknown_Policy(t *testing.T) {
	cfg := NewConfig()
	cfg.UsernamePolicy = "newest"

	require.ErrorIs(t, cfg.Validate(), registry.ErrInvalidUsernamePolicy)
}
