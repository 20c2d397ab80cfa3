// Package server provides configuration helpers that define runtime defaults,
// environment loading and validation for the chitchat relay.
package server

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"

	"github.com/Tyrowin/chitchat/internal/registry"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	Port             string
	AllowedOrigins   []string
	MaxMessageSize   int64
	RateLimit        RateLimitConfig
	UsernamePolicy   string
	OfflineTTL       time.Duration
	MaxSessions      int
	EvictionInterval time.Duration
	LogLevel         string
}

// envConfig mirrors the variables read from the environment. Unset values
// stay zero and leave the defaults untouched.
type envConfig struct {
	Port             string        `env:"SERVER_PORT"`
	AllowedOrigins   string        `env:"ALLOWED_ORIGINS"`
	MaxMessageSize   int           `env:"MAX_MESSAGE_SIZE"`
	RateLimitBurst   int           `env:"RATE_LIMIT_BURST"`
	RateLimitRefill  time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL"`
	UsernamePolicy   string        `env:"USERNAME_POLICY"`
	OfflineTTL       time.Duration `env:"OFFLINE_SESSION_TTL"`
	MaxSessions      int           `env:"MAX_SESSIONS"`
	EvictionInterval time.Duration `env:"EVICTION_INTERVAL"`
	LogLevel         string        `env:"LOG_LEVEL"`
}

func defaultConfig() Config {
	return Config{
		Port: ":5000",
		AllowedOrigins: []string{
			"http://localhost:5000",
			"http://localhost:3000",
		},
		MaxMessageSize: 4096,
		RateLimit: RateLimitConfig{
			Burst:          10,
			RefillInterval: time.Second,
		},
		UsernamePolicy:   string(registry.FirstWins),
		EvictionInterval: time.Minute,
		LogLevel:         "INFO",
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config from environment variables, falling back
// to defaults for anything unset or non-positive.
func NewConfigFromEnv() (*Config, error) {
	var e envConfig
	if _, err := env.UnmarshalFromEnviron(&e); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	cfg := defaultConfig()
	if e.Port != "" {
		cfg.Port = e.Port
	}
	if e.AllowedOrigins != "" {
		cfg.AllowedOrigins = parseOrigins(e.AllowedOrigins)
	}
	if e.MaxMessageSize > 0 {
		cfg.MaxMessageSize = int64(e.MaxMessageSize)
	}
	if e.RateLimitBurst > 0 {
		cfg.RateLimit.Burst = e.RateLimitBurst
	}
	if e.RateLimitRefill > 0 {
		cfg.RateLimit.RefillInterval = e.RateLimitRefill
	}
	if e.UsernamePolicy != "" {
		cfg.UsernamePolicy = e.UsernamePolicy
	}
	if e.OfflineTTL > 0 {
		cfg.OfflineTTL = e.OfflineTTL
	}
	if e.MaxSessions > 0 {
		cfg.MaxSessions = e.MaxSessions
	}
	if e.EvictionInterval > 0 {
		cfg.EvictionInterval = e.EvictionInterval
	}
	if e.LogLevel != "" {
		cfg.LogLevel = e.LogLevel
	}

	return &cfg, nil
}

// Sanitize replaces empty or non-positive values with their defaults.
func (c *Config) Sanitize() {
	def := defaultConfig()
	if c.Port == "" {
		c.Port = def.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.UsernamePolicy == "" {
		c.UsernamePolicy = def.UsernamePolicy
	}
	if c.OfflineTTL < 0 {
		c.OfflineTTL = 0
	}
	if c.MaxSessions < 0 {
		c.MaxSessions = 0
	}
	if c.EvictionInterval <= 0 {
		c.EvictionInterval = def.EvictionInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
}

// Validate reports settings that cannot be sanitized into something usable.
func (c *Config) Validate() error {
	if _, err := registry.ParseUsernamePolicy(c.UsernamePolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// RegistryOptions translates the session settings into registry options.
// Validate must have succeeded first.
func (c *Config) RegistryOptions() registry.Options {
	policy, _ := registry.ParseUsernamePolicy(c.UsernamePolicy)
	return registry.Options{
		Policy:      policy,
		OfflineTTL:  c.OfflineTTL,
		MaxSessions: c.MaxSessions,
	}
}

// evictionEnabled reports whether any eviction limit is configured.
func (c *Config) evictionEnabled() bool {
	return c.OfflineTTL > 0 || c.MaxSessions > 0
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
