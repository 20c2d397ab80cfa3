package server

import (
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Burst_Then_Refuse(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(3, time.Hour)

	for range 3 {
		req.True(rl.allow())
	}
	req.False(rl.allow())
}

func TestRateLimiter_Refills(t *testing.T) {
	req := require.New(t)
	rl := newRateLimiter(1, 20*time.Millisecond)

	req.True(rl.allow())
	req.False(rl.allow())
	req.Eventually(rl.allow, time.Second, 5*time.Millisecond)
}

func TestOriginPolicy(t *testing.T) {
	log := slog.New(slog.DiscardHandler)

	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "exact match", allowed: []string{"http://localhost:3000"}, origin: "http://localhost:3000", want: true},
		{name: "case insensitive", allowed: []string{"HTTP://LocalHost:3000"}, origin: "http://localhost:3000", want: true},
		{name: "other port", allowed: []string{"http://localhost:3000"}, origin: "http://localhost:3001", want: false},
		{name: "missing header", allowed: []string{"http://localhost:3000"}, origin: "", want: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://anything.test", want: true},
		{name: "invalid entries ignored", allowed: []string{"not a url", ""}, origin: "http://localhost:3000", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy := newOriginPolicy(tt.allowed, log)
			r := httptest.NewRequest("GET", "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			require.Equal(t, tt.want, policy.isAllowed(r))
		})
	}
}
