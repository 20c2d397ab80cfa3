// Package registry tracks which username is bound to which connection and
// whether that connection is still online.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
)

// ErrUsernameTaken is returned by Register under the Unique policy when an
// online session already holds the requested username.
var ErrUsernameTaken = errors.New("username already held by an online session")

// ErrInvalidUsernamePolicy is returned by ParseUsernamePolicy for unknown names.
var ErrInvalidUsernamePolicy = errors.New("invalid username policy")

// UsernamePolicy controls how duplicate usernames are registered and resolved.
type UsernamePolicy string

const (
	// FirstWins allows duplicates; lookups return the first registered match.
	FirstWins UsernamePolicy = "first-wins"
	// LastWins allows duplicates; lookups return the most recent match.
	LastWins UsernamePolicy = "last-wins"
	// Unique refuses a login whose username is held by an online session.
	Unique UsernamePolicy = "unique"
)

// ParseUsernamePolicy converts a configuration value into a UsernamePolicy.
// An empty value selects FirstWins.
func ParseUsernamePolicy(value string) (UsernamePolicy, error) {
	switch UsernamePolicy(value) {
	case "", FirstWins:
		return FirstWins, nil
	case LastWins:
		return LastWins, nil
	case Unique:
		return Unique, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidUsernamePolicy, value)
	}
}

// Session binds a connection to the username chosen at login.
type Session struct {
	ConnectionID string
	Username     string
	Online       bool
	OfflineSince time.Time
}

// Options configures a Registry. The zero value keeps every session forever
// and resolves duplicate usernames to the first registration.
type Options struct {
	Policy      UsernamePolicy
	OfflineTTL  time.Duration
	MaxSessions int
}

// Registry is the single owner of the session collection. Sessions are kept
// in registration order.
type Registry struct {
	mu       sync.RWMutex
	sessions []Session
	opts     Options
	now      func() time.Time
}

// New creates an empty Registry.
func New(opts Options) *Registry {
	if opts.Policy == "" {
		opts.Policy = FirstWins
	}
	return &Registry{
		opts: opts,
		now:  time.Now,
	}
}

// Policy reports the username policy the registry was built with.
func (r *Registry) Policy() UsernamePolicy {
	return r.opts.Policy
}

// Register appends a new online session. Under FirstWins and LastWins no
// uniqueness check is made, so a second login with the same username yields
// a second, independently addressable session.
func (r *Registry) Register(username, connectionID string) (Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.Policy == Unique {
		taken := lo.ContainsBy(r.sessions, func(s Session) bool {
			return s.Online && s.Username == username
		})
		if taken {
			return Session{}, fmt.Errorf("register %q: %w", username, ErrUsernameTaken)
		}
	}

	session := Session{
		ConnectionID: connectionID,
		Username:     username,
		Online:       true,
	}
	r.sessions = append(r.sessions, session)
	return session, nil
}

// MarkOffline flags every session bound to connectionID as offline and
// returns how many changed. A connection that never logged in is a no-op.
func (r *Registry) MarkOffline(connectionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	changed := 0
	for i := range r.sessions {
		s := &r.sessions[i]
		if s.ConnectionID != connectionID || !s.Online {
			continue
		}
		s.Online = false
		s.OfflineSince = now
		changed++
	}
	return changed
}

// FindByUsername returns the session registered under username. When several
// sessions share the name, the first registered one wins unless the policy is
// LastWins. The returned session may be offline.
func (r *Registry) FindByUsername(username string) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	match := func(s Session) bool { return s.Username == username }
	if r.opts.Policy == LastWins {
		s, _, ok := lo.FindLastIndexOf(r.sessions, match)
		return s, ok
	}
	return lo.Find(r.sessions, match)
}

// Snapshot returns a copy of all sessions, online and offline, in
// registration order.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, len(r.sessions))
	copy(out, r.sessions)
	return out
}

// Len returns the number of sessions held, online or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// OnlineCount returns the number of online sessions.
func (r *Registry) OnlineCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return lo.CountBy(r.sessions, func(s Session) bool { return s.Online })
}

// Evict drops offline sessions older than OfflineTTL, then trims the oldest
// offline sessions until the collection fits MaxSessions. Online sessions are
// never evicted, so the cap is soft when everyone is online. It returns the
// number of sessions removed.
func (r *Registry) Evict(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	before := len(r.sessions)

	if r.opts.OfflineTTL > 0 {
		r.sessions = lo.Reject(r.sessions, func(s Session, _ int) bool {
			return !s.Online && now.Sub(s.OfflineSince) >= r.opts.OfflineTTL
		})
	}

	if r.opts.MaxSessions > 0 && len(r.sessions) > r.opts.MaxSessions {
		excess := len(r.sessions) - r.opts.MaxSessions
		kept := make([]Session, 0, r.opts.MaxSessions)
		for _, s := range r.sessions {
			if excess > 0 && !s.Online {
				excess--
				continue
			}
			kept = append(kept, s)
		}
		r.sessions = kept
	}

	return before - len(r.sessions)
}
