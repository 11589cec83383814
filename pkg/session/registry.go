// Package session implements the server-side session registry: two
// indexes over Sessions, one by peer address and one by authenticated
// username, plus the lifecycle operations that keep Online/Offline
// notifications strictly ordered and alternating.
package session

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
)

// EventKind distinguishes the two presence transitions a registry emits.
type EventKind int

const (
	EventOnline EventKind = iota
	EventOffline
)

// Event is a presence transition, delivered in the exact order the registry
// decided it, never interleaved or reordered relative to other events for
// the same username.
type Event struct {
	Kind     EventKind
	Username string
}

// Registry holds every live Session, indexed by peer address and by
// authenticated username. All mutating operations run under one mutex,
// which is what gives the Online/Offline alternation guarantee:
// emit is called synchronously while the guard is held, so two goroutines
// racing to authenticate the same username can never interleave their
// events.
type Registry struct {
	heartbeatInterval time.Duration
	emit              func(Event)
	log               logging.LeveledLogger

	mu     sync.Mutex
	byAddr map[string]*Session
	byUser map[string]*Session
}

// Config configures a new Registry.
type Config struct {
	// HeartbeatInterval is the liveness window used by Reap: a
	// session not touched within this interval is reaped.
	HeartbeatInterval time.Duration

	// OnEvent receives every Online/Offline transition, in order, called
	// synchronously under the registry's lock. Must not block or call back
	// into the registry.
	OnEvent func(Event)

	LoggerFactory logging.LoggerFactory
}

// New creates an empty registry.
func New(config Config) *Registry {
	r := &Registry{
		heartbeatInterval: config.HeartbeatInterval,
		emit:              config.OnEvent,
		byAddr:            make(map[string]*Session),
		byUser:            make(map[string]*Session),
	}
	if config.LoggerFactory != nil {
		r.log = config.LoggerFactory.NewLogger("session")
	}
	if r.emit == nil {
		r.emit = func(Event) {}
	}
	return r
}

// UpsertUnauth returns the existing session for addr, or creates a fresh
// unauthenticated one keyed by addrKey on first handshake from this
// address. A repeated handshake from a known address with a different
// public key means the peer restarted: the stale session is torn down
// (emitting Offline if it was authenticated) and replaced.
func (r *Registry) UpsertUnauth(addr net.Addr, addrKey string, pubKey, sharedKey [32]byte, now time.Time) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.byAddr[addrKey]; ok {
		if s.PubKey == pubKey {
			return s
		}
		r.removeLocked(s)
		if username := s.Username(); username != "" {
			r.emit(Event{Kind: EventOffline, Username: username})
		}
	}
	s := newSession(addr, addrKey, pubKey, sharedKey, now)
	r.byAddr[addrKey] = s
	if r.log != nil {
		r.log.Debugf("new unauthenticated session from %s", addr)
	}
	return s
}

// GetByAddr looks up a session by peer address key.
func (r *Registry) GetByAddr(addrKey string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byAddr[addrKey]
	return s, ok
}

// GetByUsername looks up the single authenticated session for username, if
// any. At most one authenticated session per username exists at a time.
func (r *Registry) GetByUsername(username string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[username]
	return s, ok
}

// Authenticate binds username to session, evicting any prior session for
// that username first. The evictee (if any) transitions offline, then the
// new session transitions online — always in that order, emitted while
// holding the lock so no other Authenticate/Reap call can interleave.
func (r *Registry) Authenticate(s *Session, username string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.Authenticated() {
		return ErrAlreadyAuthenticated
	}

	if prior, ok := r.byUser[username]; ok {
		// Leave an unauthenticated shell behind for the evicted peer so its
		// later requests still decrypt and get answered (as not-authenticated)
		// instead of vanishing into an unknown-address drop.
		r.removeLocked(prior)
		r.byAddr[prior.AddrKey] = prior.deauthClone(now)
		r.emit(Event{Kind: EventOffline, Username: username})
		if r.log != nil {
			r.log.Infof("evicted prior session for %q", username)
		}
	}

	s.mu.Lock()
	s.username = username
	s.lastHeartbeat = now
	s.mu.Unlock()

	r.byUser[username] = s
	r.emit(Event{Kind: EventOnline, Username: username})
	if r.log != nil {
		r.log.Infof("%q authenticated from %s", username, s.PeerAddr)
	}
	return nil
}

// Touch resets a session's heartbeat clock to now. Called on any inbound
// authenticated frame, not only Heartbeat.
func (r *Registry) Touch(s *Session, now time.Time) {
	s.touch(now)
}

// RecordFailure increments s's consecutive-decode-failure counter and, if
// the 32-failures-in-10s threshold is crossed, removes and closes
// the session, returning true.
func (r *Registry) RecordFailure(s *Session, now time.Time) bool {
	if !s.recordFailure(now) {
		return false
	}
	r.Close(s)
	if r.log != nil {
		r.log.Warnf("closing session from %s: too many decode failures", s.PeerAddr)
	}
	return true
}

// Logout removes s from the registry, emitting Offline if it was
// authenticated. The emit happens under the lock, like every other
// decision site, so a racing re-login cannot slip its Online in front of
// this Offline.
func (r *Registry) Logout(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username := s.Username()
	r.removeLocked(s)
	if username != "" {
		r.emit(Event{Kind: EventOffline, Username: username})
	}
}

// Close is an alias for Logout used from failure paths where the session is
// being torn down rather than explicitly logged out.
func (r *Registry) Close(s *Session) {
	r.Logout(s)
}

// Reap removes every session whose heartbeat is older than the configured
// heartbeat interval, emitting Offline for each authenticated one removed.
// Removal and emit share one lock hold: releasing the lock in between
// would let a concurrent re-login emit Online before the reaped Offline,
// breaking presence alternation. Called periodically from the endpoint's
// timer loop.
func (r *Registry) Reap(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var expired []*Session
	for _, s := range r.byAddr {
		if now.Sub(s.LastHeartbeat()) > r.heartbeatInterval {
			expired = append(expired, s)
		}
	}
	for _, s := range expired {
		r.removeLocked(s)
		if username := s.Username(); username != "" {
			r.emit(Event{Kind: EventOffline, Username: username})
			if r.log != nil {
				r.log.Infof("reaped session for %q (%s)", username, s.PeerAddr)
			}
		}
	}
}

// removeLocked deletes s from both indexes. Caller must hold r.mu.
func (r *Registry) removeLocked(s *Session) {
	delete(r.byAddr, s.AddrKey)
	if username := s.Username(); username != "" {
		if cur, ok := r.byUser[username]; ok && cur == s {
			delete(r.byUser, username)
		}
	}
}

// Authenticated returns a snapshot of every authenticated session, for
// event fan-out. The slice is safe to iterate without the registry lock.
func (r *Registry) Authenticated() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.byUser))
	for _, s := range r.byUser {
		out = append(out, s)
	}
	return out
}

// Len reports the number of live sessions, for tests and diagnostics.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byAddr)
}
