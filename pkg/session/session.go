package session

import (
	"net"
	"sync"
	"time"

	"github.com/chatroom-core/chatroom/pkg/crypto"
)

// Session is the server-runtime state for one peer of the endpoint. A
// session is unauthenticated until Username is set, at which point it stays
// authenticated for its whole lifetime: unsetting requires destroying the
// session and letting a fresh handshake create a new one.
type Session struct {
	PeerAddr  net.Addr
	AddrKey   string
	PubKey    [32]byte
	SharedKey [32]byte

	Send *crypto.SendCounter
	Recv *crypto.ReplayWindow

	mu            sync.Mutex
	username      string
	lastHeartbeat time.Time
	errCount      int
	errWindowFrom time.Time
}

// newSession builds an unauthenticated session for a freshly handshaken peer.
func newSession(addr net.Addr, addrKey string, pubKey, sharedKey [32]byte, now time.Time) *Session {
	return &Session{
		PeerAddr:      addr,
		AddrKey:       addrKey,
		PubKey:        pubKey,
		SharedKey:     sharedKey,
		Send:          crypto.NewSendCounter(crypto.DirServerToClient),
		Recv:          crypto.NewReplayWindow(),
		lastHeartbeat: now,
	}
}

// deauthClone builds the unauthenticated replacement left behind when this
// session is evicted by a same-username login elsewhere: same peer, same
// shared key, same nonce state, no username. The evicted peer can keep
// talking — its requests decrypt fine and are answered as unauthenticated —
// while the username binding moves to the new session.
func (s *Session) deauthClone(now time.Time) *Session {
	return &Session{
		PeerAddr:      s.PeerAddr,
		AddrKey:       s.AddrKey,
		PubKey:        s.PubKey,
		SharedKey:     s.SharedKey,
		Send:          s.Send,
		Recv:          s.Recv,
		lastHeartbeat: now,
	}
}

// Username returns the authenticated username, or "" if unauthenticated.
func (s *Session) Username() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.username
}

// Authenticated reports whether a username has been bound to this session.
func (s *Session) Authenticated() bool {
	return s.Username() != ""
}

// LastHeartbeat returns the last time this session was touched.
func (s *Session) LastHeartbeat() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHeartbeat
}

// touch resets the heartbeat clock to now.
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastHeartbeat = now
	s.mu.Unlock()
}

// recordFailure increments the consecutive-decode-failure counter,
// resetting it if the last failure fell outside the 10s window. Reports
// whether the session has now crossed the 32-failure threshold and must be
// closed.
func (s *Session) recordFailure(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.errCount == 0 || now.Sub(s.errWindowFrom) > 10*time.Second {
		s.errWindowFrom = now
		s.errCount = 0
	}
	s.errCount++
	return s.errCount >= 32
}
