// Package server wires the chatroom protocol core together on the server
// side: one datagram endpoint, the session registry, the user store, and
// the chat history, plus the handshake, heartbeat, and request dispatch
// that connect them. All state lives on the Server value; handlers never
// reach for globals.
package server

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/chatroom-core/chatroom/pkg/chatroom"
	"github.com/chatroom-core/chatroom/pkg/clock"
	"github.com/chatroom-core/chatroom/pkg/crypto"
	"github.com/chatroom-core/chatroom/pkg/notify"
	"github.com/chatroom-core/chatroom/pkg/session"
	"github.com/chatroom-core/chatroom/pkg/transport"
	"github.com/chatroom-core/chatroom/pkg/userstore"
	"github.com/chatroom-core/chatroom/pkg/wire"
)

// DefaultHeartbeatInterval is the liveness window when Config leaves it zero.
const DefaultHeartbeatInterval = 60 * time.Second

// presenceQueueDepth bounds the broadcast queue between the registry's
// event callback (which runs under the registry lock and must not block)
// and the fan-out goroutine.
const presenceQueueDepth = 256

// Config configures a Server.
type Config struct {
	// BindAddr is the UDP listen address. Ignored when Conn is set.
	BindAddr string

	// Conn is an optional pre-existing socket, used by tests to run the
	// server over an in-memory pipe.
	Conn net.PacketConn

	// HeartbeatInterval is the session liveness window. Sessions silent for
	// longer are reaped; the reaper runs every quarter interval.
	HeartbeatInterval time.Duration

	// StorePath is the user store file location.
	StorePath string

	// HistoryLimit bounds each chat log; zero selects the chatroom default.
	HistoryLimit int

	// Sink receives notifications for the surrounding shell. Optional.
	Sink notify.Sink

	// Clock supplies time; nil selects the system clock.
	Clock clock.Clock

	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns a Config with production defaults.
func DefaultConfig() Config {
	return Config{
		BindAddr:          "0.0.0.0:0",
		HeartbeatInterval: DefaultHeartbeatInterval,
		StorePath:         "./users.bin",
	}
}

// Server is one chatroom server instance.
type Server struct {
	cfg  Config
	clk  clock.Clock
	sink notify.Sink
	log  logging.LeveledLogger

	keys     crypto.KeyPair
	users    *userstore.Store
	room     *chatroom.Room
	registry *session.Registry
	endpoint *transport.Endpoint

	presenceCh chan session.Event
	closeCh    chan struct{}
	wg         sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// New creates a Server: loads the user store, generates the server's
// ephemeral keypair, and opens (but does not start) the endpoint.
func New(config Config) (*Server, error) {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if config.StorePath == "" {
		config.StorePath = DefaultConfig().StorePath
	}

	s := &Server{
		cfg:        config,
		clk:        config.Clock,
		sink:       config.Sink,
		room:       chatroom.NewRoom(config.HistoryLimit),
		presenceCh: make(chan session.Event, presenceQueueDepth),
		closeCh:    make(chan struct{}),
	}
	if s.clk == nil {
		s.clk = clock.System()
	}
	if s.sink == nil {
		s.sink = notify.Discard
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("server")
	}

	users, err := userstore.Open(config.StorePath, config.LoggerFactory)
	if err != nil {
		return nil, err
	}
	s.users = users

	keys, err := crypto.GenerateKeyPair(nil)
	if err != nil {
		return nil, err
	}
	s.keys = keys

	s.registry = session.New(session.Config{
		HeartbeatInterval: config.HeartbeatInterval,
		OnEvent:           s.onPresence,
		LoggerFactory:     config.LoggerFactory,
	})

	endpoint, err := transport.New(transport.Config{
		Conn:          config.Conn,
		ListenAddr:    config.BindAddr,
		Handler:       s.handleDatagram,
		LoggerFactory: config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	s.endpoint = endpoint

	return s, nil
}

// Start begins serving: the receive loop, the session reaper, and the
// presence fan-out.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transport.ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return transport.ErrAlreadyStarted
	}
	s.started = true
	s.mu.Unlock()

	if err := s.endpoint.Start(); err != nil {
		return err
	}
	s.endpoint.StartTimerLoop(s.cfg.HeartbeatInterval/4, func(time.Time) {
		s.registry.Reap(s.clk.Now())
	})

	s.wg.Add(1)
	go s.broadcastLoop()

	if s.log != nil {
		s.log.Infof("chatroom server listening on %s", s.endpoint.LocalAddr())
	}
	return nil
}

// Stop shuts the server down: the socket closes, all loops exit.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return transport.ErrClosed
	}
	s.closed = true
	s.mu.Unlock()

	close(s.closeCh)
	if err := s.endpoint.Stop(); err != nil {
		return err
	}
	s.wg.Wait()
	return nil
}

// LocalAddr returns the bound socket address.
func (s *Server) LocalAddr() net.Addr {
	return s.endpoint.LocalAddr()
}

// Registry exposes the session registry, for tests and diagnostics.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Users exposes the user store, for tests and diagnostics.
func (s *Server) Users() *userstore.Store {
	return s.users
}

// onPresence runs under the registry lock for every Online/Offline
// decision. It stamps the transition into the chat history while the
// registry's ordering still holds, tells the local sink, and queues the
// broadcast; the actual fan-out happens on broadcastLoop, off the lock.
func (s *Server) onPresence(ev session.Event) {
	now := s.clk.Now()
	online := ev.Kind == session.EventOnline
	s.room.PostPresence(ev.Username, online, now)

	if online {
		s.sink.Notify(notify.Event{Kind: notify.Online, Username: ev.Username})
	} else {
		s.sink.Notify(notify.Event{Kind: notify.Offline, Username: ev.Username})
	}
	s.sink.Notify(notify.Event{Kind: notify.UsersUpdated})

	select {
	case s.presenceCh <- ev:
	default:
		if s.log != nil {
			s.log.Warnf("presence broadcast queue full, dropping %v for %q", ev.Kind, ev.Username)
		}
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.closeCh:
			return
		case ev := <-s.presenceCh:
			op := wire.OpEventOffline
			body := wire.EventOffline{Username: ev.Username}.Encode()
			if ev.Kind == session.EventOnline {
				op = wire.OpEventOnline
				body = wire.EventOnline{Username: ev.Username}.Encode()
			}
			s.broadcastEvent(op, body, "")
		}
	}
}

// broadcastEvent seals and sends an event frame to every authenticated
// session except the one named by skipUser (empty to skip nobody).
func (s *Server) broadcastEvent(op wire.OpCode, body []byte, skipUser string) {
	frame := wire.EncodeFrame(wire.Header{Dir: wire.DirEvent, Op: op}, body)
	for _, sess := range s.registry.Authenticated() {
		if skipUser != "" && sess.Username() == skipUser {
			continue
		}
		s.sealAndSend(sess, frame)
	}
}

// sendEvent seals and sends an event frame to one session.
func (s *Server) sendEvent(sess *session.Session, op wire.OpCode, body []byte) {
	frame := wire.EncodeFrame(wire.Header{Dir: wire.DirEvent, Op: op}, body)
	s.sealAndSend(sess, frame)
}

// sealAndSend seals a plaintext frame for sess and writes it out. A session
// that exhausts its nonce space is closed: the peer must rehandshake.
func (s *Server) sealAndSend(sess *session.Session, frame []byte) {
	nonce, err := sess.Send.Next()
	if err != nil {
		s.registry.Close(sess)
		if s.log != nil {
			s.log.Warnf("closing session %s: %v", sess.PeerAddr, err)
		}
		return
	}
	sealed := crypto.Seal(sess.SharedKey, nonce, frame)
	if err := s.endpoint.Send(sealed, sess.PeerAddr); err != nil && s.log != nil {
		s.log.Warnf("send to %s failed: %v", sess.PeerAddr, err)
	}
}

// handleDatagram is the endpoint's receive handler: cleartext handshake
// frames establish sessions, sealed frames are opened, replay-checked, and
// dispatched. Undecodable frames are dropped without touching session
// state beyond the failure counter.
func (s *Server) handleDatagram(data []byte, addr net.Addr) {
	now := s.clk.Now()
	addrKey := transport.AddrKey(addr)

	if wire.IsCleartext(data) {
		kind, pub, err := wire.DecodeCleartext(data)
		if err != nil || kind != wire.KindHello {
			return
		}
		shared := s.keys.SharedKey(pub)
		s.registry.UpsertUnauth(addr, addrKey, pub, shared, now)
		s.endpoint.Send(wire.EncodeHelloAck(s.keys.Public), addr)
		return
	}

	sess, ok := s.registry.GetByAddr(addrKey)
	if !ok {
		return
	}

	plaintext, nonce, err := crypto.Open(sess.SharedKey, data)
	if err != nil {
		s.registry.RecordFailure(sess, now)
		return
	}
	if crypto.NonceDirection(nonce) != crypto.DirClientToServer {
		s.registry.RecordFailure(sess, now)
		return
	}
	if !sess.Recv.CheckAndAccept(crypto.NonceCounter(nonce)) {
		// Replay: drop without side effects, the counter state is untouched.
		return
	}

	header, body, err := wire.DecodeFrame(plaintext)
	if err != nil {
		s.registry.RecordFailure(sess, now)
		return
	}

	s.registry.Touch(sess, now)

	switch header.Dir {
	case wire.DirRequest:
		s.handleRequest(sess, header, body, now)
	case wire.DirEvent:
		// Client events carry nothing beyond the touch above. Heartbeats
		// arrive as requests and are answered in handleRequest.
	case wire.DirResponse:
		// The server never sends requests, so no response can match.
	}
}
