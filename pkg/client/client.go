// Package client implements the chatroom client session: one endpoint
// aimed at one server, the handshake that keys it, the request/response
// machinery every operation rides on, and a local mirror of the roster and
// chat history the surrounding shell renders from.
package client

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/chatroom-core/chatroom/pkg/clock"
	"github.com/chatroom-core/chatroom/pkg/crypto"
	"github.com/chatroom-core/chatroom/pkg/notify"
	"github.com/chatroom-core/chatroom/pkg/reqtable"
	"github.com/chatroom-core/chatroom/pkg/transport"
	"github.com/chatroom-core/chatroom/pkg/wire"
)

// DefaultRequestTimeout applies when Config leaves RequestTimeout zero.
const DefaultRequestTimeout = 5 * time.Second

// DefaultHeartbeatInterval applies when Config leaves HeartbeatInterval
// zero. It must match the server's liveness window.
const DefaultHeartbeatInterval = 60 * time.Second

// State is the client session's lifecycle position.
type State int

const (
	StateDisconnected State = iota
	StateHandshaking
	StateConnected     // handshake done, not logged in
	StateAuthenticated // logged in
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateHandshaking:
		return "handshaking"
	case StateConnected:
		return "connected"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Config configures a client Session.
type Config struct {
	// ServerAddr is the server's host:port. Ignored when ServerNetAddr is
	// set.
	ServerAddr string

	// Conn is an optional pre-existing socket, used by tests to run the
	// client over an in-memory pipe. ServerNetAddr must be set with it.
	Conn          net.PacketConn
	ServerNetAddr net.Addr

	// RequestTimeout bounds each request; zero selects the default.
	RequestTimeout time.Duration

	// HeartbeatInterval is the liveness window shared with the server:
	// heartbeats go out every third of it, and silence past one full
	// interval counts as a lost connection.
	HeartbeatInterval time.Duration

	// Sink receives notifications for the surrounding shell. Optional.
	Sink notify.Sink

	// Clock supplies time; nil selects the system clock.
	Clock clock.Clock

	LoggerFactory logging.LoggerFactory
}

// Session is one client's connection to one server.
type Session struct {
	cfg  Config
	sink notify.Sink
	clk  clock.Clock
	log  logging.LeveledLogger

	mu          sync.Mutex
	state       State
	endpoint    *transport.Endpoint
	table       *reqtable.Table
	serverAddr  net.Addr
	keys        crypto.KeyPair
	sharedKey   [crypto.KeySize]byte
	send        *crypto.SendCounter
	recv        *crypto.ReplayWindow
	username    string
	lastInbound time.Time
	helloCh     chan [crypto.KeySize]byte

	roster map[string]bool
	chats  map[string][]wire.ChatEntryWire
}

// New creates a disconnected Session.
func New(config Config) *Session {
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = DefaultRequestTimeout
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}

	s := &Session{
		cfg:    config,
		sink:   config.Sink,
		clk:    config.Clock,
		roster: make(map[string]bool),
		chats:  make(map[string][]wire.ChatEntryWire),
	}
	if s.sink == nil {
		s.sink = notify.Discard
	}
	if s.clk == nil {
		s.clk = clock.System()
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("client")
	}
	return s
}

// Connect performs the handshake within timeout: Hello out, HelloAck back,
// shared key derived. The Hello is re-sent a few times inside the deadline
// since a single datagram may simply be lost.
func (s *Session) Connect(timeout time.Duration) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return ErrAlreadyConnected
	}
	s.state = StateHandshaking
	s.mu.Unlock()

	err := s.connect(timeout)
	if err != nil {
		s.teardown()
		s.sink.Notify(notify.Event{Kind: notify.ConnectionLost})
	}
	return err
}

func (s *Session) connect(timeout time.Duration) error {
	keys, err := crypto.GenerateKeyPair(nil)
	if err != nil {
		return err
	}

	serverAddr := s.cfg.ServerNetAddr
	if serverAddr == nil {
		serverAddr, err = transport.ResolveUDPAddr(s.cfg.ServerAddr)
		if err != nil {
			return err
		}
	}

	endpoint, err := transport.New(transport.Config{
		Conn:          s.cfg.Conn,
		Handler:       s.handleDatagram,
		LoggerFactory: s.cfg.LoggerFactory,
	})
	if err != nil {
		return err
	}

	helloCh := make(chan [crypto.KeySize]byte, 1)
	s.mu.Lock()
	s.keys = keys
	s.serverAddr = serverAddr
	s.endpoint = endpoint
	s.table = reqtable.New()
	s.helloCh = helloCh
	s.mu.Unlock()

	if err := endpoint.Start(); err != nil {
		return err
	}

	hello := wire.EncodeHello(keys.Public)
	if err := endpoint.Send(hello, serverAddr); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportError, err)
	}

	resendEvery := timeout / 4
	if resendEvery < 50*time.Millisecond {
		resendEvery = 50 * time.Millisecond
	}
	resend := time.NewTicker(resendEvery)
	defer resend.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var serverPub [crypto.KeySize]byte
	for {
		select {
		case serverPub = <-helloCh:
		case <-resend.C:
			endpoint.Send(hello, serverAddr)
			continue
		case <-deadline.C:
			return ErrHandshakeTimeout
		}
		break
	}

	s.mu.Lock()
	s.sharedKey = keys.SharedKey(serverPub)
	s.send = crypto.NewSendCounter(crypto.DirClientToServer)
	s.recv = crypto.NewReplayWindow()
	s.state = StateConnected
	s.lastInbound = s.clk.Now()
	s.mu.Unlock()

	endpoint.StartTimerLoop(s.cfg.HeartbeatInterval/3, s.onHeartbeatTick)

	if s.log != nil {
		s.log.Infof("connected to %s", serverAddr)
	}
	return nil
}

// Disconnect drops the socket and fails all requests in flight. Safe to
// call in any state.
func (s *Session) Disconnect() {
	s.teardown()
}

func (s *Session) teardown() {
	s.mu.Lock()
	endpoint := s.endpoint
	table := s.table
	s.endpoint = nil
	s.table = nil
	s.state = StateDisconnected
	s.username = ""
	s.mu.Unlock()

	if table != nil {
		table.Shutdown()
	}
	if endpoint != nil {
		endpoint.Stop()
	}
}

// request sends one sealed request and waits for its Ack. A failed Ack
// surfaces as *ServerError; a not-authenticated rejection additionally
// notifies the sink so the shell can return to its login screen.
func (s *Session) request(op wire.OpCode, body []byte) ([]byte, error) {
	s.mu.Lock()
	if s.state != StateConnected && s.state != StateAuthenticated {
		s.mu.Unlock()
		return nil, ErrNotConnected
	}
	table := s.table
	endpoint := s.endpoint
	serverAddr := s.serverAddr
	sharedKey := s.sharedKey
	send := s.send
	s.mu.Unlock()

	id, wait, cancel, err := table.Allocate(s.cfg.RequestTimeout)
	if err != nil {
		return nil, ErrEndpointClosed
	}

	frame := wire.EncodeFrame(wire.Header{Dir: wire.DirRequest, CorrID: id, Op: op}, body)
	nonce, err := send.Next()
	if err != nil {
		// Nonce space exhausted: this session is done, a fresh handshake is
		// the only way forward.
		cancel()
		s.teardown()
		s.sink.Notify(notify.Event{Kind: notify.ConnectionLost})
		return nil, err
	}
	sealed := crypto.Seal(sharedKey, nonce, frame)
	if err := endpoint.Send(sealed, serverAddr); err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrTransportError, err)
	}

	resp := <-wait
	switch resp.Err {
	case nil:
	case reqtable.ErrTimeout:
		return nil, ErrRequestTimeout
	case reqtable.ErrClosed:
		return nil, ErrEndpointClosed
	default:
		return nil, resp.Err
	}

	ack, err := wire.DecodeAck(resp.Body)
	if err != nil {
		return nil, err
	}
	if !ack.OK {
		if ack.Kind == wire.KindNotAuthenticated {
			s.mu.Lock()
			if s.state == StateAuthenticated {
				s.state = StateConnected
				s.username = ""
			}
			s.mu.Unlock()
			s.sink.Notify(notify.Event{Kind: notify.NotLogin})
		}
		return nil, &ServerError{Kind: ack.Kind, Message: ack.Message}
	}
	return ack.Body, nil
}

// onHeartbeatTick runs every third of the heartbeat interval: it declares
// the connection lost after a full interval of inbound silence, and
// otherwise emits a heartbeat so the server's reaper leaves us alone.
func (s *Session) onHeartbeatTick(time.Time) {
	s.mu.Lock()
	state := s.state
	last := s.lastInbound
	s.mu.Unlock()

	if state != StateConnected && state != StateAuthenticated {
		return
	}
	if s.clk.Now().Sub(last) > s.cfg.HeartbeatInterval {
		if s.log != nil {
			s.log.Warn("no server traffic within the heartbeat interval")
		}
		// Tear down from a fresh goroutine: Stop waits for this very timer
		// loop to exit.
		go func() {
			s.teardown()
			s.sink.Notify(notify.Event{Kind: notify.ConnectionLost})
		}()
		return
	}

	go func() {
		if _, err := s.request(wire.OpHeartbeat, nil); err != nil && s.log != nil {
			s.log.Debugf("heartbeat: %v", err)
		}
	}()
}

// handleDatagram is the endpoint's receive handler.
func (s *Session) handleDatagram(data []byte, _ net.Addr) {
	if wire.IsCleartext(data) {
		kind, pub, err := wire.DecodeCleartext(data)
		if err != nil || kind != wire.KindHelloAck {
			return
		}
		s.mu.Lock()
		helloCh := s.helloCh
		s.mu.Unlock()
		if helloCh != nil {
			select {
			case helloCh <- pub:
			default:
			}
		}
		return
	}

	s.mu.Lock()
	if s.state != StateConnected && s.state != StateAuthenticated {
		s.mu.Unlock()
		return
	}
	sharedKey := s.sharedKey
	recv := s.recv
	table := s.table
	s.mu.Unlock()

	plaintext, nonce, err := crypto.Open(sharedKey, data)
	if err != nil {
		return
	}
	if crypto.NonceDirection(nonce) != crypto.DirServerToClient {
		return
	}
	if !recv.CheckAndAccept(crypto.NonceCounter(nonce)) {
		return
	}
	header, body, err := wire.DecodeFrame(plaintext)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.lastInbound = s.clk.Now()
	s.mu.Unlock()

	switch header.Dir {
	case wire.DirResponse:
		table.Complete(header.CorrID, body)
	case wire.DirEvent:
		s.handleEvent(header.Op, body)
	case wire.DirRequest:
		// The server never asks the client anything.
	}
}

func (s *Session) handleEvent(op wire.OpCode, body []byte) {
	switch op {
	case wire.OpEventOnline:
		ev, err := wire.DecodeEventOnline(body)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.roster[ev.Username] = true
		s.mu.Unlock()
		s.sink.Notify(notify.Event{Kind: notify.Online, Username: ev.Username})

	case wire.OpEventOffline:
		ev, err := wire.DecodeEventOffline(body)
		if err != nil {
			return
		}
		s.mu.Lock()
		if _, known := s.roster[ev.Username]; known {
			s.roster[ev.Username] = false
		}
		s.mu.Unlock()
		s.sink.Notify(notify.Event{Kind: notify.Offline, Username: ev.Username})

	case wire.OpEventNewMsg:
		ev, err := wire.DecodeEventNewMsg(body)
		if err != nil {
			return
		}
		s.sink.Notify(notify.Event{Kind: notify.NewMsg, From: ev.From})

	case wire.OpEventUsersUpd:
		s.sink.Notify(notify.Event{Kind: notify.UsersUpdated})
	}
}
