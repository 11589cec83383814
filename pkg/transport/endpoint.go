// Package transport owns the UDP socket shared by a chatroom client or
// server: a receive loop that dispatches inbound datagrams to a handler,
// and timer loops that drive periodic maintenance (session reaping,
// heartbeat emission — whichever the owner needs).
//
// The package is deliberately ignorant of frame encoding, crypto, and
// sessions: it moves bytes and addresses, nothing more.
package transport

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/chatroom-core/chatroom/pkg/wire"
)

// Handler processes one inbound datagram. Implementations should return
// quickly or hand off to a goroutine; the receive loop calls the handler
// synchronously between reads.
type Handler func(data []byte, addr net.Addr)

// Endpoint owns one UDP socket, a receive loop, and any timer loops started
// on it.
type Endpoint struct {
	conn    net.PacketConn
	handler Handler
	closeCh chan struct{}
	wg      sync.WaitGroup
	log     logging.LeveledLogger

	mu      sync.RWMutex
	started bool
	closed  bool
}

// Config configures a new Endpoint.
type Config struct {
	// Conn is an optional pre-existing PacketConn (tests wire this directly
	// with an in-memory pipe). If nil, a new UDP connection is opened on
	// ListenAddr.
	Conn net.PacketConn

	// ListenAddr is used to open a new connection when Conn is nil. Empty
	// means an ephemeral client port.
	ListenAddr string

	// Handler is called for every inbound datagram. Required.
	Handler Handler

	// LoggerFactory creates the endpoint's logger. Logging is disabled when nil.
	LoggerFactory logging.LoggerFactory
}

// New creates an Endpoint without starting its loops.
func New(config Config) (*Endpoint, error) {
	if config.Handler == nil {
		return nil, ErrNoHandler
	}

	e := &Endpoint{
		conn:    config.Conn,
		handler: config.Handler,
		closeCh: make(chan struct{}),
	}

	if config.LoggerFactory != nil {
		e.log = config.LoggerFactory.NewLogger("transport")
	}

	if e.conn == nil {
		addr := config.ListenAddr
		if addr == "" {
			addr = ":0"
		}
		conn, err := net.ListenPacket("udp", addr)
		if err != nil {
			return nil, err
		}
		e.conn = conn
	}

	return e, nil
}

// Start begins the receive loop.
func (e *Endpoint) Start() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.started {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.mu.Unlock()

	if e.log != nil {
		e.log.Infof("starting endpoint on %s", e.conn.LocalAddr())
	}

	e.wg.Add(1)
	go e.receiveLoop()
	return nil
}

// StartTimerLoop runs onTick every interval until the endpoint is stopped.
// Multiple timer loops may be started; each runs independently. Callers
// decide what maintenance means for them: reqtable timeouts are
// self-scheduled per slot and need no timer loop at all, so this is used
// for session reaping (server) and heartbeat emission (client).
func (e *Endpoint) StartTimerLoop(interval time.Duration, onTick func(now time.Time)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-e.closeCh:
				return
			case now := <-ticker.C:
				onTick(now)
			}
		}
	}()
}

// Stop closes the socket and waits for all loops to exit. There is no
// partially-shut-down state.
func (e *Endpoint) Stop() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	e.mu.Unlock()

	if e.log != nil {
		e.log.Info("stopping endpoint")
	}

	close(e.closeCh)
	e.conn.SetReadDeadline(time.Now())
	e.conn.Close()
	e.wg.Wait()
	return nil
}

// Send writes one datagram to addr.
func (e *Endpoint) Send(data []byte, addr net.Addr) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	e.mu.RUnlock()

	if len(data) > wire.MaxPayloadSize {
		return ErrMessageTooLarge
	}

	if e.log != nil {
		e.log.Debugf("sending %d bytes to %v", len(data), addr)
	}

	_, err := e.conn.WriteTo(data, addr)
	if err != nil && e.log != nil {
		e.log.Warnf("send failed: %v", err)
	}
	return err
}

// LocalAddr returns the address the endpoint is bound to.
func (e *Endpoint) LocalAddr() net.Addr {
	return e.conn.LocalAddr()
}

func (e *Endpoint) receiveLoop() {
	defer e.wg.Done()

	buf := make([]byte, wire.MaxPayloadSize)
	for {
		select {
		case <-e.closeCh:
			return
		default:
		}

		n, addr, err := e.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-e.closeCh:
				return
			default:
				if e.log != nil {
					e.log.Warnf("read error: %v", err)
				}
				continue
			}
		}
		if n == 0 {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		if e.log != nil {
			e.log.Debugf("received %d bytes from %v", n, addr)
		}

		e.handler(data, addr)
	}
}
