package transport

import (
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/pion/transport/v3/test"
)

// NetworkCondition configures network behavior simulation for a Pipe.
type NetworkCondition struct {
	// DropRate is the probability of dropping a packet (0.0 - 1.0).
	DropRate float64

	// DelayMin and DelayMax bound an added delay, uniformly distributed.
	DelayMin time.Duration
	DelayMax time.Duration
}

// Pipe provides bidirectional in-memory packet communication between two
// endpoints, for tests that want to exercise Endpoint against a lossy or
// delayed link without touching a real socket. It wraps pion's test.Bridge
// and adds drop/delay simulation on top.
type Pipe struct {
	bridge *test.Bridge

	mu        sync.RWMutex
	condition NetworkCondition
	rng       *rand.Rand
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewPipe creates a pipe with a background goroutine delivering queued
// packets every millisecond.
func NewPipe() *Pipe {
	p := &Pipe{
		bridge: test.NewBridge(),
		rng:    rand.New(rand.NewSource(1)),
		stopCh: make(chan struct{}),
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-p.stopCh:
				return
			case <-ticker.C:
				p.bridge.Tick()
			}
		}
	}()
	return p
}

// SetCondition configures drop/delay simulation applied to writes from
// either side.
func (p *Pipe) SetCondition(c NetworkCondition) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.condition = c
}

// Side0 and Side1 return net.PacketConn endpoints of the pipe, addressed as
// pipe:0 and pipe:1 respectively.
func (p *Pipe) Side0() net.PacketConn { return p.wrap(0, p.bridge.GetConn0()) }
func (p *Pipe) Side1() net.PacketConn { return p.wrap(1, p.bridge.GetConn1()) }

// Addr0 and Addr1 return the pipe-side addresses, for callers that need a
// destination value for Side0/Side1 before any datagram has arrived.
func (p *Pipe) Addr0() net.Addr { return pipeAddr{id: 0} }
func (p *Pipe) Addr1() net.Addr { return pipeAddr{id: 1} }

func (p *Pipe) wrap(id int, conn net.Conn) net.PacketConn {
	peer := pipeAddr{id: 1 - id}
	return &pipeConn{conn: conn, local: pipeAddr{id: id}, peer: peer, pipe: p}
}

// Close stops delivery and closes both underlying connections.
func (p *Pipe) Close() error {
	close(p.stopCh)
	p.wg.Wait()
	p.bridge.GetConn0().Close()
	p.bridge.GetConn1().Close()
	return nil
}

type pipeAddr struct{ id int }

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return fmt.Sprintf("pipe:%d", a.id) }

type pipeConn struct {
	conn  net.Conn
	local pipeAddr
	peer  net.Addr
	pipe  *Pipe
}

func (c *pipeConn) ReadFrom(b []byte) (int, net.Addr, error) {
	n, err := c.conn.Read(b)
	return n, c.peer, err
}

func (c *pipeConn) WriteTo(b []byte, _ net.Addr) (int, error) {
	c.pipe.mu.RLock()
	cond := c.pipe.condition
	rng := c.pipe.rng
	c.pipe.mu.RUnlock()

	if cond.DropRate > 0 && rng.Float64() < cond.DropRate {
		return len(b), nil
	}
	if cond.DelayMax > 0 {
		delay := cond.DelayMin
		if cond.DelayMax > cond.DelayMin {
			delay += time.Duration(rng.Int63n(int64(cond.DelayMax - cond.DelayMin)))
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	return c.conn.Write(b)
}

func (c *pipeConn) Close() error                       { return c.conn.Close() }
func (c *pipeConn) LocalAddr() net.Addr                { return c.local }
func (c *pipeConn) SetDeadline(t time.Time) error      { return c.conn.SetDeadline(t) }
func (c *pipeConn) SetReadDeadline(t time.Time) error  { return c.conn.SetReadDeadline(t) }
func (c *pipeConn) SetWriteDeadline(t time.Time) error { return c.conn.SetWriteDeadline(t) }

var _ net.PacketConn = (*pipeConn)(nil)
