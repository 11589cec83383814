package server

import (
	"time"

	"github.com/chatroom-core/chatroom/pkg/client"
	"github.com/chatroom-core/chatroom/pkg/notify"
)

// TestHarness runs one Server on a loopback socket plus any number of
// client sessions aimed at it, so end-to-end handshake/login/chat flows can
// be exercised without leaving the process. Exported for reuse by other
// packages' tests.
type TestHarness struct {
	Server *Server
	Sink   *notify.MemorySink

	heartbeat time.Duration
	clients   []*client.Session
}

// NewTestHarness starts a server with the given store path and heartbeat
// interval, recording its notifications in Sink.
func NewTestHarness(storePath string, heartbeat time.Duration) (*TestHarness, error) {
	sink := notify.NewMemorySink()
	srv, err := New(Config{
		BindAddr:          "127.0.0.1:0",
		HeartbeatInterval: heartbeat,
		StorePath:         storePath,
		Sink:              sink,
	})
	if err != nil {
		return nil, err
	}
	if err := srv.Start(); err != nil {
		return nil, err
	}
	return &TestHarness{Server: srv, Sink: sink, heartbeat: heartbeat}, nil
}

// NewClient connects a fresh client session to the harness server,
// recording its notifications in the returned sink.
func (h *TestHarness) NewClient() (*client.Session, *notify.MemorySink, error) {
	sink := notify.NewMemorySink()
	c := client.New(client.Config{
		ServerAddr:        h.Server.LocalAddr().String(),
		HeartbeatInterval: h.heartbeat,
		RequestTimeout:    2 * time.Second,
		Sink:              sink,
	})
	if err := c.Connect(2 * time.Second); err != nil {
		return nil, nil, err
	}
	h.clients = append(h.clients, c)
	return c, sink, nil
}

// Close disconnects every client and stops the server.
func (h *TestHarness) Close() {
	for _, c := range h.clients {
		c.Disconnect()
	}
	h.Server.Stop()
}
