// chatroom-server runs the chatroom relay: it listens on one UDP socket,
// authenticates clients, relays private and public messages, and persists
// user credentials.
//
// Usage:
//
//	chatroom-server [options]
//
// Options:
//
//	-bind          UDP listen address (default: 0.0.0.0:0)
//	-heartbeat-ms  session liveness window in milliseconds (default: 60000)
//	-store         user store path (default: ./users.bin)
//
// The CHATROOM_LOG environment variable sets the log level (trace, debug,
// info, warn, error, disabled).
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/logging"

	"github.com/chatroom-core/chatroom/pkg/notify"
	"github.com/chatroom-core/chatroom/pkg/server"
	"github.com/chatroom-core/chatroom/pkg/userstore"
)

func main() {
	defaults := server.DefaultConfig()

	bind := flag.String("bind", defaults.BindAddr, "UDP listen address")
	heartbeatMS := flag.Uint("heartbeat-ms", uint(defaults.HeartbeatInterval/time.Millisecond), "session liveness window in milliseconds")
	store := flag.String("store", defaults.StorePath, "user store path")
	flag.Parse()

	if _, err := net.ResolveUDPAddr("udp", *bind); err != nil {
		fmt.Fprintf(os.Stderr, "invalid bind address %q: %v\n", *bind, err)
		os.Exit(1)
	}
	if *heartbeatMS == 0 {
		fmt.Fprintln(os.Stderr, "heartbeat-ms must be positive")
		os.Exit(1)
	}

	sink := notify.NewChannelSink(64)
	srv, err := server.New(server.Config{
		BindAddr:          *bind,
		HeartbeatInterval: time.Duration(*heartbeatMS) * time.Millisecond,
		StorePath:         *store,
		Sink:              sink,
		LoggerFactory:     loggerFactory(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		if errors.Is(err, userstore.ErrStoreCorrupt) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if err := srv.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}
	log.Printf("listening on %s", srv.LocalAddr())

	go func() {
		for ev := range sink.Events() {
			switch ev.Kind {
			case notify.Online:
				log.Printf("%s is online", ev.Username)
			case notify.Offline:
				log.Printf("%s is offline", ev.Username)
			}
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	if err := srv.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown failed: %v\n", err)
		os.Exit(1)
	}
}

// loggerFactory builds the process logger, levelled by CHATROOM_LOG.
func loggerFactory() logging.LoggerFactory {
	factory := logging.NewDefaultLoggerFactory()
	switch os.Getenv("CHATROOM_LOG") {
	case "trace":
		factory.DefaultLogLevel = logging.LogLevelTrace
	case "debug":
		factory.DefaultLogLevel = logging.LogLevelDebug
	case "info":
		factory.DefaultLogLevel = logging.LogLevelInfo
	case "warn":
		factory.DefaultLogLevel = logging.LogLevelWarn
	case "disabled":
		factory.DefaultLogLevel = logging.LogLevelDisabled
	default:
		factory.DefaultLogLevel = logging.LogLevelError
	}
	return factory
}
