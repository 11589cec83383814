// chatroom-client is a minimal line-oriented shell around the chatroom
// client session, for poking at a server without a UI.
//
// Usage:
//
//	chatroom-client -server <addr>
//
// Commands once running:
//
//	register <user> <password>
//	login <user> <password>
//	passwd <old> <new>
//	say <text>              post to the public room
//	tell <user> <text>      private message
//	chats [user]            show history (public without an argument)
//	users                   show the roster
//	logout
//	quit
//
// The CHATROOM_LOG environment variable sets the log level.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pion/logging"

	"github.com/chatroom-core/chatroom/pkg/client"
	"github.com/chatroom-core/chatroom/pkg/notify"
	"github.com/chatroom-core/chatroom/pkg/wire"
)

func main() {
	serverAddr := flag.String("server", "", "server address (host:port)")
	flag.Parse()

	if *serverAddr == "" {
		fmt.Fprintln(os.Stderr, "missing -server address")
		os.Exit(1)
	}

	sink := notify.NewChannelSink(64)
	sess := client.New(client.Config{
		ServerAddr:    *serverAddr,
		Sink:          sink,
		LoggerFactory: loggerFactory(),
	})

	if err := sess.Connect(5 * time.Second); err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer sess.Disconnect()
	fmt.Printf("connected to %s\n", *serverAddr)

	go printNotifications(sink)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		if quit := runCommand(sess, scanner.Text()); quit {
			return
		}
	}
}

func runCommand(sess *client.Session, line string) (quit bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := fields[0], fields[1:]

	var err error
	switch cmd {
	case "register":
		if len(args) != 2 {
			err = fmt.Errorf("usage: register <user> <password>")
			break
		}
		err = sess.Register(args[0], args[1])
	case "login":
		if len(args) != 2 {
			err = fmt.Errorf("usage: login <user> <password>")
			break
		}
		err = sess.Login(args[0], args[1])
	case "passwd":
		if len(args) != 2 {
			err = fmt.Errorf("usage: passwd <old> <new>")
			break
		}
		err = sess.ChangePassword(args[0], args[1])
	case "say":
		err = sess.Say(nil, strings.Join(args, " "))
	case "tell":
		if len(args) < 2 {
			err = fmt.Errorf("usage: tell <user> <text>")
			break
		}
		err = sess.Say(&args[0], strings.Join(args[1:], " "))
	case "chats":
		var peer *string
		if len(args) > 0 {
			peer = &args[0]
		}
		var entries []wire.ChatEntryWire
		if entries, err = sess.GetChats(peer); err == nil {
			for _, e := range entries {
				printEntry(e)
			}
		}
	case "users":
		var users []wire.UserInfoWire
		if users, err = sess.GetUserInfo(); err == nil {
			for _, u := range users {
				state := "offline"
				if u.Online {
					state = "online"
				}
				fmt.Printf("%s (%s)\n", u.Name, state)
			}
		}
	case "logout":
		err = sess.Logout()
	case "quit":
		return true
	default:
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		fmt.Printf("error: %v\n", err)
	}
	return false
}

func printEntry(e wire.ChatEntryWire) {
	stamp := time.UnixMilli(e.UnixTimeMS).Format("15:04:05")
	switch e.Kind {
	case wire.ChatKindOnline:
		fmt.Printf("[%s] * %s came online\n", stamp, e.Speaker)
	case wire.ChatKindOffline:
		fmt.Printf("[%s] * %s went offline\n", stamp, e.Speaker)
	case wire.ChatKindMessage:
		fmt.Printf("[%s] <%s> %s\n", stamp, e.Speaker, e.Text)
	}
}

func printNotifications(sink *notify.ChannelSink) {
	for ev := range sink.Events() {
		switch ev.Kind {
		case notify.Online:
			fmt.Printf("* %s is online\n", ev.Username)
		case notify.Offline:
			fmt.Printf("* %s is offline\n", ev.Username)
		case notify.NewMsg:
			if ev.From != nil {
				fmt.Printf("* new message from %s\n", *ev.From)
			} else {
				fmt.Println("* new message in the public room")
			}
		case notify.ConnectionLost:
			fmt.Println("* connection lost")
		case notify.NotLogin:
			fmt.Println("* please log in first")
		}
	}
}

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
