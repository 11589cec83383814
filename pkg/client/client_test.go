package client

import (
	"errors"
	"testing"

	"github.com/chatroom-core/chatroom/pkg/wire"
)

func TestOperationsRequireConnection(t *testing.T) {
	s := New(Config{ServerAddr: "127.0.0.1:1"})

	if err := s.Login("alice", "pw"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Login err = %v", err)
	}
	if err := s.Say(nil, "hi"); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Say err = %v", err)
	}
	if _, err := s.GetChats(nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("GetChats err = %v", err)
	}
}

func TestPersonalInfoStartsAnonymous(t *testing.T) {
	s := New(Config{ServerAddr: "127.0.0.1:1"})
	info := s.GetPersonalInfo()
	if info.Username != "" || info.Authenticated {
		t.Fatalf("info = %+v", info)
	}
	if s.State() != StateDisconnected {
		t.Fatalf("state = %v", s.State())
	}
}

func TestRosterSortedSnapshot(t *testing.T) {
	s := New(Config{ServerAddr: "127.0.0.1:1"})
	s.updateRoster([]wire.UserInfoWire{
		{Name: "carol", Online: true},
		{Name: "alice", Online: false},
		{Name: "bob", Online: true},
	})

	got := s.Roster()
	if len(got) != 3 || got[0].Name != "alice" || got[1].Name != "bob" || got[2].Name != "carol" {
		t.Fatalf("roster = %+v", got)
	}
}

func TestEventUpdatesRoster(t *testing.T) {
	s := New(Config{ServerAddr: "127.0.0.1:1"})
	s.handleEvent(wire.OpEventOnline, wire.EventOnline{Username: "alice"}.Encode())

	got := s.Roster()
	if len(got) != 1 || got[0].Name != "alice" || !got[0].Online {
		t.Fatalf("roster = %+v", got)
	}

	s.handleEvent(wire.OpEventOffline, wire.EventOffline{Username: "alice"}.Encode())
	if got := s.Roster(); got[0].Online {
		t.Fatalf("roster after offline = %+v", got)
	}
}

func TestServerErrorKind(t *testing.T) {
	err := error(&ServerError{Kind: wire.KindCredentialInvalid, Message: "nope"})
	if !IsKind(err, wire.KindCredentialInvalid) {
		t.Fatal("IsKind must match")
	}
	if IsKind(err, wire.KindUserExists) {
		t.Fatal("IsKind must not match a different kind")
	}
	if IsKind(errors.New("plain"), wire.KindUserExists) {
		t.Fatal("IsKind on a plain error must be false")
	}
}
