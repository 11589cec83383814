package notify

import "testing"

func TestChannelSinkDropsOnOverflow(t *testing.T) {
	s := NewChannelSink(2)
	s.Notify(Event{Kind: UsersUpdated})
	s.Notify(Event{Kind: UsersUpdated})
	s.Notify(Event{Kind: UsersUpdated})

	if got := s.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
	if len(s.Events()) != 2 {
		t.Fatalf("buffered = %d, want 2", len(s.Events()))
	}
}

func TestChannelSinkDeliversInOrder(t *testing.T) {
	s := NewChannelSink(4)
	s.Notify(Event{Kind: Online, Username: "alice"})
	s.Notify(Event{Kind: Offline, Username: "alice"})

	e := <-s.Events()
	if e.Kind != Online || e.Username != "alice" {
		t.Fatalf("first event = %+v", e)
	}
	e = <-s.Events()
	if e.Kind != Offline {
		t.Fatalf("second event = %+v", e)
	}
}

func TestMemorySinkOfKind(t *testing.T) {
	s := NewMemorySink()
	s.Notify(Event{Kind: Online, Username: "a"})
	s.Notify(Event{Kind: Log, Message: "x"})
	s.Notify(Event{Kind: Online, Username: "b"})

	online := s.OfKind(Online)
	if len(online) != 2 || online[0].Username != "a" || online[1].Username != "b" {
		t.Fatalf("OfKind(Online) = %+v", online)
	}
}
