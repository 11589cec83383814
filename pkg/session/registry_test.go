package session

import (
	"net"
	"testing"
	"time"
)

func addr(s string) net.Addr {
	a, _ := net.ResolveUDPAddr("udp", s)
	return a
}

func newUnauth(t *testing.T, r *Registry, a string) *Session {
	t.Helper()
	return r.UpsertUnauth(addr(a), a, [32]byte{}, [32]byte{}, time.Now())
}

func TestUpsertUnauthIsIdempotentPerAddr(t *testing.T) {
	r := New(Config{HeartbeatInterval: time.Minute})
	s1 := newUnauth(t, r, "1.1.1.1:1")
	s2 := r.UpsertUnauth(addr("1.1.1.1:1"), "1.1.1.1:1", [32]byte{}, [32]byte{}, time.Now())
	if s1 != s2 {
		t.Fatal("expected same session for repeated handshake from same address")
	}
}

func TestUpsertUnauthReplacesRestartedPeer(t *testing.T) {
	var events []Event
	r := New(Config{
		HeartbeatInterval: time.Minute,
		OnEvent:           func(e Event) { events = append(events, e) },
	})

	s1 := newUnauth(t, r, "1.1.1.1:1")
	r.Authenticate(s1, "alice", time.Now())

	// Same address, different public key: the peer restarted.
	s2 := r.UpsertUnauth(addr("1.1.1.1:1"), "1.1.1.1:1", [32]byte{1}, [32]byte{}, time.Now())
	if s2 == s1 {
		t.Fatal("expected a fresh session for a rehandshake with a new key")
	}
	if _, ok := r.GetByUsername("alice"); ok {
		t.Fatal("stale authenticated session should be gone")
	}
	if len(events) != 2 || events[1].Kind != EventOffline {
		t.Fatalf("events = %+v", events)
	}
}

func TestAuthenticateEvictsPriorSession(t *testing.T) {
	var events []Event
	r := New(Config{
		HeartbeatInterval: time.Minute,
		OnEvent:           func(e Event) { events = append(events, e) },
	})

	s1 := newUnauth(t, r, "1.1.1.1:1")
	if err := r.Authenticate(s1, "alice", time.Now()); err != nil {
		t.Fatalf("Authenticate s1: %v", err)
	}

	s2 := newUnauth(t, r, "2.2.2.2:2")
	if err := r.Authenticate(s2, "alice", time.Now()); err != nil {
		t.Fatalf("Authenticate s2: %v", err)
	}

	shell, ok := r.GetByAddr("1.1.1.1:1")
	if !ok {
		t.Fatal("evicted peer should keep an address entry")
	}
	if shell.Authenticated() {
		t.Fatal("evicted peer's replacement session must be unauthenticated")
	}
	cur, ok := r.GetByUsername("alice")
	if !ok || cur != s2 {
		t.Fatal("expected s2 to be the current session for alice")
	}

	want := []EventKind{EventOnline, EventOffline, EventOnline}
	if len(events) != len(want) {
		t.Fatalf("events = %+v, want %d events", events, len(want))
	}
	for i, k := range want {
		if events[i].Kind != k {
			t.Fatalf("event[%d] = %v, want %v", i, events[i].Kind, k)
		}
	}
}

func TestAuthenticateTwiceFails(t *testing.T) {
	r := New(Config{HeartbeatInterval: time.Minute})
	s := newUnauth(t, r, "1.1.1.1:1")
	if err := r.Authenticate(s, "alice", time.Now()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if err := r.Authenticate(s, "alice", time.Now()); err != ErrAlreadyAuthenticated {
		t.Fatalf("second Authenticate err = %v, want ErrAlreadyAuthenticated", err)
	}
}

func TestReapRemovesExpiredSessionsAndEmitsOffline(t *testing.T) {
	var events []Event
	r := New(Config{
		HeartbeatInterval: 50 * time.Millisecond,
		OnEvent:           func(e Event) { events = append(events, e) },
	})

	s := newUnauth(t, r, "1.1.1.1:1")
	if err := r.Authenticate(s, "alice", time.Now()); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	r.Reap(time.Now())
	if r.Len() != 1 {
		t.Fatalf("session reaped too early, len=%d", r.Len())
	}

	r.Reap(time.Now().Add(100 * time.Millisecond))
	if r.Len() != 0 {
		t.Fatalf("expected session reaped, len=%d", r.Len())
	}
	if _, ok := r.GetByUsername("alice"); ok {
		t.Fatal("reaped session still indexed by username")
	}

	if len(events) != 2 || events[0].Kind != EventOnline || events[1].Kind != EventOffline {
		t.Fatalf("events = %+v", events)
	}
}

func TestReapSparesTouchedSessions(t *testing.T) {
	r := New(Config{HeartbeatInterval: 100 * time.Millisecond})
	s := newUnauth(t, r, "1.1.1.1:1")
	r.Authenticate(s, "alice", time.Now())

	r.Touch(s, time.Now())
	r.Reap(time.Now().Add(50 * time.Millisecond))
	if r.Len() != 1 {
		t.Fatalf("touched session reaped early, len=%d", r.Len())
	}
}

func TestLogoutEmitsOfflineOnlyIfAuthenticated(t *testing.T) {
	var events []Event
	r := New(Config{
		HeartbeatInterval: time.Minute,
		OnEvent:           func(e Event) { events = append(events, e) },
	})

	s := newUnauth(t, r, "1.1.1.1:1")
	r.Logout(s)
	if len(events) != 0 {
		t.Fatalf("logout of unauthenticated session should not emit, got %+v", events)
	}

	s2 := newUnauth(t, r, "2.2.2.2:2")
	r.Authenticate(s2, "bob", time.Now())
	r.Logout(s2)
	if len(events) != 2 || events[1].Kind != EventOffline {
		t.Fatalf("events = %+v", events)
	}
}

func TestRecordFailureClosesSessionAfterThreshold(t *testing.T) {
	r := New(Config{HeartbeatInterval: time.Minute})
	s := newUnauth(t, r, "1.1.1.1:1")

	now := time.Now()
	for i := 0; i < 31; i++ {
		if r.RecordFailure(s, now) {
			t.Fatalf("closed too early at failure %d", i)
		}
	}
	if !r.RecordFailure(s, now) {
		t.Fatal("expected session closed at 32nd consecutive failure")
	}
	if r.Len() != 0 {
		t.Fatalf("expected session removed, len=%d", r.Len())
	}
}

func TestRecordFailureWindowResets(t *testing.T) {
	r := New(Config{HeartbeatInterval: time.Minute})
	s := newUnauth(t, r, "1.1.1.1:1")

	base := time.Now()
	for i := 0; i < 20; i++ {
		r.RecordFailure(s, base)
	}
	// Past the 10s window: counter should reset instead of accumulating.
	closed := false
	later := base.Add(11 * time.Second)
	for i := 0; i < 31; i++ {
		if r.RecordFailure(s, later) {
			closed = true
			break
		}
	}
	if closed {
		t.Fatal("failures outside the 10s window should not accumulate toward closure")
	}
}
