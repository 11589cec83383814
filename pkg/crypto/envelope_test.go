package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestSealOpenRoundtrip(t *testing.T) {
	client, err := GenerateKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("client keypair: %v", err)
	}
	server, err := GenerateKeyPair(rand.Reader)
	if err != nil {
		t.Fatalf("server keypair: %v", err)
	}

	clientKey := client.SharedKey(server.Public)
	serverKey := server.SharedKey(client.Public)
	if clientKey != serverKey {
		t.Fatal("shared keys do not match")
	}

	nonce := BuildNonce(DirClientToServer, 0)
	sealed := Seal(clientKey, nonce, []byte("hello server"))

	plaintext, gotNonce, err := Open(serverKey, sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello server")) {
		t.Fatalf("plaintext = %q", plaintext)
	}
	if gotNonce != nonce {
		t.Fatalf("nonce mismatch")
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	a, _ := GenerateKeyPair(rand.Reader)
	b, _ := GenerateKeyPair(rand.Reader)
	key := a.SharedKey(b.Public)

	sealed := Seal(key, BuildNonce(DirClientToServer, 0), []byte("payload"))
	sealed[len(sealed)-1] ^= 0xff

	if _, _, err := Open(key, sealed); err != ErrAuthFailure {
		t.Fatalf("err = %v, want ErrAuthFailure", err)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	a, _ := GenerateKeyPair(rand.Reader)
	b, _ := GenerateKeyPair(rand.Reader)
	c, _ := GenerateKeyPair(rand.Reader)

	sealed := Seal(a.SharedKey(b.Public), BuildNonce(DirClientToServer, 0), []byte("payload"))
	if _, _, err := Open(a.SharedKey(c.Public), sealed); err != ErrAuthFailure {
		t.Fatalf("err = %v, want ErrAuthFailure", err)
	}
}

func TestSendCounterExhaustion(t *testing.T) {
	c := &SendCounter{dir: DirClientToServer, value: ^uint64(0)}
	if _, err := c.Next(); err != ErrNonceExhausted {
		t.Fatalf("err = %v, want ErrNonceExhausted", err)
	}
}

func TestReplayWindowMonotonicAndRejection(t *testing.T) {
	w := NewReplayWindow()

	if !w.CheckAndAccept(10) {
		t.Fatal("first counter must be accepted")
	}
	if w.CheckAndAccept(10) {
		t.Fatal("duplicate counter must be rejected")
	}
	if !w.CheckAndAccept(11) {
		t.Fatal("advancing counter must be accepted")
	}
	// 5 is also within the 64-wide window behind ceiling 11 and unseen.
	if !w.CheckAndAccept(5) {
		t.Fatal("unseen counter inside the window must be accepted")
	}
	// 9 is within the 64-wide window behind ceiling 11 and unseen.
	if !w.CheckAndAccept(9) {
		t.Fatal("unseen in-window counter must be accepted")
	}
	if w.CheckAndAccept(9) {
		t.Fatal("now-seen in-window counter must be rejected")
	}
}

func TestReplayWindowSlidesPastOldEntries(t *testing.T) {
	w := NewReplayWindow()
	w.CheckAndAccept(100)
	if !w.CheckAndAccept(200) {
		t.Fatal("large jump forward must be accepted")
	}
	if w.CheckAndAccept(100) {
		t.Fatal("counter now outside the slid window must be rejected")
	}
}
