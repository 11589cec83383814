package userstore

import (
	"os"
	"path/filepath"
	"testing"
)

func tempStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.bin")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestOpenMissingFileIsEmptyStore(t *testing.T) {
	s, _ := tempStore(t)
	if s.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", s.Len())
	}
}

func TestRegisterVerifyRoundtrip(t *testing.T) {
	s, _ := tempStore(t)
	if err := s.Register("alice", "pw1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Verify("alice", "pw1"); err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if err := s.Verify("alice", "wrong"); err != ErrCredentialInvalid {
		t.Fatalf("wrong password err = %v, want ErrCredentialInvalid", err)
	}
	if err := s.Verify("nobody", "pw1"); err != ErrCredentialInvalid {
		t.Fatalf("unknown user err = %v, want ErrCredentialInvalid", err)
	}
}

func TestRegisterDuplicateFails(t *testing.T) {
	s, _ := tempStore(t)
	if err := s.Register("alice", "pw1"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := s.Register("alice", "pw2"); err != ErrUserExists {
		t.Fatalf("err = %v, want ErrUserExists", err)
	}
}

func TestRegisterRejectsBadUsernames(t *testing.T) {
	s, _ := tempStore(t)
	if err := s.Register("", "pw"); err != ErrCredentialInvalid {
		t.Fatalf("empty name err = %v", err)
	}
	long := make([]byte, 65)
	for i := range long {
		long[i] = 'a'
	}
	if err := s.Register(string(long), "pw"); err != ErrCredentialInvalid {
		t.Fatalf("overlong name err = %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	s, _ := tempStore(t)
	s.Register("alice", "old")

	if err := s.ChangePassword("alice", "wrong", "new"); err != ErrCredentialInvalid {
		t.Fatalf("wrong old password err = %v", err)
	}
	if err := s.ChangePassword("alice", "old", "new"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if err := s.Verify("alice", "new"); err != nil {
		t.Fatalf("Verify new: %v", err)
	}
	if err := s.Verify("alice", "old"); err != ErrCredentialInvalid {
		t.Fatalf("old password must stop working, err = %v", err)
	}
}

func TestPersistenceSurvivesReopen(t *testing.T) {
	s, path := tempStore(t)
	s.Register("alice", "pw1")
	s.Register("bob", "pw2")

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := reopened.Verify("alice", "pw1"); err != nil {
		t.Fatalf("Verify after reopen: %v", err)
	}
	got := reopened.Usernames()
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Fatalf("Usernames() = %v", got)
	}
}

func TestOpenCorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.bin")

	cases := map[string][]byte{
		"bad version":    {0x02, 0, 0, 0, 0},
		"truncated":      {0x01, 0, 0, 0, 5},
		"trailing bytes": {0x01, 0, 0, 0, 0, 0xff},
	}
	for name, data := range cases {
		if err := os.WriteFile(path, data, 0o600); err != nil {
			t.Fatalf("%s: WriteFile: %v", name, err)
		}
		if _, err := Open(path, nil); err != ErrStoreCorrupt {
			t.Fatalf("%s: err = %v, want ErrStoreCorrupt", name, err)
		}
	}
}

func TestTruncatedWriteLeavesPriorStoreIntact(t *testing.T) {
	s, path := tempStore(t)
	s.Register("alice", "pw1")

	// Simulate a crash mid-write of a second registration: the temp file is
	// abandoned, the canonical file untouched.
	tmp := path + ".tmp-crashed"
	if err := os.WriteFile(tmp, []byte{0x01, 0, 0}, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := reopened.Verify("alice", "pw1"); err != nil {
		t.Fatalf("prior record lost: %v", err)
	}
}

func TestEncodingIsDeterministic(t *testing.T) {
	s, path := tempStore(t)
	s.Register("bob", "x")
	s.Register("alice", "y")

	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	// A no-op rewrite must serialize bit-identically.
	s.mu.Lock()
	blob := s.encodeLocked()
	s.mu.Unlock()
	if string(blob) != string(first) {
		t.Fatal("re-encoding the same store produced different bytes")
	}
}
