// Package userstore persists the server's username -> credential map as a
// single versioned blob, rewritten whole on every change via write-to-temp
// plus atomic rename. A crash mid-write leaves either the old file or the
// new one, never a torn mix.
package userstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pion/logging"

	"github.com/chatroom-core/chatroom/pkg/crypto"
	"github.com/chatroom-core/chatroom/pkg/wire"
)

// storeVersion is the first byte of the persisted file.
const storeVersion byte = 0x01

// Record is one user's credential entry. Hash and Salt are opaque blobs
// produced by the crypto package; the store never inspects them.
type Record struct {
	Username string
	Hash     []byte
	Salt     []byte
}

// Store is the in-memory credential map backed by one file. All methods are
// safe for concurrent use; persistence happens outside the map guard, so a
// slow disk never stalls a concurrent Verify.
type Store struct {
	path string
	log  logging.LeveledLogger

	mu    sync.RWMutex
	users map[string]Record
}

// Open loads the store at path, tolerating a missing file (empty store).
// A present-but-undecodable file fails with ErrStoreCorrupt.
func Open(path string, loggerFactory logging.LoggerFactory) (*Store, error) {
	s := &Store{
		path:  path,
		users: make(map[string]Record),
	}
	if loggerFactory != nil {
		s.log = loggerFactory.NewLogger("userstore")
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreIo, err)
	}
	if err := s.decode(data); err != nil {
		return nil, err
	}
	if s.log != nil {
		s.log.Infof("loaded %d users from %s", len(s.users), path)
	}
	return s, nil
}

// Register inserts a new user with a freshly salted hash of pwd.
func (s *Store) Register(username, pwd string) error {
	if username == "" || len(username) > wire.MaxUsernameLen {
		return ErrCredentialInvalid
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	hash, err := crypto.HashPassword(pwd, salt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.users[username]; ok {
		s.mu.Unlock()
		return ErrUserExists
	}
	s.users[username] = Record{Username: username, Hash: hash, Salt: salt}
	blob := s.encodeLocked()
	s.mu.Unlock()

	return s.persist(blob)
}

// Verify checks username/pwd, returning ErrCredentialInvalid on an unknown
// user or a wrong password.
func (s *Store) Verify(username, pwd string) error {
	s.mu.RLock()
	rec, ok := s.users[username]
	s.mu.RUnlock()
	if !ok {
		return ErrCredentialInvalid
	}
	if err := crypto.VerifyPassword(pwd, rec.Salt, rec.Hash); err != nil {
		return ErrCredentialInvalid
	}
	return nil
}

// ChangePassword replaces username's credential after verifying the old
// password. The record swap and the persisted blob are produced under the
// guard, so two racing changes serialize cleanly.
func (s *Store) ChangePassword(username, oldPwd, newPwd string) error {
	if err := s.Verify(username, oldPwd); err != nil {
		return err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return err
	}
	hash, err := crypto.HashPassword(newPwd, salt)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.users[username]; !ok {
		s.mu.Unlock()
		return ErrCredentialInvalid
	}
	s.users[username] = Record{Username: username, Hash: hash, Salt: salt}
	blob := s.encodeLocked()
	s.mu.Unlock()

	return s.persist(blob)
}

// Exists reports whether username is registered.
func (s *Store) Exists(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[username]
	return ok
}

// Usernames returns every registered name, sorted.
func (s *Store) Usernames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for u := range s.users {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Len reports the number of registered users.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

// encodeLocked serializes the whole store. Caller must hold s.mu.
// Layout: version(1) count(4) then per record: username, hash, salt, each
// u32-length-prefixed. Records are sorted by username so equal stores
// serialize bit-identically.
func (s *Store) encodeLocked() []byte {
	names := make([]string, 0, len(s.users))
	for u := range s.users {
		names = append(names, u)
	}
	sort.Strings(names)

	buf := []byte{storeVersion}
	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(names)))
	buf = append(buf, count[:]...)
	for _, name := range names {
		rec := s.users[name]
		buf = wire.PutString(buf, rec.Username)
		buf = wire.PutBytes(buf, rec.Hash)
		buf = wire.PutBytes(buf, rec.Salt)
	}
	return buf
}

func (s *Store) decode(data []byte) error {
	if len(data) < 5 || data[0] != storeVersion {
		return ErrStoreCorrupt
	}
	count := binary.BigEndian.Uint32(data[1:5])
	rest := data[5:]

	users := make(map[string]Record, count)
	for i := uint32(0); i < count; i++ {
		var (
			username   string
			hash, salt []byte
			err        error
		)
		username, rest, err = wire.GetString(rest)
		if err != nil {
			return ErrStoreCorrupt
		}
		hash, rest, err = wire.GetBytes(rest)
		if err != nil {
			return ErrStoreCorrupt
		}
		salt, rest, err = wire.GetBytes(rest)
		if err != nil {
			return ErrStoreCorrupt
		}
		if username == "" {
			return ErrStoreCorrupt
		}
		if _, dup := users[username]; dup {
			return ErrStoreCorrupt
		}
		users[username] = Record{Username: username, Hash: hash, Salt: salt}
	}
	if len(rest) != 0 {
		return ErrStoreCorrupt
	}
	s.users = users
	return nil
}

// persist writes blob to a temp file in the store's directory and renames
// it over the canonical path.
func (s *Store) persist(blob []byte) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreIo, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(blob); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreIo, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreIo, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreIo, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: %v", ErrStoreIo, err)
	}
	return nil
}
