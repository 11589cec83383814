package userstore

import "errors"

// User store errors.
var (
	// ErrUserExists is returned by Register when the username is taken.
	ErrUserExists = errors.New("userstore: user already exists")

	// ErrCredentialInvalid is returned by Verify and ChangePassword when the
	// user is absent or the password does not match. Callers cannot tell the
	// two apart, so a login probe learns nothing about which names exist.
	ErrCredentialInvalid = errors.New("userstore: invalid credentials")

	// ErrStoreCorrupt is returned by Open when the persisted file exists but
	// cannot be decoded. Any deviation from the expected layout counts.
	ErrStoreCorrupt = errors.New("userstore: store file corrupt")

	// ErrStoreIo wraps filesystem failures while loading or persisting.
	ErrStoreIo = errors.New("userstore: store i/o failure")
)
