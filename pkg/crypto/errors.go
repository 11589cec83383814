package crypto

import "errors"

// Crypto envelope and credential errors.
var (
	// ErrAuthFailure is returned when Open fails to authenticate a sealed
	// envelope (wrong key, corrupted ciphertext, or truncated input).
	ErrAuthFailure = errors.New("crypto: authentication failed")

	// ErrReplayRejected names a nonce counter that is a replay: already seen,
	// or below the receiver's sliding replay window. ReplayWindow.CheckAndAccept
	// reports that case as false rather than returning this error.
	ErrReplayRejected = errors.New("crypto: nonce replay rejected")

	// ErrNonceExhausted is returned when a direction's 64-bit counter would
	// overflow. The session must be re-established.
	ErrNonceExhausted = errors.New("crypto: nonce counter exhausted")

	// ErrInvalidKeySize names a key that doesn't match the X25519 key length.
	// Keys in this package are fixed-size arrays, so no function here
	// returns it.
	ErrInvalidKeySize = errors.New("crypto: invalid key size")

	// ErrCredentialInvalid is returned by VerifyPassword when the candidate
	// password does not match the stored hash.
	ErrCredentialInvalid = errors.New("crypto: credential invalid")
)
