package crypto

import "golang.org/x/crypto/nacl/box"

// Seal authenticated-encrypts plaintext under the precomputed shared key and
// nonce, producing nonce || ciphertext, the post-handshake datagram shape.
// The caller is expected to prepend nothing further; the
// transport writes this buffer directly to the socket.
func Seal(sharedKey [KeySize]byte, nonce [NonceSize]byte, plaintext []byte) []byte {
	out := make([]byte, 0, NonceSize+len(plaintext)+box.Overhead)
	out = append(out, nonce[:]...)
	return box.SealAfterPrecomputation(out, plaintext, &nonce, &sharedKey)
}

// Open verifies and decrypts a sealed envelope produced by Seal. It expects
// the full "nonce || ciphertext" datagram. Returns ErrAuthFailure on any
// decode or authentication failure — callers must not distinguish the two,
// so a probing attacker learns nothing about which check failed.
func Open(sharedKey [KeySize]byte, sealed []byte) (plaintext []byte, nonce [NonceSize]byte, err error) {
	if len(sealed) < NonceSize+box.Overhead {
		return nil, nonce, ErrAuthFailure
	}
	copy(nonce[:], sealed[:NonceSize])
	plaintext, ok := box.OpenAfterPrecomputation(nil, sealed[NonceSize:], &nonce, &sharedKey)
	if !ok {
		return nil, nonce, ErrAuthFailure
	}
	return plaintext, nonce, nil
}
