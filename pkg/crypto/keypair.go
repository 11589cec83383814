package crypto

import (
	"crypto/rand"
	"io"

	"golang.org/x/crypto/nacl/box"
)

// KeySize is the length of an X25519 public or private key.
const KeySize = 32

// KeyPair is an ephemeral X25519 keypair generated fresh for one session.
type KeyPair struct {
	Public  [KeySize]byte
	private [KeySize]byte
}

// GenerateKeyPair creates a fresh ephemeral X25519 keypair using the given
// random source (rand.Reader in production, a seeded source in tests).
func GenerateKeyPair(randSource io.Reader) (KeyPair, error) {
	if randSource == nil {
		randSource = rand.Reader
	}
	pub, priv, err := box.GenerateKey(randSource)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Public: *pub, private: *priv}, nil
}

// SharedKey derives the authenticated-box shared key for this keypair and a
// peer's public key. Matches the standard X25519 + box "precompute" shared
// secret: deterministic given both public keys.
func (k KeyPair) SharedKey(peerPublic [KeySize]byte) [KeySize]byte {
	var shared [KeySize]byte
	box.Precompute(&shared, &peerPublic, &k.private)
	return shared
}
