package xcrypto

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeyPair is an X25519 key exchange keypair.
type KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// GenerateKeyPair produces a fresh X25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(rand.Reader, kp.Private[:]); err != nil {
		return kp, fmt.Errorf("xcrypto: read random: %w", err)
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return kp, fmt.Errorf("xcrypto: derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// SharedSecret computes the X25519 Diffie-Hellman shared secret between
// this keypair's private scalar and a peer's public key.
func (kp KeyPair) SharedSecret(peerPublic [32]byte) ([32]byte, error) {
	var out [32]byte
	shared, err := curve25519.X25519(kp.Private[:], peerPublic[:])
	if err != nil {
		return out, fmt.Errorf("xcrypto: x25519: %w", err)
	}
	copy(out[:], shared)
	return out, nil
}

// DeriveSessionKeys expands a shared secret into a pair of directional
// AEAD keys using HKDF-SHA256, salted with the handshake transcript hash
// and labeled so that the initiator's send key is the responder's recv
// key and vice versa.
func DeriveSessionKeys(shared [32]byte, transcript []byte) (initToResp, respToInit [32]byte, err error) {
	r := hkdf.New(sha256.New, shared[:], transcript, []byte("bitcraps-session-v1"))
	if _, err = io.ReadFull(r, initToResp[:]); err != nil {
		return initToResp, respToInit, fmt.Errorf("xcrypto: hkdf expand: %w", err)
	}
	if _, err = io.ReadFull(r, respToInit[:]); err != nil {
		return initToResp, respToInit, fmt.Errorf("xcrypto: hkdf expand: %w", err)
	}
	return initToResp, respToInit, nil
}
