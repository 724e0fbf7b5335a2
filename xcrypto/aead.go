package xcrypto

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceCounter builds the 96-bit ChaCha20-Poly1305 nonce from a one-bit
// direction flag and a 64-bit monotonic counter (usable up to MaxCounter).
// Counter must never repeat for a given direction within a session: the
// caller (session package) is responsible for rekeying before overflow.
type NonceCounter struct {
	Direction byte // 0 or 1
	Counter   uint64
}

// Bytes renders the 12-byte nonce: bytes 0-3 hold the high 32 bits of
// Counter with the top bit of byte 0 replaced by Direction, and bytes 4-11
// hold the full 64-bit Counter.
func (n NonceCounter) Bytes() [chacha20poly1305.NonceSize]byte {
	var out [chacha20poly1305.NonceSize]byte
	binary.BigEndian.PutUint32(out[0:4], uint32(n.Counter>>32))
	binary.BigEndian.PutUint64(out[4:12], n.Counter)
	if n.Direction != 0 {
		out[0] |= 0x80
	} else {
		out[0] &^= 0x80
	}
	return out
}

// Seal encrypts plaintext with ChaCha20-Poly1305 under key, binding aad as
// additional authenticated data, using the nonce built from n.
func Seal(key [32]byte, n NonceCounter, aad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("xcrypto: new aead: %w", err)
	}
	nonce := n.Bytes()
	return aead.Seal(nil, nonce[:], plaintext, aad), nil
}

// Open decrypts and authenticates ciphertext produced by Seal.
func Open(key [32]byte, n NonceCounter, aad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key[:])
	if err != nil {
		return nil, fmt.Errorf("xcrypto: new aead: %w", err)
	}
	nonce := n.Bytes()
	pt, err := aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("xcrypto: open: %w", err)
	}
	return pt, nil
}

// MaxCounter (2^63-1) is the counter value at which a direction's nonce
// space counts as exhausted and a rekey is required; bit 63 is excluded
// because it shares its nonce position with the Direction bit.
const MaxCounter = (uint64(1) << 63) - 1
