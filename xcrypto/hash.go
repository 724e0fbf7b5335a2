// Package xcrypto collects the cryptographic primitives shared by the
// session, mesh, consensus, craps, and consensuslog packages: hashing,
// AEAD, and key exchange.
package xcrypto

import (
	"crypto/sha256"

	"github.com/zeebo/blake3"
)

// Hash returns the BLAKE3-256 digest of the concatenation of parts.
func Hash(parts ...[]byte) [32]byte {
	h := blake3.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// SHA256 returns the SHA-256 digest of the concatenation of parts. Kept
// alongside BLAKE3 for compatibility with primitives that pin SHA-256
// (signing transcripts shared with legacy ledger formats).
func SHA256(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
