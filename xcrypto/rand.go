package xcrypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("xcrypto: read random: %w", err)
	}
	return b, nil
}

// RandomNonce32 returns a random 32-byte value, sized for dice commit-reveal
// nonces.
func RandomNonce32() ([32]byte, error) {
	var out [32]byte
	if _, err := io.ReadFull(rand.Reader, out[:]); err != nil {
		return out, fmt.Errorf("xcrypto: read random: %w", err)
	}
	return out, nil
}
