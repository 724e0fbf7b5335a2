package xcrypto

import (
	"bytes"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{0x11}, 32))

	n := NonceCounter{Direction: 0, Counter: 1}
	aad := []byte("game-42")
	pt := []byte("place bet: pass line, 10 chips")

	ct, err := Seal(key, n, aad, pt)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	got, err := Open(key, n, aad, ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, pt) {
		t.Fatalf("round trip mismatch: got %q want %q", got, pt)
	}
}

func TestOpenRejectsWrongDirection(t *testing.T) {
	var key [32]byte
	copy(key[:], bytes.Repeat([]byte{0x22}, 32))

	ct, err := Seal(key, NonceCounter{Direction: 0, Counter: 5}, nil, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := Open(key, NonceCounter{Direction: 1, Counter: 5}, nil, ct); err == nil {
		t.Fatalf("expected Open to reject ciphertext sealed under the other direction")
	}
}

func TestKeyExchangeAgreement(t *testing.T) {
	a, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	b, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("GenerateKeyPair: %v", err)
	}
	sharedA, err := a.SharedSecret(b.Public)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	sharedB, err := b.SharedSecret(a.Public)
	if err != nil {
		t.Fatalf("SharedSecret: %v", err)
	}
	if sharedA != sharedB {
		t.Fatalf("shared secrets disagree")
	}
}

func TestDeriveSessionKeysDirectional(t *testing.T) {
	var shared [32]byte
	copy(shared[:], bytes.Repeat([]byte{0x33}, 32))
	a2b, b2a, err := DeriveSessionKeys(shared, []byte("transcript"))
	if err != nil {
		t.Fatalf("DeriveSessionKeys: %v", err)
	}
	if a2b == b2a {
		t.Fatalf("directional keys must differ")
	}
}

func TestHashDeterministic(t *testing.T) {
	h1 := Hash([]byte("a"), []byte("b"))
	h2 := Hash([]byte("a"), []byte("b"))
	if h1 != h2 {
		t.Fatalf("Hash is not deterministic")
	}
}
