// Package identity implements peer identity, key management, and the
// proof-of-work admission gate that lets a peer join the mesh.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// PeerId is the 32-byte identifier derived from a peer's Ed25519 public key.
// It is the public key itself: no hashing step, since Ed25519 public keys
// are already fixed-size and uniformly distributed.
type PeerId [32]byte

// String returns the hex encoding of the PeerId.
func (p PeerId) String() string {
	return hex.EncodeToString(p[:])
}

// Equal reports whether two PeerIds are identical.
func (p PeerId) Equal(other PeerId) bool {
	return p == other
}

// PeerIdFromPublicKey derives a PeerId from an Ed25519 public key. Returns
// an error if the key is not the expected length.
func PeerIdFromPublicKey(pub ed25519.PublicKey) (PeerId, error) {
	var id PeerId
	if len(pub) != ed25519.PublicKeySize {
		return id, fmt.Errorf("identity: bad public key length %d", len(pub))
	}
	copy(id[:], pub)
	return id, nil
}

// Identity is a peer's signing keypair together with its admission proof.
type Identity struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
	Id      PeerId
	Proof   AdmissionProof
}

// NewIdentity generates a fresh Ed25519 keypair and mines an admission
// proof at the given difficulty. It blocks until mining succeeds.
func NewIdentity(difficulty uint8) (*Identity, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate key: %w", err)
	}
	id, err := PeerIdFromPublicKey(pub)
	if err != nil {
		return nil, err
	}
	proof, err := Mine(id, difficulty)
	if err != nil {
		return nil, err
	}
	return &Identity{
		Public:  pub,
		Private: priv,
		Id:      id,
		Proof:   proof,
	}, nil
}

// Sign signs an arbitrary message with the identity's private key.
func (i *Identity) Sign(msg []byte) []byte {
	return ed25519.Sign(i.Private, msg)
}

// Verify checks a signature against a claimed PeerId. The caller supplies
// the public key separately since PeerId alone does not carry key material
// beyond its own bytes (PeerId IS the public key, but callers that only
// have an identity claim over the wire should use VerifyWithId).
func Verify(pub ed25519.PublicKey, msg, sig []byte) bool {
	return ed25519.Verify(pub, msg, sig)
}

// VerifyWithId checks a signature using the public key embedded in id.
func VerifyWithId(id PeerId, msg, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(id[:]), msg, sig)
}
