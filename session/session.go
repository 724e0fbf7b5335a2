// Package session implements the peer-to-peer handshake and the
// per-session AEAD framing layered on top of xcrypto's primitives.
package session

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/xcrypto"
)

// state mirrors the authentication-state enum shape of a handshake state
// machine: a session moves strictly forward through these states and
// never regresses.
type state int

const (
	stateInit state = iota
	stateKexSent
	stateEstablished
	stateClosed
)

// Role distinguishes which side of the handshake a session played, since
// the two sides derive mirrored (not identical) send/recv keys.
type Role int

const (
	RoleInitiator Role = iota
	RoleResponder
)

// Session is an authenticated, encrypted channel to a single peer, one
// per link rather than per game. The transport package does not create
// sessions; callers set them up themselves.
type Session struct {
	mu    sync.Mutex
	state state
	role  Role

	local  *identity.Identity
	peerId identity.PeerId

	ephemeral xcrypto.KeyPair
	peerEph   [32]byte

	sendKey [32]byte
	recvKey [32]byte

	sendCounter uint64
	recvCounter uint64
}

// HandshakeInit is the first message sent by the initiator: its identity
// PeerId, ephemeral X25519 public key, and a long-term-key signature over
// the ephemeral public key, binding it to the identity.
type HandshakeInit struct {
	PeerId    identity.PeerId
	Ephemeral [32]byte
	Signature []byte
}

// HandshakeResponse is the responder's reply: its own identity, ephemeral
// key, and signature. It carries no transcript; each side computes the
// transcript from both ephemeral keys and binds its session keys to it.
type HandshakeResponse struct {
	PeerId    identity.PeerId
	Ephemeral [32]byte
	Signature []byte
}

func transcriptFor(initEph, respEph [32]byte) []byte {
	h := xcrypto.Hash(initEph[:], respEph[:])
	return h[:]
}

// NewInitiator begins a handshake as the initiating side, returning the
// in-progress Session and the first wire message to send.
func NewInitiator(local *identity.Identity) (*Session, HandshakeInit, error) {
	eph, err := xcrypto.GenerateKeyPair()
	if err != nil {
		return nil, HandshakeInit{}, fmt.Errorf("session: generate ephemeral: %w", err)
	}
	s := &Session{
		state:     stateKexSent,
		role:      RoleInitiator,
		local:     local,
		ephemeral: eph,
	}
	msg := HandshakeInit{
		PeerId:    local.Id,
		Ephemeral: eph.Public,
	}
	msg.Signature = local.Sign(eph.Public[:])
	return s, msg, nil
}

// AcceptInitiator consumes an initiator's HandshakeInit, verifying its
// signature, and returns the established Session plus the response to
// send back.
func AcceptInitiator(local *identity.Identity, init HandshakeInit) (*Session, HandshakeResponse, error) {
	if !identity.VerifyWithId(init.PeerId, init.Ephemeral[:], init.Signature) {
		return nil, HandshakeResponse{}, fmt.Errorf("session: bad handshake signature from %s", init.PeerId)
	}
	eph, err := xcrypto.GenerateKeyPair()
	if err != nil {
		return nil, HandshakeResponse{}, fmt.Errorf("session: generate ephemeral: %w", err)
	}
	shared, err := eph.SharedSecret(init.Ephemeral)
	if err != nil {
		return nil, HandshakeResponse{}, fmt.Errorf("session: ecdh: %w", err)
	}
	transcript := transcriptFor(init.Ephemeral, eph.Public)
	initToResp, respToInit, err := xcrypto.DeriveSessionKeys(shared, transcript)
	if err != nil {
		return nil, HandshakeResponse{}, fmt.Errorf("session: derive keys: %w", err)
	}

	s := &Session{
		state:     stateEstablished,
		role:      RoleResponder,
		local:     local,
		peerId:    init.PeerId,
		ephemeral: eph,
		peerEph:   init.Ephemeral,
		sendKey:   respToInit,
		recvKey:   initToResp,
	}
	resp := HandshakeResponse{
		PeerId:    local.Id,
		Ephemeral: eph.Public,
	}
	resp.Signature = local.Sign(eph.Public[:])
	return s, resp, nil
}

// CompleteInitiator consumes the responder's HandshakeResponse, finishing
// key derivation on the initiator's side.
func (s *Session) CompleteInitiator(resp HandshakeResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.role != RoleInitiator || s.state != stateKexSent {
		return fmt.Errorf("session: unexpected handshake state")
	}
	if !identity.VerifyWithId(resp.PeerId, resp.Ephemeral[:], resp.Signature) {
		return fmt.Errorf("session: bad handshake signature from %s", resp.PeerId)
	}
	shared, err := s.ephemeral.SharedSecret(resp.Ephemeral)
	if err != nil {
		return fmt.Errorf("session: ecdh: %w", err)
	}
	transcript := transcriptFor(s.ephemeral.Public, resp.Ephemeral)
	initToResp, respToInit, err := xcrypto.DeriveSessionKeys(shared, transcript)
	if err != nil {
		return fmt.Errorf("session: derive keys: %w", err)
	}
	s.peerId = resp.PeerId
	s.peerEph = resp.Ephemeral
	s.sendKey = initToResp
	s.recvKey = respToInit
	s.state = stateEstablished
	return nil
}

// PeerId returns the remote peer's identity, valid once established.
func (s *Session) PeerId() identity.PeerId {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerId
}

// Established reports whether the handshake has completed.
func (s *Session) Established() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateEstablished
}

// directionBit returns this session's send direction bit: the initiator
// always sends on bit 0, the responder on bit 1, so two sessions over the
// same link never reuse a nonce even if their counters coincide.
func (s *Session) directionBit() byte {
	if s.role == RoleInitiator {
		return 0
	}
	return 1
}

// Seal encrypts a plaintext frame for transmission, advancing the send
// counter. Returns ErrRekeyRequired once the nonce space nears exhaustion.
func (s *Session) Seal(aad, plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateEstablished {
		return nil, fmt.Errorf("session: not established")
	}
	if s.sendCounter >= xcrypto.MaxCounter {
		return nil, ErrRekeyRequired
	}
	n := xcrypto.NonceCounter{Direction: s.directionBit(), Counter: s.sendCounter}
	ct, err := xcrypto.Seal(s.sendKey, n, aad, plaintext)
	if err != nil {
		return nil, err
	}
	s.sendCounter++
	return ct, nil
}

// Open decrypts a received frame. The counter is supplied by the caller
// (carried in the wire frame header) rather than tracked locally, since
// frames may arrive out of order over an unreliable mesh; the caller is
// responsible for replay rejection via a sliding window.
func (s *Session) Open(counter uint64, aad, ciphertext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateEstablished {
		return nil, fmt.Errorf("session: not established")
	}
	peerDirection := byte(0)
	if s.role == RoleInitiator {
		peerDirection = 1
	}
	n := xcrypto.NonceCounter{Direction: peerDirection, Counter: counter}
	return xcrypto.Open(s.recvKey, n, aad, ciphertext)
}

// NextSendCounter returns the counter value that will be used on the next
// Seal call, for the transport layer to stamp into the wire frame header.
func (s *Session) NextSendCounter() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sendCounter
}

// ErrRekeyRequired is returned by Seal once the directional nonce counter
// reaches xcrypto.MaxCounter (2^63-1). The session does not rekey by
// itself.
var ErrRekeyRequired = fmt.Errorf("session: nonce space exhausted, rekey required")

// LocalSigner exposes the identity used to authenticate this session, for
// callers (e.g. mesh) that need to sign higher-level protocol messages
// with the same long-term key.
func (s *Session) LocalSigner() ed25519.PrivateKey {
	return s.local.Private
}
