// Package consensus implements the per-game PBFT-style engine: a
// propose/prepare/commit three-phase protocol with view-change on
// timeout, quorum certificates, and commit-reveal dice resolution.
package consensus

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"

	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/xcrypto"
)

// Quorum computes the minimum number of matching votes required to
// commit among n participants: ceil((2n+1)/3), guaranteeing safety with
// up to floor((n-1)/3) Byzantine participants.
func Quorum(n int) int {
	return (2*n + 3) / 3
}

// Proposal is the leader's suggested next operation for a game.
type Proposal struct {
	Game       craps.GameId  `json:"game"`
	View       uint64        `json:"view"`
	Seq        uint64        `json:"seq"`
	Op         craps.GameOp  `json:"op"`
	ProposerId identity.PeerId `json:"proposer"`
	Signature  []byte        `json:"sig,omitempty"`
}

func (p *Proposal) serialize() ([]byte, error) {
	tmp := *p
	tmp.Signature = nil
	b, err := json.Marshal(tmp)
	if err != nil {
		return nil, fmt.Errorf("consensus: serialize proposal: %w", err)
	}
	return b, nil
}

// Sign signs the proposal with the proposer's private key.
func (p *Proposal) Sign(priv ed25519.PrivateKey) error {
	b, err := p.serialize()
	if err != nil {
		return err
	}
	p.Signature = ed25519.Sign(priv, b)
	return nil
}

// VerifySignature checks the proposal's signature against pub.
func (p *Proposal) VerifySignature(pub ed25519.PublicKey) (bool, error) {
	if len(p.Signature) == 0 {
		return false, fmt.Errorf("consensus: missing proposal signature")
	}
	b, err := p.serialize()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, b, p.Signature), nil
}

// VoteStage distinguishes the prepare phase from the commit phase: both
// carry the same shape but must never be cross-counted toward each
// other's quorum.
type VoteStage uint8

const (
	StagePrepare VoteStage = iota
	StageCommit
)

// Vote is a single signed prepare or commit vote for a proposal.
type Vote struct {
	Game     craps.GameId  `json:"game"`
	View     uint64        `json:"view"`
	Seq      uint64        `json:"seq"`
	Stage    VoteStage     `json:"stage"`
	OpDigest [32]byte      `json:"op_digest"`
	VoterId  identity.PeerId `json:"voter"`
	Signature []byte       `json:"sig,omitempty"`
}

func (v *Vote) serialize() ([]byte, error) {
	tmp := *v
	tmp.Signature = nil
	b, err := json.Marshal(tmp)
	if err != nil {
		return nil, fmt.Errorf("consensus: serialize vote: %w", err)
	}
	return b, nil
}

// Sign signs the vote with the voter's private key.
func (v *Vote) Sign(priv ed25519.PrivateKey) error {
	b, err := v.serialize()
	if err != nil {
		return err
	}
	v.Signature = ed25519.Sign(priv, b)
	return nil
}

// VerifySignature checks the vote's signature against pub.
func (v *Vote) VerifySignature(pub ed25519.PublicKey) (bool, error) {
	if len(v.Signature) == 0 {
		return false, fmt.Errorf("consensus: missing vote signature")
	}
	b, err := v.serialize()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, b, v.Signature), nil
}

// QuorumCert bundles a committed proposal with the prepare and commit
// votes that authorize it. This is what consensuslog actually persists.
type QuorumCert struct {
	Proposal Proposal `json:"proposal"`
	Prepares []Vote   `json:"prepares"`
	Commits  []Vote   `json:"commits"`
}

// ViewChange is broadcast by a replica that gave up waiting on the
// current view's leader, requesting the group move to NewView.
type ViewChange struct {
	Game      craps.GameId  `json:"game"`
	NewView   uint64        `json:"new_view"`
	VoterId   identity.PeerId `json:"voter"`
	Signature []byte        `json:"sig,omitempty"`
}

func (vc *ViewChange) serialize() ([]byte, error) {
	tmp := *vc
	tmp.Signature = nil
	b, err := json.Marshal(tmp)
	if err != nil {
		return nil, fmt.Errorf("consensus: serialize view change: %w", err)
	}
	return b, nil
}

// Sign signs the view-change request.
func (vc *ViewChange) Sign(priv ed25519.PrivateKey) error {
	b, err := vc.serialize()
	if err != nil {
		return err
	}
	vc.Signature = ed25519.Sign(priv, b)
	return nil
}

// VerifySignature checks the view-change signature against pub.
func (vc *ViewChange) VerifySignature(pub ed25519.PublicKey) (bool, error) {
	if len(vc.Signature) == 0 {
		return false, fmt.Errorf("consensus: missing view-change signature")
	}
	b, err := vc.serialize()
	if err != nil {
		return false, err
	}
	return ed25519.Verify(pub, b, vc.Signature), nil
}

// opDigest returns the digest bound into a prepare/commit vote for op: a
// vote always names its proposal by digest, never by a mutable index.
func opDigest(op craps.GameOp) [32]byte {
	b, _ := json.Marshal(op)
	return xcrypto.Hash(b)
}
