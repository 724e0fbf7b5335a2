package consensus

import (
	"fmt"

	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/xcrypto"
)

// DiceRound tracks one player's half of a commit-reveal dice round: the
// nonce is held locally until every participant has committed, then
// proposed for reveal. A fresh DiceRound is minted before each OpResolve.
type DiceRound struct {
	nonce [32]byte
}

// NewDiceRound mints a fresh random nonce for this player's contribution
// to the next roll.
func NewDiceRound() (*DiceRound, error) {
	nonce, err := xcrypto.RandomNonce32()
	if err != nil {
		return nil, fmt.Errorf("consensus: mint dice nonce: %w", err)
	}
	return &DiceRound{nonce: nonce}, nil
}

// Commitment returns BLAKE3(nonce), safe to publish immediately.
func (d *DiceRound) Commitment() [32]byte {
	return xcrypto.Hash(d.nonce[:])
}

// CommitOp builds the OpDiceCommit this player should propose.
func (d *DiceRound) CommitOp(game craps.GameId, self identity.PeerId) craps.GameOp {
	return craps.GameOp{
		Kind:       craps.OpDiceCommit,
		Game:       game,
		Player:     self,
		Commitment: d.Commitment(),
	}
}

// RevealOp builds the OpDiceReveal this player should propose once every
// participant's commitment has committed on-chain.
func (d *DiceRound) RevealOp(game craps.GameId, self identity.PeerId) craps.GameOp {
	return craps.GameOp{
		Kind:   craps.OpDiceReveal,
		Game:   game,
		Player: self,
		Nonce:  d.nonce,
	}
}

// ResolveOp builds the OpResolve every replica proposes once all reveals
// are in; it carries no payload since dice values are deterministically
// derived from the already-committed reveals.
func ResolveOp(game craps.GameId) craps.GameOp {
	return craps.GameOp{Kind: craps.OpResolve, Game: game}
}
