// Package events defines the structured, user-visible events the core
// fans out to external consumers (mobile UI, ledger, ops), and the error
// kind taxonomy from which internal failures are classified before they
// ever reach a host. No stack traces cross this boundary: every event
// and error kind here is plain data.
package events

import (
	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
)

// Kind classifies an internal failure for policy purposes (retry, drop,
// view-change, halt) without exposing the failure's Go type to the host.
type Kind uint8

const (
	KindCrypto Kind = iota
	KindProtocol
	KindRouting
	KindConsensus
	KindStorage
	KindTimeout
	KindResource
	KindPolicy
)

func (k Kind) String() string {
	switch k {
	case KindCrypto:
		return "Crypto"
	case KindProtocol:
		return "Protocol"
	case KindRouting:
		return "Routing"
	case KindConsensus:
		return "Consensus"
	case KindStorage:
		return "Storage"
	case KindTimeout:
		return "Timeout"
	case KindResource:
		return "Resource"
	case KindPolicy:
		return "Policy"
	default:
		return "Unknown"
	}
}

// Type discriminates which field of Event is populated.
type Type uint8

const (
	TypePeerJoined Type = iota
	TypePeerLeft
	TypeDiceRolled
	TypeBetResolved
	TypeGameHalted
	TypePeerSlashed
)

// Event is the single structured value the core ever emits to a host.
// Exactly one payload field is meaningful, selected by Type.
type Event struct {
	Type Type
	Game craps.GameId

	// TypePeerJoined / TypePeerLeft / TypePeerSlashed
	Peer identity.PeerId

	// TypeDiceRolled
	Dice [2]uint8

	// TypeBetResolved
	Bet    craps.Bet
	Payout int64

	// TypeGameHalted / TypePeerSlashed
	Reason string
}

// PeerJoined builds a TypePeerJoined event.
func PeerJoined(game craps.GameId, peer identity.PeerId) Event {
	return Event{Type: TypePeerJoined, Game: game, Peer: peer}
}

// PeerLeft builds a TypePeerLeft event.
func PeerLeft(game craps.GameId, peer identity.PeerId) Event {
	return Event{Type: TypePeerLeft, Game: game, Peer: peer}
}

// DiceRolled builds a TypeDiceRolled event.
func DiceRolled(game craps.GameId, dice [2]uint8) Event {
	return Event{Type: TypeDiceRolled, Game: game, Dice: dice}
}

// BetResolved builds a TypeBetResolved event.
func BetResolved(game craps.GameId, bet craps.Bet, payout int64) Event {
	return Event{Type: TypeBetResolved, Game: game, Bet: bet, Payout: payout}
}

// GameHalted builds a TypeGameHalted event.
func GameHalted(game craps.GameId, reason string) Event {
	return Event{Type: TypeGameHalted, Game: game, Reason: reason}
}

// PeerSlashed builds a TypePeerSlashed event.
func PeerSlashed(game craps.GameId, peer identity.PeerId, reason string) Event {
	return Event{Type: TypePeerSlashed, Game: game, Peer: peer, Reason: reason}
}
