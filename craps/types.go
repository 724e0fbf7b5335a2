// Package craps implements the deterministic game rules: bet types,
// payout ratios, and the phase state machine that every consensus op
// must apply identically on every honest node.
package craps

import "github.com/bitcraps/core/identity"

// GameId identifies one craps table/session.
type GameId [16]byte

// Phase is the craps shooter phase.
type Phase uint8

const (
	PhaseComeOut Phase = iota
	PhasePoint
	PhaseSettled
)

// BetType enumerates every wager this table accepts. The ordering is
// fixed so the payout table in payouts.go can be a flat array.
type BetType uint8

const (
	BetPassLine BetType = iota
	BetDontPass
	BetCome
	BetDontCome
	BetField
	BetPlace4
	BetPlace5
	BetPlace6
	BetPlace8
	BetPlace9
	BetPlace10
	BetBuy4
	BetBuy5
	BetBuy6
	BetBuy8
	BetBuy9
	BetBuy10
	BetLay4
	BetLay5
	BetLay6
	BetLay8
	BetLay9
	BetLay10
	BetHard4
	BetHard6
	BetHard8
	BetHard10
	BetAny7
	BetAnyCraps
	BetHorn
	BetHornHigh
	BetWorld
	BetC2
	BetC3
	BetC11
	BetC12
	BetHop2_1
	BetHop3_1
	BetHop4_1
	BetHop5_1
	BetHop6_1
	BetHop8_1
	BetHop9_1
	BetHop10_1
	BetHop11_1
	BetHop12_1
	BetPassOdds
	BetDontPassOdds
	BetComeOdds
	BetDontComeOdds
	BetFireBet
	BetBigRed
	BetAllSmall
	BetAllTall
	BetAllOrNothing
	BetRepeater2
	BetRepeater3
	BetRepeater4
	BetRepeater5
	BetRepeater6
	BetRepeater8
	BetRepeater9
	BetRepeater10
	BetRepeater11
	BetRepeater12
	betTypeCount
)

// Bet is one wager placed by a player, active until resolved or pulled.
type Bet struct {
	Player identity.PeerId
	Type   BetType
	Amount uint64
	// Point is the number a Come/Place/Buy/Lay bet travels with; zero for
	// bets not tied to a specific number.
	Point uint8
}

// GameOp is the closed set of operations the consensus log can commit
// for a craps table. Exactly one variant field is populated per Kind.
type OpKind uint8

const (
	OpJoin OpKind = iota
	OpLeave
	OpPlaceBet
	OpDiceCommit
	OpDiceReveal
	OpResolve
	OpEvidence
)

type GameOp struct {
	Kind   OpKind
	Game   GameId
	Player identity.PeerId

	// OpJoin
	BuyIn uint64

	// OpPlaceBet
	Bet Bet

	// OpDiceCommit
	Commitment [32]byte

	// OpDiceReveal
	Nonce [32]byte

	// OpResolve carries no payload: dice values are derived from the
	// committed reveals already in state, keeping Resolve deterministic
	// and replay-safe.

	// OpEvidence
	Evidence EvidenceRecord
}

// EvidenceRecord documents a detected protocol or statistical violation
// attributed to Subject, for the reputation store to apply on commit.
type EvidenceRecord struct {
	Subject  identity.PeerId
	Reason   string
	Severity uint8
}
