package craps

import (
	"fmt"
	"sort"

	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/xcrypto"
)

// PlayerState tracks one seated player's balance and in-flight bets.
type PlayerState struct {
	Balance int64
	Bets    []Bet
}

// reveal holds a player's disclosed dice-commit nonce pending resolution.
type reveal struct {
	player identity.PeerId
	nonce  [32]byte
}

// shooterHistory accumulates the facts multi-roll proposition bets need
// (Fire Bet, All Small, All Tall, All or Nothing, Repeaters) across the
// current shooter's hand. It resets whenever a seven-out ends the hand.
type shooterHistory struct {
	pointsMade map[uint8]bool // distinct points established and later repeated before seven-out
	rolled     map[uint8]int  // occurrences of each non-seven total this hand
}

func newShooterHistory() shooterHistory {
	return shooterHistory{pointsMade: make(map[uint8]bool), rolled: make(map[uint8]int)}
}

// observe folds one roll into the history. prevPhase/prevPoint are the
// table's phase and point immediately before this roll. A seven leaves
// the history untouched; the caller resets it afterward.
func (h *shooterHistory) observe(prevPhase Phase, prevPoint uint8, total int) {
	if total == 7 {
		return
	}
	h.rolled[uint8(total)]++
	if prevPhase == PhasePoint && total == int(prevPoint) {
		h.pointsMade[uint8(total)] = true
	}
}

func (h shooterHistory) allSmallHit() bool {
	for _, n := range [5]uint8{2, 3, 4, 5, 6} {
		if h.rolled[n] == 0 {
			return false
		}
	}
	return true
}

func (h shooterHistory) allTallHit() bool {
	for _, n := range [5]uint8{8, 9, 10, 11, 12} {
		if h.rolled[n] == 0 {
			return false
		}
	}
	return true
}

// GameState is the full, deterministically-replayable state of one
// craps table. Every field must be derivable solely from the ordered
// sequence of committed GameOps: no wall-clock reads, no randomness
// outside of the committed commit-reveal nonces.
type GameState struct {
	Id      GameId
	Phase   Phase
	Point   uint8
	Players map[identity.PeerId]*PlayerState
	Order   []identity.PeerId // join order, for deterministic iteration

	commitments map[identity.PeerId][32]byte
	reveals     []reveal
	shooter     shooterHistory

	LastRoll [2]uint8
}

// NewGameState creates an empty table.
func NewGameState(id GameId) *GameState {
	return &GameState{
		Id:          id,
		Phase:       PhaseComeOut,
		Players:     make(map[identity.PeerId]*PlayerState),
		commitments: make(map[identity.PeerId][32]byte),
		shooter:     newShooterHistory(),
	}
}

// Apply validates and applies op to the state in place. Apply is pure
// with respect to anything but gs: given the same gs and op, every
// honest node computes the same resulting gs and the same error.
func (gs *GameState) Apply(op GameOp) error {
	if op.Game != gs.Id {
		return fmt.Errorf("craps: op for game %x applied to game %x", op.Game, gs.Id)
	}
	switch op.Kind {
	case OpJoin:
		return gs.applyJoin(op)
	case OpLeave:
		return gs.applyLeave(op)
	case OpPlaceBet:
		return gs.applyPlaceBet(op)
	case OpDiceCommit:
		return gs.applyDiceCommit(op)
	case OpDiceReveal:
		return gs.applyDiceReveal(op)
	case OpResolve:
		return gs.applyResolve(op)
	case OpEvidence:
		return nil // evidence is applied by the reputation store, not game state
	default:
		return fmt.Errorf("craps: unknown op kind %d", op.Kind)
	}
}

func (gs *GameState) applyJoin(op GameOp) error {
	if _, exists := gs.Players[op.Player]; exists {
		return fmt.Errorf("craps: player %s already joined", op.Player)
	}
	gs.Players[op.Player] = &PlayerState{Balance: int64(op.BuyIn)}
	gs.Order = append(gs.Order, op.Player)
	return nil
}

func (gs *GameState) applyLeave(op GameOp) error {
	if _, exists := gs.Players[op.Player]; !exists {
		return fmt.Errorf("craps: player %s not in game", op.Player)
	}
	delete(gs.Players, op.Player)
	for i, p := range gs.Order {
		if p == op.Player {
			gs.Order = append(gs.Order[:i], gs.Order[i+1:]...)
			break
		}
	}
	delete(gs.commitments, op.Player)
	return nil
}

func (gs *GameState) applyPlaceBet(op GameOp) error {
	ps, exists := gs.Players[op.Player]
	if !exists {
		return fmt.Errorf("craps: player %s not in game", op.Player)
	}
	if op.Bet.Amount == 0 {
		return fmt.Errorf("craps: zero-amount bet")
	}
	if ps.Balance < int64(op.Bet.Amount) {
		return fmt.Errorf("craps: insufficient balance for bet")
	}
	ps.Balance -= int64(op.Bet.Amount)
	ps.Bets = append(ps.Bets, op.Bet)
	return nil
}

func (gs *GameState) applyDiceCommit(op GameOp) error {
	if _, exists := gs.Players[op.Player]; !exists {
		return fmt.Errorf("craps: player %s not in game", op.Player)
	}
	if _, already := gs.commitments[op.Player]; already {
		return fmt.Errorf("craps: player %s already committed this round", op.Player)
	}
	gs.commitments[op.Player] = op.Commitment
	return nil
}

func (gs *GameState) applyDiceReveal(op GameOp) error {
	commitment, exists := gs.commitments[op.Player]
	if !exists {
		return fmt.Errorf("craps: player %s has no pending commitment", op.Player)
	}
	expected := xcrypto.Hash(op.Nonce[:])
	if [32]byte(expected) != commitment {
		return fmt.Errorf("craps: reveal does not match commitment for player %s", op.Player)
	}
	for _, r := range gs.reveals {
		if r.player == op.Player {
			return fmt.Errorf("craps: player %s already revealed this round", op.Player)
		}
	}
	gs.reveals = append(gs.reveals, reveal{player: op.Player, nonce: op.Nonce})
	return nil
}

// applyResolve derives the dice seed from every revealed nonce (sorted by
// player id for determinism regardless of arrival order), rolls the dice,
// settles every active bet, and advances the phase machine.
//
// Not every committed player is guaranteed to reveal. If at least
// ceil(2n/3) of the n committed players revealed, the round resolves
// using that subset's seed and the holdouts' open bets are forfeited as
// losses. Below that quorum the round is voided: every open bet's stake
// is returned and no dice are rolled.
func (gs *GameState) applyResolve(op GameOp) error {
	n := len(gs.commitments)
	if n == 0 {
		return fmt.Errorf("craps: no commitments to resolve")
	}
	quorum := (2*n + 2) / 3
	if len(gs.reveals) < quorum {
		gs.abortRound()
		return nil
	}

	sorted := append([]reveal(nil), gs.reveals...)
	sort.Slice(sorted, func(i, j int) bool {
		for k := 0; k < 32; k++ {
			if sorted[i].player[k] != sorted[j].player[k] {
				return sorted[i].player[k] < sorted[j].player[k]
			}
		}
		return false
	})

	parts := make([][]byte, 0, len(sorted))
	revealed := make(map[identity.PeerId]bool, len(sorted))
	for _, r := range sorted {
		nonce := r.nonce
		parts = append(parts, nonce[:])
		revealed[r.player] = true
	}
	seed := xcrypto.Hash(parts...)
	d1 := seed[0]%6 + 1
	d2 := seed[1]%6 + 1
	gs.LastRoll = [2]uint8{d1, d2}

	for player := range gs.commitments {
		if !revealed[player] {
			gs.forfeitBets(player)
		}
	}

	gs.settleBets(d1, d2)
	gs.advancePhase(d1, d2)

	gs.commitments = make(map[identity.PeerId][32]byte)
	gs.reveals = nil
	return nil
}

// forfeitBets clears player's open bets without returning their stakes:
// a committed player who withheld their reveal loses whatever was on the
// table this round.
func (gs *GameState) forfeitBets(player identity.PeerId) {
	if ps, ok := gs.Players[player]; ok {
		ps.Bets = nil
	}
}

// abortRound voids the round: every open bet's stake is returned and the
// commit-reveal window resets, with no dice rolled and no phase change.
func (gs *GameState) abortRound() {
	for _, pid := range gs.Order {
		ps := gs.Players[pid]
		for _, b := range ps.Bets {
			ps.Balance += int64(b.Amount)
		}
		ps.Bets = nil
	}
	gs.commitments = make(map[identity.PeerId][32]byte)
	gs.reveals = nil
}

func (gs *GameState) settleBets(d1, d2 uint8) {
	total := int(d1) + int(d2)
	phase, point := gs.Phase, gs.Point
	gs.shooter.observe(phase, point, total)
	hist := gs.shooter

	for _, pid := range gs.Order {
		ps := gs.Players[pid]
		remaining := ps.Bets[:0]
		for _, b := range ps.Bets {
			next, payout, outcome := settleOne(b, d1, d2, phase, point, hist)
			switch outcome {
			case Won, Push:
				ps.Balance += payout
			case Carry:
				remaining = append(remaining, *next)
			case Lost:
				// stake already debited at placement
			}
		}
		ps.Bets = remaining
	}

	if total == 7 {
		gs.shooter = newShooterHistory()
	}
}

func (gs *GameState) advancePhase(d1, d2 uint8) {
	total := int(d1) + int(d2)
	switch gs.Phase {
	case PhaseComeOut:
		switch total {
		case 7, 11:
			// natural: stays on come-out
		case 2, 3, 12:
			// craps: stays on come-out
		default:
			gs.Phase = PhasePoint
			gs.Point = uint8(total)
		}
	case PhasePoint:
		if total == int(gs.Point) || total == 7 {
			gs.Phase = PhaseComeOut
			gs.Point = 0
		}
	}
}

// Validate reports whether op would be accepted without mutating gs. It
// runs Apply against a throwaway clone, which is how the consensus
// engine's prepare phase checks a proposal before any node signs a vote
// for it.
func (gs *GameState) Validate(op GameOp) error {
	clone := gs.Snapshot()
	return clone.Apply(op)
}

// Snapshot returns a deep copy suitable for the consensus log's
// checkpointing, so a joining node can restore state without replaying
// the entire history.
func (gs *GameState) Snapshot() GameState {
	cp := GameState{
		Id:          gs.Id,
		Phase:       gs.Phase,
		Point:       gs.Point,
		Players:     make(map[identity.PeerId]*PlayerState, len(gs.Players)),
		Order:       append([]identity.PeerId(nil), gs.Order...),
		commitments: make(map[identity.PeerId][32]byte, len(gs.commitments)),
		reveals:     append([]reveal(nil), gs.reveals...),
		shooter:     newShooterHistory(),
		LastRoll:    gs.LastRoll,
	}
	for k, v := range gs.Players {
		cpBets := append([]Bet(nil), v.Bets...)
		cp.Players[k] = &PlayerState{Balance: v.Balance, Bets: cpBets}
	}
	for k, v := range gs.commitments {
		cp.commitments[k] = v
	}
	for k, v := range gs.shooter.pointsMade {
		cp.shooter.pointsMade[k] = v
	}
	for k, v := range gs.shooter.rolled {
		cp.shooter.rolled[k] = v
	}
	return cp
}
