package consensus

import (
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
)

// enginePhase tracks where the current round sits in the
// propose/prepare/commit pipeline.
type enginePhase uint8

const (
	phaseIdle enginePhase = iota
	phasePreparing
	phaseCommitting
)

// wireKind tags the envelope carried over the mesh so a single inbox
// dispatch can tell a Proposal from a Vote from a ViewChange.
type wireKind uint8

const (
	wireProposal wireKind = iota
	wireVote
	wireViewChange
)

type wireMessage struct {
	Kind wireKind        `json:"kind"`
	Body json.RawMessage `json:"body"`
}

func wrap(kind wireKind, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("consensus: marshal wire body: %w", err)
	}
	return json.Marshal(wireMessage{Kind: kind, Body: body})
}

// Engine runs the three-phase consensus protocol for a single game. Every
// honest replica runs its own Engine over the same player set and game
// id; the protocol keeps them in lockstep.
type Engine struct {
	mu sync.Mutex

	game GameConfig

	state    *craps.GameState
	ledger   Ledger
	net      Broadcaster
	evidence EvidenceSink

	view uint64
	seq  uint64

	phase    enginePhase
	proposal *Proposal
	prepares map[identity.PeerId]Vote
	commits  map[identity.PeerId]Vote

	pendingViewChanges map[uint64]map[identity.PeerId]ViewChange

	viewTimeout   time.Duration
	backoffFactor float64
	timer         *time.Timer
	onTimeout     func()
	onCommit      func(craps.GameOp, QuorumCert)
}

// GameConfig carries the fixed, game-lifetime parameters an Engine needs:
// identity material and the player roster it computes quorum from.
type GameConfig struct {
	Id      craps.GameId
	Self    identity.PeerId
	Priv    ed25519.PrivateKey
	Players map[identity.PeerId]ed25519.PublicKey
	// Order fixes deterministic leader rotation across views; every
	// honest replica must agree on it (e.g. join order from the log).
	Order []identity.PeerId
}

// NewEngine creates an Engine for one game, starting at view 0.
func NewEngine(cfg GameConfig, state *craps.GameState, ledger Ledger, net Broadcaster, evidence EvidenceSink) *Engine {
	return &Engine{
		game:               cfg,
		state:              state,
		ledger:             ledger,
		net:                net,
		evidence:           evidence,
		prepares:           make(map[identity.PeerId]Vote),
		commits:            make(map[identity.PeerId]Vote),
		pendingViewChanges: make(map[uint64]map[identity.PeerId]ViewChange),
		viewTimeout:        5 * time.Second,
		backoffFactor:      1.5,
	}
}

func (e *Engine) quorum() int {
	return Quorum(len(e.game.Players))
}

// leaderFor returns the deterministic leader for view v:
// GameConfig.Order[v mod n], using Order exactly as the caller supplied
// it. The engine does not sort the roster, so every replica must be
// given the same Order.
func (e *Engine) leaderFor(v uint64) identity.PeerId {
	if len(e.game.Order) == 0 {
		return identity.PeerId{}
	}
	return e.game.Order[int(v)%len(e.game.Order)]
}

// Snapshot returns a consistent copy of the game state, safe to inspect
// without racing the engine's own goroutine-driven mutations.
func (e *Engine) Snapshot() craps.GameState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Snapshot()
}

// View returns the current view number.
func (e *Engine) View() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view
}

// IsLeader reports whether this replica leads the current view.
func (e *Engine) IsLeader() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.leaderFor(e.view) == e.game.Self
}

// Propose broadcasts op as this replica's proposal for the next sequence
// number. Fails if this replica does not currently lead the view or a
// round is already in flight.
func (e *Engine) Propose(op craps.GameOp) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.leaderFor(e.view) != e.game.Self {
		return fmt.Errorf("consensus: not leader of view %d", e.view)
	}
	if e.phase != phaseIdle {
		return fmt.Errorf("consensus: round already in flight")
	}
	if err := e.state.Validate(op); err != nil {
		return fmt.Errorf("consensus: proposal fails local validation: %w", err)
	}

	p := Proposal{
		Game:       e.game.Id,
		View:       e.view,
		Seq:        e.seq,
		Op:         op,
		ProposerId: e.game.Self,
	}
	if err := p.Sign(e.game.Priv); err != nil {
		return err
	}
	e.beginRound(&p)
	if err := e.sendPrepareVoteLocked(p, true); err != nil {
		return err
	}
	return e.broadcastProposalLocked(p)
}

func (e *Engine) broadcastProposalLocked(p Proposal) error {
	b, err := wrap(wireProposal, p)
	if err != nil {
		return err
	}
	return e.net.Flood(b)
}

// beginRound resets per-round vote tallies and arms the view-change
// timer. Caller must hold e.mu.
func (e *Engine) beginRound(p *Proposal) {
	e.proposal = p
	e.phase = phasePreparing
	e.prepares = make(map[identity.PeerId]Vote)
	e.commits = make(map[identity.PeerId]Vote)
	e.armTimerLocked()
}

func (e *Engine) armTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
	}
	if e.onTimeout == nil {
		return
	}
	e.timer = time.AfterFunc(e.viewTimeout, e.onTimeout)
}

// HandleInbound dispatches one mesh delivery payload to the matching
// proposal/vote/view-change handler.
func (e *Engine) HandleInbound(payload []byte) error {
	var msg wireMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return fmt.Errorf("consensus: unmarshal wire message: %w", err)
	}
	switch msg.Kind {
	case wireProposal:
		var p Proposal
		if err := json.Unmarshal(msg.Body, &p); err != nil {
			return fmt.Errorf("consensus: unmarshal proposal: %w", err)
		}
		return e.onReceiveProposal(p)
	case wireVote:
		var v Vote
		if err := json.Unmarshal(msg.Body, &v); err != nil {
			return fmt.Errorf("consensus: unmarshal vote: %w", err)
		}
		return e.onReceiveVote(v)
	case wireViewChange:
		var vc ViewChange
		if err := json.Unmarshal(msg.Body, &vc); err != nil {
			return fmt.Errorf("consensus: unmarshal view change: %w", err)
		}
		return e.onReceiveViewChange(vc)
	default:
		return fmt.Errorf("consensus: unknown wire kind %d", msg.Kind)
	}
}

func (e *Engine) onReceiveProposal(p Proposal) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p.Game != e.game.Id || p.View != e.view || p.Seq != e.seq {
		return nil // stale or future round; ignored, not an error
	}
	if p.ProposerId != e.leaderFor(e.view) {
		e.reportLocked(p.ProposerId, "proposal-from-non-leader", 2)
		return nil
	}
	pub, known := e.game.Players[p.ProposerId]
	if !known {
		return nil
	}
	ok, err := p.VerifySignature(pub)
	if err != nil || !ok {
		e.reportLocked(p.ProposerId, "bad-proposal-signature", 3)
		return nil
	}
	if e.proposal != nil && e.proposal.Seq == p.Seq && !digestsEqual(opDigest(e.proposal.Op), opDigest(p.Op)) {
		e.reportLocked(p.ProposerId, "equivocating-proposal", 5)
		return nil
	}
	if err := e.state.Validate(p.Op); err != nil {
		return e.sendPrepareVoteLocked(p, false)
	}
	pp := p
	e.beginRound(&pp)
	return e.sendPrepareVoteLocked(p, true)
}

func (e *Engine) sendPrepareVoteLocked(p Proposal, valid bool) error {
	if !valid {
		return nil // a silent non-vote; the round simply times out and view-changes
	}
	v := Vote{
		Game:     e.game.Id,
		View:     p.View,
		Seq:      p.Seq,
		Stage:    StagePrepare,
		OpDigest: opDigest(p.Op),
		VoterId:  e.game.Self,
	}
	if err := v.Sign(e.game.Priv); err != nil {
		return err
	}
	e.prepares[e.game.Self] = v
	b, err := wrap(wireVote, v)
	if err != nil {
		return err
	}
	return e.net.Flood(b)
}

func (e *Engine) onReceiveVote(v Vote) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v.Game != e.game.Id || v.View != e.view || v.Seq != e.seq || e.proposal == nil {
		return nil
	}
	pub, known := e.game.Players[v.VoterId]
	if !known {
		return nil
	}
	ok, err := v.VerifySignature(pub)
	if err != nil || !ok {
		e.reportLocked(v.VoterId, "bad-vote-signature", 3)
		return nil
	}
	if v.OpDigest != opDigest(e.proposal.Op) {
		e.reportLocked(v.VoterId, "vote-digest-mismatch", 2)
		return nil
	}

	switch v.Stage {
	case StagePrepare:
		e.prepares[v.VoterId] = v
		return e.checkPrepareQuorumLocked()
	case StageCommit:
		e.commits[v.VoterId] = v
		return e.checkCommitQuorumLocked()
	default:
		return fmt.Errorf("consensus: unknown vote stage %d", v.Stage)
	}
}

func (e *Engine) checkPrepareQuorumLocked() error {
	if e.phase != phasePreparing {
		return nil
	}
	if len(e.prepares) < e.quorum() {
		return nil
	}
	e.phase = phaseCommitting

	v := Vote{
		Game:     e.game.Id,
		View:     e.proposal.View,
		Seq:      e.proposal.Seq,
		Stage:    StageCommit,
		OpDigest: opDigest(e.proposal.Op),
		VoterId:  e.game.Self,
	}
	if err := v.Sign(e.game.Priv); err != nil {
		return err
	}
	e.commits[e.game.Self] = v
	b, err := wrap(wireVote, v)
	if err != nil {
		return err
	}
	return e.net.Flood(b)
}

func (e *Engine) checkCommitQuorumLocked() error {
	if e.phase != phaseCommitting {
		return nil
	}
	if len(e.commits) < e.quorum() {
		return nil
	}
	cert := QuorumCert{
		Proposal: *e.proposal,
		Prepares: sortedVotes(e.prepares),
		Commits:  sortedVotes(e.commits),
	}
	op := e.proposal.Op
	if err := e.state.Apply(op); err != nil {
		return fmt.Errorf("consensus: quorum-certified op failed to apply: %w", err)
	}
	if err := e.ledger.AppendGameOp(e.game.Id, op, cert); err != nil {
		return fmt.Errorf("consensus: append to ledger: %w", err)
	}

	e.seq++
	e.phase = phaseIdle
	e.proposal = nil
	if e.timer != nil {
		e.timer.Stop()
	}

	if e.onCommit != nil {
		// Run off the engine's own goroutine/lock: node's handler may
		// touch the reputation store or block briefly on an event
		// channel, neither of which should stall vote processing.
		go e.onCommit(op, cert)
	}
	return nil
}

// SetCommitHandler wires the callback invoked, on its own goroutine,
// after an op clears commit quorum and lands in the ledger. node only
// forwards a caller-supplied handler here; it does not connect the
// reputation store or the anti-cheat detectors to committed ops.
func (e *Engine) SetCommitHandler(f func(craps.GameOp, QuorumCert)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCommit = f
}

func sortedVotes(m map[identity.PeerId]Vote) []Vote {
	out := make([]Vote, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].VoterId[:]) < string(out[j].VoterId[:])
	})
	return out
}

func digestsEqual(a, b [32]byte) bool { return a == b }

func (e *Engine) reportLocked(subject identity.PeerId, reason string, severity uint8) {
	if e.evidence == nil {
		return
	}
	e.evidence.Observe(craps.EvidenceRecord{Subject: subject, Reason: reason, Severity: severity})
}

// TriggerViewChange starts a move to the next view. The engine never
// calls it by itself: it runs only when a caller invokes it directly or
// from a handler installed with SetTimeoutHandler. It broadcasts a
// ViewChange vote for view+1 and applies exponential backoff to the next
// timer so a partitioned minority doesn't spin.
func (e *Engine) TriggerViewChange() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	target := e.view + 1
	vc := ViewChange{Game: e.game.Id, NewView: target, VoterId: e.game.Self}
	if err := vc.Sign(e.game.Priv); err != nil {
		return err
	}
	e.recordViewChangeLocked(vc)

	e.viewTimeout = time.Duration(float64(e.viewTimeout) * e.backoffFactor)
	e.armTimerLocked()

	b, err := wrap(wireViewChange, vc)
	if err != nil {
		return err
	}
	return e.net.Flood(b)
}

func (e *Engine) onReceiveViewChange(vc ViewChange) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if vc.Game != e.game.Id || vc.NewView <= e.view {
		return nil
	}
	pub, known := e.game.Players[vc.VoterId]
	if !known {
		return nil
	}
	ok, err := vc.VerifySignature(pub)
	if err != nil || !ok {
		e.reportLocked(vc.VoterId, "bad-view-change-signature", 3)
		return nil
	}
	e.recordViewChangeLocked(vc)
	return nil
}

func (e *Engine) recordViewChangeLocked(vc ViewChange) {
	set, ok := e.pendingViewChanges[vc.NewView]
	if !ok {
		set = make(map[identity.PeerId]ViewChange)
		e.pendingViewChanges[vc.NewView] = set
	}
	set[vc.VoterId] = vc

	if len(set) >= e.quorum() && vc.NewView > e.view {
		e.view = vc.NewView
		e.phase = phaseIdle
		e.proposal = nil
		e.prepares = make(map[identity.PeerId]Vote)
		e.commits = make(map[identity.PeerId]Vote)
		e.viewTimeout = 5 * time.Second
		e.armTimerLocked()
		for view := range e.pendingViewChanges {
			if view <= e.view {
				delete(e.pendingViewChanges, view)
			}
		}
	}
}

// SetTimeoutHandler wires the callback invoked when a round's
// view-change timer fires; with nil (the default) no view-change timer
// is armed. node does not install a handler, so a table run through node
// changes view only when TriggerViewChange is called directly.
func (e *Engine) SetTimeoutHandler(f func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTimeout = f
}
