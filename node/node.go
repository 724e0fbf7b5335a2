// Package node is the wiring glue between a transport, a mesh service,
// and the consensus engine that drives one craps table: it owns the
// mesh, dispatches everything the mesh delivers into the engine's
// inbox, and exposes the small surface a caller needs to drive a round
// (Propose, Snapshot, commit notifications).
package node

import (
	"github.com/bitcraps/core/consensus"
	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/mesh"
	"github.com/bitcraps/core/transport"
)

// Node bundles one participant's mesh service and consensus engine for a
// single game. There is one Node per local identity per table.
type Node struct {
	Self   identity.PeerId
	Mesh   *mesh.Service
	Engine *consensus.Engine

	done chan struct{}
}

// New wires a fresh mesh service over t and a consensus engine over
// state, starts the delivery pump, and returns the running Node.
func New(cfg consensus.GameConfig, state *craps.GameState, t transport.Transport, ledger consensus.Ledger, evidence consensus.EvidenceSink) *Node {
	ms := mesh.NewService(cfg.Self, t)
	eng := consensus.NewEngine(cfg, state, ledger, ms, evidence)
	n := &Node{Self: cfg.Self, Mesh: ms, Engine: eng, done: make(chan struct{})}
	go n.pump()
	return n
}

// pump feeds everything the mesh delivers into the engine's inbox for as
// long as the mesh stays open.
func (n *Node) pump() {
	defer close(n.done)
	for d := range n.Mesh.Deliveries() {
		_ = n.Engine.HandleInbound(d.Payload)
	}
}

// Propose forwards op to the consensus engine.
func (n *Node) Propose(op craps.GameOp) error {
	return n.Engine.Propose(op)
}

// SetCommitHandler registers fn to be called whenever the engine commits
// an op. Every replica that reaches commit quorum calls it, leader or not.
func (n *Node) SetCommitHandler(fn func(craps.GameOp, consensus.QuorumCert)) {
	n.Engine.SetCommitHandler(fn)
}

// Snapshot returns a deep copy of the engine's current game state.
func (n *Node) Snapshot() craps.GameState {
	return n.Engine.Snapshot()
}

// Wait blocks until the delivery pump has drained (the mesh closed).
func (n *Node) Wait() {
	<-n.done
}
