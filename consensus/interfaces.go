package consensus

import "github.com/bitcraps/core/craps"

// Ledger is the durable append target for committed quorum certificates.
// consensuslog.Log implements this.
type Ledger interface {
	AppendGameOp(game craps.GameId, op craps.GameOp, cert QuorumCert) error
}

// Broadcaster sends an opaque payload to every reachable participant in
// a game. mesh.Service.Flood implements this.
type Broadcaster interface {
	Flood(payload []byte) error
}

// EvidenceSink receives detected protocol violations (equivocation,
// invalid signatures, malformed proposals) for the anti-cheat pipeline to
// turn into an Evidence op. Kept separate from Ledger since evidence must
// itself go through consensus before it can slash anyone.
type EvidenceSink interface {
	Observe(record craps.EvidenceRecord)
}
