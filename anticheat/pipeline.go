package anticheat

import "github.com/bitcraps/core/craps"

// EvidenceProposer is the capability the pipeline needs to turn a
// confirmed CheatReport into a committed Evidence op: consensus.Engine
// satisfies this via Propose.
type EvidenceProposer interface {
	Propose(op craps.GameOp) error
}

// Pipeline drains a stream of CheatReports (typically
// consensus.ChannelEvidenceSink.Records(), adapted to CheatReport, plus
// this package's own detector outputs) and proposes the matching
// OpEvidence on the game's consensus engine. Only the current leader's
// proposal actually lands; followers' attempts simply fail Propose's
// leader check and are dropped, which is fine since every honest replica
// observes the same violations and will eventually lead a view.
type Pipeline struct {
	game     craps.GameId
	proposer EvidenceProposer
}

// NewPipeline creates a Pipeline targeting game via proposer.
func NewPipeline(game craps.GameId, proposer EvidenceProposer) *Pipeline {
	return &Pipeline{game: game, proposer: proposer}
}

// Submit proposes an OpEvidence for report. Errors (most commonly "not
// leader") are swallowed: the caller is a best-effort background loop,
// not a synchronous RPC.
func (p *Pipeline) Submit(report CheatReport) {
	op := craps.GameOp{
		Kind: craps.OpEvidence,
		Game: p.game,
		Evidence: craps.EvidenceRecord{
			Subject:  report.Subject,
			Reason:   report.Detector + ": " + report.Reason,
			Severity: report.Severity,
		},
	}
	_ = p.proposer.Propose(op)
}

// Run drains reports from ch until it is closed, submitting each one.
// It blocks, so callers run it on its own goroutine; node does not start it.
func (p *Pipeline) Run(ch <-chan CheatReport) {
	for report := range ch {
		p.Submit(report)
	}
}
