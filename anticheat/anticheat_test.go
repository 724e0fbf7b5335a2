package anticheat

import (
	"testing"
	"time"

	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
)

func peer(b byte) identity.PeerId {
	var id identity.PeerId
	id[0] = b
	return id
}

func TestStatisticalDetectorFlagsSkewedRolls(t *testing.T) {
	d := NewStatisticalDetector(200)
	subject := peer(1)
	var last *CheatReport
	for i := 0; i < 200; i++ {
		// every roll a 7: wildly non-uniform for fair 2d6
		last = d.Observe(subject, 7)
	}
	if last == nil {
		t.Fatalf("expected detector to flag an all-sevens sequence")
	}
}

func TestStatisticalDetectorSilentOnFairRolls(t *testing.T) {
	d := NewStatisticalDetector(36)
	subject := peer(1)
	// every total 2..12 with its true frequency out of 36 fair rolls
	fair := []uint8{2, 3, 3, 4, 4, 4, 5, 5, 5, 5, 6, 6, 6, 6, 6, 7, 7, 7, 7, 7, 7,
		8, 8, 8, 8, 8, 9, 9, 9, 9, 10, 10, 10, 11, 11, 12}
	var last *CheatReport
	for _, total := range fair {
		last = d.Observe(subject, total)
	}
	if last != nil {
		t.Fatalf("expected no report for a textbook-fair distribution, got %+v", last)
	}
}

func TestTimingDetectorFlagsFastFollow(t *testing.T) {
	d := NewTimingDetector(500 * time.Millisecond)
	base := time.Now()
	report := d.Observe(peer(2), base.Add(10*time.Millisecond), base)
	if report == nil {
		t.Fatalf("expected a report for a reveal within the safety gap")
	}
}

func TestTimingDetectorSilentOnSlowFollow(t *testing.T) {
	d := NewTimingDetector(500 * time.Millisecond)
	base := time.Now()
	report := d.Observe(peer(2), base.Add(time.Second), base)
	if report != nil {
		t.Fatalf("expected no report when the reveal gap clears the threshold")
	}
}

func TestProtocolDetectorFlagsMismatchedReveal(t *testing.T) {
	var commitment, nonce [32]byte
	commitment[0] = 1
	hash := func(b []byte) [32]byte { return [32]byte{99} }
	report := ProtocolDetector{}.Observe(peer(3), commitment, nonce, hash)
	if report == nil {
		t.Fatalf("expected a report for a mismatched reveal")
	}
}

func TestPipelineSubmitBuildsEvidenceOp(t *testing.T) {
	game := craps.GameId{1}
	captured := make(chan craps.GameOp, 1)
	p := NewPipeline(game, proposerFunc(func(op craps.GameOp) error {
		captured <- op
		return nil
	}))
	p.Submit(CheatReport{Subject: peer(4), Detector: "timing", Reason: "fast follow", Severity: 2})

	select {
	case op := <-captured:
		if op.Kind != craps.OpEvidence || op.Evidence.Subject != peer(4) {
			t.Fatalf("unexpected evidence op: %+v", op)
		}
	default:
		t.Fatalf("expected Submit to propose synchronously")
	}
}

type proposerFunc func(op craps.GameOp) error

func (f proposerFunc) Propose(op craps.GameOp) error { return f(op) }
