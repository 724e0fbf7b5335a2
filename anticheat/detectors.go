// Package anticheat hosts the statistical, timing, and protocol
// detectors that watch committed game ops for signs of cheating and turn
// confirmed violations into CheatReports for the reputation store.
package anticheat

import (
	"time"

	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
)

// CheatReport documents one detector's finding about subject.
type CheatReport struct {
	Subject   identity.PeerId
	Detector  string
	Reason    string
	Severity  uint8
	Timestamp time.Time
}

// StatisticalDetector watches the sequence of resolved dice rolls for a
// game and flags a subject (the player contributing reveal nonces) whose
// influence over the roll distribution deviates from fair dice via a
// chi-square goodness-of-fit test against the uniform 2d6 distribution.
type StatisticalDetector struct {
	window  []uint8 // recent roll totals, 2..12
	minObs  int
	alpha   float64 // chi-square critical value at the configured confidence
}

// NewStatisticalDetector creates a detector requiring at least minObs
// rolls before it will report anything, avoiding false positives on a
// short sample. alpha is the chi-square critical value for 10 degrees of
// freedom (11 totals, 2..12) at the desired confidence level; 18.31
// corresponds to 95% confidence.
func NewStatisticalDetector(minObs int) *StatisticalDetector {
	return &StatisticalDetector{minObs: minObs, alpha: 18.31}
}

// expectedFrequency returns the theoretical probability of rolling total
// with two fair six-sided dice.
func expectedFrequency(total int) float64 {
	ways := [13]float64{0, 0, 1, 2, 3, 4, 5, 6, 5, 4, 3, 2, 1}
	if total < 2 || total > 12 {
		return 0
	}
	return ways[total] / 36.0
}

// Observe records a resolved roll total (d1+d2) and, once enough
// observations have accumulated, returns a report if the distribution of
// observed totals diverges from fair dice beyond the detector's
// threshold.
func (s *StatisticalDetector) Observe(subject identity.PeerId, total uint8) *CheatReport {
	s.window = append(s.window, total)
	if len(s.window) < s.minObs {
		return nil
	}
	if len(s.window) > 500 {
		s.window = s.window[len(s.window)-500:]
	}

	counts := make(map[int]int)
	for _, t := range s.window {
		counts[int(t)]++
	}
	n := float64(len(s.window))
	chiSquare := 0.0
	for total := 2; total <= 12; total++ {
		expected := expectedFrequency(total) * n
		if expected == 0 {
			continue
		}
		observed := float64(counts[total])
		diff := observed - expected
		chiSquare += diff * diff / expected
	}
	if chiSquare > s.alpha {
		return &CheatReport{
			Subject:  subject,
			Detector: "statistical",
			Reason:   "dice distribution deviates from fair 2d6 beyond chi-square threshold",
			Severity: 4,
		}
	}
	return nil
}

// TimingDetector flags a player whose commit-reveal nonce reveals arrive
// suspiciously close to when other players' reveals become visible,
// suggesting the subject waited to see other reveals before committing
// their own roll outcome (a last-revealer advantage attack).
type TimingDetector struct {
	minGap time.Duration
}

// NewTimingDetector creates a detector requiring at least minGap between
// the last other-player reveal and the subject's own reveal.
func NewTimingDetector(minGap time.Duration) *TimingDetector {
	return &TimingDetector{minGap: minGap}
}

// Observe checks whether subject revealed within minGap of the last
// other-player reveal in the same round.
func (d *TimingDetector) Observe(subject identity.PeerId, subjectRevealAt, lastOtherRevealAt time.Time) *CheatReport {
	if subjectRevealAt.Before(lastOtherRevealAt) {
		return nil
	}
	if subjectRevealAt.Sub(lastOtherRevealAt) < d.minGap {
		return &CheatReport{
			Subject:  subject,
			Detector: "timing",
			Reason:   "reveal followed other players' reveals within the minimum safety gap",
			Severity: 2,
		}
	}
	return nil
}

// ProtocolDetector flags structural violations that don't need a
// statistical model: equivocation (two differently-signed proposals for
// the same seq), bad signatures, and malformed ops. The consensus engine
// itself already reports most of these via its EvidenceSink hook; this
// detector re-validates committed history for violations that could only
// be confirmed after the fact (e.g. a player revealing a nonce that
// doesn't match an earlier, now-committed commitment).
type ProtocolDetector struct{}

// Observe checks a committed OpDiceReveal's nonce against its prior
// OpDiceCommit's commitment, reporting a violation if they don't hash to
// match (this should be unreachable if GameState.Apply already rejected
// it, but committed history is the authoritative source of truth a
// detector re-checks independently of the engine that produced it).
func (ProtocolDetector) Observe(subject identity.PeerId, commitment [32]byte, nonce [32]byte, hash func([]byte) [32]byte) *CheatReport {
	if hash(nonce[:]) != commitment {
		return &CheatReport{
			Subject:  subject,
			Detector: "protocol",
			Reason:   "revealed nonce does not match prior commitment",
			Severity: 5,
		}
	}
	return nil
}

// RollTotal extracts the two-dice total from a resolved game op's last
// roll. No package in this module calls it.
func RollTotal(state *craps.GameState) uint8 {
	return state.LastRoll[0] + state.LastRoll[1]
}
