package consensus

import "github.com/bitcraps/core/craps"

// ChannelEvidenceSink forwards detected violations to a buffered channel,
// where the anticheat package's report loop drains them and proposes the
// matching OpEvidence. It never blocks the consensus hot path: a full
// channel drops the observation (the same detector typically re-observes
// the same violation on the next protocol message anyway).
type ChannelEvidenceSink struct {
	ch chan craps.EvidenceRecord
}

// NewChannelEvidenceSink creates a sink buffering up to capacity records.
func NewChannelEvidenceSink(capacity int) *ChannelEvidenceSink {
	return &ChannelEvidenceSink{ch: make(chan craps.EvidenceRecord, capacity)}
}

// Observe implements EvidenceSink.
func (c *ChannelEvidenceSink) Observe(record craps.EvidenceRecord) {
	select {
	case c.ch <- record:
	default:
	}
}

// Records returns the channel evidence records are delivered on.
func (c *ChannelEvidenceSink) Records() <-chan craps.EvidenceRecord {
	return c.ch
}
