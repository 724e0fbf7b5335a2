package consensuslog

import "github.com/holiman/bloomfilter/v2"

// seqIndex answers "does this log hold an entry above seq X" without
// scanning the entry set, so a sync request from a peer that is already
// up to date is answered in O(1). Every recorded seq is also added to a
// bloom filter, but no lookup currently consults the filter.
type seqIndex struct {
	filter  *bloomfilter.Filter
	highest uint64
	seen    bool
}

type seqHash uint64

func (s seqHash) Sum64() uint64 { return uint64(s) }

func newSeqIndex() *seqIndex {
	f, err := bloomfilter.NewOptimal(1<<20, 0.001)
	if err != nil {
		// Only fails on a degenerate (zero-sized) configuration, which
		// the constants above never produce.
		panic("consensuslog: bloom filter init: " + err.Error())
	}
	return &seqIndex{filter: f}
}

func (s *seqIndex) add(seq uint64) {
	s.filter.Add(seqHash(seq))
	if !s.seen || seq > s.highest {
		s.highest = seq
		s.seen = true
	}
}

// mayContainAbove reports whether the index has ever recorded a
// sequence number greater than after. The answer is exact: it compares
// against the highest recorded seq and does not consult the filter.
func (s *seqIndex) mayContainAbove(after uint64) bool {
	return s.seen && s.highest > after
}
