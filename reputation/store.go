// Package reputation holds each peer's standing, mutated only by
// Evidence ops that have themselves passed consensus. Nothing else is
// allowed to touch a score directly: a peer is never punished on the say
// of a single detector, only on a committed Evidence record.
package reputation

import (
	"sync"

	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
)

// MinScore and MaxScore bound a peer's reputation. A peer whose score
// hits MinScore is reported as banned by Banned; consensus.Engine does
// not consult this store, so a banned peer's votes and proposals are
// still counted.
const (
	MinScore = 0
	MaxScore = 100
	baseline = 50
)

// Entry is one peer's current standing.
type Entry struct {
	Score    int
	Evidence []craps.EvidenceRecord
}

// Store is the bounded, append-driven reputation table. Safe for
// concurrent use: Apply is the only mutator, to be called once per
// committed Evidence op. Nothing in this module calls it from the
// consensus commit path; the entries live in memory only.
type Store struct {
	mu      sync.RWMutex
	entries map[identity.PeerId]*Entry
}

// NewStore creates an empty reputation store.
func NewStore() *Store {
	return &Store{entries: make(map[identity.PeerId]*Entry)}
}

// Get returns the current entry for id, defaulting to baseline score if
// the peer has no recorded evidence yet.
func (s *Store) Get(id identity.PeerId) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if e, ok := s.entries[id]; ok {
		return *e
	}
	return Entry{Score: baseline}
}

// Banned reports whether id's score has been driven to MinScore.
func (s *Store) Banned(id identity.PeerId) bool {
	return s.Get(id).Score <= MinScore
}

// Apply mutates subject's score in response to a committed Evidence
// record. Severity (1-5, per anticheat's CheatReport scale) is
// subtracted directly from the score with no secondary confidence
// threshold: the op already cleared consensus quorum, so it is final.
func (s *Store) Apply(record craps.EvidenceRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[record.Subject]
	if !ok {
		e = &Entry{Score: baseline}
		s.entries[record.Subject] = e
	}
	penalty := int(record.Severity) * 10
	e.Score -= penalty
	if e.Score < MinScore {
		e.Score = MinScore
	}
	if e.Score > MaxScore {
		e.Score = MaxScore
	}
	e.Evidence = append(e.Evidence, record)
}

// Snapshot returns a copy of every tracked entry, for diagnostics and
// checkpointing.
func (s *Store) Snapshot() map[identity.PeerId]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[identity.PeerId]Entry, len(s.entries))
	for k, v := range s.entries {
		out[k] = *v
	}
	return out
}
