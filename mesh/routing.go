package mesh

import (
	"sync"
	"time"

	"github.com/bitcraps/core/identity"
)

// Default decay constants for the reliability score, per the
// exponential-moving-average scheme: success nudges the score up at rate
// alpha, each observed routing timeout decays it at rate beta.
const (
	alphaSuccess = 0.2
	betaTimeout  = 0.7
)

// RoutingEntry is one next-hop candidate for reaching a destination peer.
type RoutingEntry struct {
	Destination identity.PeerId
	NextHop     identity.PeerId
	HopCount    int
	Reliability float64
	UpdatedAt   time.Time
}

// RoutingTable holds the best known next hop for each reachable
// destination. Writers update the map in place under a sync.RWMutex, so
// readers wait while a write holds the lock; Snapshot returns a copy
// that can be iterated without the lock.
type RoutingTable struct {
	mu      sync.RWMutex
	entries map[identity.PeerId]RoutingEntry
	now     func() time.Time
}

// NewRoutingTable creates an empty RoutingTable.
func NewRoutingTable() *RoutingTable {
	return &RoutingTable{
		entries: make(map[identity.PeerId]RoutingEntry),
		now:     time.Now,
	}
}

// Snapshot returns a copy of the current routing entries, safe to iterate
// without holding any lock.
func (t *RoutingTable) Snapshot() map[identity.PeerId]RoutingEntry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[identity.PeerId]RoutingEntry, len(t.entries))
	for k, v := range t.entries {
		out[k] = v
	}
	return out
}

// Lookup returns the current best route to dest, if any.
func (t *RoutingTable) Lookup(dest identity.PeerId) (RoutingEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[dest]
	return e, ok
}

// Offer considers a candidate route learned from an RREP or piggy-backed
// route advertisement. It replaces the current best route to dest only
// when the candidate has a strictly lower hop count; a candidate with an
// equal hop count never replaces it, whatever the reliability scores.
func (t *RoutingTable) Offer(dest, nextHop identity.PeerId, hopCount int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	existing, ok := t.entries[dest]
	if !ok {
		t.entries[dest] = RoutingEntry{
			Destination: dest,
			NextHop:     nextHop,
			HopCount:    hopCount,
			Reliability: 1.0,
			UpdatedAt:   t.now(),
		}
		return
	}
	if hopCount < existing.HopCount {
		t.entries[dest] = RoutingEntry{
			Destination: dest,
			NextHop:     nextHop,
			HopCount:    hopCount,
			Reliability: 1.0,
			UpdatedAt:   t.now(),
		}
	}
}

// RecordSuccess nudges the reliability score of the route to dest upward
// after a successful delivery via its current next hop.
func (t *RoutingTable) RecordSuccess(dest identity.PeerId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[dest]
	if !ok {
		return
	}
	e.Reliability = e.Reliability + alphaSuccess*(1.0-e.Reliability)
	e.UpdatedAt = t.now()
	t.entries[dest] = e
}

// RecordTimeout decays the reliability score of the route to dest after a
// delivery attempt timed out. A route whose reliability falls below 0.01
// is evicted, forcing rediscovery.
func (t *RoutingTable) RecordTimeout(dest identity.PeerId) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[dest]
	if !ok {
		return
	}
	e.Reliability = e.Reliability * (1.0 - betaTimeout)
	e.UpdatedAt = t.now()
	if e.Reliability < 0.01 {
		delete(t.entries, dest)
		return
	}
	t.entries[dest] = e
}

// EvictStale removes routes not refreshed within maxAge.
func (t *RoutingTable) EvictStale(maxAge time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := t.now().Add(-maxAge)
	for dest, e := range t.entries {
		if e.UpdatedAt.Before(cutoff) {
			delete(t.entries, dest)
		}
	}
}
