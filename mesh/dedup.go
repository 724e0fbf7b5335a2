package mesh

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/bitcraps/core/xcrypto"
)

// DedupCacheSize bounds the number of recently seen message ids retained
// for flood suppression.
const DedupCacheSize = 10_000

// MessageId identifies a mesh message for dedup and ack purposes:
// BLAKE3(payload || origin || origin_seq).
type MessageId [32]byte

// ComputeMessageId derives the MessageId for a message originated by
// origin at sequence number originSeq carrying payload.
func ComputeMessageId(payload []byte, origin [32]byte, originSeq uint64) MessageId {
	seqBytes := make([]byte, 8)
	for i := 0; i < 8; i++ {
		seqBytes[i] = byte(originSeq >> (56 - 8*i))
	}
	return MessageId(xcrypto.Hash(payload, origin[:], seqBytes))
}

// DedupCache is a bounded LRU set of recently observed MessageIds, used by
// the flooding layer to drop messages already relayed.
type DedupCache struct {
	cache *lru.Cache[MessageId, struct{}]
}

// NewDedupCache creates a DedupCache bounded to DedupCacheSize entries.
func NewDedupCache() *DedupCache {
	c, err := lru.New[MessageId, struct{}](DedupCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which never
		// happens with the compile-time constant above.
		panic(err)
	}
	return &DedupCache{cache: c}
}

// SeenBefore reports whether id was already recorded, and records it if
// not. This makes the check-and-insert atomic from the caller's
// perspective, mirroring the flood-then-suppress pattern described for
// the mesh's message_id dedup table.
func (d *DedupCache) SeenBefore(id MessageId) bool {
	if d.cache.Contains(id) {
		d.cache.Get(id) // refresh recency
		return true
	}
	d.cache.Add(id, struct{}{})
	return false
}

// Len returns the number of entries currently tracked.
func (d *DedupCache) Len() int {
	return d.cache.Len()
}
