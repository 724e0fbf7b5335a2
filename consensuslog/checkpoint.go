package consensuslog

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bitcraps/core/xcrypto"
)

// Checkpoint freezes a game's state at a given log position so a
// rejoining or far-behind replica can skip straight to Seq instead of
// replaying the whole chain from entry zero.
type Checkpoint struct {
	Seq       uint64 `json:"seq"`
	StateRoot string `json:"state_root"`
	Snapshot  []byte `json:"snapshot"`
}

func checkpointKey(seq uint64) []byte {
	return seqKey(seq)
}

// createCheckpoint snapshots the game's current state at seq and
// persists it. Callers must hold l.mu for writing.
func (l *Log) createCheckpoint(seq uint64) error {
	snap, err := l.snapshot(l.game)
	if err != nil {
		return fmt.Errorf("consensuslog: snapshot game state: %w", err)
	}

	root := xcrypto.Hash(snap)
	cp := Checkpoint{
		Seq:       seq,
		StateRoot: hex.EncodeToString(root[:]),
		Snapshot:  snap,
	}

	b, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("consensuslog: marshal checkpoint: %w", err)
	}
	if err := l.db.Put(checkpointBucket(l.game), checkpointKey(seq), b); err != nil {
		return err
	}

	l.checkpoints = append(l.checkpoints, cp)
	l.compactBefore(seq)
	return nil
}

// compactBefore drops in-memory entries at or before a checkpointed
// sequence, since they're now recoverable from the checkpoint's
// snapshot plus anything after it. The on-disk copies are left alone:
// Verify and audits still want the full history available on request.
func (l *Log) compactBefore(seq uint64) {
	kept := l.entries[:0:0]
	for _, e := range l.entries {
		if e.Seq > seq {
			kept = append(kept, e)
		}
	}
	l.entries = kept
}

// LatestCheckpoint returns the most recent checkpoint, if any.
func (l *Log) LatestCheckpoint() (Checkpoint, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.checkpoints) == 0 {
		return Checkpoint{}, false
	}
	return l.checkpoints[len(l.checkpoints)-1], true
}
