package consensuslog

import "github.com/bitcraps/core/craps"

// SyncRequest asks a peer's log for everything committed after Since
// for Game.
type SyncRequest struct {
	Game  craps.GameId `json:"game"`
	Since uint64       `json:"since"`
}

// SyncResponse answers a SyncRequest. Checkpoint is populated only when
// the requester is far enough behind that replaying raw entries would
// mean walking history already compacted away; in that case the
// requester must first adopt Checkpoint.Snapshot as its starting state,
// then apply Entries on top of it.
type SyncResponse struct {
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
	Entries    []Entry     `json:"entries"`
}

// BuildSyncResponse answers req against this log's current state.
func (l *Log) BuildSyncResponse(req SyncRequest) SyncResponse {
	l.mu.RLock()
	oldest := uint64(0)
	haveOldest := len(l.entries) > 0
	if haveOldest {
		oldest = l.entries[0].Seq
	}
	l.mu.RUnlock()

	if haveOldest && req.Since < oldest {
		if cp, ok := l.checkpointCovering(oldest); ok {
			return SyncResponse{
				Checkpoint: &cp,
				Entries:    l.Since(cp.Seq),
			}
		}
	}

	return SyncResponse{Entries: l.Since(req.Since)}
}

// checkpointCovering returns the newest checkpoint strictly before
// beforeSeq, which is the one a replayer should restore from before
// applying entries after it.
func (l *Log) checkpointCovering(beforeSeq uint64) (Checkpoint, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var best Checkpoint
	found := false
	for _, cp := range l.checkpoints {
		if cp.Seq < beforeSeq && (!found || cp.Seq > best.Seq) {
			best = cp
			found = true
		}
	}
	return best, found
}

// ApplySyncResponse replays resp onto the caller's local game state: if
// resp.Checkpoint is set, restore(snapshot) is called first, then apply
// runs once per entry in order.
func ApplySyncResponse(resp SyncResponse, restore func(snapshot []byte) error, apply func(Entry) error) error {
	if resp.Checkpoint != nil && restore != nil {
		if err := restore(resp.Checkpoint.Snapshot); err != nil {
			return err
		}
	}
	for _, e := range resp.Entries {
		if err := apply(e); err != nil {
			return err
		}
	}
	return nil
}
