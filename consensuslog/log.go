// Package consensuslog is the durable, append-only record of everything
// a game's consensus engine has committed: one hash-chained entry per
// quorum-certified GameOp, persisted via storage.DB, with periodic
// checkpoints and a bloom-filter-backed index so a rejoining replica can
// catch up without replaying its entire history.
//
// The hash chain covers only deterministic fields (sequence, previous
// hash, game id, op, and quorum certificate) and deliberately excludes
// wall-clock time: every honest replica commits the same op under the
// same certificate but observes it at a slightly different instant, and
// the chain must agree across replicas to be useful as a checkpoint
// state root.
package consensuslog

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/bitcraps/core/consensus"
	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/storage"
	"github.com/bitcraps/core/xcrypto"
)

// DefaultCheckpointInterval is how many entries accumulate between
// automatic checkpoints.
const DefaultCheckpointInterval = 128

// Entry is one committed operation in a game's log.
type Entry struct {
	Seq       uint64              `json:"seq"`
	Game      craps.GameId        `json:"game"`
	Op        craps.GameOp        `json:"op"`
	Cert      consensus.QuorumCert `json:"cert"`
	Timestamp int64               `json:"timestamp"`
	PrevHash  string              `json:"prev_hash"`
	Hash      string              `json:"hash"`
}

// StateSnapshotter captures an opaque, checkpointable snapshot of a
// game's current state. The caller that creates the Log supplies it;
// node does not create a Log.
type StateSnapshotter func(game craps.GameId) ([]byte, error)

// Log is the append-only log for a single game. Safe for concurrent
// use; AppendGameOp is the only mutator and satisfies consensus.Ledger.
type Log struct {
	mu sync.RWMutex

	game    craps.GameId
	db      *storage.DB
	entries []Entry

	checkpointEvery uint64
	checkpoints     []Checkpoint
	snapshot        StateSnapshotter

	index *seqIndex
}

// Open loads (or initializes) the log for game from db, rebuilding the
// in-memory entry and checkpoint slices from whatever was previously
// persisted.
func Open(db *storage.DB, game craps.GameId, snapshot StateSnapshotter) (*Log, error) {
	l := &Log{
		game:            game,
		db:              db,
		checkpointEvery: DefaultCheckpointInterval,
		snapshot:        snapshot,
		index:           newSeqIndex(),
	}

	var loadErr error
	err := db.ForEach(entryBucket(game), func(_, value []byte) error {
		var e Entry
		if err := json.Unmarshal(value, &e); err != nil {
			loadErr = fmt.Errorf("consensuslog: decode entry: %w", err)
			return loadErr
		}
		l.entries = append(l.entries, e)
		l.index.add(e.Seq)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loadErr != nil {
		return nil, loadErr
	}

	if err := db.ForEach(checkpointBucket(game), func(_, value []byte) error {
		var c Checkpoint
		if err := json.Unmarshal(value, &c); err != nil {
			return fmt.Errorf("consensuslog: decode checkpoint: %w", err)
		}
		l.checkpoints = append(l.checkpoints, c)
		return nil
	}); err != nil {
		return nil, err
	}

	return l, nil
}

func entryBucket(game craps.GameId) string {
	return "consensuslog.entries." + hex.EncodeToString(game[:])
}

func checkpointBucket(game craps.GameId) string {
	return "consensuslog.checkpoints." + hex.EncodeToString(game[:])
}

func seqKey(seq uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], seq)
	return b[:]
}

// AppendGameOp commits op under cert as the next entry in game's log.
// Implements consensus.Ledger.
func (l *Log) AppendGameOp(game craps.GameId, op craps.GameOp, cert consensus.QuorumCert) error {
	if game != l.game {
		return fmt.Errorf("consensuslog: log for game %x cannot accept op for game %x", l.game, game)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	var prevHash string
	var nextSeq uint64
	if n := len(l.entries); n > 0 {
		prevHash = l.entries[n-1].Hash
		nextSeq = l.entries[n-1].Seq + 1
	}

	e := Entry{
		Seq:      nextSeq,
		Game:     game,
		Op:       op,
		Cert:     cert,
		PrevHash: prevHash,
	}
	e.Hash = calculateHash(e)

	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("consensuslog: marshal entry: %w", err)
	}
	if err := l.db.Put(entryBucket(game), seqKey(e.Seq), b); err != nil {
		return err
	}

	l.entries = append(l.entries, e)
	l.index.add(e.Seq)

	if l.snapshot != nil && l.checkpointEvery > 0 && (e.Seq+1)%l.checkpointEvery == 0 {
		if err := l.createCheckpoint(e.Seq); err != nil {
			return fmt.Errorf("consensuslog: checkpoint at seq %d: %w", e.Seq, err)
		}
	}

	return nil
}

// calculateHash hashes exactly the deterministic fields of an entry:
// never the timestamp, which would otherwise make honest replicas
// diverge on an identical committed history.
func calculateHash(e Entry) string {
	opBytes, _ := json.Marshal(e.Op)
	certBytes, _ := json.Marshal(e.Cert)
	data := fmt.Sprintf("%d|%x|%s|%s|%s", e.Seq, e.Game, e.PrevHash, opBytes, certBytes)
	h := xcrypto.Hash([]byte(data))
	return hex.EncodeToString(h[:])
}

// Verify walks the full chain, checking sequence continuity and hash
// linkage. A mismatch anywhere means the log was corrupted or tampered
// with after the fact.
func (l *Log) Verify() error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var prevHash string
	var wantSeq uint64
	for _, e := range l.entries {
		if e.Seq != wantSeq {
			return fmt.Errorf("consensuslog: gap in sequence: expected %d, got %d", wantSeq, e.Seq)
		}
		if e.PrevHash != prevHash {
			return fmt.Errorf("consensuslog: broken chain at seq %d: expected prev hash %s, got %s", e.Seq, prevHash, e.PrevHash)
		}
		if got := calculateHash(e); got != e.Hash {
			return fmt.Errorf("consensuslog: hash mismatch at seq %d: expected %s, got %s", e.Seq, got, e.Hash)
		}
		prevHash = e.Hash
		wantSeq++
	}
	return nil
}

// Latest returns the most recently appended entry. ok is false for an
// empty log.
func (l *Log) Latest() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Since returns every entry with Seq > after, in order.
func (l *Log) Since(after uint64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.index.mayContainAbove(after) {
		return nil
	}

	out := make([]Entry, 0)
	for _, e := range l.entries {
		if e.Seq > after {
			out = append(out, e)
		}
	}
	return out
}

// Len reports how many entries are currently retained in memory.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
