package identity

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// DefaultDifficulty is the default number of leading zero bits a mined
// nonce must satisfy against a peer's PeerId.
const DefaultDifficulty uint8 = 16

// AdmissionProof is the nonce that, hashed together with a PeerId, produces
// a digest with at least Difficulty leading zero bits.
type AdmissionProof struct {
	Nonce      uint64
	Difficulty uint8
}

// powDigest computes BLAKE3(id || nonce).
func powDigest(id PeerId, nonce uint64) [32]byte {
	var nb [8]byte
	binary.BigEndian.PutUint64(nb[:], nonce)
	h := blake3.New()
	h.Write(id[:])
	h.Write(nb[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// leadingZeroBits counts the leading zero bits of a 32-byte digest.
func leadingZeroBits(digest [32]byte) int {
	count := 0
	for _, b := range digest {
		if b == 0 {
			count += 8
			continue
		}
		count += bits.LeadingZeros8(b)
		break
	}
	return count
}

// Mine searches for a nonce satisfying the requested difficulty. It is a
// plain sequential search: admission cost is meant to be paid once, not
// optimized for throughput.
func Mine(id PeerId, difficulty uint8) (AdmissionProof, error) {
	for nonce := uint64(0); ; nonce++ {
		d := powDigest(id, nonce)
		if leadingZeroBits(d) >= int(difficulty) {
			return AdmissionProof{Nonce: nonce, Difficulty: difficulty}, nil
		}
		if nonce == ^uint64(0) {
			return AdmissionProof{}, fmt.Errorf("identity: exhausted nonce space at difficulty %d", difficulty)
		}
	}
}

// VerifyProof checks that a proof actually satisfies its claimed
// difficulty against id.
func VerifyProof(id PeerId, proof AdmissionProof) bool {
	d := powDigest(id, proof.Nonce)
	return leadingZeroBits(d) >= int(proof.Difficulty)
}

// DifficultyController adapts the admission difficulty to the observed
// join rate, per the smoothing rule: raise difficulty by one when the mean
// join rate over the last minute exceeds target, lower by one after ten
// minutes spent below target.
type DifficultyController struct {
	mu         sync.Mutex
	difficulty uint8
	target     float64
	window     time.Duration
	cooldown   time.Duration
	joins      []time.Time
	belowSince time.Time
	now        func() time.Time
}

// NewDifficultyController creates a controller starting at base difficulty,
// targeting joinsPerMinute admissions per minute.
func NewDifficultyController(base uint8, joinsPerMinute float64) *DifficultyController {
	return &DifficultyController{
		difficulty: base,
		target:     joinsPerMinute,
		window:     60 * time.Second,
		cooldown:   10 * time.Minute,
		now:        time.Now,
	}
}

// Difficulty returns the current admission difficulty.
func (c *DifficultyController) Difficulty() uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.difficulty
}

// RecordJoin records a successful admission and re-evaluates difficulty.
func (c *DifficultyController) RecordJoin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	c.joins = append(c.joins, now)
	c.trim(now)

	rate := float64(len(c.joins)) / (c.window.Minutes())
	if rate > c.target {
		if c.difficulty < 255 {
			c.difficulty++
		}
		c.belowSince = time.Time{}
		return
	}
	if c.belowSince.IsZero() {
		c.belowSince = now
		return
	}
	if now.Sub(c.belowSince) >= c.cooldown && c.difficulty > 1 {
		c.difficulty--
		c.belowSince = now
	}
}

func (c *DifficultyController) trim(now time.Time) {
	cutoff := now.Add(-c.window)
	i := 0
	for ; i < len(c.joins); i++ {
		if c.joins[i].After(cutoff) {
			break
		}
	}
	c.joins = c.joins[i:]
}
