// Package config holds the tuning knobs as one immutable value with
// defaults and validation; nothing mutates a Config in place. No other
// package of this module takes a Config: their constructors receive the
// individual values they need as plain arguments.
package config

import "errors"

// Validation errors, one per field, so callers can switch on the exact
// failure instead of parsing a message.
var (
	ErrPowDifficultyRange   = errors.New("config: pow_difficulty out of range [8,24]")
	ErrMaxHopsZero          = errors.New("config: max_hops must be positive")
	ErrDedupCacheSizeZero   = errors.New("config: dedup_cache_size must be positive")
	ErrViewTimeoutZero      = errors.New("config: view_timeout_ms must be positive")
	ErrPrepareTimeoutZero   = errors.New("config: prepare_timeout_ms must be positive")
	ErrCommitTimeoutZero    = errors.New("config: commit_timeout_ms must be positive")
	ErrRevealTimeoutZero    = errors.New("config: reveal_timeout_ms must be positive")
	ErrCheckpointZero       = errors.New("config: checkpoint_interval must be positive")
	ErrMaxPlayersTooFew     = errors.New("config: max_players_per_game must allow at least 2 players")
	ErrSessionRekeyZero     = errors.New("config: session_rekey_frames must be positive")
	ErrNeighborQueueZero    = errors.New("config: neighbor_queue_depth must be positive")
)

// Config collects every tunable the core exposes to its host.
type Config struct {
	PowDifficulty      uint8  // leading zero bits required, default 16, range 8..24
	MaxHops            uint8  // max_hops, default 8
	DedupCacheSize     uint32 // dedup_cache_size, default 10_000
	ViewTimeoutMs      uint32 // view_timeout_ms, default 5000
	PrepareTimeoutMs   uint32 // prepare_timeout_ms, default 2000
	CommitTimeoutMs    uint32 // commit_timeout_ms, default 3000
	RevealTimeoutMs    uint32 // reveal_timeout_ms, default 3000
	CheckpointInterval uint32 // checkpoint_interval, default 128
	CatchupThreshold   uint32 // catchup_threshold, default 64
	MaxPlayersPerGame  uint8  // max_players_per_game, default 8
	SessionRekeyFrames uint32 // session_rekey_frames, default 1_048_576
	NeighborQueueDepth uint32 // neighbor_queue_depth, default 256
}

// Default returns the specification's baseline configuration.
func Default() Config {
	return Config{
		PowDifficulty:      16,
		MaxHops:            8,
		DedupCacheSize:     10_000,
		ViewTimeoutMs:      5000,
		PrepareTimeoutMs:   2000,
		CommitTimeoutMs:    3000,
		RevealTimeoutMs:    3000,
		CheckpointInterval: 128,
		CatchupThreshold:   64,
		MaxPlayersPerGame:  8,
		SessionRekeyFrames: 1_048_576,
		NeighborQueueDepth: 256,
	}
}

// Validate checks every field against its documented range, returning
// the first violation found.
func Validate(c Config) error {
	if c.PowDifficulty < 8 || c.PowDifficulty > 24 {
		return ErrPowDifficultyRange
	}
	if c.MaxHops == 0 {
		return ErrMaxHopsZero
	}
	if c.DedupCacheSize == 0 {
		return ErrDedupCacheSizeZero
	}
	if c.ViewTimeoutMs == 0 {
		return ErrViewTimeoutZero
	}
	if c.PrepareTimeoutMs == 0 {
		return ErrPrepareTimeoutZero
	}
	if c.CommitTimeoutMs == 0 {
		return ErrCommitTimeoutZero
	}
	if c.RevealTimeoutMs == 0 {
		return ErrRevealTimeoutZero
	}
	if c.CheckpointInterval == 0 {
		return ErrCheckpointZero
	}
	if c.MaxPlayersPerGame < 2 {
		return ErrMaxPlayersTooFew
	}
	if c.SessionRekeyFrames == 0 {
		return ErrSessionRekeyZero
	}
	if c.NeighborQueueDepth == 0 {
		return ErrNeighborQueueZero
	}
	return nil
}
