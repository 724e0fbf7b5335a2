package config

import "testing"

func TestDefaultValidates(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("expected default config to validate, got %v", err)
	}
}

func TestValidateCatchesEachFieldInTurn(t *testing.T) {
	c := Default()

	c.PowDifficulty = 30
	if err := Validate(c); err != ErrPowDifficultyRange {
		t.Fatalf("expected %v, got %v", ErrPowDifficultyRange, err)
	}
	c.PowDifficulty = 16

	c.MaxHops = 0
	if err := Validate(c); err != ErrMaxHopsZero {
		t.Fatalf("expected %v, got %v", ErrMaxHopsZero, err)
	}
	c.MaxHops = 8

	c.DedupCacheSize = 0
	if err := Validate(c); err != ErrDedupCacheSizeZero {
		t.Fatalf("expected %v, got %v", ErrDedupCacheSizeZero, err)
	}
	c.DedupCacheSize = 10_000

	c.ViewTimeoutMs = 0
	if err := Validate(c); err != ErrViewTimeoutZero {
		t.Fatalf("expected %v, got %v", ErrViewTimeoutZero, err)
	}
	c.ViewTimeoutMs = 5000

	c.MaxPlayersPerGame = 1
	if err := Validate(c); err != ErrMaxPlayersTooFew {
		t.Fatalf("expected %v, got %v", ErrMaxPlayersTooFew, err)
	}
	c.MaxPlayersPerGame = 8

	c.NeighborQueueDepth = 0
	if err := Validate(c); err != ErrNeighborQueueZero {
		t.Fatalf("expected %v, got %v", ErrNeighborQueueZero, err)
	}
	c.NeighborQueueDepth = 256

	if err := Validate(c); err != nil {
		t.Fatalf("expected config restored to defaults to validate, got %v", err)
	}
}
