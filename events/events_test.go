package events

import (
	"testing"

	"github.com/bitcraps/core/craps"
	"github.com/bitcraps/core/identity"
)

func TestConstructorsTagTheRightType(t *testing.T) {
	game := craps.GameId{1}
	var peer identity.PeerId
	peer[0] = 2

	cases := []struct {
		name string
		ev   Event
		want Type
	}{
		{"joined", PeerJoined(game, peer), TypePeerJoined},
		{"left", PeerLeft(game, peer), TypePeerLeft},
		{"rolled", DiceRolled(game, [2]uint8{3, 4}), TypeDiceRolled},
		{"resolved", BetResolved(game, craps.Bet{}, 50), TypeBetResolved},
		{"halted", GameHalted(game, "quorum unreachable"), TypeGameHalted},
		{"slashed", PeerSlashed(game, peer, "equivocation"), TypePeerSlashed},
	}
	for _, c := range cases {
		if c.ev.Type != c.want {
			t.Errorf("%s: expected type %v, got %v", c.name, c.want, c.ev.Type)
		}
		if c.ev.Game != game {
			t.Errorf("%s: expected game to be carried through", c.name)
		}
	}
}

func TestKindString(t *testing.T) {
	if KindConsensus.String() != "Consensus" {
		t.Fatalf("unexpected Kind.String(): %s", KindConsensus.String())
	}
	if Kind(255).String() != "Unknown" {
		t.Fatalf("expected unknown kind to stringify safely")
	}
}
