package mesh

import (
	"testing"
	"time"

	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/transport"
)

func peerId(b byte) identity.PeerId {
	var id identity.PeerId
	id[0] = b
	return id
}

func TestDedupCacheSuppressesRepeats(t *testing.T) {
	d := NewDedupCache()
	id := ComputeMessageId([]byte("payload"), [32]byte{1}, 1)
	if d.SeenBefore(id) {
		t.Fatalf("first observation should not be marked seen")
	}
	if !d.SeenBefore(id) {
		t.Fatalf("second observation should be marked seen")
	}
}

func TestRoutingTablePrefersShorterHop(t *testing.T) {
	rt := NewRoutingTable()
	dest := peerId(9)
	rt.Offer(dest, peerId(1), 3)
	rt.Offer(dest, peerId(2), 1)
	entry, ok := rt.Lookup(dest)
	if !ok {
		t.Fatalf("expected route to exist")
	}
	if entry.NextHop != peerId(2) {
		t.Fatalf("expected shorter-hop route to win, got next hop %s", entry.NextHop)
	}
}

func TestRoutingTableEvictsOnRepeatedTimeout(t *testing.T) {
	rt := NewRoutingTable()
	dest := peerId(5)
	rt.Offer(dest, peerId(1), 1)
	for i := 0; i < 10; i++ {
		rt.RecordTimeout(dest)
	}
	if _, ok := rt.Lookup(dest); ok {
		t.Fatalf("expected route to be evicted after sustained timeouts")
	}
}

func TestFloodReachesAllNodes(t *testing.T) {
	hub := transport.NewLoopbackHub()
	a, b, c := peerId(1), peerId(2), peerId(3)

	sa := NewService(a, hub.Join(a))
	sb := NewService(b, hub.Join(b))
	sc := NewService(c, hub.Join(c))
	defer sa.Close()
	defer sb.Close()
	defer sc.Close()

	if err := sa.Flood([]byte("deal cards")); err != nil {
		t.Fatalf("Flood: %v", err)
	}

	for _, svc := range []*Service{sb, sc} {
		select {
		case d := <-svc.Deliveries():
			if string(d.Payload) != "deal cards" {
				t.Fatalf("unexpected payload %q", d.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("expected delivery within timeout")
		}
	}
}
