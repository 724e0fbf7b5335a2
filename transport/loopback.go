package transport

import (
	"fmt"
	"sync"
)

// LoopbackHub wires a set of in-process Loopback transports together,
// useful for tests and the cmd/bitcrapsd demo harness where real sockets
// are unnecessary.
type LoopbackHub struct {
	mu    sync.Mutex
	peers map[NeighborId]*Loopback
}

// NewLoopbackHub creates an empty hub.
func NewLoopbackHub() *LoopbackHub {
	return &LoopbackHub{peers: make(map[NeighborId]*Loopback)}
}

// Join creates and registers a new Loopback transport for id on this hub.
func (h *LoopbackHub) Join(id NeighborId) *Loopback {
	h.mu.Lock()
	defer h.mu.Unlock()
	lb := &Loopback{
		id:     id,
		hub:    h,
		inbox:  make(chan Inbound, 256),
		closed: make(chan struct{}),
	}
	h.peers[id] = lb
	return lb
}

func (h *LoopbackHub) deliver(to NeighborId, in Inbound) error {
	h.mu.Lock()
	peer, ok := h.peers[to]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: loopback neighbor %s not connected", to)
	}
	select {
	case peer.inbox <- in:
		return nil
	case <-peer.closed:
		return fmt.Errorf("transport: loopback neighbor %s closed", to)
	}
}

func (h *LoopbackHub) neighbors(self NeighborId) []NeighborId {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]NeighborId, 0, len(h.peers))
	for id := range h.peers {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

func (h *LoopbackHub) leave(id NeighborId) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, id)
}

// Loopback is an in-process Transport implementation backed by a
// LoopbackHub. It implements the same interface a BLE or TCP transport
// would, so consensus/mesh code never needs a test-only code path.
type Loopback struct {
	id     NeighborId
	hub    *LoopbackHub
	inbox  chan Inbound
	closed chan struct{}
	once   sync.Once
}

var _ Transport = (*Loopback)(nil)

// Send delivers f to neighbor via the shared hub.
func (l *Loopback) Send(neighbor NeighborId, f Frame) error {
	return l.hub.deliver(neighbor, Inbound{From: l.id, Frame: f})
}

// Broadcast delivers f to every other peer currently on the hub.
func (l *Loopback) Broadcast(f Frame) error {
	var firstErr error
	for _, n := range l.hub.neighbors(l.id) {
		if err := l.Send(n, f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Neighbors returns every other peer currently on the hub.
func (l *Loopback) Neighbors() []NeighborId {
	return l.hub.neighbors(l.id)
}

// Inbox returns the channel frames arrive on.
func (l *Loopback) Inbox() <-chan Inbound {
	return l.inbox
}

// Close detaches this peer from the hub.
func (l *Loopback) Close() error {
	l.once.Do(func() {
		close(l.closed)
		l.hub.leave(l.id)
	})
	return nil
}
