package transport

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"
)

// TCP is a Transport implementation over plain TCP connections, standing
// in for the BLE GATT link spec.md treats as an out-of-scope collaborator.
// Framing is length-prefixed: a 4-byte big-endian length followed by the
// Frame's wire encoding.
type TCP struct {
	mu      sync.Mutex
	self    NeighborId
	conns   map[NeighborId]net.Conn
	inbox   chan Inbound
	closing chan struct{}
	once    sync.Once
}

var _ Transport = (*TCP)(nil)

// NewTCP creates a TCP transport identified as self. Connections are
// added with Connect or Accept.
func NewTCP(self NeighborId) *TCP {
	return &TCP{
		self:    self,
		conns:   make(map[NeighborId]net.Conn),
		inbox:   make(chan Inbound, 256),
		closing: make(chan struct{}),
	}
}

// Connect dials addr and registers the resulting connection under
// neighbor, starting a read loop that feeds Inbox.
func (t *TCP) Connect(neighbor NeighborId, addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", addr, err)
	}
	t.addConn(neighbor, conn)
	return nil
}

// Accept registers an already-accepted connection under neighbor (the
// caller is expected to have identified the peer via the session
// handshake before calling this).
func (t *TCP) Accept(neighbor NeighborId, conn net.Conn) {
	t.addConn(neighbor, conn)
}

func (t *TCP) addConn(neighbor NeighborId, conn net.Conn) {
	t.mu.Lock()
	t.conns[neighbor] = conn
	t.mu.Unlock()
	go t.readLoop(neighbor, conn)
}

func (t *TCP) readLoop(neighbor NeighborId, conn net.Conn) {
	defer func() {
		t.mu.Lock()
		delete(t.conns, neighbor)
		t.mu.Unlock()
		conn.Close()
	}()
	var lenBuf [4]byte
	for {
		if _, err := io.ReadFull(conn, lenBuf[:]); err != nil {
			return
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		body := make([]byte, n)
		if _, err := io.ReadFull(conn, body); err != nil {
			return
		}
		f, err := DecodeFrame(body)
		if err != nil {
			continue
		}
		select {
		case t.inbox <- Inbound{From: neighbor, Frame: f}:
		case <-t.closing:
			return
		}
	}
}

// Send writes f to the connection registered for neighbor.
func (t *TCP) Send(neighbor NeighborId, f Frame) error {
	t.mu.Lock()
	conn, ok := t.conns[neighbor]
	t.mu.Unlock()
	if !ok {
		return fmt.Errorf("transport: no tcp connection to %s", neighbor)
	}
	return writeFrame(conn, f)
}

func writeFrame(conn net.Conn, f Frame) error {
	body := f.Encode()
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := conn.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("transport: write length: %w", err)
	}
	if _, err := conn.Write(body); err != nil {
		return fmt.Errorf("transport: write body: %w", err)
	}
	return nil
}

// Broadcast writes f to every connected neighbor.
func (t *TCP) Broadcast(f Frame) error {
	t.mu.Lock()
	conns := make(map[NeighborId]net.Conn, len(t.conns))
	for k, v := range t.conns {
		conns[k] = v
	}
	t.mu.Unlock()

	var firstErr error
	for id, conn := range conns {
		if err := writeFrame(conn, f); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("transport: broadcast to %s: %w", id, err)
		}
	}
	return firstErr
}

// Neighbors returns currently connected neighbor ids.
func (t *TCP) Neighbors() []NeighborId {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]NeighborId, 0, len(t.conns))
	for id := range t.conns {
		out = append(out, id)
	}
	return out
}

// Inbox returns the channel received frames are delivered on.
func (t *TCP) Inbox() <-chan Inbound {
	return t.inbox
}

// Close shuts down all connections.
func (t *TCP) Close() error {
	t.once.Do(func() {
		close(t.closing)
		t.mu.Lock()
		for _, conn := range t.conns {
			conn.Close()
		}
		t.conns = make(map[NeighborId]net.Conn)
		t.mu.Unlock()
	})
	return nil
}
