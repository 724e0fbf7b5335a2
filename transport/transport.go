// Package transport abstracts the physical link a mesh frame travels
// over. Implementations need only move opaque byte frames between
// neighbors; everything above (sessions, routing, consensus) is
// transport-agnostic.
package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/bitcraps/core/identity"
)

// MaxFragmentSize is the largest payload carried by a single wire Frame,
// chosen to stay under typical BLE L2CAP MTUs.
const MaxFragmentSize = 512

// Frame is the unit exchanged between directly connected neighbors. A
// logical message larger than MaxFragmentSize is split across several
// Frames sharing the same MessageId.
type Frame struct {
	MessageId  uint64
	FragIndex  uint16
	FragTotal  uint16
	SendCtr    uint64
	Payload    []byte
}

// Encode serializes a Frame to its wire form:
// messageId(8) fragIndex(2) fragTotal(2) sendCtr(8) payload(rest).
func (f Frame) Encode() []byte {
	buf := make([]byte, 8+2+2+8+len(f.Payload))
	binary.BigEndian.PutUint64(buf[0:8], f.MessageId)
	binary.BigEndian.PutUint16(buf[8:10], f.FragIndex)
	binary.BigEndian.PutUint16(buf[10:12], f.FragTotal)
	binary.BigEndian.PutUint64(buf[12:20], f.SendCtr)
	copy(buf[20:], f.Payload)
	return buf
}

// DecodeFrame parses a Frame from its wire form.
func DecodeFrame(b []byte) (Frame, error) {
	if len(b) < 20 {
		return Frame{}, fmt.Errorf("transport: frame too short (%d bytes)", len(b))
	}
	return Frame{
		MessageId: binary.BigEndian.Uint64(b[0:8]),
		FragIndex: binary.BigEndian.Uint16(b[8:10]),
		FragTotal: binary.BigEndian.Uint16(b[10:12]),
		SendCtr:   binary.BigEndian.Uint64(b[12:20]),
		Payload:   append([]byte(nil), b[20:]...),
	}, nil
}

// Fragment splits payload into one or more Frames sharing messageId, each
// at most MaxFragmentSize bytes of payload.
func Fragment(messageId uint64, sendCtr uint64, payload []byte) []Frame {
	if len(payload) == 0 {
		return []Frame{{MessageId: messageId, FragIndex: 0, FragTotal: 1, SendCtr: sendCtr}}
	}
	total := (len(payload) + MaxFragmentSize - 1) / MaxFragmentSize
	frames := make([]Frame, 0, total)
	for i := 0; i < total; i++ {
		start := i * MaxFragmentSize
		end := start + MaxFragmentSize
		if end > len(payload) {
			end = len(payload)
		}
		frames = append(frames, Frame{
			MessageId: messageId,
			FragIndex: uint16(i),
			FragTotal: uint16(total),
			SendCtr:   sendCtr,
			Payload:   payload[start:end],
		})
	}
	return frames
}

// Reassembler accumulates fragments of in-flight messages keyed by
// MessageId until all fragments for a message have arrived.
type Reassembler struct {
	pending map[uint64][][]byte
	counts  map[uint64]uint16
}

// NewReassembler creates an empty Reassembler.
func NewReassembler() *Reassembler {
	return &Reassembler{
		pending: make(map[uint64][][]byte),
		counts:  make(map[uint64]uint16),
	}
}

// Add feeds one Frame into the reassembler. It returns the full payload
// and true once the last fragment for its MessageId arrives.
func (r *Reassembler) Add(f Frame) ([]byte, bool) {
	if f.FragTotal <= 1 {
		return f.Payload, true
	}
	parts, ok := r.pending[f.MessageId]
	if !ok {
		parts = make([][]byte, f.FragTotal)
	}
	if int(f.FragIndex) < len(parts) {
		parts[f.FragIndex] = f.Payload
	}
	r.pending[f.MessageId] = parts
	r.counts[f.MessageId]++

	if r.counts[f.MessageId] < uint16(f.FragTotal) {
		return nil, false
	}
	delete(r.pending, f.MessageId)
	delete(r.counts, f.MessageId)

	total := 0
	for _, p := range parts {
		total += len(p)
	}
	out := make([]byte, 0, total)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, true
}

// NeighborId identifies a directly connected link-layer neighbor. It is
// usually, but not necessarily, equal to the neighbor's identity.PeerId —
// a transport may know a neighbor only by address until the session
// handshake completes.
type NeighborId = identity.PeerId

// Transport is the capability a mesh.Service depends on to exchange
// frames with directly connected neighbors. It does not know about
// multi-hop routing, dedup, or TTL: that is mesh's job.
type Transport interface {
	// Send delivers a Frame to one neighbor. Returns an error if the
	// neighbor is not currently connected.
	Send(neighbor NeighborId, f Frame) error

	// Broadcast delivers a Frame to every currently connected neighbor.
	Broadcast(f Frame) error

	// Neighbors returns the set of currently connected neighbor ids.
	Neighbors() []NeighborId

	// Inbox returns the channel on which received Frames (tagged with
	// their origin neighbor) are delivered.
	Inbox() <-chan Inbound

	// Close shuts down the transport and releases its resources.
	Close() error
}

// Inbound pairs a received Frame with the neighbor it arrived from.
type Inbound struct {
	From  NeighborId
	Frame Frame
}
