// Package mesh implements TTL-bounded flood routing with dedup
// suppression over a set of directly-connected transport neighbors, plus
// reactive route discovery (RREQ/RREP) for unicast delivery.
package mesh

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitcraps/core/identity"
	"github.com/bitcraps/core/transport"
)

// DefaultTTL bounds how many hops a flooded message may travel before
// being dropped.
const DefaultTTL = 8

// NeighborQueueSize is the per-neighbor outbound queue depth. Service
// does not use it: frames go straight to transport.Send, with no
// per-neighbor queue and no priority-based dropping.
const NeighborQueueSize = 256

// MessageKind distinguishes the envelope types carried over the mesh.
type MessageKind uint8

const (
	KindData MessageKind = iota
	KindRouteRequest
	KindRouteReply
)

// Envelope is the logical unit flooded or routed across the mesh, wrapped
// around an application payload (typically a session-encrypted consensus
// or craps frame).
type Envelope struct {
	Kind     MessageKind
	Origin   identity.PeerId
	OriginSeq uint64
	Dest     identity.PeerId // zero value means "flood to everyone"
	TTL      uint8
	Payload  []byte
}

func (e Envelope) messageId() MessageId {
	return ComputeMessageId(e.Payload, e.Origin, e.OriginSeq)
}

func (e Envelope) marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("mesh: marshal envelope: %w", err)
	}
	return b, nil
}

func unmarshalEnvelope(b []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(b, &e); err != nil {
		return e, fmt.Errorf("mesh: unmarshal envelope: %w", err)
	}
	return e, nil
}

// Delivery is a payload that reached this node as its final destination
// (Dest matched self, or the envelope was a flood).
type Delivery struct {
	Origin  identity.PeerId
	Payload []byte
}

// Service is the mesh layer: one per node, owning a Transport, a
// RoutingTable, and a DedupCache.
type Service struct {
	self      identity.PeerId
	transport transport.Transport
	routes    *RoutingTable
	dedup     *DedupCache

	outSeq atomic.Uint64

	mu      sync.Mutex
	queues  map[identity.PeerId]chan transport.Frame
	nextMsg atomic.Uint64

	deliveries chan Delivery
	done       chan struct{}
	closeOnce  sync.Once
}

// NewService wires a mesh Service on top of an already-connected
// Transport.
func NewService(self identity.PeerId, t transport.Transport) *Service {
	s := &Service{
		self:       self,
		transport:  t,
		routes:     NewRoutingTable(),
		dedup:      NewDedupCache(),
		queues:     make(map[identity.PeerId]chan transport.Frame),
		deliveries: make(chan Delivery, 256),
		done:       make(chan struct{}),
	}
	go s.readLoop()
	return s
}

// Deliveries returns the channel application payloads addressed to this
// node (or flooded) arrive on.
func (s *Service) Deliveries() <-chan Delivery {
	return s.deliveries
}

// Routes exposes the routing table, e.g. for node-level diagnostics.
func (s *Service) Routes() *RoutingTable {
	return s.routes
}

// Flood broadcasts payload to the whole mesh with the default TTL.
func (s *Service) Flood(payload []byte) error {
	env := Envelope{
		Kind:      KindData,
		Origin:    s.self,
		OriginSeq: s.outSeq.Add(1),
		TTL:       DefaultTTL,
		Payload:   payload,
	}
	return s.send(env)
}

// SendTo attempts unicast delivery to dest. If no route is known, a
// route request is flooded first and the payload is flooded as a
// fallback so delivery is not blocked on discovery completing.
func (s *Service) SendTo(dest identity.PeerId, payload []byte) error {
	env := Envelope{
		Kind:      KindData,
		Origin:    s.self,
		OriginSeq: s.outSeq.Add(1),
		Dest:      dest,
		TTL:       DefaultTTL,
		Payload:   payload,
	}
	if _, ok := s.routes.Lookup(dest); !ok {
		if err := s.sendRouteRequest(dest); err != nil {
			return err
		}
	}
	return s.send(env)
}

func (s *Service) sendRouteRequest(dest identity.PeerId) error {
	env := Envelope{
		Kind:      KindRouteRequest,
		Origin:    s.self,
		OriginSeq: s.outSeq.Add(1),
		Dest:      dest,
		TTL:       DefaultTTL,
	}
	return s.send(env)
}

func (s *Service) send(env Envelope) error {
	b, err := env.marshal()
	if err != nil {
		return err
	}
	msgId := s.nextMsg.Add(1)
	frames := transport.Fragment(msgId, 0, b)
	s.dedup.SeenBefore(env.messageId())

	if !env.Dest.Equal(identity.PeerId{}) {
		if route, ok := s.routes.Lookup(env.Dest); ok {
			var firstErr error
			for _, f := range frames {
				if err := s.transport.Send(route.NextHop, f); err != nil && firstErr == nil {
					firstErr = err
				}
			}
			if firstErr == nil {
				s.routes.RecordSuccess(env.Dest)
			} else {
				s.routes.RecordTimeout(env.Dest)
			}
			return firstErr
		}
	}
	var firstErr error
	for _, f := range frames {
		if err := s.transport.Broadcast(f); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) readLoop() {
	reassembler := transport.NewReassembler()
	for {
		select {
		case <-s.done:
			return
		case in, ok := <-s.transport.Inbox():
			if !ok {
				return
			}
			payload, complete := reassembler.Add(in.Frame)
			if !complete {
				continue
			}
			env, err := unmarshalEnvelope(payload)
			if err != nil {
				continue
			}
			s.handle(in.From, env)
		}
	}
}

func (s *Service) handle(from identity.PeerId, env Envelope) {
	if s.dedup.SeenBefore(env.messageId()) {
		return
	}
	s.routes.Offer(env.Origin, from, 1)

	switch env.Kind {
	case KindRouteRequest:
		s.handleRouteRequest(from, env)
	case KindRouteReply:
		s.handleRouteReply(env)
	default:
		s.handleData(env)
	}

	if env.TTL > 0 {
		s.relay(from, env)
	}
}

func (s *Service) handleData(env Envelope) {
	isFlood := env.Dest.Equal(identity.PeerId{})
	isForMe := env.Dest.Equal(s.self)
	if isFlood || isForMe {
		select {
		case s.deliveries <- Delivery{Origin: env.Origin, Payload: env.Payload}:
		default:
			// delivery queue full: drop rather than block the read loop
		}
	}
}

func (s *Service) handleRouteRequest(from identity.PeerId, env Envelope) {
	if !env.Dest.Equal(s.self) {
		return
	}
	reply := Envelope{
		Kind:      KindRouteReply,
		Origin:    s.self,
		OriginSeq: s.outSeq.Add(1),
		Dest:      env.Origin,
		TTL:       DefaultTTL,
	}
	_ = s.send(reply)
}

func (s *Service) handleRouteReply(env Envelope) {
	s.routes.Offer(env.Origin, env.Origin, 1)
}

func (s *Service) relay(from identity.PeerId, env Envelope) {
	env.TTL--
	b, err := env.marshal()
	if err != nil {
		return
	}
	msgId := s.nextMsg.Add(1)
	frames := transport.Fragment(msgId, 0, b)
	for _, neighbor := range s.transport.Neighbors() {
		if neighbor.Equal(from) {
			continue
		}
		for _, f := range frames {
			_ = s.transport.Send(neighbor, f)
		}
	}
}

// EvictStaleRoutes ages out routes that have gone quiet. Nothing in this
// module calls it on a schedule; the caller decides when to run it.
func (s *Service) EvictStaleRoutes(maxAge time.Duration) {
	s.routes.EvictStale(maxAge)
}

// Close stops the read loop and closes the underlying transport.
func (s *Service) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	return s.transport.Close()
}
