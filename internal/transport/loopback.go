// internal/transport/loopback.go
package transport

import (
	"sync"

	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// Loopback is an in-process hub connecting peers without a network. Delivery
// is queued, never inline: a send made while a peer's critical section is
// held must not re-enter another peer's handler on the same call stack.
// Pump drains the queue; tests call it to advance the network one hop at a
// time, which also makes message interleaving deterministic.
type Loopback struct {
	mu       sync.Mutex
	handlers map[identity.PeerID]Handler
	queue    []queuedDelivery
}

type queuedDelivery struct {
	dest identity.PeerID
	env  *wire.Envelope
}

// NewLoopback initializes an empty hub.
func NewLoopback() *Loopback {
	return &Loopback{handlers: make(map[identity.PeerID]Handler)}
}

// Attach registers a peer and returns its transport port.
func (h *Loopback) Attach(id identity.PeerID, fn Handler) Transport {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.handlers[id] = fn
	return &loopbackPort{hub: h, self: id}
}

// Pump delivers queued envelopes until none remain, including envelopes
// enqueued by the handlers it invokes. Returns the number delivered.
func (h *Loopback) Pump() int {
	delivered := 0
	for {
		h.mu.Lock()
		if len(h.queue) == 0 {
			h.mu.Unlock()
			return delivered
		}
		d := h.queue[0]
		h.queue = h.queue[1:]
		fn := h.handlers[d.dest]
		h.mu.Unlock()

		if fn != nil {
			fn(d.env)
			delivered++
		}
	}
}

func (h *Loopback) enqueue(dest identity.PeerID, env *wire.Envelope) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.handlers[dest]; !ok {
		return false
	}
	h.queue = append(h.queue, queuedDelivery{dest: dest, env: env})
	return true
}

type loopbackPort struct {
	hub  *Loopback
	self identity.PeerID
}

func (p *loopbackPort) Send(dest identity.PeerID, env *wire.Envelope) bool {
	e := *env
	e.SourceID = p.self
	e.DestID = dest
	return p.hub.enqueue(dest, &e)
}

func (p *loopbackPort) Broadcast(env *wire.Envelope) bool {
	p.hub.mu.Lock()
	peers := make([]identity.PeerID, 0, len(p.hub.handlers))
	for id := range p.hub.handlers {
		if id != p.self {
			peers = append(peers, id)
		}
	}
	p.hub.mu.Unlock()

	sent := false
	for _, id := range peers {
		e := *env
		e.SourceID = p.self
		e.DestID = id
		if p.hub.enqueue(id, &e) {
			sent = true
		}
	}
	return sent
}

// Close detaches the peer and announces its departure to everyone else.
func (p *loopbackPort) Close() error {
	p.Broadcast(&wire.Envelope{Notice: &wire.Notice{Type: wire.NoticeDisconnect}})
	p.hub.mu.Lock()
	delete(p.hub.handlers, p.self)
	p.hub.mu.Unlock()
	return nil
}
