// internal/transport/transport.go
package transport

import (
	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// Handler receives inbound envelopes with sender identity attached.
type Handler func(*wire.Envelope)

// Transport is the best-effort messaging substrate the protocol core sends
// through. Send and Broadcast report whether the message was handed to the
// transport, not whether it arrived; delivery and ordering are not guaranteed.
type Transport interface {
	// Send unicasts to one peer. DestID is stamped by the transport.
	Send(dest identity.PeerID, env *wire.Envelope) bool
	// Broadcast fans out to every known related peer.
	Broadcast(env *wire.Envelope) bool
	Close() error
}
