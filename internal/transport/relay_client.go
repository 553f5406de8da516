// internal/transport/relay_client.go
package transport

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"

	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// RelayClient is a Transport backed by a websocket connection to a relay.
// Outbound envelopes go through a buffered channel and a write pump; a full
// buffer drops the message, keeping sends fire-and-forget.
type RelayClient struct {
	conn    *websocket.Conn
	self    identity.PeerID
	logger  *logrus.Logger
	outChan chan []byte
	cancel  context.CancelFunc
}

// DialRelay connects to the relay at url, authenticating with token, and
// starts the read/write pumps. Inbound envelopes are dispatched to handler.
func DialRelay(ctx context.Context, url, token string, self identity.PeerID, handler Handler, logger *logrus.Logger) (*RelayClient, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: []string{"lanlobby"},
		HTTPHeader:   header,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to dial relay %s: %w", url, err)
	}
	if conn.Subprotocol() != "lanlobby" {
		conn.Close(websocket.StatusPolicyViolation, "relay must speak the lanlobby subprotocol")
		return nil, fmt.Errorf("relay did not negotiate the lanlobby subprotocol")
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	rc := &RelayClient{
		conn:    conn,
		self:    self,
		logger:  logger,
		outChan: make(chan []byte, 64),
		cancel:  cancel,
	}
	go rc.readPump(pumpCtx, handler)
	go rc.writePump(pumpCtx)
	return rc, nil
}

func (rc *RelayClient) readPump(ctx context.Context, handler Handler) {
	for {
		typ, data, err := rc.conn.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway || ctx.Err() != nil {
				rc.logger.Info("relay connection closed")
			} else {
				rc.logger.Warnf("relay read error: %v", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		env, err := wire.Decode(data)
		if err != nil {
			rc.logger.Warnf("dropping malformed relay frame: %v", err)
			continue
		}
		handler(env)
	}
}

func (rc *RelayClient) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-rc.outChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := rc.conn.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				rc.logger.Warnf("relay write error: %v", err)
				return
			}
		}
	}
}

// Send unicasts one envelope through the relay.
func (rc *RelayClient) Send(dest identity.PeerID, env *wire.Envelope) bool {
	e := *env
	e.SourceID = rc.self
	e.DestID = dest
	return rc.push(&e)
}

// Broadcast fans an envelope out to every other relay peer.
func (rc *RelayClient) Broadcast(env *wire.Envelope) bool {
	e := *env
	e.SourceID = rc.self
	e.DestID = 0
	return rc.push(&e)
}

func (rc *RelayClient) push(env *wire.Envelope) bool {
	data, err := wire.Encode(env)
	if err != nil {
		rc.logger.Warnf("failed to encode outbound envelope: %v", err)
		return false
	}
	select {
	case rc.outChan <- data:
		return true
	default:
		rc.logger.Warn("relay send buffer full, dropping envelope")
		return false
	}
}

// Close tears down the pumps and the websocket.
func (rc *RelayClient) Close() error {
	rc.cancel()
	return rc.conn.Close(websocket.StatusNormalClosure, "client closing")
}
