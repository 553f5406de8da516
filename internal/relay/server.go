// internal/relay/server.go
package relay

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lanlobby/lanlobby/internal/auth"
	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/middleware"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// Custom WebSocket close codes used by the relay handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError   = 3000 // Client connected with an unsupported subprotocol.
	InvalidAuthTokenError = 3001 // Provided auth token was invalid or expired.
	DuplicatePeerError    = 3002 // Another connection already claims this peer id.
)

// Subprotocol is the websocket subprotocol peers must speak.
const Subprotocol = "lanlobby"

// peerConn is one registered websocket session.
type peerConn struct {
	sessionID uuid.UUID
	peer      identity.PeerID
	outChan   chan []byte
	cancel    context.CancelFunc
}

// Server forwards envelopes between connected peers. It keeps no lobby
// state of its own: every envelope is either unicast to DestID or fanned
// out to every peer except the sender.
type Server struct {
	Logger *logrus.Logger

	mu    sync.Mutex
	peers map[identity.PeerID]*peerConn
}

// NewServer constructs an empty relay.
func NewServer(logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	return &Server{
		Logger: logger,
		peers:  map[identity.PeerID]*peerConn{},
	}
}

// NumPeers reports how many peers are currently registered.
func (s *Server) NumPeers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Handler returns the websocket endpoint. Peers authenticate with a
// bearer token whose subject is their decimal peer id; a `token` query
// parameter is accepted as a fallback for clients that cannot set
// headers.
func (s *Server) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		remoteAddr := r.RemoteAddr

		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		peer, err := auth.VerifyToken(token)
		if err != nil {
			s.Logger.Warnf("relay: auth failed for %s: %v", remoteAddr, err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{Subprotocol},
			OriginPatterns: []string{"*"}, // Adjust in production
		})
		if err != nil {
			s.Logger.Warnf("relay: websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != Subprotocol {
			c.Close(BadSubprotocolError, "client must speak the lanlobby subprotocol")
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		conn := &peerConn{
			sessionID: uuid.New(),
			peer:      peer,
			outChan:   make(chan []byte, 64),
			cancel:    cancel,
		}

		if !s.register(conn) {
			cancel()
			c.Close(DuplicatePeerError, "peer already connected")
			return
		}
		middleware.LogPeerConnect(s.Logger, remoteAddr, uint64(peer))

		go s.writePump(ctx, c, conn)
		err = s.readPump(ctx, c, conn)

		s.unregister(conn)
		middleware.LogPeerDisconnect(s.Logger, remoteAddr, uint64(peer), err)
	}
}

// register adds conn and broadcasts a connect notice to everyone else.
// Returns false when the peer id is already claimed by a live session.
func (s *Server) register(conn *peerConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.peers[conn.peer]; exists {
		return false
	}
	s.peers[conn.peer] = conn
	s.fanoutUnsafe(conn.peer, &wire.Envelope{
		SourceID: conn.peer,
		Notice:   &wire.Notice{Type: wire.NoticeConnect},
	})
	return true
}

// unregister removes conn and broadcasts a disconnect notice so peers can
// sweep the departed member out of their lobbies.
func (s *Server) unregister(conn *peerConn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.peers[conn.peer]
	if !ok || current != conn {
		return
	}
	delete(s.peers, conn.peer)
	conn.cancel()
	s.fanoutUnsafe(conn.peer, &wire.Envelope{
		SourceID: conn.peer,
		Notice:   &wire.Notice{Type: wire.NoticeDisconnect},
	})
}

// route forwards one decoded envelope. Assumes SourceID has already been
// pinned to the authenticated peer.
func (s *Server) route(env *wire.Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if env.DestID != 0 {
		s.unicastUnsafe(env.DestID, env)
		return
	}
	s.fanoutUnsafe(env.SourceID, env)
}

// unicastUnsafe delivers env to a single peer. Assumes s.mu is held.
func (s *Server) unicastUnsafe(dest identity.PeerID, env *wire.Envelope) {
	conn, ok := s.peers[dest]
	if !ok {
		return
	}
	data, err := wire.Encode(env)
	if err != nil {
		s.Logger.Warnf("relay: encode error: %v", err)
		return
	}
	select {
	case conn.outChan <- data:
	default:
		s.Logger.Warnf("relay: dropping message for slow peer %d", dest)
	}
}

// fanoutUnsafe delivers env to every peer except source. Assumes s.mu is
// held.
func (s *Server) fanoutUnsafe(source identity.PeerID, env *wire.Envelope) {
	data, err := wire.Encode(env)
	if err != nil {
		s.Logger.Warnf("relay: encode error: %v", err)
		return
	}
	for id, conn := range s.peers {
		if id == source {
			continue
		}
		select {
		case conn.outChan <- data:
		default:
			s.Logger.Warnf("relay: dropping message for slow peer %d", id)
		}
	}
}

// readPump consumes frames from the peer until the connection drops.
func (s *Server) readPump(ctx context.Context, c *websocket.Conn, conn *peerConn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		typ, msg, err := c.Read(ctx)
		if err != nil {
			closeStatus := websocket.CloseStatus(err)
			if closeStatus == websocket.StatusNormalClosure || closeStatus == websocket.StatusGoingAway {
				return nil
			}
			return err
		}
		if typ != websocket.MessageText {
			s.Logger.Warnf("relay: ignoring non-text message type %d from peer %d", typ, conn.peer)
			continue
		}

		env, err := wire.Decode(msg)
		if err != nil {
			s.Logger.Warnf("relay: invalid envelope from peer %d: %v", conn.peer, err)
			continue
		}
		// The relay, not the client, decides who a message is from.
		env.SourceID = conn.peer
		s.route(env)
	}
}

// writePump drains conn.outChan onto the websocket.
func (s *Server) writePump(ctx context.Context, c *websocket.Conn, conn *peerConn) {
	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-conn.outChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				s.Logger.Warnf("relay: write error for peer %d (session %s): %v", conn.peer, conn.sessionID, err)
				conn.cancel()
				return
			}
		}
	}
}
