// cmd/peer/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/lanlobby/lanlobby/internal/auth"
	"github.com/lanlobby/lanlobby/internal/favorites"
	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/matchmaking"
	"github.com/lanlobby/lanlobby/internal/notify"
	"github.com/lanlobby/lanlobby/internal/transport"
)

// newBrowserStore picks the server browser backend: Redis when configured,
// else flat files next to the process.
func newBrowserStore(logger *logrus.Logger) favorites.Store {
	if os.Getenv("REDIS_ADDR") != "" {
		store, err := favorites.ConnectRedis()
		if err == nil {
			return store
		}
		logger.Warnf("redis browser store unavailable, falling back to files: %v", err)
	}
	store, err := favorites.NewFileStore(identity.GetEnv("FAVORITES_DIR", "."))
	if err != nil {
		log.Fatalf("browser store: %v", err)
	}
	return store
}

// Demo peer: connects to the relay, creates a public lobby, tags it with
// some metadata and keeps ticking while logging every notification.
func main() {
	// The relay verifies with the pair under LANLOBBY_KEY_DIR; minting with a
	// process-local pair would get every dial rejected.
	if err := auth.InitFromEnv(); err != nil {
		log.Fatalf("session keys: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	local := identity.NewLocal()
	logger.Infof("peer %d (app %d) starting", local.PeerID, local.AppID)

	token, err := auth.CreateToken(local.PeerID)
	if err != nil {
		log.Fatalf("token: %v", err)
	}

	mm := matchmaking.New(matchmaking.Config{Local: local, Logger: logger})
	browser := newBrowserStore(logger)

	relayURL := identity.GetEnv("RELAY_URL", "ws://localhost:8080/ws")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := transport.DialRelay(ctx, relayURL, token, local.PeerID, mm.HandleMessage, logger)
	if err != nil {
		log.Fatalf("relay dial: %v", err)
	}
	defer client.Close()
	mm.AttachTransport(client)

	createToken := mm.CreateLobby(lobby.TypePublic, 8)
	var room lobby.RoomID

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if room != 0 {
				mm.LeaveLobby(room)
				mm.Tick()
			}
			logger.Info("peer shutting down")
			return
		case <-ticker.C:
			mm.Tick()
			for _, d := range mm.Queue().Drain(time.Now()) {
				logEvent(logger, d)
				switch ev := d.Event.(type) {
				case notify.LobbyCreated:
					if d.Token == createToken && ev.Success {
						room = ev.RoomID
						mm.SetLobbyData(room, "name", "demo lobby")
						mm.SetLobbyData(room, "mode", "ffa")
					}
				case notify.GameServerCreated:
					if ev.IP != 0 && ev.Port != 0 {
						rec := favorites.Record{IP: ev.IP, Port: ev.Port}
						if _, err := browser.Add(ctx, favorites.History, rec); err != nil {
							logger.Warnf("recording %s to history: %v", rec, err)
						}
					}
				}
			}
		}
	}
}

func logEvent(logger *logrus.Logger, d notify.Delivery) {
	switch ev := d.Event.(type) {
	case notify.LobbyCreated:
		logger.Infof("lobby created: room=%d success=%v", ev.RoomID, ev.Success)
	case notify.LobbyEnter:
		logger.Infof("lobby enter: room=%d response=%d", ev.RoomID, ev.Response)
	case notify.LobbyDataUpdate:
		logger.Infof("lobby data update: room=%d member=%d success=%v", ev.RoomID, ev.MemberID, ev.Success)
	case notify.MemberStateChange:
		logger.Infof("member state change: room=%d member=%d change=%d", ev.RoomID, ev.Member, ev.Change)
	case notify.ChatMessage:
		logger.Infof("chat message: room=%d sender=%d id=%d", ev.RoomID, ev.Sender, ev.ChatID)
	case notify.LobbyInvite:
		logger.Infof("lobby invite: room=%d from=%d", ev.RoomID, ev.From)
	case notify.SearchResults:
		logger.Infof("search results: %d lobbies", ev.Count)
	case notify.GameServerCreated:
		logger.Infof("game server: room=%d server=%d", ev.RoomID, ev.ServerID)
	default:
		logger.Infof("event: %#v", ev)
	}
}
