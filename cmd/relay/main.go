// cmd/relay/main.go
package main

import (
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/lanlobby/lanlobby/internal/auth"
	"github.com/lanlobby/lanlobby/internal/middleware"
	"github.com/lanlobby/lanlobby/internal/relay"
)

func main() {
	// Peers mint their own tokens, so the signing pair must be shared via
	// LANLOBBY_KEY_DIR for them to verify here.
	if err := auth.InitFromEnv(); err != nil {
		log.Fatalf("session keys: %v", err)
	}

	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)

	srv := relay.NewServer(logger)

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(srv.Handler()))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Relay running on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("relay exited: %v", err)
	}
}
