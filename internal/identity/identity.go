// internal/identity/identity.go
package identity

import (
	"encoding/binary"
	"os"
	"strconv"

	"github.com/google/uuid"
)

// PeerID is the stable 64-bit identifier of a peer on the lobby network.
type PeerID uint64

// AppID identifies the application a lobby belongs to. Peers ignore lobby
// traffic for applications other than their own.
type AppID uint32

// Local is the process-lifetime identity of this peer. It is read-only after
// construction.
type Local struct {
	PeerID PeerID
	AppID  AppID
}

// NewLocal builds the local identity from the environment:
//   - LANLOBBY_PEER_ID (optional, decimal uint64; generated when absent)
//   - LANLOBBY_APP_ID (optional, decimal uint32, default 0)
func NewLocal() Local {
	id := PeerID(GetEnvUint64("LANLOBBY_PEER_ID", 0))
	if id == 0 {
		id = GeneratePeerID()
	}
	return Local{
		PeerID: id,
		AppID:  AppID(GetEnvUint64("LANLOBBY_APP_ID", 0)),
	}
}

// GeneratePeerID derives a random non-zero peer id from uuid entropy.
func GeneratePeerID() PeerID {
	for {
		u := uuid.New()
		id := PeerID(binary.BigEndian.Uint64(u[:8]))
		if id != 0 {
			return id
		}
	}
}

// GetEnv reads an environment variable or returns a default value.
func GetEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an environment variable as an integer, else a default value.
func GetEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// GetEnvUint64 parses an environment variable as a uint64, else a default value.
func GetEnvUint64(key string, def uint64) uint64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return def
	}
	return v
}
