// internal/wire/wire.go
//
// Wire is the tagged envelope peers exchange: at most one of a full lobby
// snapshot, a lobby protocol message, or a low-level transport notice.
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
)

// MsgType discriminates lobby protocol messages.
type MsgType int

const (
	MsgJoin MsgType = iota + 1
	MsgLeave
	MsgMemberData
	MsgChangeOwner
	MsgChatMessage
	MsgInvite
)

// LobbyMsg is a membership/metadata protocol message scoped to one lobby.
// Data carries the new owner id for MsgChangeOwner and the inviting lobby id
// duplicate for MsgInvite; Map carries member metadata deltas; Body carries
// opaque chat payloads.
type LobbyMsg struct {
	Type   MsgType           `json:"type"`
	RoomID lobby.RoomID      `json:"roomId"`
	Data   uint64            `json:"data,omitempty"`
	Map    map[string]string `json:"map,omitempty"`
	Body   []byte            `json:"body,omitempty"`
}

// NoticeType discriminates low-level transport lifecycle notices.
type NoticeType int

const (
	NoticeConnect NoticeType = iota + 1
	NoticeDisconnect
)

// Notice is a transport lifecycle event about the source peer.
type Notice struct {
	Type NoticeType `json:"type"`
}

// Envelope is the unit of transport. DestID zero means broadcast.
type Envelope struct {
	SourceID identity.PeerID `json:"sourceId"`
	DestID   identity.PeerID `json:"destId,omitempty"`

	Snapshot *lobby.Lobby `json:"snapshot,omitempty"`
	LobbyMsg *LobbyMsg    `json:"lobbyMsg,omitempty"`
	Notice   *Notice      `json:"notice,omitempty"`
}

// Valid reports whether exactly one payload is set.
func (e *Envelope) Valid() bool {
	n := 0
	if e.Snapshot != nil {
		n++
	}
	if e.LobbyMsg != nil {
		n++
	}
	if e.Notice != nil {
		n++
	}
	return n == 1
}

// Encode serializes the envelope to JSON.
func Encode(e *Envelope) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode parses an envelope and rejects payload-less or multi-payload frames.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if !e.Valid() {
		return nil, fmt.Errorf("envelope must carry exactly one payload")
	}
	return &e, nil
}
