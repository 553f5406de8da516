// internal/notify/events.go
package notify

import (
	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
)

// Kind discriminates notification events.
type Kind int

const (
	KindLobbyCreated Kind = iota + 1
	KindLobbyEnter
	KindLobbyDataUpdate
	KindMemberStateChange
	KindChatMessage
	KindSearchResults
	KindGameServerCreated
	KindFriendsLobbies
	KindLobbyInvite
)

// Event is a single notification payload.
type Event interface {
	Kind() Kind
}

// EnterResponse is the outcome of a join attempt.
type EnterResponse int

const (
	EnterSuccess EnterResponse = iota + 1
	EnterDoesntExist
	EnterError
)

// StateChange describes a membership transition.
type StateChange int

const (
	StateEntered StateChange = iota + 1
	StateLeft
)

// LobbyCreated resolves a pending create. RoomID is zero on failure.
type LobbyCreated struct {
	Success bool
	RoomID  lobby.RoomID
}

func (LobbyCreated) Kind() Kind { return KindLobbyCreated }

// LobbyEnter resolves a pending join, and also fires when the local peer
// enters a lobby it created.
type LobbyEnter struct {
	RoomID   lobby.RoomID
	Response EnterResponse
	Locked   bool
}

func (LobbyEnter) Kind() Kind { return KindLobbyEnter }

// LobbyDataUpdate reports changed lobby or member metadata. MemberID equals
// the room id when the update is scoped to the lobby itself.
type LobbyDataUpdate struct {
	RoomID   lobby.RoomID
	MemberID uint64
	Success  bool
}

func (LobbyDataUpdate) Kind() Kind { return KindLobbyDataUpdate }

// MemberStateChange reports a member entering or leaving a lobby.
type MemberStateChange struct {
	RoomID lobby.RoomID
	Member identity.PeerID
	Change StateChange
}

func (MemberStateChange) Kind() Kind { return KindMemberStateChange }

// ChatMessage announces a new chat entry; ChatID indexes the local chat log.
type ChatMessage struct {
	RoomID lobby.RoomID
	Sender identity.PeerID
	ChatID int
}

func (ChatMessage) Kind() Kind { return KindChatMessage }

// SearchResults concludes a directory search with the matching lobby count.
type SearchResults struct {
	Count int
}

func (SearchResults) Kind() Kind { return KindSearchResults }

// GameServerCreated reports a new or changed game server association.
type GameServerCreated struct {
	RoomID   lobby.RoomID
	ServerID identity.PeerID
	IP       uint32
	Port     uint16
}

func (GameServerCreated) Kind() Kind { return KindGameServerCreated }

// FriendsLobbies answers a friends-lobbies request. There is no friends
// backend on a serverless network, so Count is always zero.
type FriendsLobbies struct {
	Count int
}

func (FriendsLobbies) Kind() Kind { return KindFriendsLobbies }

// LobbyInvite reports another peer inviting the local peer to a lobby. The
// lobby is usually not yet known locally; joining it resolves that.
type LobbyInvite struct {
	RoomID lobby.RoomID
	From   identity.PeerID
}

func (LobbyInvite) Kind() Kind { return KindLobbyInvite }
