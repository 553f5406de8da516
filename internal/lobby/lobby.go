// internal/lobby/lobby.go
package lobby

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/lanlobby/lanlobby/internal/identity"
)

// RoomID is the stable 64-bit identifier of a lobby, assigned by its creator.
type RoomID uint64

// NewRoomID generates a room id that embeds the owner's low-order 32 bits,
// with the upper bits drawn from uuid entropy. Any sufficiently unique scheme
// satisfies the protocol; embedding the owner keeps ids debuggable.
func NewRoomID(owner identity.PeerID) RoomID {
	u := uuid.New()
	hi := binary.BigEndian.Uint32(u[:4])
	return RoomID(uint64(hi)<<32 | uint64(uint32(owner)))
}

// Type determines whether a lobby is discoverable by a directory search.
type Type int

const (
	TypePrivate Type = iota
	TypeFriendsOnly
	TypePublic
	TypeInvisible
	TypePrivateUnique
)

// Searchable reports whether lobbies of this type are returned by searches.
func (t Type) Searchable() bool {
	return t == TypePublic || t == TypeInvisible || t == TypeFriendsOnly
}

// Member is one peer's presence in a lobby, with its per-member metadata.
type Member struct {
	ID     identity.PeerID `json:"id"`
	Values Metadata        `json:"values,omitempty"`
}

// GameServer is the optional game server association set by the lobby owner.
// NumUpdate increments on every SetGameServer so peers can detect changes.
type GameServer struct {
	ID        identity.PeerID `json:"id"`
	IP        uint32          `json:"ip"`
	Port      uint16          `json:"port"`
	NumUpdate uint32          `json:"numUpdate"`
}

// Lobby is the replicated room entity. The owner's copy is authoritative;
// every other peer holds a copy learned from owner snapshots.
type Lobby struct {
	RoomID      RoomID          `json:"roomId"`
	Owner       identity.PeerID `json:"owner"`
	Type        Type            `json:"type"`
	Joinable    bool            `json:"joinable"`
	MemberLimit int             `json:"memberLimit"`
	Members     []Member        `json:"members"`
	Values      Metadata        `json:"values,omitempty"`
	GameServer  GameServer      `json:"gameServer"`
	Deleted     bool            `json:"deleted"`
	DeletedAt   int64           `json:"deletedAt"`
	AppID       identity.AppID  `json:"appId"`
}

// Member returns the member with the given id, or nil.
func (l *Lobby) Member(id identity.PeerID) *Member {
	for i := range l.Members {
		if l.Members[i].ID == id {
			return &l.Members[i]
		}
	}
	return nil
}

// AddMember appends a new member. Returns false if the peer is already a member.
func (l *Lobby) AddMember(id identity.PeerID) bool {
	if l.Member(id) != nil {
		return false
	}
	l.Members = append(l.Members, Member{ID: id, Values: Metadata{}})
	return true
}

// RemoveMember removes the member with the given id, preserving list order.
// Returns true if a member was removed.
func (l *Lobby) RemoveMember(id identity.PeerID) bool {
	for i := range l.Members {
		if l.Members[i].ID == id {
			l.Members = append(l.Members[:i], l.Members[i+1:]...)
			return true
		}
	}
	return false
}

// Clone returns a deep copy, detached from the receiver's maps and slices.
func (l *Lobby) Clone() *Lobby {
	out := *l
	out.Members = make([]Member, len(l.Members))
	for i, m := range l.Members {
		out.Members[i] = Member{ID: m.ID, Values: m.Values.Clone()}
	}
	out.Values = l.Values.Clone()
	return &out
}

// Equal reports field-for-field equality, including member order.
func (l *Lobby) Equal(o *Lobby) bool {
	if l == nil || o == nil {
		return l == o
	}
	if l.RoomID != o.RoomID || l.Owner != o.Owner || l.Type != o.Type ||
		l.Joinable != o.Joinable || l.MemberLimit != o.MemberLimit ||
		l.GameServer != o.GameServer || l.Deleted != o.Deleted ||
		l.DeletedAt != o.DeletedAt || l.AppID != o.AppID {
		return false
	}
	if len(l.Members) != len(o.Members) {
		return false
	}
	for i := range l.Members {
		if l.Members[i].ID != o.Members[i].ID || !l.Members[i].Values.Equal(o.Members[i].Values) {
			return false
		}
	}
	return l.Values.Equal(o.Values)
}
