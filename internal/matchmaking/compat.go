// internal/matchmaking/compat.go
package matchmaking

import (
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
)

// Compat exposes older call shapes over the canonical Matchmaker operation
// set, for embedders written against earlier interface revisions. Each
// method is a thin translation; no behavior lives here.
type Compat struct {
	MM *Matchmaker
}

// KeyValuePair is the filter shape older callers pass to a filtered list
// request. Pairs are string Equal filters.
type KeyValuePair struct {
	Key   string
	Value string
}

// CreateLobbyTyped is the shape that predates member limits (limit 0).
func (c Compat) CreateLobbyTyped(typ lobby.Type) notify.Token {
	return c.MM.CreateLobby(typ, 0)
}

// CreateLobbyPrivate is the oldest shape: a single privacy flag.
func (c Compat) CreateLobbyPrivate(private bool) notify.Token {
	typ := lobby.TypePublic
	if private {
		typ = lobby.TypePrivate
	}
	return c.MM.CreateLobby(typ, 0)
}

// JoinLobbyNoToken joins without observing the completion token.
func (c Compat) JoinLobbyNoToken(room lobby.RoomID) {
	c.MM.JoinLobby(room)
}

// SetMemberDataBool is the shape that reported success; the canonical
// operation is fire-and-forget, so it is always true.
func (c Compat) SetMemberDataBool(room lobby.RoomID, key, value string) bool {
	c.MM.SetMemberData(room, key, value)
	return true
}

// RequestLobbyListFiltered applies inline Equal filters then begins a
// search, the shape that predates filter accumulation calls.
func (c Compat) RequestLobbyListFiltered(pairs []KeyValuePair) notify.Token {
	for _, p := range pairs {
		c.MM.AddStringFilter(p.Key, p.Value, CmpEqual)
	}
	return c.MM.RequestLobbyList()
}
