// internal/matchmaking/api.go
package matchmaking

import (
	"sort"

	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// CreateLobby asks for a new lobby of the given type and member limit
// (0 = unlimited). Completion arrives asynchronously as a LobbyCreated event
// resolving the returned token, after the fixed creation delay elapses on a
// tick; on success a LobbyEnter and a data update follow.
func (mm *Matchmaker) CreateLobby(typ lobby.Type, memberLimit int) notify.Token {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	token := mm.queue.Reserve()
	mm.pendingCreates = append(mm.pendingCreates, pendingCreate{
		token: token,
		typ:   typ,
		limit: memberLimit,
		at:    mm.now(),
	})
	mm.logger.Debugf("matchmaker %d: create requested, type=%d limit=%d", mm.local.PeerID, typ, memberLimit)
	return token
}

// JoinLobby asks to join the lobby with the given room id. A pending join
// for the same target returns the original token: joins are per-target
// idempotent. Resolution is tick-driven, as a LobbyEnter event.
func (mm *Matchmaker) JoinLobby(room lobby.RoomID) notify.Token {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	for _, pj := range mm.pendingJoins {
		if pj.room == room {
			mm.logger.Debugf("matchmaker %d: join for %d already pending", mm.local.PeerID, room)
			return pj.token
		}
	}

	pj := pendingJoin{
		token: mm.queue.Reserve(),
		room:  room,
		at:    mm.now(),
	}
	pj.sent = mm.sendOwnerPacketUnsafe(room, &wire.LobbyMsg{Type: wire.MsgJoin})
	mm.pendingJoins = append(mm.pendingJoins, pj)
	return pj.token
}

// LeaveLobby leaves the lobby. Unknown, deleted, or non-member lobbies are
// no-ops. A departing owner hands authority to the first remaining member in
// list order; a sole owner marks the lobby deleted instead.
func (mm *Matchmaker) LeaveLobby(room lobby.RoomID) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Deleted || l.Member(mm.local.PeerID) == nil {
		return
	}

	mm.onSelfEnterLeaveUnsafe(room, l.Type, true)
	delete(mm.selfMemberData, room)

	msg := &wire.LobbyMsg{Type: wire.MsgLeave}
	if l.Owner != mm.local.PeerID {
		l.RemoveMember(mm.local.PeerID)
		mm.sendOwnerPacketUnsafe(room, msg)
		return
	}

	if len(l.Members) > 1 {
		l.RemoveMember(mm.local.PeerID)
		mm.changeOwnerUnsafe(l, l.Members[0].ID)
		mm.sendOwnerPacketUnsafe(room, msg)
	} else {
		mm.sendClientsPacketUnsafe(room, msg)
		l.Deleted = true
		l.DeletedAt = mm.now().Unix()
	}
}

// InviteToLobby sends a lobby invitation directly to another peer. Returns
// true if the send was attempted; the invitee decides whether to join.
func (mm *Matchmaker) InviteToLobby(room lobby.RoomID, invitee identity.PeerID) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.registry.Find(room) == nil || mm.tr == nil {
		return false
	}
	return mm.tr.Send(invitee, &wire.Envelope{
		LobbyMsg: &wire.LobbyMsg{Type: wire.MsgInvite, RoomID: room, Data: uint64(room)},
	})
}

// NumMembers returns the member count, or 0 for unknown lobbies.
func (mm *Matchmaker) NumMembers(room lobby.RoomID) int {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil {
		return 0
	}
	return len(l.Members)
}

// MemberByIndex returns the peer at position i in the member list, or zero
// when out of range or the lobby is unknown or deleted.
func (mm *Matchmaker) MemberByIndex(room lobby.RoomID, i int) identity.PeerID {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Deleted || i < 0 || i >= len(l.Members) {
		return 0
	}
	return l.Members[i].ID
}

// GetLobbyData returns the lobby metadata value for key, or "".
func (mm *Matchmaker) GetLobbyData(room lobby.RoomID, key string) string {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil {
		return ""
	}
	return l.Values.Get(key)
}

// SetLobbyData writes a lobby metadata key. Only the owner's write changes
// replicated state; a non-owner call still reports success and still raises
// a local data-update event, a quirk client code depends on.
func (mm *Matchmaker) SetLobbyData(room lobby.RoomID, key, value string) bool {
	if key == "" {
		return false
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Deleted {
		return false
	}

	changed := true
	if l.Owner == mm.local.PeerID {
		if l.Values == nil {
			l.Values = lobby.Metadata{}
		}
		changed = l.Values.Set(key, value)
	}

	if changed {
		mm.triggerDataUpdateUnsafe(room, uint64(room), true, dataUpdateDelay, true)
	}
	return true
}

// DeleteLobbyData removes a lobby metadata key. Owner only.
func (mm *Matchmaker) DeleteLobbyData(room lobby.RoomID, key string) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Owner != mm.local.PeerID || l.Deleted {
		return false
	}

	l.Values.Delete(key)
	mm.triggerDataUpdateUnsafe(room, uint64(room), true, dataUpdateDelay, true)
	return true
}

// GetLobbyDataCount returns the number of metadata keys on the lobby.
func (mm *Matchmaker) GetLobbyDataCount(room lobby.RoomID) int {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil {
		return 0
	}
	return len(l.Values)
}

// GetLobbyDataByIndex returns the i-th metadata pair in sorted key order.
// Returns ok=false when i is out of range.
func (mm *Matchmaker) GetLobbyDataByIndex(room lobby.RoomID, i int) (key, value string, ok bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || i < 0 || i >= len(l.Values) {
		return "", "", false
	}
	keys := make([]string, 0, len(l.Values))
	for k := range l.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys[i], l.Values[keys[i]], true
}

// GetMemberData returns per-member metadata. For the local peer the cached
// self-written values are consulted, so writes routed through a remote owner
// read back immediately.
func (mm *Matchmaker) GetMemberData(room lobby.RoomID, member identity.PeerID, key string) string {
	if key == "" {
		return ""
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil {
		return ""
	}
	m := l.Member(member)
	if m == nil {
		return ""
	}
	if member == mm.local.PeerID {
		if self, ok := mm.selfMemberData[room]; ok {
			return self.Get(key)
		}
		return ""
	}
	return m.Values.Get(key)
}

// SetMemberData writes a key in the local peer's own member metadata. The
// owner applies it directly and rebroadcasts; a non-owner delegates the
// delta to the owner as a MEMBER_DATA message. Either way the value lands in
// the self-member cache for immediate readback.
func (mm *Matchmaker) SetMemberData(room lobby.RoomID, key, value string) {
	if key == "" {
		return
	}

	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Deleted {
		return
	}
	m := l.Member(mm.local.PeerID)
	if m == nil {
		return
	}

	if l.Owner == mm.local.PeerID {
		if m.Values == nil {
			m.Values = lobby.Metadata{}
		}
		m.Values.Set(key, value)
		mm.triggerDataUpdateUnsafe(room, uint64(m.ID), true, dataUpdateDelay, true)
	} else {
		mm.sendOwnerPacketUnsafe(room, &wire.LobbyMsg{
			Type: wire.MsgMemberData,
			Map:  map[string]string{key: value},
		})
	}

	self, ok := mm.selfMemberData[room]
	if !ok {
		self = lobby.Metadata{}
		mm.selfMemberData[room] = self
	}
	self.Set(key, value)
}

// SendChat broadcasts an opaque chat payload to every current member,
// including the sender, which receives its own message back.
func (mm *Matchmaker) SendChat(room lobby.RoomID, body []byte) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Deleted {
		return false
	}
	return mm.sendMembersPacketUnsafe(room, &wire.LobbyMsg{Type: wire.MsgChatMessage, Body: body})
}

// GetChatEntry reads the chat log entry at chatID for the given lobby.
func (mm *Matchmaker) GetChatEntry(room lobby.RoomID, chatID int) (sender identity.PeerID, body []byte, kind ChatEntryKind, ok bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if chatID < 0 || chatID >= len(mm.chatLog) {
		return 0, nil, 0, false
	}
	e := mm.chatLog[chatID]
	if e.RoomID != room {
		return 0, nil, 0, false
	}
	return e.Sender, e.Body, e.Kind, true
}

// RequestLobbyData asks to refresh metadata for a lobby the local peer is
// not necessarily in. Resolution is tick-driven: success as soon as the
// lobby is known locally, failure on timeout, as a LobbyDataUpdate event.
func (mm *Matchmaker) RequestLobbyData(room lobby.RoomID) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.dataRequests = append(mm.dataRequests, dataRequest{room: room, at: mm.now()})
	return true
}

// SetGameServer associates a game server with the lobby. Owner only; each
// call increments the update counter so peers detect the change.
func (mm *Matchmaker) SetGameServer(room lobby.RoomID, ip uint32, port uint16, serverID identity.PeerID) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Owner != mm.local.PeerID || l.Deleted {
		return false
	}

	l.GameServer = lobby.GameServer{
		ID:        serverID,
		IP:        ip,
		Port:      port,
		NumUpdate: l.GameServer.NumUpdate + 1,
	}
	mm.sendGameServerCreatedUnsafe(room, l.GameServer)
	mm.triggerDataUpdateUnsafe(room, uint64(room), true, dataUpdateDelay, true)
	return true
}

// GetGameServer returns the lobby's game server association, if one is set.
func (mm *Matchmaker) GetGameServer(room lobby.RoomID) (lobby.GameServer, bool) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil {
		return lobby.GameServer{}, false
	}
	// NumUpdate is at least 1 once any association has been set, even one
	// carrying only an IP.
	if l.GameServer.NumUpdate == 0 {
		return lobby.GameServer{}, false
	}
	return l.GameServer, true
}

// SetMemberLimit sets the maximum member count (0 = unlimited). Owner only.
func (mm *Matchmaker) SetMemberLimit(room lobby.RoomID, limit int) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Owner != mm.local.PeerID || l.Deleted {
		return false
	}
	l.MemberLimit = limit
	mm.triggerDataUpdateUnsafe(room, uint64(room), true, dataUpdateDelay, true)
	return true
}

// GetMemberLimit returns the member limit, or 0 when unlimited or unknown.
func (mm *Matchmaker) GetMemberLimit(room lobby.RoomID) int {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil {
		return 0
	}
	return l.MemberLimit
}

// SetLobbyType changes the lobby's visibility class. Owner only. Moving to
// or from Invisible updates the current-lobby slot, since Invisible lobbies
// do not occupy it.
func (mm *Matchmaker) SetLobbyType(room lobby.RoomID, typ lobby.Type) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Owner != mm.local.PeerID || l.Deleted {
		return false
	}

	if l.Type != typ {
		if l.Type == lobby.TypeInvisible {
			mm.onSelfEnterLeaveUnsafe(room, typ, false)
		}
		if typ == lobby.TypeInvisible {
			mm.onSelfEnterLeaveUnsafe(room, l.Type, true)
		}
		l.Type = typ
		mm.triggerDataUpdateUnsafe(room, uint64(room), true, dataUpdateDelay, true)
	}
	return true
}

// SetLobbyJoinable controls whether new members may join. Owner only.
func (mm *Matchmaker) SetLobbyJoinable(room lobby.RoomID, joinable bool) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Owner != mm.local.PeerID || l.Deleted {
		return false
	}

	if l.Joinable != joinable {
		l.Joinable = joinable
		mm.triggerDataUpdateUnsafe(room, uint64(room), true, dataUpdateDelay, true)
	}
	return true
}

// Owner returns the lobby's current owner, or zero when unknown or deleted.
// It is possible, but rare, to observe yourself as owner right after joining
// if the previous owner departed in the same window; that is not an error.
func (mm *Matchmaker) Owner(room lobby.RoomID) identity.PeerID {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Deleted {
		return 0
	}
	return l.Owner
}

// SetOwner hands lobby authority to another current member. Owner only.
func (mm *Matchmaker) SetOwner(room lobby.RoomID, newOwner identity.PeerID) bool {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	l := mm.registry.Find(room)
	if l == nil || l.Owner != mm.local.PeerID || l.Deleted {
		return false
	}
	if l.Member(newOwner) == nil {
		return false
	}
	mm.changeOwnerUnsafe(l, newOwner)
	return true
}

// RequestFriendsLobbies answers immediately with an empty result: there is
// no friends backend on a serverless network.
func (mm *Matchmaker) RequestFriendsLobbies() bool {
	mm.queue.Post(notify.FriendsLobbies{Count: 0})
	return true
}
