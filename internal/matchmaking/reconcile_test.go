// internal/matchmaking/reconcile_test.go
package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// standalone matchmaker fed hand-built snapshots, no transport.
func newStandalone(id identity.PeerID) (*Matchmaker, *fakeClock) {
	clock := newFakeClock()
	mm := New(Config{
		Local: identity.Local{PeerID: id, AppID: testAppID},
		Now:   clock.now,
	})
	return mm, clock
}

func snapshotEnv(l *lobby.Lobby) *wire.Envelope {
	return &wire.Envelope{SourceID: l.Owner, Snapshot: l}
}

func makeLobby(room lobby.RoomID, owner identity.PeerID, members ...identity.PeerID) *lobby.Lobby {
	l := &lobby.Lobby{
		RoomID:   room,
		Owner:    owner,
		Type:     lobby.TypePublic,
		Joinable: true,
		Values:   lobby.Metadata{},
		AppID:    testAppID,
	}
	for _, m := range members {
		l.AddMember(m)
	}
	return l
}

func drainAll(mm *Matchmaker) []notify.Delivery {
	return mm.Queue().Drain(mm.now().Add(time.Minute))
}

func TestSnapshotApplyIsIdempotent(t *testing.T) {
	mm, _ := newStandalone(2)

	l := makeLobby(42, 1, 1, 2)
	mm.HandleMessage(snapshotEnv(l))
	assert.Equal(t, 2, mm.NumMembers(42))
	drainAll(mm)

	// An identical snapshot produces no notifications and no state change.
	mm.HandleMessage(snapshotEnv(l.Clone()))
	assert.Empty(t, drainAll(mm))
	assert.Equal(t, 2, mm.NumMembers(42))
}

func TestSnapshotIgnoredForOwnLobbiesAndWrongApp(t *testing.T) {
	mm, _ := newStandalone(2)

	own := makeLobby(42, 2, 2)
	mm.HandleMessage(snapshotEnv(own))
	assert.Zero(t, mm.NumMembers(42))

	foreign := makeLobby(43, 1, 1)
	foreign.AppID = testAppID + 1
	mm.HandleMessage(snapshotEnv(foreign))
	assert.Zero(t, mm.NumMembers(43))
}

func TestSnapshotDiffEmitsMemberEvents(t *testing.T) {
	mm, _ := newStandalone(2)

	mm.HandleMessage(snapshotEnv(makeLobby(42, 1, 1, 2)))
	drainAll(mm)

	// Member 3 arrives and member 1's metadata changes.
	next := makeLobby(42, 1, 1, 2, 3)
	next.Member(1).Values = lobby.Metadata{"name": "alice"}
	mm.HandleMessage(snapshotEnv(next))

	ds := drainAll(mm)
	changes := eventsOfKind(ds, notify.KindMemberStateChange)
	require.Len(t, changes, 1)
	entered := changes[0].(notify.MemberStateChange)
	assert.Equal(t, identity.PeerID(3), entered.Member)
	assert.Equal(t, notify.StateEntered, entered.Change)

	var memberScoped bool
	for _, e := range eventsOfKind(ds, notify.KindLobbyDataUpdate) {
		if e.(notify.LobbyDataUpdate).MemberID == 1 {
			memberScoped = true
		}
	}
	assert.True(t, memberScoped)

	// Member 3 departs again.
	mm.HandleMessage(snapshotEnv(makeLobby(42, 1, 1, 2)))
	changes = eventsOfKind(drainAll(mm), notify.KindMemberStateChange)
	require.Len(t, changes, 1)
	left := changes[0].(notify.MemberStateChange)
	assert.Equal(t, identity.PeerID(3), left.Member)
	assert.Equal(t, notify.StateLeft, left.Change)
}

func TestSnapshotDiffSilentWhenNotMember(t *testing.T) {
	mm, _ := newStandalone(9)

	mm.HandleMessage(snapshotEnv(makeLobby(42, 1, 1, 2)))
	drainAll(mm)

	// Membership churn in a lobby we merely observe emits nothing.
	mm.HandleMessage(snapshotEnv(makeLobby(42, 1, 1, 3)))
	ds := drainAll(mm)
	assert.Empty(t, eventsOfKind(ds, notify.KindMemberStateChange))
	assert.Empty(t, eventsOfKind(ds, notify.KindLobbyDataUpdate))
}

func TestSnapshotGameServerChangeNotifies(t *testing.T) {
	mm, _ := newStandalone(2)

	mm.HandleMessage(snapshotEnv(makeLobby(42, 1, 1, 2)))
	drainAll(mm)

	next := makeLobby(42, 1, 1, 2)
	next.GameServer = lobby.GameServer{ID: 7, IP: 0x7F000001, Port: 27015, NumUpdate: 1}
	mm.HandleMessage(snapshotEnv(next))

	evs := eventsOfKind(drainAll(mm), notify.KindGameServerCreated)
	require.Len(t, evs, 1)
	gs := evs[0].(notify.GameServerCreated)
	assert.Equal(t, lobby.RoomID(42), gs.RoomID)
	assert.Equal(t, identity.PeerID(7), gs.ServerID)
	assert.Equal(t, uint16(27015), gs.Port)

	srv, ok := mm.GetGameServer(42)
	require.True(t, ok)
	assert.Equal(t, uint32(1), srv.NumUpdate)
}

func TestChangeOwnerMessageAcceptedUnconditionally(t *testing.T) {
	mm, _ := newStandalone(2)
	mm.HandleMessage(snapshotEnv(makeLobby(42, 1, 1, 2)))
	drainAll(mm)

	mm.HandleMessage(&wire.Envelope{
		SourceID: 1,
		LobbyMsg: &wire.LobbyMsg{Type: wire.MsgChangeOwner, RoomID: 42, Data: 2},
	})
	assert.Equal(t, identity.PeerID(2), mm.Owner(42))
	assert.NotEmpty(t, eventsOfKind(drainAll(mm), notify.KindLobbyDataUpdate))
}

func TestMessagesForUnknownLobbiesIgnored(t *testing.T) {
	mm, _ := newStandalone(2)

	mm.HandleMessage(&wire.Envelope{
		SourceID: 1,
		LobbyMsg: &wire.LobbyMsg{Type: wire.MsgChatMessage, RoomID: 42, Body: []byte("hi")},
	})
	assert.Empty(t, drainAll(mm))
}

func TestDisconnectSweepRemovesPeerEverywhere(t *testing.T) {
	mm, _ := newStandalone(2)
	mm.HandleMessage(snapshotEnv(makeLobby(42, 1, 1, 2)))
	mm.HandleMessage(snapshotEnv(makeLobby(43, 1, 1, 2, 3)))
	drainAll(mm)

	mm.HandleMessage(&wire.Envelope{
		SourceID: 3,
		Notice:   &wire.Notice{Type: wire.NoticeDisconnect},
	})
	assert.Equal(t, 2, mm.NumMembers(42))
	assert.Equal(t, 2, mm.NumMembers(43))

	changes := eventsOfKind(drainAll(mm), notify.KindMemberStateChange)
	require.Len(t, changes, 1)
	assert.Equal(t, identity.PeerID(3), changes[0].(notify.MemberStateChange).Member)
	assert.Equal(t, notify.StateLeft, changes[0].(notify.MemberStateChange).Change)
}

func TestChatRoundTrip(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	n.hub.Pump()
	joinLobby(t, n, b, room)
	a.drain()

	require.True(t, b.mm.SendChat(room, []byte("hello")))
	n.hub.Pump()

	// Every member receives the message, the sender included.
	for _, p := range []*testPeer{a, b} {
		evs := eventsOfKind(p.drain(), notify.KindChatMessage)
		require.Len(t, evs, 1)
		msg := evs[0].(notify.ChatMessage)
		assert.Equal(t, identity.PeerID(2), msg.Sender)

		sender, body, kind, ok := p.mm.GetChatEntry(room, msg.ChatID)
		require.True(t, ok)
		assert.Equal(t, identity.PeerID(2), sender)
		assert.Equal(t, []byte("hello"), body)
		assert.Equal(t, ChatEntryMessage, kind)
	}

	_, _, _, ok := a.mm.GetChatEntry(room, 99)
	assert.False(t, ok)
}

func TestMemberDataRoutedThroughOwner(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	n.hub.Pump()
	joinLobby(t, n, b, room)
	a.drain()

	b.mm.SetMemberData(room, "name", "bob")

	// The self-member cache answers before the round trip completes.
	assert.Equal(t, "bob", b.mm.GetMemberData(room, 2, "name"))
	assert.Empty(t, a.mm.GetMemberData(room, 2, "name"))

	n.hub.Pump()
	assert.Equal(t, "bob", a.mm.GetMemberData(room, 2, "name"))

	var memberScoped bool
	for _, e := range eventsOfKind(a.drain(), notify.KindLobbyDataUpdate) {
		if e.(notify.LobbyDataUpdate).MemberID == 2 {
			memberScoped = true
		}
	}
	assert.True(t, memberScoped)
}

func TestOwnerSetsOwnMemberDataDirectly(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	a.mm.SetMemberData(room, "name", "alice")

	assert.Equal(t, "alice", a.mm.GetMemberData(room, 1, "name"))
	var memberScoped bool
	for _, e := range eventsOfKind(a.drain(), notify.KindLobbyDataUpdate) {
		if e.(notify.LobbyDataUpdate).MemberID == 1 {
			memberScoped = true
		}
	}
	assert.True(t, memberScoped)
}
