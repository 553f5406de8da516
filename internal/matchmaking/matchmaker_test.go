// internal/matchmaking/matchmaker_test.go
package matchmaking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
	"github.com/lanlobby/lanlobby/internal/transport"
	"github.com/lanlobby/lanlobby/internal/wire"
)

const testAppID = identity.AppID(480)

// fakeClock drives all timeout logic deterministically.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testNet is a loopback network of matchmakers sharing one fake clock.
type testNet struct {
	clock *fakeClock
	hub   *transport.Loopback
}

func newTestNet() *testNet {
	return &testNet{clock: newFakeClock(), hub: transport.NewLoopback()}
}

type testPeer struct {
	id identity.PeerID
	mm *Matchmaker
}

func (n *testNet) addPeer(id identity.PeerID) *testPeer {
	mm := New(Config{
		Local: identity.Local{PeerID: id, AppID: testAppID},
		Now:   n.clock.now,
	})
	mm.AttachTransport(n.hub.Attach(id, mm.HandleMessage))
	return &testPeer{id: id, mm: mm}
}

// drain collects every delivery including short-delayed ones. The window is
// measured on the shared fake clock, the same one the queue stamps due times
// with.
func (p *testPeer) drain() []notify.Delivery {
	return p.mm.Queue().Drain(p.mm.now().Add(time.Minute))
}

func eventsOfKind(ds []notify.Delivery, k notify.Kind) []notify.Event {
	var out []notify.Event
	for _, d := range ds {
		if d.Event.Kind() == k {
			out = append(out, d.Event)
		}
	}
	return out
}

// createLobby drives a create to completion and returns the new room id.
// It drains the peer's queue as a side effect.
func (p *testPeer) createLobby(t *testing.T, n *testNet, typ lobby.Type, limit int) lobby.RoomID {
	t.Helper()
	tok := p.mm.CreateLobby(typ, limit)
	n.clock.advance(createDelay)
	p.mm.Tick()
	for _, d := range p.drain() {
		if d.Token == tok {
			created := d.Event.(notify.LobbyCreated)
			require.True(t, created.Success)
			require.NotZero(t, created.RoomID)
			return created.RoomID
		}
	}
	t.Fatal("create never completed")
	return 0
}

// joinLobby drives b through a full join handshake with the lobby's owner.
// Both sides' queues are drained as a side effect.
func joinLobby(t *testing.T, n *testNet, b *testPeer, room lobby.RoomID) {
	t.Helper()
	tok := b.mm.JoinLobby(room)
	n.hub.Pump()
	for _, d := range b.drain() {
		if d.Token == tok {
			enter := d.Event.(notify.LobbyEnter)
			require.Equal(t, notify.EnterSuccess, enter.Response)
			return
		}
	}
	t.Fatal("join never completed")
}

func TestCreateLobbyCompletesAfterDelay(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)

	tok := a.mm.CreateLobby(lobby.TypePublic, 4)

	// The delay has not elapsed, so the first tick resolves nothing.
	a.mm.Tick()
	assert.Empty(t, eventsOfKind(a.drain(), notify.KindLobbyCreated))

	n.clock.advance(createDelay)
	a.mm.Tick()

	ds := a.drain()
	creates := eventsOfKind(ds, notify.KindLobbyCreated)
	require.Len(t, creates, 1)
	created := creates[0].(notify.LobbyCreated)
	assert.True(t, created.Success)
	require.NotZero(t, created.RoomID)

	enters := eventsOfKind(ds, notify.KindLobbyEnter)
	require.Len(t, enters, 1)
	assert.Equal(t, notify.EnterSuccess, enters[0].(notify.LobbyEnter).Response)
	assert.False(t, enters[0].(notify.LobbyEnter).Locked)

	assert.NotEmpty(t, eventsOfKind(ds, notify.KindLobbyDataUpdate))

	// The token on the completion matches the create request.
	var tokenSeen bool
	for _, d := range ds {
		if d.Token == tok {
			tokenSeen = true
		}
	}
	assert.True(t, tokenSeen)

	room := created.RoomID
	assert.Equal(t, identity.PeerID(1), a.mm.Owner(room))
	assert.Equal(t, 1, a.mm.NumMembers(room))
	assert.Equal(t, 4, a.mm.GetMemberLimit(room))
	assert.Equal(t, room, a.mm.CurrentLobby())
}

func TestCreateLobbyDisabledStillInstantiates(t *testing.T) {
	clock := newFakeClock()
	mm := New(Config{
		Local:           identity.Local{PeerID: 1, AppID: testAppID},
		Now:             clock.now,
		DisableCreation: true,
	})

	mm.CreateLobby(lobby.TypePublic, 0)
	clock.advance(createDelay)
	mm.Tick()

	ds := mm.Queue().Drain(clock.now().Add(time.Minute))
	creates := eventsOfKind(ds, notify.KindLobbyCreated)
	require.Len(t, creates, 1)
	assert.False(t, creates[0].(notify.LobbyCreated).Success)
	assert.Zero(t, creates[0].(notify.LobbyCreated).RoomID)
	assert.Empty(t, eventsOfKind(ds, notify.KindLobbyEnter))

	// The lobby exists locally regardless; only the completion differs.
	assert.Equal(t, 1, mm.registry.Len())
}

func TestJoinHandshake(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	n.hub.Pump() // snapshot reaches b

	joinLobby(t, n, b, room)

	assert.Equal(t, 2, a.mm.NumMembers(room))
	assert.Equal(t, 2, b.mm.NumMembers(room))
	assert.Equal(t, identity.PeerID(1), b.mm.Owner(room))
	assert.Equal(t, room, b.mm.CurrentLobby())
	assert.Equal(t, identity.PeerID(1), b.mm.MemberByIndex(room, 0))
	assert.Equal(t, identity.PeerID(2), b.mm.MemberByIndex(room, 1))
	assert.Zero(t, b.mm.MemberByIndex(room, 2))

	// The owner observed the new member entering.
	changes := eventsOfKind(a.drain(), notify.KindMemberStateChange)
	require.NotEmpty(t, changes)
	ch := changes[0].(notify.MemberStateChange)
	assert.Equal(t, identity.PeerID(2), ch.Member)
	assert.Equal(t, notify.StateEntered, ch.Change)
}

func TestJoinIsIdempotentPerTarget(t *testing.T) {
	n := newTestNet()
	b := n.addPeer(2)

	t1 := b.mm.JoinLobby(99)
	t2 := b.mm.JoinLobby(99)
	assert.Equal(t, t1, t2)

	t3 := b.mm.JoinLobby(100)
	assert.NotEqual(t, t1, t3)
}

func TestJoinUnknownLobbyTimesOut(t *testing.T) {
	n := newTestNet()
	b := n.addPeer(2)

	tok := b.mm.JoinLobby(99)
	b.mm.Tick()
	assert.Empty(t, eventsOfKind(b.drain(), notify.KindLobbyEnter))

	n.clock.advance(joinTimeout)
	b.mm.Tick()

	ds := b.drain()
	enters := eventsOfKind(ds, notify.KindLobbyEnter)
	require.Len(t, enters, 1)
	assert.Equal(t, notify.EnterDoesntExist, enters[0].(notify.LobbyEnter).Response)
	assert.Equal(t, tok, ds[0].Token)
}

func TestJoinRefusedWhenFull(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 1)
	n.hub.Pump()

	b.mm.JoinLobby(room)
	n.hub.Pump()

	// No rejection message exists; the refused join resolves by timeout.
	assert.Equal(t, 1, a.mm.NumMembers(room))
	n.clock.advance(joinTimeout)
	b.mm.Tick()

	enters := eventsOfKind(b.drain(), notify.KindLobbyEnter)
	require.Len(t, enters, 1)
	assert.Equal(t, notify.EnterDoesntExist, enters[0].(notify.LobbyEnter).Response)
}

func TestJoinRefusedWhenNotJoinable(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	require.True(t, a.mm.SetLobbyJoinable(room, false))
	n.hub.Pump()

	b.mm.JoinLobby(room)
	n.hub.Pump()
	assert.Equal(t, 1, a.mm.NumMembers(room))
}

func TestOwnerLeaveHandsOffToFirstMember(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)
	c := n.addPeer(3)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	n.hub.Pump()
	joinLobby(t, n, b, room)
	n.hub.Pump()
	joinLobby(t, n, c, room)
	n.hub.Pump()
	b.drain()
	c.drain()

	a.mm.LeaveLobby(room)
	n.hub.Pump()

	// Successor is the first remaining member in list order.
	assert.Equal(t, identity.PeerID(2), b.mm.Owner(room))
	assert.Equal(t, identity.PeerID(2), c.mm.Owner(room))
	assert.Equal(t, 2, b.mm.NumMembers(room))
	assert.Zero(t, a.mm.CurrentLobby())

	// Remaining members observed the departure.
	changes := eventsOfKind(b.drain(), notify.KindMemberStateChange)
	require.NotEmpty(t, changes)
	left := changes[len(changes)-1].(notify.MemberStateChange)
	assert.Equal(t, identity.PeerID(1), left.Member)
	assert.Equal(t, notify.StateLeft, left.Change)
}

func TestSoloOwnerLeaveDeletesThenPurges(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	a.mm.LeaveLobby(room)

	// Deleted lobbies read as gone through the API but linger internally.
	assert.Zero(t, a.mm.Owner(room))
	assert.Zero(t, a.mm.MemberByIndex(room, 0))
	assert.Equal(t, 1, a.mm.registry.Len())

	n.clock.advance(deletedGrace + time.Second)
	a.mm.Tick()
	assert.Zero(t, a.mm.registry.Len())
}

func TestLeaveIsNoOpForNonMember(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	room := a.createLobby(t, n, lobby.TypePublic, 0)

	b := n.addPeer(2)
	n.hub.Pump()
	b.mm.LeaveLobby(room) // not a member
	b.mm.LeaveLobby(999)  // unknown

	assert.Equal(t, 1, a.mm.NumMembers(room))
}

func TestDataRequestResolvesKnownAndTimesOutUnknown(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	room := a.createLobby(t, n, lobby.TypePublic, 0)

	require.True(t, a.mm.RequestLobbyData(room))
	a.mm.Tick()
	updates := eventsOfKind(a.drain(), notify.KindLobbyDataUpdate)
	require.NotEmpty(t, updates)
	assert.True(t, updates[0].(notify.LobbyDataUpdate).Success)

	require.True(t, a.mm.RequestLobbyData(999))
	a.mm.Tick()
	assert.Empty(t, eventsOfKind(a.drain(), notify.KindLobbyDataUpdate))

	n.clock.advance(dataRequestTimeout)
	a.mm.Tick()
	updates = eventsOfKind(a.drain(), notify.KindLobbyDataUpdate)
	require.NotEmpty(t, updates)
	up := updates[0].(notify.LobbyDataUpdate)
	assert.Equal(t, lobby.RoomID(999), up.RoomID)
	assert.False(t, up.Success)
}

func TestPeriodicSnapshotRebroadcast(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	n.hub.Pump()
	assert.Equal(t, 1, b.mm.NumMembers(room))

	// Simulate b losing state; the periodic rebroadcast restores it.
	b.mm.HandleMessage(&wire.Envelope{
		SourceID: 1,
		Notice:   &wire.Notice{Type: wire.NoticeDisconnect},
	})
	b.mm.Tick() // members empty, purge drops the lobby
	assert.Zero(t, b.mm.NumMembers(room))

	n.clock.advance(snapshotInterval)
	a.mm.Tick()
	n.hub.Pump()
	assert.Equal(t, 1, b.mm.NumMembers(room))
}

func TestInviteToLobby(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	require.True(t, a.mm.InviteToLobby(room, 2))
	assert.False(t, a.mm.InviteToLobby(999, 2))

	n.hub.Pump()
	evs := eventsOfKind(b.drain(), notify.KindLobbyInvite)
	require.Len(t, evs, 1)
	inv := evs[0].(notify.LobbyInvite)
	assert.Equal(t, room, inv.RoomID)
	assert.Equal(t, identity.PeerID(1), inv.From)
}

func TestSetOwnerRequiresMembership(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)
	b := n.addPeer(2)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	n.hub.Pump()

	assert.False(t, a.mm.SetOwner(room, 2)) // not a member yet

	joinLobby(t, n, b, room)
	require.True(t, a.mm.SetOwner(room, 2))
	n.hub.Pump()

	assert.Equal(t, identity.PeerID(2), a.mm.Owner(room))
	assert.Equal(t, identity.PeerID(2), b.mm.Owner(room))

	// Non-owners cannot hand off authority.
	assert.False(t, a.mm.SetOwner(room, 1))
}

func TestSetLobbyTypeInvisibleSlotHandling(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)

	room := a.createLobby(t, n, lobby.TypePublic, 0)
	require.Equal(t, room, a.mm.CurrentLobby())

	require.True(t, a.mm.SetLobbyType(room, lobby.TypeInvisible))
	assert.Zero(t, a.mm.CurrentLobby())

	require.True(t, a.mm.SetLobbyType(room, lobby.TypePublic))
	assert.Equal(t, room, a.mm.CurrentLobby())
}

func TestRequestFriendsLobbiesAlwaysEmpty(t *testing.T) {
	n := newTestNet()
	a := n.addPeer(1)

	require.True(t, a.mm.RequestFriendsLobbies())
	evs := eventsOfKind(a.drain(), notify.KindFriendsLobbies)
	require.Len(t, evs, 1)
	assert.Zero(t, evs[0].(notify.FriendsLobbies).Count)
}
