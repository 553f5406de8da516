// internal/matchmaking/matchmaker.go
package matchmaking

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
	"github.com/lanlobby/lanlobby/internal/transport"
	"github.com/lanlobby/lanlobby/internal/wire"
)

const (
	// snapshotInterval is how often owners rebroadcast full lobby state.
	snapshotInterval = 5 * time.Second
	// joinTimeout bounds how long a pending join may stay unresolved.
	joinTimeout = 10 * time.Second
	// dataRequestTimeout bounds a metadata refresh for an unknown lobby.
	dataRequestTimeout = 6 * time.Second
	// deletedGrace is how long a deleted lobby lingers before purging.
	deletedGrace = 2 * time.Second
	// createDelay models the creation round trip even though creation is local.
	createDelay = 70 * time.Millisecond
	// searchDeadline matches observed directory search latency.
	searchDeadline = 200 * time.Millisecond

	defaultMaxResults = 4096

	dataUpdateDelay  = 5 * time.Millisecond
	memberLeaveDelay = 200 * time.Millisecond
	memberJoinDelay  = 10 * time.Millisecond
)

type pendingCreate struct {
	token notify.Token
	typ   lobby.Type
	limit int
	at    time.Time
}

type pendingJoin struct {
	token notify.Token
	room  lobby.RoomID
	at    time.Time
	sent  bool
}

type dataRequest struct {
	room lobby.RoomID
	at   time.Time
}

// ChatEntryKind discriminates chat log entries.
type ChatEntryKind int

// ChatEntryMessage is an ordinary chat payload.
const ChatEntryMessage ChatEntryKind = 1

// ChatEntry is one record in the append-only, index-addressed chat log.
// Indices are stable for the process lifetime; the log is never compacted.
type ChatEntry struct {
	RoomID lobby.RoomID
	Sender identity.PeerID
	Kind   ChatEntryKind
	Body   []byte
}

// Config wires a Matchmaker to its collaborators.
type Config struct {
	Local  identity.Local
	Queue  *notify.Queue
	Logger *logrus.Logger

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time

	// DisableCreation makes every lobby creation complete with failure.
	DisableCreation bool
}

// Matchmaker is the lobby directory and synchronization core for one peer:
// registry, pending-operation trackers, authority rules, reconciliation,
// directory search and the tick driver, all behind one critical section.
//
// Exported methods acquire the mutex once; unexported *Unsafe helpers assume
// it is held, so recursive notification emission never re-locks.
type Matchmaker struct {
	mu sync.Mutex

	local  identity.Local
	queue  *notify.Queue
	logger *logrus.Logger
	now    func() time.Time

	tr transport.Transport

	registry *lobby.Registry

	pendingCreates []pendingCreate
	pendingJoins   []pendingJoin
	dataRequests   []dataRequest

	filters    []Criterion
	maxResults int

	searching     bool
	searchFilters []Criterion
	searchMax     int
	searchStarted time.Time
	searchToken   notify.Token
	results       []lobby.RoomID

	selfMemberData map[lobby.RoomID]lobby.Metadata
	chatLog        []ChatEntry

	// currentLobby is the single "currently in this lobby" slot. Invisible
	// lobbies never occupy it.
	currentLobby lobby.RoomID

	lastSnapshotSend time.Time

	disableCreation bool
}

// New builds a Matchmaker. Attach a transport before handling traffic.
func New(cfg Config) *Matchmaker {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Queue == nil {
		cfg.Queue = notify.NewQueue(cfg.Now)
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Matchmaker{
		local:           cfg.Local,
		queue:           cfg.Queue,
		logger:          cfg.Logger,
		now:             cfg.Now,
		registry:        lobby.NewRegistry(),
		maxResults:      defaultMaxResults,
		selfMemberData:  make(map[lobby.RoomID]lobby.Metadata),
		disableCreation: cfg.DisableCreation,
	}
}

// AttachTransport binds the messaging substrate. Call once before Tick or
// HandleMessage; inbound envelopes should be routed to HandleMessage.
func (mm *Matchmaker) AttachTransport(tr transport.Transport) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.tr = tr
}

// Queue exposes the notification sink the application drains.
func (mm *Matchmaker) Queue() *notify.Queue {
	return mm.queue
}

// CurrentLobby returns the room the local peer currently occupies, or zero.
func (mm *Matchmaker) CurrentLobby() lobby.RoomID {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	return mm.currentLobby
}

// sendOwnerPacketUnsafe sends a protocol message to the lobby's owner.
func (mm *Matchmaker) sendOwnerPacketUnsafe(room lobby.RoomID, msg *wire.LobbyMsg) bool {
	l := mm.registry.Find(room)
	if l == nil {
		return false
	}
	msg.RoomID = room
	if mm.tr == nil {
		return false
	}
	return mm.tr.Send(l.Owner, &wire.Envelope{LobbyMsg: msg})
}

// sendClientsPacketUnsafe broadcasts a protocol message to all related peers.
func (mm *Matchmaker) sendClientsPacketUnsafe(room lobby.RoomID, msg *wire.LobbyMsg) bool {
	if mm.registry.Find(room) == nil {
		return false
	}
	msg.RoomID = room
	if mm.tr == nil {
		return false
	}
	return mm.tr.Broadcast(&wire.Envelope{LobbyMsg: msg})
}

// sendMembersPacketUnsafe sends a protocol message to every current member.
func (mm *Matchmaker) sendMembersPacketUnsafe(room lobby.RoomID, msg *wire.LobbyMsg) bool {
	l := mm.registry.Find(room)
	if l == nil {
		return false
	}
	msg.RoomID = room
	if mm.tr == nil {
		return false
	}
	for _, m := range l.Members {
		mm.tr.Send(m.ID, &wire.Envelope{LobbyMsg: msg})
	}
	return true
}

// broadcastSnapshotUnsafe pushes the full current state of a locally owned
// lobby to every related peer.
func (mm *Matchmaker) broadcastSnapshotUnsafe(l *lobby.Lobby) {
	if mm.tr == nil {
		return
	}
	mm.tr.Broadcast(&wire.Envelope{Snapshot: l.Clone()})
}

// triggerDataUpdateUnsafe emits a data-update notification for a lobby or a
// member of it (member == uint64(room) scopes it to the lobby itself). When
// the update is member-scoped a second lobby-scoped notification follows.
// If the local peer owns the lobby and resend is set, the changed state is
// rebroadcast immediately.
func (mm *Matchmaker) triggerDataUpdateUnsafe(room lobby.RoomID, member uint64, success bool, delay time.Duration, resend bool) {
	mm.queue.PostDelayed(notify.LobbyDataUpdate{RoomID: room, MemberID: member, Success: success}, delay, true)
	if member != uint64(room) {
		mm.queue.PostDelayed(notify.LobbyDataUpdate{RoomID: room, MemberID: uint64(room), Success: success}, delay, true)
	}

	l := mm.registry.Find(room)
	if l != nil && l.Owner == mm.local.PeerID && resend {
		mm.logger.Debugf("matchmaker %d: rebroadcasting changed lobby %d", mm.local.PeerID, room)
		mm.broadcastSnapshotUnsafe(l)
	}
}

// triggerMemberStateChangeUnsafe emits an entered/left notification plus the
// lobby-scoped data update that accompanies membership changes.
func (mm *Matchmaker) triggerMemberStateChangeUnsafe(room lobby.RoomID, member identity.PeerID, leaving bool, success bool, delay time.Duration) {
	change := notify.StateEntered
	if leaving {
		change = notify.StateLeft
	}
	mm.queue.PostDelayed(notify.MemberStateChange{RoomID: room, Member: member, Change: change}, delay, false)
	mm.triggerDataUpdateUnsafe(room, uint64(room), success, delay, true)
}

// changeOwnerUnsafe hands lobby authority to newOwner: sets the field, tells
// every member, and raises a data update.
func (mm *Matchmaker) changeOwnerUnsafe(l *lobby.Lobby, newOwner identity.PeerID) {
	l.Owner = newOwner
	mm.sendMembersPacketUnsafe(l.RoomID, &wire.LobbyMsg{Type: wire.MsgChangeOwner, Data: uint64(newOwner)})
	mm.triggerDataUpdateUnsafe(l.RoomID, uint64(l.RoomID), true, dataUpdateDelay, true)
}

// onSelfEnterLeaveUnsafe maintains the single current-lobby slot. Invisible
// lobbies are ignored.
func (mm *Matchmaker) onSelfEnterLeaveUnsafe(room lobby.RoomID, typ lobby.Type, leaving bool) {
	if typ == lobby.TypeInvisible {
		return
	}
	if leaving {
		mm.currentLobby = 0
	} else {
		mm.currentLobby = room
	}
}

// sendGameServerCreatedUnsafe announces a game server association.
func (mm *Matchmaker) sendGameServerCreatedUnsafe(room lobby.RoomID, gs lobby.GameServer) {
	mm.queue.Post(notify.GameServerCreated{RoomID: room, ServerID: gs.ID, IP: gs.IP, Port: gs.Port})
}

// purgeUnsafe garbage-collects lobbies with no members and deleted lobbies
// whose grace period has elapsed, dropping cached self member data with them.
func (mm *Matchmaker) purgeUnsafe() {
	cutoff := mm.now().Unix()
	for _, l := range mm.registry.All() {
		if len(l.Members) == 0 || (l.Deleted && l.DeletedAt+int64(deletedGrace/time.Second) < cutoff) {
			mm.logger.Debugf("matchmaker %d: purging lobby %d", mm.local.PeerID, l.RoomID)
			delete(mm.selfMemberData, l.RoomID)
			mm.registry.Remove(l.RoomID)
		}
	}
}
