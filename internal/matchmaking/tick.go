// internal/matchmaking/tick.go
package matchmaking

import (
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// Tick is the single cooperative re-entry point. Call it periodically; it
// advances everything timeout-driven: purges dead lobbies, resolves pending
// creates, rebroadcasts owned state, evaluates searches, and resolves
// pending joins and data requests. No other background execution exists.
func (mm *Matchmaker) Tick() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.purgeUnsafe()
	mm.resolvePendingCreatesUnsafe()

	if mm.now().Sub(mm.lastSnapshotSend) >= snapshotInterval {
		mm.sendOwnedSnapshotsUnsafe()
		mm.lastSnapshotSend = mm.now()
	}

	mm.runSearchUnsafe()
	mm.resolvePendingJoinsUnsafe()
	mm.resolveDataRequestsUnsafe()
}

// resolvePendingCreatesUnsafe instantiates lobbies whose creation delay has
// elapsed. The lobby is created even when creation is administratively
// disabled; only the completion flavor differs.
func (mm *Matchmaker) resolvePendingCreatesUnsafe() {
	kept := mm.pendingCreates[:0]
	for _, pc := range mm.pendingCreates {
		if mm.now().Sub(pc.at) < createDelay {
			kept = append(kept, pc)
			continue
		}

		l := &lobby.Lobby{
			RoomID:      lobby.NewRoomID(mm.local.PeerID),
			Owner:       mm.local.PeerID,
			Type:        pc.typ,
			Joinable:    true,
			MemberLimit: pc.limit,
			Values:      lobby.Metadata{},
			AppID:       mm.local.AppID,
		}
		l.AddMember(mm.local.PeerID)
		mm.registry.Insert(l)

		if mm.disableCreation {
			mm.queue.Complete(pc.token, notify.LobbyCreated{Success: false})
			continue
		}

		mm.logger.Debugf("matchmaker %d: created lobby %d", mm.local.PeerID, l.RoomID)
		mm.queue.Complete(pc.token, notify.LobbyCreated{Success: true, RoomID: l.RoomID})
		mm.queue.Post(notify.LobbyEnter{
			RoomID:   l.RoomID,
			Response: notify.EnterSuccess,
			Locked:   pc.typ == lobby.TypePrivate,
		})
		mm.onSelfEnterLeaveUnsafe(l.RoomID, pc.typ, false)
		mm.triggerDataUpdateUnsafe(l.RoomID, uint64(l.RoomID), true, dataUpdateDelay, true)
	}
	mm.pendingCreates = kept
}

// sendOwnedSnapshotsUnsafe rebroadcasts full state for every locally owned,
// non-deleted lobby the local peer is still a member of. The periodic
// rebroadcast is what makes the protocol idempotent under message loss.
func (mm *Matchmaker) sendOwnedSnapshotsUnsafe() {
	for _, l := range mm.registry.All() {
		if l.Deleted || l.Owner != mm.local.PeerID || l.Member(mm.local.PeerID) == nil {
			continue
		}
		mm.broadcastSnapshotUnsafe(l)
	}
}

// resolvePendingJoinsUnsafe walks pending joins in priority order: resend
// unsent JOIN requests, then resolve against a deleted target, then against
// achieved membership, then against the timeout.
func (mm *Matchmaker) resolvePendingJoinsUnsafe() {
	kept := mm.pendingJoins[:0]
	for _, pj := range mm.pendingJoins {
		if !pj.sent {
			pj.sent = mm.sendOwnerPacketUnsafe(pj.room, &wire.LobbyMsg{Type: wire.MsgJoin})
		}

		l := mm.registry.Find(pj.room)
		switch {
		case l != nil && l.Deleted:
			mm.queue.Complete(pj.token, notify.LobbyEnter{RoomID: pj.room, Response: notify.EnterDoesntExist})
		case l != nil && l.Member(mm.local.PeerID) != nil:
			mm.queue.Complete(pj.token, notify.LobbyEnter{RoomID: pj.room, Response: notify.EnterSuccess})
			mm.triggerDataUpdateUnsafe(pj.room, uint64(pj.room), true, dataUpdateDelay, true)
		case mm.now().Sub(pj.at) >= joinTimeout:
			mm.logger.Debugf("matchmaker %d: join for %d timed out", mm.local.PeerID, pj.room)
			mm.queue.Complete(pj.token, notify.LobbyEnter{RoomID: pj.room, Response: notify.EnterDoesntExist})
		default:
			kept = append(kept, pj)
		}
	}
	mm.pendingJoins = kept
}

// resolveDataRequestsUnsafe completes data refreshes: success once the lobby
// is known locally, failure on timeout.
func (mm *Matchmaker) resolveDataRequestsUnsafe() {
	kept := mm.dataRequests[:0]
	for _, dr := range mm.dataRequests {
		switch {
		case mm.registry.Find(dr.room) != nil:
			mm.triggerDataUpdateUnsafe(dr.room, uint64(dr.room), true, dataUpdateDelay, true)
		case mm.now().Sub(dr.at) >= dataRequestTimeout:
			mm.triggerDataUpdateUnsafe(dr.room, uint64(dr.room), false, dataUpdateDelay, false)
		default:
			kept = append(kept, dr)
		}
	}
	mm.dataRequests = kept
}
