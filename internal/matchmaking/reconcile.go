// internal/matchmaking/reconcile.go
package matchmaking

import (
	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
)

// applySnapshotUnsafe reconciles an inbound full-lobby-state message against
// the local copy. The notification set is computed by diffing the old copy
// first; only then is the local copy replaced wholesale. Per-member metadata
// changes are observable only through this diff: the protocol is eventually
// consistent on full state, not on deltas.
func (mm *Matchmaker) applySnapshotUnsafe(in *lobby.Lobby) {
	if in.Owner == mm.local.PeerID || in.AppID != mm.local.AppID {
		return
	}

	l := mm.registry.Find(in.RoomID)
	if l == nil {
		l = &lobby.Lobby{RoomID: in.RoomID}
		mm.registry.Insert(l)
	}
	if l.Deleted {
		return
	}
	if l.Equal(in) {
		return
	}

	weAreIn := l.Member(mm.local.PeerID) != nil
	if weAreIn {
		mm.triggerDataUpdateUnsafe(l.RoomID, uint64(l.RoomID), true, dataUpdateDelay, true)
	}

	// Members gone or changed since the previous copy.
	for i := range l.Members {
		old := &l.Members[i]
		cur := in.Member(old.ID)
		if !weAreIn {
			continue
		}
		if cur == nil {
			mm.triggerMemberStateChangeUnsafe(l.RoomID, old.ID, true, true, memberLeaveDelay)
		} else if !cur.Values.Equal(old.Values) {
			mm.triggerDataUpdateUnsafe(l.RoomID, uint64(old.ID), true, dataUpdateDelay, true)
		}
	}

	// Members new in the incoming snapshot. A new self-member completes all
	// outstanding pending joins for this lobby.
	joined := false
	for i := range in.Members {
		m := &in.Members[i]
		if l.Member(m.ID) != nil {
			continue
		}
		if m.ID == mm.local.PeerID {
			kept := mm.pendingJoins[:0]
			for _, pj := range mm.pendingJoins {
				if pj.room != l.RoomID {
					kept = append(kept, pj)
					continue
				}
				mm.queue.Complete(pj.token, notify.LobbyEnter{RoomID: l.RoomID, Response: notify.EnterSuccess})
				joined = true
			}
			mm.pendingJoins = kept
			if joined {
				mm.onSelfEnterLeaveUnsafe(l.RoomID, l.Type, false)
				mm.triggerDataUpdateUnsafe(l.RoomID, uint64(l.RoomID), true, dataUpdateDelay, true)
			}
		} else if weAreIn {
			mm.triggerMemberStateChangeUnsafe(l.RoomID, m.ID, false, true, memberJoinDelay)
		}
	}

	// Game server association changes, including one carried by the snapshot
	// that completed a self-join.
	if (joined && in.GameServer.NumUpdate != 0) ||
		(weAreIn && l.GameServer.NumUpdate != in.GameServer.NumUpdate) {
		mm.sendGameServerCreatedUnsafe(l.RoomID, in.GameServer)
		mm.triggerDataUpdateUnsafe(l.RoomID, uint64(l.RoomID), true, dataUpdateDelay, true)
	}

	// Replace the local copy wholesale.
	*l = *in.Clone()
}

// sweepDisconnectedUnsafe removes a vanished peer from every known lobby.
func (mm *Matchmaker) sweepDisconnectedUnsafe(peer identity.PeerID) {
	for _, l := range mm.registry.All() {
		if l.RemoveMember(peer) {
			mm.triggerMemberStateChangeUnsafe(l.RoomID, peer, true, true, 0)
		}
	}
}
