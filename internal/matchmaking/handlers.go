// internal/matchmaking/handlers.go
package matchmaking

import (
	"github.com/lanlobby/lanlobby/internal/identity"
	"github.com/lanlobby/lanlobby/internal/lobby"
	"github.com/lanlobby/lanlobby/internal/notify"
	"github.com/lanlobby/lanlobby/internal/wire"
)

// HandleMessage is the inbound entry point for transport envelopes. Safe to
// call concurrently with API calls and Tick; everything runs inside the one
// critical section and ends with a purge sweep.
func (mm *Matchmaker) HandleMessage(env *wire.Envelope) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	switch {
	case env.Snapshot != nil:
		mm.applySnapshotUnsafe(env.Snapshot)
	case env.LobbyMsg != nil:
		mm.handleLobbyMsgUnsafe(env.SourceID, env.LobbyMsg)
	case env.Notice != nil:
		if env.Notice.Type == wire.NoticeDisconnect {
			mm.sweepDisconnectedUnsafe(env.SourceID)
		}
	}

	mm.purgeUnsafe()
}

func (mm *Matchmaker) handleLobbyMsgUnsafe(from identity.PeerID, msg *wire.LobbyMsg) {
	// Invitations reference lobbies the recipient usually does not know yet.
	if msg.Type == wire.MsgInvite {
		mm.queue.Post(notify.LobbyInvite{RoomID: msg.RoomID, From: from})
		return
	}

	l := mm.registry.Find(msg.RoomID)
	if l == nil || l.Deleted {
		return
	}
	weAreIn := l.Member(mm.local.PeerID) != nil

	// Owner-only mutations. The owner is the sole point of truth: it applies
	// the request and disseminates the next full snapshot.
	if l.Owner == mm.local.PeerID {
		switch msg.Type {
		case wire.MsgJoin:
			mm.acceptJoinUnsafe(l, from)
		case wire.MsgMemberData:
			mm.applyMemberDataUnsafe(l, from, msg.Map)
		}
	}

	switch msg.Type {
	case wire.MsgLeave:
		// Any recipient removes the departing sender from its local view.
		if l.RemoveMember(from) && weAreIn {
			mm.triggerMemberStateChangeUnsafe(l.RoomID, from, true, true, memberLeaveDelay)
		}
	case wire.MsgChangeOwner:
		// Authoritative announcement, accepted unconditionally.
		l.Owner = identity.PeerID(msg.Data)
		if weAreIn {
			mm.triggerDataUpdateUnsafe(l.RoomID, uint64(l.RoomID), true, dataUpdateDelay, true)
		}
	case wire.MsgChatMessage:
		if weAreIn {
			chatID := len(mm.chatLog)
			mm.chatLog = append(mm.chatLog, ChatEntry{
				RoomID: l.RoomID,
				Sender: from,
				Kind:   ChatEntryMessage,
				Body:   msg.Body,
			})
			mm.queue.Post(notify.ChatMessage{RoomID: l.RoomID, Sender: from, ChatID: chatID})
		}
	}
}

// acceptJoinUnsafe admits a joining peer if the lobby still takes members.
// There is no rejection message; a refused peer resolves by join timeout.
func (mm *Matchmaker) acceptJoinUnsafe(l *lobby.Lobby, from identity.PeerID) {
	if !l.Joinable {
		return
	}
	if l.MemberLimit > 0 && len(l.Members) >= l.MemberLimit {
		return
	}
	if l.AddMember(from) {
		mm.logger.Debugf("matchmaker %d: admitted %d to lobby %d", mm.local.PeerID, from, l.RoomID)
		mm.triggerMemberStateChangeUnsafe(l.RoomID, from, false, true, memberJoinDelay)
	}
}

// applyMemberDataUnsafe ingests a member metadata delta from a non-owner.
// This is the one incremental path in the protocol: the owner is the
// authority producing the next snapshot, so it may apply deltas directly.
func (mm *Matchmaker) applyMemberDataUnsafe(l *lobby.Lobby, from identity.PeerID, delta map[string]string) {
	m := l.Member(from)
	if m == nil {
		return
	}
	if m.Values == nil {
		m.Values = lobby.Metadata{}
	}
	for k, v := range delta {
		m.Values.Set(k, v)
	}
	mm.triggerDataUpdateUnsafe(l.RoomID, uint64(m.ID), true, dataUpdateDelay, true)
}
